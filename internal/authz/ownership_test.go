package authz

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memberScope(ws uuid.UUID, user uuid.UUID, r Role) Scope {
	return Scope{
		WorkspaceID:   &ws,
		WorkspaceRole: r,
		Membership:    &Membership{WorkspaceID: ws, UserID: user, Role: r},
	}
}

func TestCanMutateAuthored_Strict(t *testing.T) {
	t.Parallel()
	author := uuid.New()
	other := uuid.New()
	ws := uuid.New()

	cases := []struct {
		name    string
		caller  Caller
		allowed bool
	}{
		{"author, no workspace", Caller{UserID: author, GlobalRole: RoleClient}, true},
		{"author in workspace", Caller{UserID: author, GlobalRole: RoleMember, Scope: memberScope(ws, author, RoleMember)}, true},
		{"global admin, no workspace", Caller{UserID: other, GlobalRole: RoleAdmin}, true},
		{"global member, no workspace", Caller{UserID: other, GlobalRole: RoleMember}, false},
		{"global pm, no workspace", Caller{UserID: other, GlobalRole: RoleProjectManager}, false},
		{"workspace admin", Caller{UserID: other, GlobalRole: RoleMember, Scope: memberScope(ws, other, RoleAdmin)}, true},
		{"global admin as workspace member", Caller{UserID: other, GlobalRole: RoleAdmin, Scope: memberScope(ws, other, RoleMember)}, false},
		{"global admin, not a member", Caller{UserID: other, GlobalRole: RoleAdmin, Scope: Scope{WorkspaceID: &ws}}, false},
	}
	for _, tc := range cases {
		err := CanMutateAuthored(tc.caller, author, PolicyStrict)
		if tc.allowed {
			assert.NoError(t, err, tc.name)
			continue
		}
		d, ok := AsDenial(err)
		require.True(t, ok, tc.name)
		assert.Equal(t, ReasonNotAuthor, d.Reason, tc.name)
	}
}

func TestCanMutateAuthored_Legacy(t *testing.T) {
	t.Parallel()
	author := uuid.New()
	other := uuid.New()
	ws := uuid.New()

	// No workspace role at all counts as admin-equivalent under the legacy policy.
	assert.NoError(t, CanMutateAuthored(Caller{UserID: other, GlobalRole: RoleMember}, author, PolicyLegacy))
	assert.NoError(t, CanMutateAuthored(Caller{UserID: other, GlobalRole: RoleClient, Scope: Scope{WorkspaceID: &ws}}, author, PolicyLegacy))
	// A workspace role below admin is still denied.
	assert.Error(t, CanMutateAuthored(Caller{UserID: other, GlobalRole: RoleAdmin, Scope: memberScope(ws, other, RoleTeamLead)}, author, PolicyLegacy))
	assert.NoError(t, CanMutateAuthored(Caller{UserID: other, Scope: memberScope(ws, other, RoleAdmin)}, author, PolicyLegacy))
}

func TestParseOwnershipPolicy(t *testing.T) {
	t.Parallel()
	p, err := ParseOwnershipPolicy("strict")
	require.NoError(t, err)
	assert.Equal(t, PolicyStrict, p)

	p, err = ParseOwnershipPolicy("legacy")
	require.NoError(t, err)
	assert.Equal(t, PolicyLegacy, p)
	assert.Equal(t, "legacy", p.String())

	_, err = ParseOwnershipPolicy("loose")
	assert.Error(t, err)
}

func TestCheckWorkspaceScope(t *testing.T) {
	t.Parallel()
	w1 := uuid.New()
	w2 := uuid.New()

	// No workspace context: anything goes.
	assert.NoError(t, CheckWorkspaceScope(Scope{}, &w1))
	assert.NoError(t, CheckWorkspaceScope(Scope{}, nil))

	inW1 := Scope{WorkspaceID: &w1}
	assert.NoError(t, CheckWorkspaceScope(inW1, &w1))

	for _, res := range []*uuid.UUID{&w2, nil} {
		err := CheckWorkspaceScope(inW1, res)
		d, ok := AsDenial(err)
		require.True(t, ok)
		assert.Equal(t, ReasonWrongWorkspace, d.Reason)
	}
}

func TestCheckResourceScope(t *testing.T) {
	t.Parallel()
	w1 := uuid.New()
	w2 := uuid.New()

	assert.NoError(t, CheckResourceScope(Scope{}, nil), "global resource without workspace context")
	assert.NoError(t, CheckResourceScope(Scope{WorkspaceID: &w1}, &w1))

	for name, tc := range map[string]struct {
		scope Scope
		res   *uuid.UUID
	}{
		"workspace resource, no context": {Scope{}, &w1},
		"other workspace":                {Scope{WorkspaceID: &w1}, &w2},
		"global resource in workspace":   {Scope{WorkspaceID: &w1}, nil},
	} {
		d, ok := AsDenial(CheckResourceScope(tc.scope, tc.res))
		require.True(t, ok, name)
		assert.Equal(t, ReasonWrongWorkspace, d.Reason, name)
	}
}
