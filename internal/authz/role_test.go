package authz

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input  string
		want   Role
		wantOK bool
	}{
		{"admin", RoleAdmin, true},
		{"project-manager", RoleProjectManager, true},
		{"project_manager", RoleProjectManager, true},
		{"team-lead", RoleTeamLead, true},
		{"TEAM_LEAD", RoleTeamLead, true},
		{"member", RoleMember, true},
		{" client ", RoleClient, true},
		{"owner", RoleNone, false},
		{"", RoleNone, false},
	}
	for _, tc := range cases {
		got, ok := ParseRole(tc.input)
		assert.Equal(t, tc.want, got, "ParseRole(%q)", tc.input)
		assert.Equal(t, tc.wantOK, ok, "ParseRole(%q) ok", tc.input)
	}
}

func TestRole_StringRoundTrip(t *testing.T) {
	t.Parallel()
	for _, r := range AllRoles() {
		got, ok := ParseRole(r.String())
		require.True(t, ok, "ParseRole(%q)", r.String())
		assert.Equal(t, r, got)
		assert.True(t, r.Valid())
	}
	assert.False(t, RoleNone.Valid())
	assert.Equal(t, "Role(42)", Role(42).String())
}

func TestRole_JSON(t *testing.T) {
	t.Parallel()
	type body struct {
		Role Role `json:"role"`
	}
	out, err := json.Marshal(body{Role: RoleTeamLead})
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"team-lead"}`, string(out))

	var in body
	require.NoError(t, json.Unmarshal([]byte(`{"role":"project-manager"}`), &in))
	assert.Equal(t, RoleProjectManager, in.Role)

	err = json.Unmarshal([]byte(`{"role":"superuser"}`), &in)
	assert.Error(t, err)
}

func TestRole_ScanValue(t *testing.T) {
	t.Parallel()
	var r Role
	require.NoError(t, r.Scan("admin"))
	assert.Equal(t, RoleAdmin, r)
	require.NoError(t, r.Scan([]byte("client")))
	assert.Equal(t, RoleClient, r)
	require.NoError(t, r.Scan(nil))
	assert.Equal(t, RoleNone, r)
	assert.Error(t, r.Scan(12))
	assert.Error(t, r.Scan("root"))

	v, err := RoleMember.Value()
	require.NoError(t, err)
	assert.Equal(t, "member", v)

	v, err = RoleNone.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = Role(99).Value()
	assert.Error(t, err)
}
