// ABOUTME: Resource-ownership checks for authored content and workspace-tagged resources.
// ABOUTME: OwnershipPolicy selects how "admin-equivalent" is decided for authored content.
package authz

import (
	"fmt"

	"github.com/google/uuid"
)

// OwnershipPolicy decides who besides the author may mutate authored content.
type OwnershipPolicy int

const (
	// PolicyStrict admits the author and callers whose effective role is admin.
	PolicyStrict OwnershipPolicy = iota
	// PolicyLegacy also admits any caller holding no workspace role, matching
	// the handlers that treated a missing workspace role as elevated.
	PolicyLegacy
)

// ParseOwnershipPolicy maps "strict" or "legacy" to a policy.
func ParseOwnershipPolicy(s string) (OwnershipPolicy, error) {
	switch s {
	case "strict", "":
		return PolicyStrict, nil
	case "legacy":
		return PolicyLegacy, nil
	default:
		return PolicyStrict, fmt.Errorf("unknown ownership policy %q", s)
	}
}

func (p OwnershipPolicy) String() string {
	if p == PolicyLegacy {
		return "legacy"
	}
	return "strict"
}

// AdminEquivalent reports whether c has admin standing for authored content
// in its current scope.
func AdminEquivalent(c Caller, p OwnershipPolicy) bool {
	if c.Effective() == RoleAdmin {
		return true
	}
	return p == PolicyLegacy && c.Scope.WorkspaceRole == RoleNone
}

// CanMutateAuthored allows edit or delete of an authored resource when the
// caller is its author or admin-equivalent. It is checked before the write.
func CanMutateAuthored(c Caller, authorID uuid.UUID, p OwnershipPolicy) error {
	if c.UserID == authorID || AdminEquivalent(c, p) {
		return nil
	}
	return deny(ReasonNotAuthor)
}

// CheckWorkspaceScope rejects access to a resource outside the request's
// workspace. Requests without workspace context are not restricted here. A
// global resource (nil workspace) never matches a workspace context.
func CheckWorkspaceScope(s Scope, resourceWorkspaceID *uuid.UUID) error {
	if !s.InWorkspace() {
		return nil
	}
	if resourceWorkspaceID == nil || *resourceWorkspaceID != *s.WorkspaceID {
		return deny(ReasonWrongWorkspace)
	}
	return nil
}

// CheckResourceScope is CheckWorkspaceScope for a resource addressed by its
// own id, whose workspace the request was scoped from. A workspace-owned
// resource reached without workspace context is refused, so a failed scope
// lookup can never hand the caller's global role to workspace data.
func CheckResourceScope(s Scope, resourceWorkspaceID *uuid.UUID) error {
	if !s.InWorkspace() && resourceWorkspaceID != nil {
		return deny(ReasonWrongWorkspace)
	}
	return CheckWorkspaceScope(s, resourceWorkspaceID)
}
