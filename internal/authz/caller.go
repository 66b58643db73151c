package authz

import "github.com/google/uuid"

// Caller is the authenticated user together with the request's workspace scope.
type Caller struct {
	UserID     uuid.UUID
	GlobalRole Role
	Scope      Scope
}

// Effective returns the role used to authorize the request.
//
// Inside a workspace the membership role always wins, even over a global
// admin; a caller in a workspace they do not belong to has no role at all.
// Outside any workspace the global role applies.
func (c Caller) Effective() Role {
	return EffectiveRole(c.GlobalRole, c.Scope)
}

// EffectiveRole combines a global role with a request scope.
func EffectiveRole(global Role, s Scope) Role {
	if s.InWorkspace() {
		if s.Membership == nil {
			return RoleNone
		}
		return s.WorkspaceRole
	}
	return global
}
