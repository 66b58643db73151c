// ABOUTME: Named permission gates over the effective role, with a fixed admission table.
// ABOUTME: Gates are pure functions of role; they never touch storage.
package authz

import "fmt"

// Gate is a named predicate guarding one class of operation.
type Gate int

const (
	GateAdminOnly Gate = iota
	GateManagerOrAdmin
	GateLeaderOrAbove
	GateViewPermission
	GateEditPermission
	GateMemberManagement
	GateSearchMembers
)

type gateSpec struct {
	name   string
	reason string
	admits map[Role]bool
}

func admit(roles ...Role) map[Role]bool {
	m := make(map[Role]bool, len(roles))
	for _, r := range roles {
		m[r] = true
	}
	return m
}

// gateTable is the admission table. Changing a row widens or narrows access
// for every route mapped to that gate.
var gateTable = map[Gate]gateSpec{
	GateAdminOnly: {
		name:   "admin-only",
		reason: "admin access required",
		admits: admit(RoleAdmin),
	},
	GateManagerOrAdmin: {
		name:   "manager-or-admin",
		reason: "project manager or admin access required",
		admits: admit(RoleAdmin, RoleProjectManager),
	},
	GateLeaderOrAbove: {
		name:   "leader-or-above",
		reason: "team lead or higher access required",
		admits: admit(RoleAdmin, RoleProjectManager, RoleTeamLead),
	},
	GateViewPermission: {
		name:   "view-permission",
		reason: "you do not have permission to view this resource",
		admits: admit(RoleAdmin, RoleProjectManager, RoleTeamLead, RoleMember),
	},
	GateEditPermission: {
		name:   "edit-permission",
		reason: "you do not have permission to edit this resource",
		admits: admit(RoleAdmin, RoleProjectManager, RoleTeamLead),
	},
	GateMemberManagement: {
		name:   "member-management",
		reason: "you do not have permission to manage members",
		admits: admit(RoleAdmin, RoleProjectManager, RoleTeamLead),
	},
	GateSearchMembers: {
		name:   "search-members",
		reason: "you do not have permission to search members",
		admits: admit(RoleAdmin, RoleProjectManager, RoleTeamLead, RoleMember, RoleClient),
	},
}

// AllGates returns every defined gate.
func AllGates() []Gate {
	return []Gate{
		GateAdminOnly, GateManagerOrAdmin, GateLeaderOrAbove, GateViewPermission,
		GateEditPermission, GateMemberManagement, GateSearchMembers,
	}
}

func (g Gate) String() string {
	if spec, ok := gateTable[g]; ok {
		return spec.name
	}
	return fmt.Sprintf("Gate(%d)", int(g))
}

// Allows reports whether role passes the gate. RoleNone never passes.
func (g Gate) Allows(role Role) bool {
	spec, ok := gateTable[g]
	if !ok {
		return false
	}
	return spec.admits[role]
}

// Check returns nil if role passes the gate, or a *Denial with the gate's reason.
func (g Gate) Check(role Role) error {
	if g.Allows(role) {
		return nil
	}
	spec, ok := gateTable[g]
	if !ok {
		return deny("forbidden")
	}
	return deny(spec.reason)
}

// Authorize evaluates gate against the caller's effective role. A caller who
// is inside a workspace without belonging to it gets a membership-specific
// reason instead of the gate's generic one.
func Authorize(c Caller, g Gate) error {
	role := c.Effective()
	if err := g.Check(role); err != nil {
		if c.Scope.InWorkspace() && c.Scope.Membership == nil {
			return deny(ReasonNotWorkspaceMember)
		}
		return err
	}
	return nil
}
