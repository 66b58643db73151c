// ABOUTME: Closed role vocabulary shared by global user roles and workspace membership roles.
// ABOUTME: Parses wire names, and scans/values to the database as the same strings.
package authz

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Role is one of the five fixed roles. The zero value RoleNone means "no role"
// and is never stored.
type Role int

// Role constants, ordered from least to most privileged.
const (
	RoleNone Role = iota
	RoleClient
	RoleMember
	RoleTeamLead
	RoleProjectManager
	RoleAdmin
)

var roleNames = [...]string{
	RoleNone:           "",
	RoleClient:         "client",
	RoleMember:         "member",
	RoleTeamLead:       "team-lead",
	RoleProjectManager: "project-manager",
	RoleAdmin:          "admin",
}

// AllRoles returns every assignable role, most privileged first.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleProjectManager, RoleTeamLead, RoleMember, RoleClient}
}

// ParseRole converts a wire name to a Role. Underscore spellings are accepted
// for rows written by older clients. Unknown values return (RoleNone, false).
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, true
	case "project-manager", "project_manager":
		return RoleProjectManager, true
	case "team-lead", "team_lead":
		return RoleTeamLead, true
	case "member":
		return RoleMember, true
	case "client":
		return RoleClient, true
	default:
		return RoleNone, false
	}
}

// Valid reports whether r is one of the five assignable roles.
func (r Role) Valid() bool {
	return r > RoleNone && r <= RoleAdmin
}

func (r Role) String() string {
	if r < RoleNone || r > RoleAdmin {
		return fmt.Sprintf("Role(%d)", int(r))
	}
	return roleNames[r]
}

// MarshalText encodes the role as its wire name.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() && r != RoleNone {
		return nil, fmt.Errorf("marshal role: invalid role %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText decodes a wire name. Empty input decodes to RoleNone.
func (r *Role) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*r = RoleNone
		return nil
	}
	parsed, ok := ParseRole(string(b))
	if !ok {
		return fmt.Errorf("unknown role %q", string(b))
	}
	*r = parsed
	return nil
}

// Scan implements sql.Scanner for text role columns.
func (r *Role) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*r = RoleNone
		return nil
	case string:
		return r.UnmarshalText([]byte(v))
	case []byte:
		return r.UnmarshalText(v)
	default:
		return fmt.Errorf("scan role: unsupported type %T", src)
	}
}

// Value implements driver.Valuer. RoleNone is written as NULL.
func (r Role) Value() (driver.Value, error) {
	if r == RoleNone {
		return nil, nil
	}
	if !r.Valid() {
		return nil, fmt.Errorf("value role: invalid role %d", int(r))
	}
	return r.String(), nil
}
