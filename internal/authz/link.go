// ABOUTME: Links a registered user into a workspace when a member record with their email is created.
// ABOUTME: Insert-if-absent only: idempotent and never changes an existing membership's role.
package authz

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// LinkStore is the storage the Linker writes through.
type LinkStore interface {
	// UserIDByEmail returns the id of the user registered with email
	// (case-insensitive), or nil if none.
	UserIDByEmail(ctx context.Context, email string) (*uuid.UUID, error)
	// InsertMembershipIfAbsent creates the membership with role unless one
	// already exists for the pair. It reports whether a row was created.
	InsertMembershipIfAbsent(ctx context.Context, workspaceID, userID uuid.UUID, role Role) (bool, error)
}

// LinkResult describes what LinkMemberByEmail did.
type LinkResult struct {
	UserID  *uuid.UUID // nil when no registered user matched
	Created bool       // true only when a new membership row was written
}

// Linker performs the member-email → workspace-membership side effect.
type Linker struct {
	store       LinkStore
	defaultRole Role
}

// NewLinker returns a Linker that admits matched users as RoleMember.
func NewLinker(s LinkStore) *Linker {
	return &Linker{store: s, defaultRole: RoleMember}
}

// LinkMemberByEmail admits the user registered under email into workspaceID
// with the default role if they are not already a member. Existing
// memberships are left untouched, so a promoted user is never demoted and
// repeated calls write at most one row.
func (l *Linker) LinkMemberByEmail(ctx context.Context, workspaceID uuid.UUID, email string) (LinkResult, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return LinkResult{}, nil
	}

	userID, err := l.store.UserIDByEmail(ctx, email)
	if err != nil {
		return LinkResult{}, fmt.Errorf("link member: lookup user: %w", err)
	}
	if userID == nil {
		return LinkResult{}, nil
	}

	created, err := l.store.InsertMembershipIfAbsent(ctx, workspaceID, *userID, l.defaultRole)
	if err != nil {
		return LinkResult{UserID: userID}, fmt.Errorf("link member: insert membership: %w", err)
	}
	return LinkResult{UserID: userID, Created: created}, nil
}
