// ABOUTME: Store methods for workspaces and workspace memberships.
// ABOUTME: Implements the lookups behind authz.ScopeStore and authz.LinkStore.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kienguyen7815/PMTweb-be-sub000/internal/authz"
)

// Workspace is a tenant boundary owning projects and a member directory.
type Workspace struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	OwnerID   uuid.UUID `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserWorkspace is a workspace listed together with the caller's role in it.
type UserWorkspace struct {
	Workspace
	Role authz.Role `json:"role"`
}

// WorkspaceMember is a membership row joined with the member's user profile.
type WorkspaceMember struct {
	authz.Membership
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

const workspaceColumns = `id, name, owner_id, created_at, updated_at`

func scanWorkspace(row interface{ Scan(...any) error }) (*Workspace, error) {
	var w Workspace
	if err := row.Scan(&w.ID, &w.Name, &w.OwnerID, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

// CreateWorkspaceWithOwner atomically creates a workspace and admits ownerID
// to it as project-manager.
func (s *Store) CreateWorkspaceWithOwner(ctx context.Context, name string, ownerID uuid.UUID) (*Workspace, error) {
	var ws *Workspace
	err := s.withTx(ctx, func(q querier) error {
		created, err := scanWorkspace(q.QueryRowContext(ctx, `
			INSERT INTO workspaces (name, owner_id) VALUES ($1, $2)
			RETURNING `+workspaceColumns, name, ownerID))
		if err != nil {
			return fmt.Errorf("insert workspace: %w", err)
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO workspace_members (workspace_id, user_id, role) VALUES ($1, $2, $3)`,
			created.ID, ownerID, authz.RoleProjectManager); err != nil {
			return fmt.Errorf("insert owner membership: %w", err)
		}
		ws = created
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return ws, nil
}

// GetWorkspace returns the workspace with the given ID, or (nil, nil) if not found.
func (s *Store) GetWorkspace(ctx context.Context, id uuid.UUID) (*Workspace, error) {
	w, err := scanWorkspace(s.db.QueryRowContext(ctx,
		`SELECT `+workspaceColumns+` FROM workspaces WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get workspace: %w", err)
	}
	return w, nil
}

// RenameWorkspace updates the workspace name. Returns (nil, nil) if not found.
func (s *Store) RenameWorkspace(ctx context.Context, id uuid.UUID, name string) (*Workspace, error) {
	w, err := scanWorkspace(s.db.QueryRowContext(ctx, `
		UPDATE workspaces SET name = $2, updated_at = now() WHERE id = $1
		RETURNING `+workspaceColumns, id, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rename workspace: %w", err)
	}
	return w, nil
}

// ListUserWorkspaces returns every workspace userID belongs to, with their role.
func (s *Store) ListUserWorkspaces(ctx context.Context, userID uuid.UUID) ([]UserWorkspace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.id, w.name, w.owner_id, w.created_at, w.updated_at, m.role
		FROM workspaces w
		JOIN workspace_members m ON m.workspace_id = w.id
		WHERE m.user_id = $1
		ORDER BY w.name, w.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user workspaces: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []UserWorkspace
	for rows.Next() {
		var uw UserWorkspace
		if err := rows.Scan(&uw.ID, &uw.Name, &uw.OwnerID, &uw.CreatedAt, &uw.UpdatedAt, &uw.Role); err != nil {
			return nil, fmt.Errorf("scan user workspace: %w", err)
		}
		out = append(out, uw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user workspaces: %w", err)
	}
	return out, nil
}

// GetWorkspaceMembership returns userID's membership in workspaceID, or
// (nil, nil) if there is none. Implements authz.ScopeStore.
func (s *Store) GetWorkspaceMembership(ctx context.Context, workspaceID, userID uuid.UUID) (*authz.Membership, error) {
	m := authz.Membership{WorkspaceID: workspaceID, UserID: userID}
	err := s.db.QueryRowContext(ctx, `
		SELECT role, created_at FROM workspace_members
		WHERE workspace_id = $1 AND user_id = $2`, workspaceID, userID).Scan(&m.Role, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get workspace membership: %w", err)
	}
	return &m, nil
}

// UpsertWorkspaceMember admits userID to workspaceID with role, or changes
// the role if a membership already exists.
func (s *Store) UpsertWorkspaceMember(ctx context.Context, workspaceID, userID uuid.UUID, role authz.Role) (*authz.Membership, error) {
	m := authz.Membership{WorkspaceID: workspaceID, UserID: userID}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role) VALUES ($1, $2, $3)
		ON CONFLICT (workspace_id, user_id)
		DO UPDATE SET role = EXCLUDED.role, updated_at = now()
		RETURNING role, created_at`, workspaceID, userID, role).Scan(&m.Role, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert workspace member: %w", err)
	}
	return &m, nil
}

// InsertMembershipIfAbsent admits userID with role only when no membership
// exists. It never changes an existing role. Reports whether a row was
// inserted. Implements authz.LinkStore.
func (s *Store) InsertMembershipIfAbsent(ctx context.Context, workspaceID, userID uuid.UUID, role authz.Role) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role) VALUES ($1, $2, $3)
		ON CONFLICT (workspace_id, user_id) DO NOTHING`, workspaceID, userID, role)
	if err != nil {
		return false, fmt.Errorf("insert membership if absent: %w", err)
	}
	return rowsAffected(res) == 1, nil
}

// ListWorkspaceMembers returns the memberships of workspaceID with user profiles.
func (s *Store) ListWorkspaceMembers(ctx context.Context, workspaceID uuid.UUID) ([]WorkspaceMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.workspace_id, m.user_id, m.role, m.created_at, u.email, u.display_name
		FROM workspace_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.workspace_id = $1
		ORDER BY lower(u.email)`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list workspace members: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []WorkspaceMember
	for rows.Next() {
		var wm WorkspaceMember
		if err := rows.Scan(&wm.WorkspaceID, &wm.UserID, &wm.Role, &wm.CreatedAt, &wm.Email, &wm.DisplayName); err != nil {
			return nil, fmt.Errorf("scan workspace member: %w", err)
		}
		out = append(out, wm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workspace members: %w", err)
	}
	return out, nil
}

// RemoveWorkspaceMember deletes a membership. Reports whether a row existed.
func (s *Store) RemoveWorkspaceMember(ctx context.Context, workspaceID, userID uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM workspace_members WHERE workspace_id = $1 AND user_id = $2`, workspaceID, userID)
	if err != nil {
		return false, fmt.Errorf("remove workspace member: %w", err)
	}
	return rowsAffected(res) > 0, nil
}
