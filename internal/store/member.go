// ABOUTME: Store methods for the member directory, people a workspace tracks
// ABOUTME: whether or not they have registered accounts.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// Member is one directory entry. WorkspaceID is nil for global entries.
type Member struct {
	ID          uuid.UUID  `json:"id"`
	WorkspaceID *uuid.UUID `json:"workspace_id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Position    string     `json:"position"`
	CreatedBy   uuid.UUID  `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// MemberPatch holds the optional fields of a member update. Nil means unchanged.
type MemberPatch struct {
	Name     *string
	Email    *string
	Position *string
}

const memberColumns = `id, workspace_id, name, email, position, created_by, created_at, updated_at`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func scanMember(row interface{ Scan(...any) error }) (*Member, error) {
	var m Member
	var ws uuid.NullUUID
	if err := row.Scan(&m.ID, &ws, &m.Name, &m.Email, &m.Position, &m.CreatedBy, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.WorkspaceID = uuidPtr(ws)
	return &m, nil
}

func collectMembers(rows *sql.Rows) ([]Member, error) {
	out := []Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return out, nil
}

// CreateMember inserts a directory entry.
func (s *Store) CreateMember(ctx context.Context, workspaceID *uuid.UUID, name, email, position string, createdBy uuid.UUID) (*Member, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx, `
		INSERT INTO members (workspace_id, name, email, position, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+memberColumns,
		nullableUUID(workspaceID), name, strings.TrimSpace(email), position, createdBy))
	if err != nil {
		return nil, fmt.Errorf("create member: %w", err)
	}
	return m, nil
}

// GetMember returns the member with the given ID, or (nil, nil) if not found.
func (s *Store) GetMember(ctx context.Context, id uuid.UUID) (*Member, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// MemberWorkspaceID returns the workspace owning memberID. It returns
// (nil, nil) both for an unknown member and for a global entry.
// Implements authz.ScopeStore.
func (s *Store) MemberWorkspaceID(ctx context.Context, memberID uuid.UUID) (*uuid.UUID, error) {
	var ws uuid.NullUUID
	err := s.db.QueryRowContext(ctx, `SELECT workspace_id FROM members WHERE id = $1`, memberID).Scan(&ws)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("member workspace id: %w", err)
	}
	return uuidPtr(ws), nil
}

// ListMembers returns the directory entries visible under v.
func (s *Store) ListMembers(ctx context.Context, v Visibility) ([]Member, error) {
	return s.SearchMembers(ctx, v, "")
}

// searchMembersQuery builds the directory search. An empty q matches every
// entry visible under v.
func searchMembersQuery(v Visibility, q string) (string, []any, error) {
	b := sq.Select(memberColumns).
		From("members").
		Where(v.where("workspace_id")).
		OrderBy("lower(name)", "id").
		PlaceholderFormat(sq.Dollar)
	if q = strings.TrimSpace(q); q != "" {
		pattern := "%" + likeEscaper.Replace(q) + "%"
		b = b.Where(sq.Or{
			sq.ILike{"name": pattern},
			sq.ILike{"email": pattern},
			sq.ILike{"position": pattern},
		})
	}
	return b.ToSql()
}

// SearchMembers returns entries visible under v whose name, email, or
// position contains q (case-insensitive).
func (s *Store) SearchMembers(ctx context.Context, v Visibility, q string) ([]Member, error) {
	query, args, err := searchMembersQuery(v, q)
	if err != nil {
		return nil, fmt.Errorf("build member search: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search members: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	return collectMembers(rows)
}

// UpdateMember applies patch. Returns (nil, nil) if the member does not exist.
func (s *Store) UpdateMember(ctx context.Context, id uuid.UUID, patch MemberPatch) (*Member, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx, `
		UPDATE members SET
			name = COALESCE($2, name),
			email = COALESCE($3, email),
			position = COALESCE($4, position),
			updated_at = now()
		WHERE id = $1
		RETURNING `+memberColumns, id, patch.Name, patch.Email, patch.Position))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update member: %w", err)
	}
	return m, nil
}

// DeleteMember removes a directory entry. Reports whether it existed.
func (s *Store) DeleteMember(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM members WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete member: %w", err)
	}
	return rowsAffected(res) > 0, nil
}
