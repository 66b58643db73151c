// ABOUTME: Store methods for projects. A project belongs to at most one workspace.
// ABOUTME: ProjectWorkspaceID backs workspace derivation from a project id.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// Project is a unit of work owned by a workspace, or global when WorkspaceID is nil.
type Project struct {
	ID          uuid.UUID  `json:"id"`
	WorkspaceID *uuid.UUID `json:"workspace_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	CreatedBy   uuid.UUID  `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ProjectPatch holds the optional fields of a project update. Nil means unchanged.
type ProjectPatch struct {
	Name        *string
	Description *string
}

const projectColumns = `id, workspace_id, name, description, created_by, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (*Project, error) {
	var p Project
	var ws uuid.NullUUID
	if err := row.Scan(&p.ID, &ws, &p.Name, &p.Description, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.WorkspaceID = uuidPtr(ws)
	return &p, nil
}

// CreateProject inserts a project. A nil workspaceID creates a global project.
func (s *Store) CreateProject(ctx context.Context, workspaceID *uuid.UUID, name, description string, createdBy uuid.UUID) (*Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx, `
		INSERT INTO projects (workspace_id, name, description, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING `+projectColumns, nullableUUID(workspaceID), name, description, createdBy))
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

// GetProject returns the project with the given ID, or (nil, nil) if not found.
func (s *Store) GetProject(ctx context.Context, id uuid.UUID) (*Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// ProjectWorkspaceID returns the workspace owning projectID. It returns
// (nil, nil) both for an unknown project and for a global project.
// Implements authz.ScopeStore.
func (s *Store) ProjectWorkspaceID(ctx context.Context, projectID uuid.UUID) (*uuid.UUID, error) {
	var ws uuid.NullUUID
	err := s.db.QueryRowContext(ctx, `SELECT workspace_id FROM projects WHERE id = $1`, projectID).Scan(&ws)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("project workspace id: %w", err)
	}
	return uuidPtr(ws), nil
}

// ListProjects returns the projects visible under v.
func (s *Store) ListProjects(ctx context.Context, v Visibility) ([]Project, error) {
	query, args, err := sq.Select(projectColumns).
		From("projects").
		Where(v.where("workspace_id")).
		OrderBy("created_at", "id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build project list: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return out, nil
}

// UpdateProject applies patch. Returns (nil, nil) if the project does not exist.
func (s *Store) UpdateProject(ctx context.Context, id uuid.UUID, patch ProjectPatch) (*Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx, `
		UPDATE projects SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			updated_at = now()
		WHERE id = $1
		RETURNING `+projectColumns, id, patch.Name, patch.Description))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	return p, nil
}

// DeleteProject removes a project and, by cascade, its tasks and comments.
// Reports whether the project existed.
func (s *Store) DeleteProject(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete project: %w", err)
	}
	return rowsAffected(res) > 0, nil
}
