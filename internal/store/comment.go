// ABOUTME: Store methods for task comments and project comments.
// ABOUTME: Both tables share one shape; the parent column differs.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Comment is an authored note on a task or on a project. ParentID is the
// task id for task comments and the project id for project comments.
type Comment struct {
	ID         uuid.UUID `json:"id"`
	ParentID   uuid.UUID `json:"parent_id"`
	AuthorID   uuid.UUID `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// commentTable names a comment table and its parent column. Values are
// constants below, never user input.
type commentTable struct {
	table  string
	parent string
	label  string
}

var (
	taskComments    = commentTable{table: "comments", parent: "task_id", label: "comment"}
	projectComments = commentTable{table: "project_comments", parent: "project_id", label: "project comment"}
)

func (ct commentTable) selectSQL(where string) string {
	return fmt.Sprintf(`
		SELECT c.id, c.%[2]s, c.author_id, COALESCE(u.display_name, ''), c.body, c.created_at, c.updated_at
		FROM %[1]s c LEFT JOIN users u ON u.id = c.author_id
		WHERE %[3]s`, ct.table, ct.parent, where)
}

func scanComment(row interface{ Scan(...any) error }) (*Comment, error) {
	var c Comment
	if err := row.Scan(&c.ID, &c.ParentID, &c.AuthorID, &c.AuthorName, &c.Body, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) createComment(ctx context.Context, ct commentTable, parentID, authorID uuid.UUID, body string) (*Comment, error) {
	var id uuid.UUID
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s, author_id, body) VALUES ($1, $2, $3) RETURNING id`, ct.table, ct.parent),
		parentID, authorID, body).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", ct.label, err)
	}
	c, err := s.getComment(ctx, ct, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("create %s: row vanished", ct.label)
	}
	return c, nil
}

func (s *Store) getComment(ctx context.Context, ct commentTable, id uuid.UUID) (*Comment, error) {
	c, err := scanComment(s.db.QueryRowContext(ctx, ct.selectSQL("c.id = $1"), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ct.label, err)
	}
	return c, nil
}

func (s *Store) listComments(ctx context.Context, ct commentTable, parentID uuid.UUID) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, ct.selectSQL("c."+ct.parent+" = $1")+" ORDER BY c.created_at, c.id", parentID)
	if err != nil {
		return nil, fmt.Errorf("list %ss: %w", ct.label, err)
	}
	defer rows.Close() //nolint:errcheck

	out := []Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", ct.label, err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %ss: %w", ct.label, err)
	}
	return out, nil
}

func (s *Store) updateComment(ctx context.Context, ct commentTable, id uuid.UUID, body string) (*Comment, error) {
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET body = $2, updated_at = now() WHERE id = $1`, ct.table), id, body)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", ct.label, err)
	}
	if rowsAffected(res) == 0 {
		return nil, nil
	}
	return s.getComment(ctx, ct, id)
}

func (s *Store) deleteComment(ctx context.Context, ct commentTable, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, ct.table), id)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", ct.label, err)
	}
	return rowsAffected(res) > 0, nil
}

// CreateTaskComment adds a comment by authorID to taskID.
func (s *Store) CreateTaskComment(ctx context.Context, taskID, authorID uuid.UUID, body string) (*Comment, error) {
	return s.createComment(ctx, taskComments, taskID, authorID, body)
}

// GetTaskComment returns a task comment, or (nil, nil) if not found.
func (s *Store) GetTaskComment(ctx context.Context, id uuid.UUID) (*Comment, error) {
	return s.getComment(ctx, taskComments, id)
}

// ListTaskComments returns the comments on taskID, oldest first.
func (s *Store) ListTaskComments(ctx context.Context, taskID uuid.UUID) ([]Comment, error) {
	return s.listComments(ctx, taskComments, taskID)
}

// UpdateTaskComment replaces the body. Returns (nil, nil) if not found.
func (s *Store) UpdateTaskComment(ctx context.Context, id uuid.UUID, body string) (*Comment, error) {
	return s.updateComment(ctx, taskComments, id, body)
}

// DeleteTaskComment removes a task comment. Reports whether it existed.
func (s *Store) DeleteTaskComment(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.deleteComment(ctx, taskComments, id)
}

// CreateProjectComment adds a comment by authorID to projectID.
func (s *Store) CreateProjectComment(ctx context.Context, projectID, authorID uuid.UUID, body string) (*Comment, error) {
	return s.createComment(ctx, projectComments, projectID, authorID, body)
}

// GetProjectComment returns a project comment, or (nil, nil) if not found.
func (s *Store) GetProjectComment(ctx context.Context, id uuid.UUID) (*Comment, error) {
	return s.getComment(ctx, projectComments, id)
}

// ListProjectComments returns the comments on projectID, oldest first.
func (s *Store) ListProjectComments(ctx context.Context, projectID uuid.UUID) ([]Comment, error) {
	return s.listComments(ctx, projectComments, projectID)
}

// UpdateProjectComment replaces the body. Returns (nil, nil) if not found.
func (s *Store) UpdateProjectComment(ctx context.Context, id uuid.UUID, body string) (*Comment, error) {
	return s.updateComment(ctx, projectComments, id, body)
}

// DeleteProjectComment removes a project comment. Reports whether it existed.
func (s *Store) DeleteProjectComment(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.deleteComment(ctx, projectComments, id)
}
