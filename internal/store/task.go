// ABOUTME: Store methods for tasks and task assignments within a project.
// ABOUTME: Assignments are unique per (task, user); re-assigning is a no-op.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Task statuses and priorities accepted by the tasks table.
const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusReview     = "review"
	TaskStatusDone       = "done"

	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"
	TaskPriorityUrgent = "urgent"
)

// ValidTaskStatus reports whether s is a known task status.
func ValidTaskStatus(s string) bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusReview, TaskStatusDone:
		return true
	}
	return false
}

// ValidTaskPriority reports whether p is a known task priority.
func ValidTaskPriority(p string) bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent:
		return true
	}
	return false
}

// Task is a work item in a project.
type Task struct {
	ID          uuid.UUID   `json:"id"`
	ProjectID   uuid.UUID   `json:"project_id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Status      string      `json:"status"`
	Priority    string      `json:"priority"`
	DueDate     *time.Time  `json:"due_date,omitempty"`
	CreatedBy   uuid.UUID   `json:"created_by"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Assignees   []uuid.UUID `json:"assignees"`
}

// NewTask holds the fields of a task to create. Empty Status and Priority
// take the column defaults.
type NewTask struct {
	ProjectID   uuid.UUID
	Title       string
	Description string
	Status      string
	Priority    string
	DueDate     *time.Time
	CreatedBy   uuid.UUID
}

// TaskPatch holds the optional fields of a task update. Nil means unchanged;
// ClearDueDate removes the due date.
type TaskPatch struct {
	Title        *string
	Description  *string
	Status       *string
	Priority     *string
	DueDate      *time.Time
	ClearDueDate bool
}

// TaskFilter narrows ListProjectTasks. Zero fields match everything.
type TaskFilter struct {
	Status     string
	Priority   string
	AssigneeID *uuid.UUID
}

// listTasksQuery builds the filtered task listing for projectID.
func listTasksQuery(projectID uuid.UUID, f TaskFilter) (string, []any, error) {
	q := sq.Select(taskColumns).
		From("tasks").
		Where(sq.Eq{"project_id": projectID}).
		OrderBy("created_at", "id").
		PlaceholderFormat(sq.Dollar)
	if f.Status != "" {
		q = q.Where(sq.Eq{"status": f.Status})
	}
	if f.Priority != "" {
		q = q.Where(sq.Eq{"priority": f.Priority})
	}
	if f.AssigneeID != nil {
		q = q.Where(sq.Expr(
			"EXISTS (SELECT 1 FROM task_assignees ta WHERE ta.task_id = tasks.id AND ta.user_id = ?)",
			*f.AssigneeID))
	}
	return q.ToSql()
}

const taskColumns = `id, project_id, title, description, status, priority, due_date, created_by, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*Task, error) {
	var t Task
	var due sql.NullTime
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.Priority, &due, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if due.Valid {
		d := due.Time
		t.DueDate = &d
	}
	t.Assignees = []uuid.UUID{}
	return &t, nil
}

// CreateTask inserts a task.
func (s *Store) CreateTask(ctx context.Context, nt NewTask) (*Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, `
		INSERT INTO tasks (project_id, title, description, status, priority, due_date, created_by)
		VALUES ($1, $2, $3, COALESCE(NULLIF($4, ''), 'todo'), COALESCE(NULLIF($5, ''), 'medium'), $6, $7)
		RETURNING `+taskColumns,
		nt.ProjectID, nt.Title, nt.Description, nt.Status, nt.Priority, nt.DueDate, nt.CreatedBy))
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// GetTask returns the task with its assignees, or (nil, nil) if not found.
func (s *Store) GetTask(ctx context.Context, id uuid.UUID) (*Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	assignees, err := s.ListTaskAssignees(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Assignees = assignees
	return t, nil
}

// ListProjectTasks returns the tasks of projectID matching f, with their
// assignees.
func (s *Store) ListProjectTasks(ctx context.Context, projectID uuid.UUID, f TaskFilter) ([]Task, error) {
	query, args, err := listTasksQuery(projectID, f)
	if err != nil {
		return nil, fmt.Errorf("build task query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list project tasks: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]string, len(out))
	index := make(map[uuid.UUID]int, len(out))
	for i, t := range out {
		ids[i] = t.ID.String()
		index[t.ID] = i
	}
	arows, err := s.db.QueryContext(ctx, `
		SELECT task_id, user_id FROM task_assignees
		WHERE task_id = ANY($1::uuid[])
		ORDER BY assigned_at, user_id`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("list task assignees: %w", err)
	}
	defer arows.Close() //nolint:errcheck
	for arows.Next() {
		var taskID, userID uuid.UUID
		if err := arows.Scan(&taskID, &userID); err != nil {
			return nil, fmt.Errorf("scan task assignee: %w", err)
		}
		if i, ok := index[taskID]; ok {
			out[i].Assignees = append(out[i].Assignees, userID)
		}
	}
	if err := arows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task assignees: %w", err)
	}
	return out, nil
}

// UpdateTask applies patch. Returns (nil, nil) if the task does not exist.
func (s *Store) UpdateTask(ctx context.Context, id uuid.UUID, patch TaskPatch) (*Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, `
		UPDATE tasks SET
			title = COALESCE($2, title),
			description = COALESCE($3, description),
			status = COALESCE($4, status),
			priority = COALESCE($5, priority),
			due_date = CASE WHEN $7 THEN NULL ELSE COALESCE($6, due_date) END,
			updated_at = now()
		WHERE id = $1
		RETURNING `+taskColumns,
		id, patch.Title, patch.Description, patch.Status, patch.Priority, patch.DueDate, patch.ClearDueDate))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	assignees, err := s.ListTaskAssignees(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Assignees = assignees
	return t, nil
}

// DeleteTask removes a task. Reports whether it existed.
func (s *Store) DeleteTask(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	return rowsAffected(res) > 0, nil
}

// AssignTask adds userID to the task's assignees. Reports whether the
// assignment is new.
func (s *Store) AssignTask(ctx context.Context, taskID, userID, assignedBy uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO task_assignees (task_id, user_id, assigned_by) VALUES ($1, $2, $3)
		ON CONFLICT (task_id, user_id) DO NOTHING`, taskID, userID, assignedBy)
	if err != nil {
		return false, fmt.Errorf("assign task: %w", err)
	}
	return rowsAffected(res) == 1, nil
}

// UnassignTask removes userID from the task's assignees. Reports whether
// the assignment existed.
func (s *Store) UnassignTask(ctx context.Context, taskID, userID uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM task_assignees WHERE task_id = $1 AND user_id = $2`, taskID, userID)
	if err != nil {
		return false, fmt.Errorf("unassign task: %w", err)
	}
	return rowsAffected(res) > 0, nil
}

// ListTaskAssignees returns the user ids assigned to taskID, oldest first.
func (s *Store) ListTaskAssignees(ctx context.Context, taskID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM task_assignees WHERE task_id = $1 ORDER BY assigned_at, user_id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list task assignees: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	out := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan task assignee: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task assignees: %w", err)
	}
	return out, nil
}
