// ABOUTME: Store methods for in-app notifications. Rows are private to their recipient.
// ABOUTME: Every read and mark-read filters by user_id.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Notification is an in-app message for one user.
type Notification struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Kind      string     `json:"kind"`
	Message   string     `json:"message"`
	ProjectID *uuid.UUID `json:"project_id,omitempty"`
	TaskID    *uuid.UUID `json:"task_id,omitempty"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewNotification is one row to insert.
type NewNotification struct {
	UserID    uuid.UUID
	Kind      string
	Message   string
	ProjectID *uuid.UUID
	TaskID    *uuid.UUID
}

// CreateNotifications inserts all rows in one transaction.
func (s *Store) CreateNotifications(ctx context.Context, ns []NewNotification) error {
	if len(ns) == 0 {
		return nil
	}
	err := s.withTx(ctx, func(q querier) error {
		for _, n := range ns {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO notifications (user_id, kind, message, project_id, task_id)
				VALUES ($1, $2, $3, $4, $5)`,
				n.UserID, n.Kind, n.Message, nullableUUID(n.ProjectID), nullableUUID(n.TaskID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create notifications: %w", err)
	}
	return nil
}

// ListNotifications returns userID's notifications, newest first, at most limit.
func (s *Store) ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, kind, message, project_id, task_id, read_at, created_at
		FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR read_at IS NULL)
		ORDER BY created_at DESC, id
		LIMIT $3`, userID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	out := []Notification{}
	for rows.Next() {
		var n Notification
		var project, task uuid.NullUUID
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Message, &project, &task, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.ProjectID = uuidPtr(project)
		n.TaskID = uuidPtr(task)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

// MarkNotificationRead sets read_at on one of userID's notifications.
// Reports whether a matching row exists.
func (s *Store) MarkNotificationRead(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, now())
		WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return rowsAffected(res) > 0, nil
}
