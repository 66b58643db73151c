// ABOUTME: Dispatcher turns task events into jobs on the notify queue.
// ABOUTME: Enqueue failures are returned; HTTP callers log and move on.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Queue is the job_queue name notification jobs are enqueued on.
const Queue = "notify"

// Event kinds.
const (
	KindTaskAssigned  = "task_assigned"
	KindTaskCommented = "task_commented"
)

// Event is the payload of one notify job. Names are captured when the event
// happens so the handler does not need to look them up again.
type Event struct {
	Kind        string     `json:"kind"`
	ActorID     uuid.UUID  `json:"actor_id"`
	ActorName   string     `json:"actor_name"`
	ProjectID   uuid.UUID  `json:"project_id"`
	ProjectName string     `json:"project_name"`
	TaskID      uuid.UUID  `json:"task_id"`
	TaskTitle   string     `json:"task_title"`
	AssigneeID  *uuid.UUID `json:"assignee_id,omitempty"`
	Comment     string     `json:"comment,omitempty"`
}

// Enqueuer inserts a job. Implemented by *store.Store.
type Enqueuer interface {
	EnqueueJob(ctx context.Context, queue string, payload json.RawMessage, maxAttempts int32) (uuid.UUID, error)
}

// Dispatcher enqueues notify jobs. A nil *Dispatcher drops every event, which
// is how notifications are switched off.
type Dispatcher struct {
	q           Enqueuer
	maxAttempts int32
}

// NewDispatcher creates a Dispatcher backed by q.
func NewDispatcher(q Enqueuer) *Dispatcher {
	return &Dispatcher{q: q, maxAttempts: 5}
}

// Dispatch enqueues ev for the notify worker.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	if d == nil {
		return nil
	}
	switch ev.Kind {
	case KindTaskAssigned:
		if ev.AssigneeID == nil {
			return fmt.Errorf("dispatch %s: missing assignee", ev.Kind)
		}
	case KindTaskCommented:
	default:
		return fmt.Errorf("dispatch: unknown event kind %q", ev.Kind)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("dispatch %s: marshal: %w", ev.Kind, err)
	}
	if _, err := d.q.EnqueueJob(ctx, Queue, payload, d.maxAttempts); err != nil {
		return fmt.Errorf("dispatch %s: %w", ev.Kind, err)
	}
	return nil
}
