// ABOUTME: Notify job handler: writes in-app notification rows and sends optional email.
// ABOUTME: Recipients are the task's assignees (or the new assignee), never the actor.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/kienguyen7815/PMTweb-be-sub000/internal/store"
)

// HandlerStore is the storage the notify handler needs. Implemented by *store.Store.
type HandlerStore interface {
	ListTaskAssignees(ctx context.Context, taskID uuid.UUID) ([]uuid.UUID, error)
	GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]store.User, error)
	CreateNotifications(ctx context.Context, ns []store.NewNotification) error
}

// Handler processes notify jobs.
type Handler struct {
	st          HandlerStore
	mailer      Mailer
	externalURL string
	log         *slog.Logger
}

// NewHandler creates a Handler. A nil mailer disables email.
func NewHandler(st HandlerStore, mailer Mailer, externalURL string) *Handler {
	return &Handler{
		st:          st,
		mailer:      mailer,
		externalURL: strings.TrimRight(externalURL, "/"),
		log:         slog.Default(),
	}
}

// Handle is a worker.Handler for the notify queue. A storage failure returns
// an error so the job is retried. Email failures are logged only, because a
// retry would duplicate the in-app rows already written.
func (h *Handler) Handle(ctx context.Context, payload json.RawMessage) error {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		// Malformed payloads never succeed; drop them.
		h.log.ErrorContext(ctx, "notify: bad payload", "error", err)
		return nil
	}

	recipients, err := h.recipients(ctx, ev)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}

	msg := message(ev)
	rows := make([]store.NewNotification, len(recipients))
	for i, uid := range recipients {
		projectID, taskID := ev.ProjectID, ev.TaskID
		rows[i] = store.NewNotification{
			UserID:    uid,
			Kind:      ev.Kind,
			Message:   msg,
			ProjectID: &projectID,
			TaskID:    &taskID,
		}
	}
	if err := h.st.CreateNotifications(ctx, rows); err != nil {
		return fmt.Errorf("notify %s: %w", ev.Kind, err)
	}

	if h.mailer != nil {
		h.sendEmails(ctx, ev, msg, recipients)
	}
	return nil
}

func (h *Handler) recipients(ctx context.Context, ev Event) ([]uuid.UUID, error) {
	var candidates []uuid.UUID
	switch ev.Kind {
	case KindTaskAssigned:
		if ev.AssigneeID != nil {
			candidates = []uuid.UUID{*ev.AssigneeID}
		}
	case KindTaskCommented:
		ids, err := h.st.ListTaskAssignees(ctx, ev.TaskID)
		if err != nil {
			return nil, fmt.Errorf("notify %s: %w", ev.Kind, err)
		}
		candidates = ids
	default:
		h.log.WarnContext(ctx, "notify: unknown event kind", "kind", ev.Kind)
		return nil, nil
	}

	seen := make(map[uuid.UUID]bool, len(candidates))
	out := make([]uuid.UUID, 0, len(candidates))
	for _, id := range candidates {
		if id == ev.ActorID || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}

func (h *Handler) sendEmails(ctx context.Context, ev Event, msg string, recipients []uuid.UUID) {
	users, err := h.st.GetUsersByIDs(ctx, recipients)
	if err != nil {
		h.log.WarnContext(ctx, "notify: load recipients for email", "kind", ev.Kind, "error", err)
		return
	}
	var taskURL string
	if h.externalURL != "" {
		taskURL = fmt.Sprintf("%s/projects/%s/tasks/%s", h.externalURL, ev.ProjectID, ev.TaskID)
	}
	for _, u := range users {
		name := u.DisplayName
		if name == "" {
			name = u.Email
		}
		subject, html, text, err := RenderTaskEmail(TaskEmailData{
			Kind:          ev.Kind,
			ProjectName:   ev.ProjectName,
			TaskTitle:     ev.TaskTitle,
			RecipientName: name,
			Message:       msg,
			Excerpt:       excerpt(ev.Comment),
			TaskURL:       taskURL,
		})
		if err != nil {
			h.log.ErrorContext(ctx, "notify: render email", "kind", ev.Kind, "error", err)
			return
		}
		if err := h.mailer.Send(ctx, u.Email, subject, html, text); err != nil {
			h.log.WarnContext(ctx, "notify: send email", "user_id", u.ID, "error", err)
		}
	}
}

func message(ev Event) string {
	actor := ev.ActorName
	if actor == "" {
		actor = "Someone"
	}
	switch ev.Kind {
	case KindTaskAssigned:
		return fmt.Sprintf("%s assigned you to %q.", actor, ev.TaskTitle)
	case KindTaskCommented:
		return fmt.Sprintf("%s commented on %q.", actor, ev.TaskTitle)
	}
	return ""
}
