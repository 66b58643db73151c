// ABOUTME: HTTP handlers for the caller's in-app notifications.
// ABOUTME: Every query is filtered by the caller's id; other users' rows are invisible.
package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kienguyen7815/PMTweb-be-sub000/internal/store"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// listNotificationsHandler handles GET /api/v1/notifications?unread=true&limit=N.
func (srv *Server) listNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	u, _ := userFromContext(r.Context())
	q := r.URL.Query()

	limit := defaultNotificationLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxNotificationLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = n
	}
	unreadOnly := q.Get("unread") == "true"

	list, err := srv.store.ListNotifications(r.Context(), u.ID, unreadOnly, limit)
	if err != nil {
		writeFailure(w, r, "list notifications", err)
		return
	}
	if list == nil {
		list = []store.Notification{}
	}
	writeData(w, http.StatusOK, list)
}

// markNotificationReadHandler handles POST
// /api/v1/notifications/{notification_id}/read. Another user's notification
// is reported as not found.
func (srv *Server) markNotificationReadHandler(w http.ResponseWriter, r *http.Request) {
	u, _ := userFromContext(r.Context())
	id, ok := uuidParam(w, chi.URLParam(r, "notification_id"), "notification_id")
	if !ok {
		return
	}
	marked, err := srv.store.MarkNotificationRead(r.Context(), u.ID, id)
	if err != nil {
		writeFailure(w, r, "mark notification read", err)
		return
	}
	if !marked {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
