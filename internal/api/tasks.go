// ABOUTME: HTTP handlers for tasks under a project and their assignees.
// ABOUTME: New assignments enqueue a notification; enqueue failures never fail the request.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kienguyen7815/PMTweb-be-sub000/internal/notify"
	"github.com/kienguyen7815/PMTweb-be-sub000/internal/store"
)

var errBadDueDate = errors.New("due_date must be YYYY-MM-DD or RFC 3339")

type createTaskBody struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	DueDate     *string `json:"due_date"`
}

// updateTaskBody keeps due_date raw so an explicit null can clear it.
type updateTaskBody struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Status      *string         `json:"status"`
	Priority    *string         `json:"priority"`
	DueDate     json.RawMessage `json:"due_date"`
}

func parseDueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errBadDueDate
	}
	return t, nil
}

func validTaskTitle(title string) (string, bool) {
	title = strings.TrimSpace(title)
	return title, title != "" && len(title) <= 300
}

// loadTask resolves {task_id} within project. A task of another project is
// reported as not found.
func (srv *Server) loadTask(w http.ResponseWriter, r *http.Request, project *store.Project) (*store.Task, bool) {
	id, ok := uuidParam(w, chi.URLParam(r, "task_id"), "task_id")
	if !ok {
		return nil, false
	}
	t, err := srv.store.GetTask(r.Context(), id)
	if err != nil {
		writeFailure(w, r, "get task", err)
		return nil, false
	}
	if t == nil || t.ProjectID != project.ID {
		writeError(w, http.StatusNotFound, "task not found")
		return nil, false
	}
	return t, true
}

// listTasksHandler handles GET /api/v1/projects/{project_id}/tasks with
// optional status, priority and assignee filters.
func (srv *Server) listTasksHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := srv.loadProject(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := store.TaskFilter{Status: q.Get("status"), Priority: q.Get("priority")}
	if filter.Status != "" && !store.ValidTaskStatus(filter.Status) {
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}
	if filter.Priority != "" && !store.ValidTaskPriority(filter.Priority) {
		writeError(w, http.StatusBadRequest, "invalid priority filter")
		return
	}
	if raw := q.Get("assignee"); raw != "" {
		id, ok := uuidParam(w, raw, "assignee")
		if !ok {
			return
		}
		filter.AssigneeID = &id
	}
	tasks, err := srv.store.ListProjectTasks(r.Context(), p.ID, filter)
	if err != nil {
		writeFailure(w, r, "list tasks", err)
		return
	}
	if tasks == nil {
		tasks = []store.Task{}
	}
	writeData(w, http.StatusOK, tasks)
}

// createTaskHandler handles POST /api/v1/projects/{project_id}/tasks.
func (srv *Server) createTaskHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := srv.loadProject(w, r)
	if !ok {
		return
	}
	u, _ := userFromContext(r.Context())
	var req createTaskBody
	if !decodeJSON(w, r, &req) {
		return
	}
	title, ok := validTaskTitle(req.Title)
	if !ok {
		writeError(w, http.StatusBadRequest, "title must be 1-300 characters")
		return
	}
	if req.Status != "" && !store.ValidTaskStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	if req.Priority != "" && !store.ValidTaskPriority(req.Priority) {
		writeError(w, http.StatusBadRequest, "invalid priority")
		return
	}
	nt := store.NewTask{
		ProjectID:   p.ID,
		Title:       title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		CreatedBy:   u.ID,
	}
	if req.DueDate != nil && strings.TrimSpace(*req.DueDate) != "" {
		due, err := parseDueDate(*req.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		nt.DueDate = &due
	}

	t, err := srv.store.CreateTask(r.Context(), nt)
	if err != nil {
		writeFailure(w, r, "create task", err)
		return
	}
	writeData(w, http.StatusCreated, t)
}

// getTaskHandler handles GET /api/v1/projects/{project_id}/tasks/{task_id}.
func (srv *Server) getTaskHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := srv.loadProject(w, r)
	if !ok {
		return
	}
	t, ok := srv.loadTask(w, r, p)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, t)
}

// updateTaskHandler handles PATCH /api/v1/projects/{project_id}/tasks/{task_id}.
func (srv *Server) updateTaskHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := srv.loadProject(w, r)
	if !ok {
		return
	}
	t, ok := srv.loadTask(w, r, p)
	if !ok {
		return
	}
	var req updateTaskBody
	if !decodeJSON(w, r, &req) {
		return
	}

	patch := store.TaskPatch{Description: req.Description}
	if req.Title != nil {
		title, ok := validTaskTitle(*req.Title)
		if !ok {
			writeError(w, http.StatusBadRequest, "title must be 1-300 characters")
			return
		}
		patch.Title = &title
	}
	if req.Status != nil {
		if !store.ValidTaskStatus(*req.Status) {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		patch.Status = req.Status
	}
	if req.Priority != nil {
		if !store.ValidTaskPriority(*req.Priority) {
			writeError(w, http.StatusBadRequest, "invalid priority")
			return
		}
		patch.Priority = req.Priority
	}
	switch {
	case len(req.DueDate) == 0:
	case bytes.Equal(bytes.TrimSpace(req.DueDate), []byte("null")):
		patch.ClearDueDate = true
	default:
		var raw string
		if err := json.Unmarshal(req.DueDate, &raw); err != nil {
			writeError(w, http.StatusBadRequest, errBadDueDate.Error())
			return
		}
		due, err := parseDueDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		patch.DueDate = &due
	}

	updated, err := srv.store.UpdateTask(r.Context(), t.ID, patch)
	if err != nil {
		writeFailure(w, r, "update task", err)
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeData(w, http.StatusOK, updated)
}

// deleteTaskHandler handles DELETE /api/v1/projects/{project_id}/tasks/{task_id}.
func (srv *Server) deleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := srv.loadProject(w, r)
	if !ok {
		return
	}
	t, ok := srv.loadTask(w, r, p)
	if !ok {
		return
	}
	deleted, err := srv.store.DeleteTask(r.Context(), t.ID)
	if err != nil {
		writeFailure(w, r, "delete task", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// assignTaskHandler handles PUT
// /api/v1/projects/{project_id}/tasks/{task_id}/assignees/{user_id}. For a
// workspace project the assignee must belong to that workspace. Assigning
// twice is a no-op and notifies only once.
func (srv *Server) assignTaskHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := srv.loadProject(w, r)
	if !ok {
		return
	}
	t, ok := srv.loadTask(w, r, p)
	if !ok {
		return
	}
	userID, ok := uuidParam(w, chi.URLParam(r, "user_id"), "user_id")
	if !ok {
		return
	}

	assignee, err := srv.store.GetUserByID(r.Context(), userID)
	if err != nil {
		writeFailure(w, r, "assign task", err)
		return
	}
	if assignee == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if p.WorkspaceID != nil {
		m, err := srv.store.GetWorkspaceMembership(r.Context(), *p.WorkspaceID, userID)
		if err != nil {
			writeFailure(w, r, "assign task", err)
			return
		}
		if m == nil {
			writeError(w, http.StatusUnprocessableEntity, "assignee is not a member of this workspace")
			return
		}
	}

	actor, _ := userFromContext(r.Context())
	created, err := srv.store.AssignTask(r.Context(), t.ID, userID, actor.ID)
	if err != nil {
		writeFailure(w, r, "assign task", err)
		return
	}
	if created {
		ev := notify.Event{
			Kind:        notify.KindTaskAssigned,
			ActorID:     actor.ID,
			ActorName:   actor.DisplayName,
			ProjectID:   p.ID,
			ProjectName: p.Name,
			TaskID:      t.ID,
			TaskTitle:   t.Title,
			AssigneeID:  &userID,
		}
		if err := srv.notifier.Dispatch(r.Context(), ev); err != nil {
			slog.WarnContext(r.Context(), "assign task: enqueue notification", "task_id", t.ID, "error", err)
		}
	}

	assignees, err := srv.store.ListTaskAssignees(r.Context(), t.ID)
	if err != nil {
		writeFailure(w, r, "assign task", err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"task_id": t.ID, "assignees": assignees})
}

// unassignTaskHandler handles DELETE
// /api/v1/projects/{project_id}/tasks/{task_id}/assignees/{user_id}.
func (srv *Server) unassignTaskHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := srv.loadProject(w, r)
	if !ok {
		return
	}
	t, ok := srv.loadTask(w, r, p)
	if !ok {
		return
	}
	userID, ok := uuidParam(w, chi.URLParam(r, "user_id"), "user_id")
	if !ok {
		return
	}
	removed, err := srv.store.UnassignTask(r.Context(), t.ID, userID)
	if err != nil {
		writeFailure(w, r, "unassign task", err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "assignment not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
