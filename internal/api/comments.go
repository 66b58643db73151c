// ABOUTME: HTTP handlers for task comments and project comments.
// ABOUTME: Edit and delete are limited to the author or an admin-equivalent caller.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kienguyen7815/PMTweb-be-sub000/internal/authz"
	"github.com/kienguyen7815/PMTweb-be-sub000/internal/notify"
	"github.com/kienguyen7815/PMTweb-be-sub000/internal/store"
)

const maxCommentLen = 5000

type commentBody struct {
	Body string `json:"body"`
}

// commentOps binds the storage calls of one comment kind.
type commentOps struct {
	create func(ctx context.Context, parentID, authorID uuid.UUID, body string) (*store.Comment, error)
	get    func(ctx context.Context, id uuid.UUID) (*store.Comment, error)
	list   func(ctx context.Context, parentID uuid.UUID) ([]store.Comment, error)
	update func(ctx context.Context, id uuid.UUID, body string) (*store.Comment, error)
	delete func(ctx context.Context, id uuid.UUID) (bool, error)
}

func (srv *Server) taskComments() commentOps {
	return commentOps{
		create: srv.store.CreateTaskComment,
		get:    srv.store.GetTaskComment,
		list:   srv.store.ListTaskComments,
		update: srv.store.UpdateTaskComment,
		delete: srv.store.DeleteTaskComment,
	}
}

func (srv *Server) projectComments() commentOps {
	return commentOps{
		create: srv.store.CreateProjectComment,
		get:    srv.store.GetProjectComment,
		list:   srv.store.ListProjectComments,
		update: srv.store.UpdateProjectComment,
		delete: srv.store.DeleteProjectComment,
	}
}

func decodeCommentBody(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req commentBody
	if !decodeJSON(w, r, &req) {
		return "", false
	}
	body := strings.TrimSpace(req.Body)
	if body == "" || len(body) > maxCommentLen {
		writeError(w, http.StatusBadRequest, "body must be 1-5000 characters")
		return "", false
	}
	return body, true
}

// loadComment resolves {comment_id} under parentID. A comment of another
// parent is reported as not found.
func loadComment(w http.ResponseWriter, r *http.Request, ops commentOps, parentID uuid.UUID) (*store.Comment, bool) {
	id, ok := uuidParam(w, chi.URLParam(r, "comment_id"), "comment_id")
	if !ok {
		return nil, false
	}
	c, err := ops.get(r.Context(), id)
	if err != nil {
		writeFailure(w, r, "get comment", err)
		return nil, false
	}
	if c == nil || c.ParentID != parentID {
		writeError(w, http.StatusNotFound, "comment not found")
		return nil, false
	}
	return c, true
}

func (srv *Server) listComments(w http.ResponseWriter, r *http.Request, ops commentOps, parentID uuid.UUID) {
	list, err := ops.list(r.Context(), parentID)
	if err != nil {
		writeFailure(w, r, "list comments", err)
		return
	}
	if list == nil {
		list = []store.Comment{}
	}
	writeData(w, http.StatusOK, list)
}

func (srv *Server) createComment(w http.ResponseWriter, r *http.Request, ops commentOps, parentID uuid.UUID) (*store.Comment, bool) {
	body, ok := decodeCommentBody(w, r)
	if !ok {
		return nil, false
	}
	u, _ := userFromContext(r.Context())
	c, err := ops.create(r.Context(), parentID, u.ID, body)
	if err != nil {
		writeFailure(w, r, "create comment", err)
		return nil, false
	}
	writeData(w, http.StatusCreated, c)
	return c, true
}

// updateComment checks ownership before writing; a denied caller leaves
// the comment untouched.
func (srv *Server) updateComment(w http.ResponseWriter, r *http.Request, ops commentOps, parentID uuid.UUID) {
	c, ok := loadComment(w, r, ops, parentID)
	if !ok {
		return
	}
	caller, _ := callerFromContext(r.Context())
	if err := authz.CanMutateAuthored(caller, c.AuthorID, srv.ownership); err != nil {
		writeFailure(w, r, "update comment", err)
		return
	}
	body, ok := decodeCommentBody(w, r)
	if !ok {
		return
	}
	updated, err := ops.update(r.Context(), c.ID, body)
	if err != nil {
		writeFailure(w, r, "update comment", err)
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "comment not found")
		return
	}
	writeData(w, http.StatusOK, updated)
}

func (srv *Server) deleteComment(w http.ResponseWriter, r *http.Request, ops commentOps, parentID uuid.UUID) {
	c, ok := loadComment(w, r, ops, parentID)
	if !ok {
		return
	}
	caller, _ := callerFromContext(r.Context())
	if err := authz.CanMutateAuthored(caller, c.AuthorID, srv.ownership); err != nil {
		writeFailure(w, r, "delete comment", err)
		return
	}
	deleted, err := ops.delete(r.Context(), c.ID)
	if err != nil {
		writeFailure(w, r, "delete comment", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "comment not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Task comments ─────────────────────────────────────────────────────────────

func (srv *Server) listTaskCommentsHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := srv.loadProject(w, r)
	if !ok {
		return
	}
	t, ok := srv.loadTask(w, r, p)
	if !ok {
		return
	}
	srv.listComments(w, r, srv.taskComments(), t.ID)
}

// createTaskCommentHandler also notifies the task's assignees.
func (srv *Server) createTaskCommentHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := srv.loadProject(w, r)
	if !ok {
		return
	}
	t, ok := srv.loadTask(w, r, p)
	if !ok {
		return
	}
	c, ok := srv.createComment(w, r, srv.taskComments(), t.ID)
	if !ok {
		return
	}
	u, _ := userFromContext(r.Context())
	ev := notify.Event{
		Kind:        notify.KindTaskCommented,
		ActorID:     u.ID,
		ActorName:   u.DisplayName,
		ProjectID:   p.ID,
		ProjectName: p.Name,
		TaskID:      t.ID,
		TaskTitle:   t.Title,
		Comment:     c.Body,
	}
	if err := srv.notifier.Dispatch(r.Context(), ev); err != nil {
		slog.WarnContext(r.Context(), "create comment: enqueue notification", "task_id", t.ID, "error", err)
	}
}

func (srv *Server) updateTaskCommentHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := srv.loadProject(w, r)
	if !ok {
		return
	}
	t, ok := srv.loadTask(w, r, p)
	if !ok {
		return
	}
	srv.updateComment(w, r, srv.taskComments(), t.ID)
}

func (srv *Server) deleteTaskCommentHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := srv.loadProject(w, r)
	if !ok {
		return
	}
	t, ok := srv.loadTask(w, r, p)
	if !ok {
		return
	}
	srv.deleteComment(w, r, srv.taskComments(), t.ID)
}

// ── Project comments ──────────────────────────────────────────────────────────

func (srv *Server) listProjectCommentsHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := srv.loadProject(w, r)
	if !ok {
		return
	}
	srv.listComments(w, r, srv.projectComments(), p.ID)
}

func (srv *Server) createProjectCommentHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := srv.loadProject(w, r)
	if !ok {
		return
	}
	srv.createComment(w, r, srv.projectComments(), p.ID)
}

func (srv *Server) updateProjectCommentHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := srv.loadProject(w, r)
	if !ok {
		return
	}
	srv.updateComment(w, r, srv.projectComments(), p.ID)
}

func (srv *Server) deleteProjectCommentHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := srv.loadProject(w, r)
	if !ok {
		return
	}
	srv.deleteComment(w, r, srv.projectComments(), p.ID)
}
