// ABOUTME: HTTP handlers for workspaces and their membership roster.
// ABOUTME: Path-addressed routes require the resolved scope to be the path's workspace.
package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kienguyen7815/PMTweb-be-sub000/internal/authz"
)

type workspaceBody struct {
	Name string `json:"name"`
}

type workspaceMemberBody struct {
	Role string `json:"role"`
}

func validWorkspaceName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	return name, name != "" && len(name) <= 200
}

// pathWorkspace returns the {workspace_id} of the route. A body, query or
// header naming a different workspace takes precedence during resolution,
// so the resolved scope must match the path or the request is refused.
func pathWorkspace(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	wsID, ok := uuidParam(w, chi.URLParam(r, "workspace_id"), "workspace_id")
	if !ok {
		return uuid.Nil, false
	}
	s := scopeFromContext(r.Context())
	if !s.InWorkspace() || *s.WorkspaceID != wsID {
		writeError(w, http.StatusForbidden, authz.ReasonWrongWorkspace)
		return uuid.Nil, false
	}
	return wsID, true
}

// createWorkspaceHandler handles POST /api/v1/workspaces. The creator is
// admitted as project-manager in the same transaction.
func (srv *Server) createWorkspaceHandler(w http.ResponseWriter, r *http.Request) {
	u, _ := userFromContext(r.Context())
	var req workspaceBody
	if !decodeJSON(w, r, &req) {
		return
	}
	name, ok := validWorkspaceName(req.Name)
	if !ok {
		writeError(w, http.StatusBadRequest, "name must be 1-200 characters")
		return
	}
	ws, err := srv.store.CreateWorkspaceWithOwner(r.Context(), name, u.ID)
	if err != nil {
		writeFailure(w, r, "create workspace", err)
		return
	}
	writeData(w, http.StatusCreated, ws)
}

// listWorkspacesHandler handles GET /api/v1/workspaces: the caller's
// workspaces together with their role in each.
func (srv *Server) listWorkspacesHandler(w http.ResponseWriter, r *http.Request) {
	u, _ := userFromContext(r.Context())
	list, err := srv.store.ListUserWorkspaces(r.Context(), u.ID)
	if err != nil {
		writeFailure(w, r, "list workspaces", err)
		return
	}
	writeData(w, http.StatusOK, list)
}

// getWorkspaceHandler handles GET /api/v1/workspaces/{workspace_id}.
func (srv *Server) getWorkspaceHandler(w http.ResponseWriter, r *http.Request) {
	wsID, ok := pathWorkspace(w, r)
	if !ok {
		return
	}
	ws, err := srv.store.GetWorkspace(r.Context(), wsID)
	if err != nil {
		writeFailure(w, r, "get workspace", err)
		return
	}
	if ws == nil {
		writeError(w, http.StatusNotFound, "workspace not found")
		return
	}
	writeData(w, http.StatusOK, ws)
}

// renameWorkspaceHandler handles PATCH /api/v1/workspaces/{workspace_id}.
func (srv *Server) renameWorkspaceHandler(w http.ResponseWriter, r *http.Request) {
	wsID, ok := pathWorkspace(w, r)
	if !ok {
		return
	}
	var req workspaceBody
	if !decodeJSON(w, r, &req) {
		return
	}
	name, ok := validWorkspaceName(req.Name)
	if !ok {
		writeError(w, http.StatusBadRequest, "name must be 1-200 characters")
		return
	}
	ws, err := srv.store.RenameWorkspace(r.Context(), wsID, name)
	if err != nil {
		writeFailure(w, r, "rename workspace", err)
		return
	}
	if ws == nil {
		writeError(w, http.StatusNotFound, "workspace not found")
		return
	}
	writeData(w, http.StatusOK, ws)
}

// listWorkspaceMembersHandler handles GET /api/v1/workspaces/{workspace_id}/members.
func (srv *Server) listWorkspaceMembersHandler(w http.ResponseWriter, r *http.Request) {
	wsID, ok := pathWorkspace(w, r)
	if !ok {
		return
	}
	members, err := srv.store.ListWorkspaceMembers(r.Context(), wsID)
	if err != nil {
		writeFailure(w, r, "list workspace members", err)
		return
	}
	writeData(w, http.StatusOK, members)
}

// upsertWorkspaceMemberHandler handles PUT
// /api/v1/workspaces/{workspace_id}/members/{user_id}. Adding an existing
// member sets their role; there is never more than one row per pair. The
// owner's role cannot be changed away from project-manager.
func (srv *Server) upsertWorkspaceMemberHandler(w http.ResponseWriter, r *http.Request) {
	wsID, ok := pathWorkspace(w, r)
	if !ok {
		return
	}
	userID, ok := uuidParam(w, chi.URLParam(r, "user_id"), "user_id")
	if !ok {
		return
	}
	var req workspaceMemberBody
	if !decodeJSON(w, r, &req) {
		return
	}
	role, valid := authz.ParseRole(req.Role)
	if !valid {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}

	target, err := srv.store.GetUserByID(r.Context(), userID)
	if err != nil {
		writeFailure(w, r, "upsert workspace member", err)
		return
	}
	if target == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	ws, err := srv.store.GetWorkspace(r.Context(), wsID)
	if err != nil {
		writeFailure(w, r, "upsert workspace member", err)
		return
	}
	if ws == nil {
		writeError(w, http.StatusNotFound, "workspace not found")
		return
	}
	if ws.OwnerID == userID && role != authz.RoleProjectManager {
		writeError(w, http.StatusConflict, "the workspace owner must remain project-manager")
		return
	}

	m, err := srv.store.UpsertWorkspaceMember(r.Context(), wsID, userID, role)
	if err != nil {
		writeFailure(w, r, "upsert workspace member", err)
		return
	}
	actor, _ := userFromContext(r.Context())
	slog.InfoContext(r.Context(), "workspace member set",
		"workspace_id", wsID, "user_id", userID, "role", role.String(), "by", actor.ID)
	writeData(w, http.StatusOK, m)
}

// removeWorkspaceMemberHandler handles DELETE
// /api/v1/workspaces/{workspace_id}/members/{user_id}. The owner's
// membership cannot be removed.
func (srv *Server) removeWorkspaceMemberHandler(w http.ResponseWriter, r *http.Request) {
	wsID, ok := pathWorkspace(w, r)
	if !ok {
		return
	}
	userID, ok := uuidParam(w, chi.URLParam(r, "user_id"), "user_id")
	if !ok {
		return
	}

	ws, err := srv.store.GetWorkspace(r.Context(), wsID)
	if err != nil {
		writeFailure(w, r, "remove workspace member", err)
		return
	}
	if ws == nil {
		writeError(w, http.StatusNotFound, "workspace not found")
		return
	}
	if ws.OwnerID == userID {
		writeError(w, http.StatusConflict, "the workspace owner cannot be removed")
		return
	}

	removed, err := srv.store.RemoveWorkspaceMember(r.Context(), wsID, userID)
	if err != nil {
		writeFailure(w, r, "remove workspace member", err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "membership not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
