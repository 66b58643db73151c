// ABOUTME: HTTP handlers for projects, plus the lookup helper shared by task and comment routes.
// ABOUTME: A project outside the request's workspace is 403, never 404.
package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kienguyen7815/PMTweb-be-sub000/internal/authz"
	"github.com/kienguyen7815/PMTweb-be-sub000/internal/store"
)

type createProjectBody struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateProjectBody struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// loadProject resolves {project_id} and checks it belongs to the request's
// workspace. It writes the response and returns false on any failure.
func (srv *Server) loadProject(w http.ResponseWriter, r *http.Request) (*store.Project, bool) {
	id, ok := uuidParam(w, chi.URLParam(r, "project_id"), "project_id")
	if !ok {
		return nil, false
	}
	p, err := srv.store.GetProject(r.Context(), id)
	if err != nil {
		writeFailure(w, r, "get project", err)
		return nil, false
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "project not found")
		return nil, false
	}
	if err := authz.CheckResourceScope(scopeFromContext(r.Context()), p.WorkspaceID); err != nil {
		writeFailure(w, r, "get project", err)
		return nil, false
	}
	return p, true
}

// listProjectsHandler handles GET /api/v1/projects. Inside a workspace only
// its projects are listed; without workspace context the global projects and
// those of workspaces where the caller may view are.
func (srv *Server) listProjectsHandler(w http.ResponseWriter, r *http.Request) {
	v, err := srv.listVisibility(r, authz.GateViewPermission)
	if err != nil {
		writeFailure(w, r, "list projects", err)
		return
	}
	projects, err := srv.store.ListProjects(r.Context(), v)
	if err != nil {
		writeFailure(w, r, "list projects", err)
		return
	}
	if projects == nil {
		projects = []store.Project{}
	}
	writeData(w, http.StatusOK, projects)
}

// createProjectHandler handles POST /api/v1/projects. The project joins the
// request's workspace, or is global when there is none.
func (srv *Server) createProjectHandler(w http.ResponseWriter, r *http.Request) {
	u, _ := userFromContext(r.Context())
	var req createProjectBody
	if !decodeJSON(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > 200 {
		writeError(w, http.StatusBadRequest, "name must be 1-200 characters")
		return
	}
	s := scopeFromContext(r.Context())
	p, err := srv.store.CreateProject(r.Context(), s.WorkspaceID, name, req.Description, u.ID)
	if err != nil {
		writeFailure(w, r, "create project", err)
		return
	}
	writeData(w, http.StatusCreated, p)
}

// getProjectHandler handles GET /api/v1/projects/{project_id}.
func (srv *Server) getProjectHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := srv.loadProject(w, r)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, p)
}

// updateProjectHandler handles PATCH /api/v1/projects/{project_id}.
func (srv *Server) updateProjectHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := srv.loadProject(w, r)
	if !ok {
		return
	}
	var req updateProjectBody
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" || len(name) > 200 {
			writeError(w, http.StatusBadRequest, "name must be 1-200 characters")
			return
		}
		req.Name = &name
	}
	updated, err := srv.store.UpdateProject(r.Context(), p.ID, store.ProjectPatch{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeFailure(w, r, "update project", err)
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	writeData(w, http.StatusOK, updated)
}

// deleteProjectHandler handles DELETE /api/v1/projects/{project_id}.
func (srv *Server) deleteProjectHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := srv.loadProject(w, r)
	if !ok {
		return
	}
	deleted, err := srv.store.DeleteProject(r.Context(), p.ID)
	if err != nil {
		writeFailure(w, r, "delete project", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
