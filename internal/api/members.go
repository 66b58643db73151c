// ABOUTME: HTTP handlers for the member directory (people records, not login accounts).
// ABOUTME: Creating a member inside a workspace links a matching registered user as a workspace member.
package api

import (
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kienguyen7815/PMTweb-be-sub000/internal/authz"
	"github.com/kienguyen7815/PMTweb-be-sub000/internal/store"
)

type createMemberBody struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Position string `json:"position"`
}

type updateMemberBody struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Position *string `json:"position"`
}

func validMemberName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	return name, name != "" && len(name) <= 200
}

// validEmail accepts an empty address; a member need not have one.
func validEmail(email string) (string, bool) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", true
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || len(email) > 254 {
		return "", false
	}
	return email, true
}

// loadMember resolves {member_id} and checks it belongs to the request's
// workspace, which ResolveWorkspace derived from the member record unless a
// workspace id was given explicitly.
func (srv *Server) loadMember(w http.ResponseWriter, r *http.Request) (*store.Member, bool) {
	id, ok := uuidParam(w, chi.URLParam(r, "member_id"), "member_id")
	if !ok {
		return nil, false
	}
	m, err := srv.store.GetMember(r.Context(), id)
	if err != nil {
		writeFailure(w, r, "get member", err)
		return nil, false
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return nil, false
	}
	if err := authz.CheckResourceScope(scopeFromContext(r.Context()), m.WorkspaceID); err != nil {
		writeFailure(w, r, "get member", err)
		return nil, false
	}
	return m, true
}

// linkMember admits the registered user with m's email into the workspace.
// Failures are logged and swallowed.
func (srv *Server) linkMember(r *http.Request, workspaceID uuid.UUID, email string) {
	res, err := srv.linker.LinkMemberByEmail(r.Context(), workspaceID, email)
	if err != nil {
		slog.WarnContext(r.Context(), "create member: link workspace membership",
			"workspace_id", workspaceID, "error", err)
		return
	}
	if res.Created {
		slog.InfoContext(r.Context(), "workspace membership linked from member record",
			"workspace_id", workspaceID, "user_id", *res.UserID)
	}
}

// listMembersHandler handles GET /api/v1/members.
func (srv *Server) listMembersHandler(w http.ResponseWriter, r *http.Request) {
	v, err := srv.listVisibility(r, authz.GateSearchMembers)
	if err != nil {
		writeFailure(w, r, "list members", err)
		return
	}
	members, err := srv.store.ListMembers(r.Context(), v)
	if err != nil {
		writeFailure(w, r, "list members", err)
		return
	}
	if members == nil {
		members = []store.Member{}
	}
	writeData(w, http.StatusOK, members)
}

// searchMembersHandler handles GET /api/v1/members/search?q=.
func (srv *Server) searchMembersHandler(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(q) > 200 {
		writeError(w, http.StatusBadRequest, "q must be at most 200 characters")
		return
	}
	v, err := srv.listVisibility(r, authz.GateSearchMembers)
	if err != nil {
		writeFailure(w, r, "search members", err)
		return
	}
	members, err := srv.store.SearchMembers(r.Context(), v, q)
	if err != nil {
		writeFailure(w, r, "search members", err)
		return
	}
	if members == nil {
		members = []store.Member{}
	}
	writeData(w, http.StatusOK, members)
}

// createMemberHandler handles POST /api/v1/members.
func (srv *Server) createMemberHandler(w http.ResponseWriter, r *http.Request) {
	u, _ := userFromContext(r.Context())
	var req createMemberBody
	if !decodeJSON(w, r, &req) {
		return
	}
	name, ok := validMemberName(req.Name)
	if !ok {
		writeError(w, http.StatusBadRequest, "name must be 1-200 characters")
		return
	}
	email, ok := validEmail(req.Email)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid email")
		return
	}

	s := scopeFromContext(r.Context())
	m, err := srv.store.CreateMember(r.Context(), s.WorkspaceID, name, email, strings.TrimSpace(req.Position), u.ID)
	if err != nil {
		writeFailure(w, r, "create member", err)
		return
	}
	if s.InWorkspace() && email != "" {
		srv.linkMember(r, *s.WorkspaceID, email)
	}
	writeData(w, http.StatusCreated, m)
}

// getMemberHandler handles GET /api/v1/members/{member_id}.
func (srv *Server) getMemberHandler(w http.ResponseWriter, r *http.Request) {
	m, ok := srv.loadMember(w, r)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, m)
}

// updateMemberHandler handles PATCH /api/v1/members/{member_id}.
func (srv *Server) updateMemberHandler(w http.ResponseWriter, r *http.Request) {
	m, ok := srv.loadMember(w, r)
	if !ok {
		return
	}
	var req updateMemberBody
	if !decodeJSON(w, r, &req) {
		return
	}
	var patch store.MemberPatch
	if req.Name != nil {
		name, ok := validMemberName(*req.Name)
		if !ok {
			writeError(w, http.StatusBadRequest, "name must be 1-200 characters")
			return
		}
		patch.Name = &name
	}
	if req.Email != nil {
		email, ok := validEmail(*req.Email)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid email")
			return
		}
		patch.Email = &email
	}
	if req.Position != nil {
		pos := strings.TrimSpace(*req.Position)
		patch.Position = &pos
	}

	updated, err := srv.store.UpdateMember(r.Context(), m.ID, patch)
	if err != nil {
		writeFailure(w, r, "update member", err)
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	writeData(w, http.StatusOK, updated)
}

// deleteMemberHandler handles DELETE /api/v1/members/{member_id}. Any
// workspace membership linked from this record is left in place.
func (srv *Server) deleteMemberHandler(w http.ResponseWriter, r *http.Request) {
	m, ok := srv.loadMember(w, r)
	if !ok {
		return
	}
	deleted, err := srv.store.DeleteMember(r.Context(), m.ID)
	if err != nil {
		writeFailure(w, r, "delete member", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
