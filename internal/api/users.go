// ABOUTME: HTTP handlers for the caller's profile and admin-only user administration.
// ABOUTME: /me is open to any authenticated user; /users requires the admin-only gate.
package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kienguyen7815/PMTweb-be-sub000/internal/authz"
)

type updateMeBody struct {
	DisplayName string `json:"display_name"`
}

type updateRoleBody struct {
	Role string `json:"role"`
}

// getMeHandler handles GET /api/v1/me.
func (srv *Server) getMeHandler(w http.ResponseWriter, r *http.Request) {
	u, _ := userFromContext(r.Context())
	user, err := srv.store.GetUserByID(r.Context(), u.ID)
	if err != nil {
		writeFailure(w, r, "get me", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeData(w, http.StatusOK, user)
}

// updateMeHandler handles PATCH /api/v1/me. Only the display name may change.
func (srv *Server) updateMeHandler(w http.ResponseWriter, r *http.Request) {
	u, _ := userFromContext(r.Context())
	var req updateMeBody
	if !decodeJSON(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" || len(name) > 100 {
		writeError(w, http.StatusBadRequest, "display_name must be 1-100 characters")
		return
	}
	user, err := srv.store.UpdateDisplayName(r.Context(), u.ID, name)
	if err != nil {
		writeFailure(w, r, "update me", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeData(w, http.StatusOK, user)
}

// listUsersHandler handles GET /api/v1/users.
func (srv *Server) listUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := srv.store.ListUsers(r.Context())
	if err != nil {
		writeFailure(w, r, "list users", err)
		return
	}
	writeData(w, http.StatusOK, users)
}

// updateUserRoleHandler handles PATCH /api/v1/users/{user_id}/role. The
// change reaches cached identities once their cache entry expires.
func (srv *Server) updateUserRoleHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := uuidParam(w, chi.URLParam(r, "user_id"), "user_id")
	if !ok {
		return
	}
	var req updateRoleBody
	if !decodeJSON(w, r, &req) {
		return
	}
	role, valid := authz.ParseRole(req.Role)
	if !valid {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}

	user, err := srv.store.UpdateUserGlobalRole(r.Context(), userID, role)
	if err != nil {
		writeFailure(w, r, "update user role", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	actor, _ := userFromContext(r.Context())
	slog.InfoContext(r.Context(), "global role changed",
		"user_id", userID, "role", role.String(), "by", actor.ID)
	writeData(w, http.StatusOK, user)
}
