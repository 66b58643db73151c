// ABOUTME: ResolveWorkspace middleware: gathers workspace, project and member ids from the request.
// ABOUTME: The body is peeked and restored so handlers can still decode it.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kienguyen7815/PMTweb-be-sub000/internal/authz"
	"github.com/kienguyen7815/PMTweb-be-sub000/internal/identity"
)

// workspaceHeader carries the client's active workspace.
const workspaceHeader = "X-Workspace-Id"

// scopeFields are the body fields ResolveWorkspace looks at.
type scopeFields struct {
	WorkspaceID any `json:"workspace_id"`
	ProjectID   any `json:"project_id"`
}

// hintString renders a JSON scalar as the string a client meant.
func hintString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// peekBodyHints reads the JSON body, restores it, and returns the workspace
// and project ids it carries. Non-JSON or non-object bodies yield no hints.
func peekBodyHints(r *http.Request) (ws, project string, err error) {
	if r.Body == nil || r.Body == http.NoBody {
		return "", "", nil
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "json") {
		return "", "", nil
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return "", "", err
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	var f scopeFields
	if err := json.Unmarshal(raw, &f); err != nil {
		// The handler reports malformed bodies.
		return "", "", nil
	}
	return hintString(f.WorkspaceID), hintString(f.ProjectID), nil
}

// scopeHints collects every workspace, project and member identifier on r.
func scopeHints(r *http.Request) (authz.ScopeHints, error) {
	bodyWS, bodyProject, err := peekBodyHints(r)
	if err != nil {
		return authz.ScopeHints{}, err
	}
	q := r.URL.Query()
	return authz.ScopeHints{
		BodyWorkspaceID:   bodyWS,
		QueryWorkspaceID:  q.Get("workspace_id"),
		PathWorkspaceID:   chi.URLParam(r, "workspace_id"),
		HeaderWorkspaceID: r.Header.Get(workspaceHeader),
		BodyProjectID:     bodyProject,
		QueryProjectID:    q.Get("project_id"),
		PathProjectID:     chi.URLParam(r, "project_id"),
		PathMemberID:      chi.URLParam(r, "member_id"),
	}, nil
}

// ResolveWorkspace returns a middleware that determines the request's
// workspace and the caller's membership in it, and stores the resulting
// scope in the context. Lookup failures degrade to no workspace context.
// Must run after RequireAuthenticated and inside the matched route so path
// parameters are visible.
func (srv *Server) ResolveWorkspace() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := userFromContext(r.Context())
			if !ok {
				writeAuthError(w, identity.ErrMissingCredential)
				return
			}

			hints, err := scopeHints(r)
			if err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
					return
				}
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if name := hints.Malformed(); name != "" {
				writeError(w, http.StatusBadRequest, "invalid "+name)
				return
			}

			scope := srv.scopes.Resolve(r.Context(), u.ID, hints)
			ctx := context.WithValue(r.Context(), ctxScope, scope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
