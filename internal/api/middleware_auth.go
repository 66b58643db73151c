// ABOUTME: RequireAuthenticated middleware: resolves the bearer token or access_token cookie to a user.
// ABOUTME: Authentication failures are 401 with a code; storage failures are 500.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kienguyen7815/PMTweb-be-sub000/internal/identity"
)

// accessCookie is the cookie login sets; it carries the same JWT as the body.
const accessCookie = "access_token"

// bearerToken returns the credential on r: the Authorization Bearer token if
// present, otherwise the access_token cookie.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(accessCookie); err == nil {
		return c.Value
	}
	return ""
}

// RequireAuthenticated returns a middleware that resolves the caller's
// identity and injects it into the request context. It runs before any
// workspace resolution or gate.
func (srv *Server) RequireAuthenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := srv.identity.Resolve(r.Context(), bearerToken(r))
			if err != nil {
				if identity.IsAuthError(err) {
					writeAuthError(w, err)
					return
				}
				slog.ErrorContext(r.Context(), "authenticate", "error", err)
				writeInternal(w)
				return
			}
			ctx := context.WithValue(r.Context(), ctxUser, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
