// ABOUTME: Request context key types and accessors for the api package.
// ABOUTME: Middleware stores the resolved user and workspace scope; handlers read them.
package api

import (
	"context"

	"github.com/kienguyen7815/PMTweb-be-sub000/internal/authz"
	"github.com/kienguyen7815/PMTweb-be-sub000/internal/identity"
)

type contextKey int

const (
	ctxUser  contextKey = iota // *identity.User, set by RequireAuthenticated
	ctxScope                   // authz.Scope, set by ResolveWorkspace
)

func userFromContext(ctx context.Context) (*identity.User, bool) {
	u, ok := ctx.Value(ctxUser).(*identity.User)
	return u, ok && u != nil
}

// scopeFromContext returns the request scope, or the zero Scope when
// ResolveWorkspace did not run.
func scopeFromContext(ctx context.Context) authz.Scope {
	s, _ := ctx.Value(ctxScope).(authz.Scope)
	return s
}

// callerFromContext combines the authenticated user with the request scope.
func callerFromContext(ctx context.Context) (authz.Caller, bool) {
	u, ok := userFromContext(ctx)
	if !ok {
		return authz.Caller{}, false
	}
	return authz.Caller{UserID: u.ID, GlobalRole: u.GlobalRole, Scope: scopeFromContext(ctx)}, true
}
