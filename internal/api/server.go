// ABOUTME: HTTP server struct, constructor, and handler wiring for PMTweb.
// ABOUTME: Holds the auth pipeline (identity, scope, gates) and the route table.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/kienguyen7815/PMTweb-be-sub000/internal/authz"
	"github.com/kienguyen7815/PMTweb-be-sub000/internal/config"
	"github.com/kienguyen7815/PMTweb-be-sub000/internal/identity"
	"github.com/kienguyen7815/PMTweb-be-sub000/internal/notify"
	"github.com/kienguyen7815/PMTweb-be-sub000/internal/store"
)

// Server holds the dependencies for the HTTP layer.
type Server struct {
	store       *store.Store
	cfg         *config.Config
	identity    *identity.Resolver
	scopes      *authz.ScopeResolver
	linker      *authz.Linker
	ownership   authz.OwnershipPolicy
	notifier    *notify.Dispatcher // nil when notifications are disabled
	argon2Sem   chan struct{}
	rateLimiter *ipRateLimiter
}

// NewServer creates a Server. Returns an error if the ownership policy in cfg
// is not recognized.
func NewServer(s *store.Store, cfg *config.Config) (*Server, error) {
	policy := authz.PolicyStrict
	if cfg.OwnershipPolicy != "" {
		p, err := authz.ParseOwnershipPolicy(cfg.OwnershipPolicy)
		if err != nil {
			return nil, fmt.Errorf("new server: %w", err)
		}
		policy = p
	}

	// A zero TTL would make entries live forever; treat it as "no cache".
	var cache identity.Cache = identity.NopCache{}
	if cfg.IdentityCacheTTL > 0 {
		cache = identity.NewLRUCache(cfg.IdentityCacheSize, cfg.IdentityCacheTTL)
	}

	argon2Max := cfg.Argon2MaxConcurrent
	if argon2Max <= 0 {
		argon2Max = 5
	}
	evictTTL := cfg.RateLimitEvictTTL
	if evictTTL == 0 {
		evictTTL = 15 * time.Minute
	}

	srv := &Server{
		store:     s,
		cfg:       cfg,
		ownership: policy,
		argon2Sem: make(chan struct{}, argon2Max),
		// 10 requests per minute, burst of 10.
		rateLimiter: newIPRateLimiter(rate.Limit(10.0/60), 10, evictTTL),
	}
	if s != nil {
		srv.identity = identity.NewResolver([]byte(cfg.JWTSecret), s, cache)
		srv.scopes = authz.NewScopeResolver(s)
		srv.linker = authz.NewLinker(s)
		if cfg.NotifyEnabled {
			srv.notifier = notify.NewDispatcher(s)
		}
	}
	return srv, nil
}

// Handler builds and returns the http.Handler.
func (srv *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Must be first so they appear on every response including errors.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			next.ServeHTTP(w, r)
		})
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	// 1 MB global body limit.
	r.Use(middleware.RequestSize(1 << 20))
	r.Use(middleware.Recoverer)

	var db pinger
	if srv.store != nil {
		db = srv.store
	}
	r.Get("/healthz", healthzHandler(db))
	r.Handle("/metrics", promhttp.Handler())

	apiRouter := chi.NewRouter()
	apiRouter.Use(csrfProtect)

	// ── Public auth operations (huma, OpenAPI 3.1), rate limited per IP ──────
	apiRouter.Group(func(r chi.Router) {
		r.Use(srv.authRateLimit())
		humaConfig := huma.DefaultConfig("PMTweb API", "1.0.0")
		humaConfig.Info.Description = "Project, task and team management API"
		api := humachi.New(r, humaConfig)
		registerAuthRoutes(api, srv)
	})

	// ── Authenticated routes ─────────────────────────────────────────────────
	// Pipeline: identity → workspace scope → gate → handler checks → mutation.
	gate := func(g authz.Gate) chi.Middlewares {
		return chi.Middlewares{srv.ResolveWorkspace(), srv.RequireGate(g)}
	}
	view := gate(authz.GateViewPermission)

	apiRouter.Group(func(r chi.Router) {
		r.Use(srv.RequireAuthenticated())

		r.Get("/me", srv.getMeHandler)
		r.Patch("/me", srv.updateMeHandler)

		r.Get("/notifications", srv.listNotificationsHandler)
		r.Post("/notifications/{notification_id}/read", srv.markNotificationReadHandler)

		r.Route("/users", func(r chi.Router) {
			r.Use(srv.RequireGate(authz.GateAdminOnly))
			r.Get("/", srv.listUsersHandler)
			r.Patch("/{user_id}/role", srv.updateUserRoleHandler)
		})

		r.Route("/workspaces", func(r chi.Router) {
			r.Post("/", srv.createWorkspaceHandler)
			r.Get("/", srv.listWorkspacesHandler)
			r.Route("/{workspace_id}", func(r chi.Router) {
				r.With(view...).Get("/", srv.getWorkspaceHandler)
				r.With(gate(authz.GateManagerOrAdmin)...).Patch("/", srv.renameWorkspaceHandler)
				r.With(view...).Get("/members", srv.listWorkspaceMembersHandler)
				r.With(gate(authz.GateManagerOrAdmin)...).Put("/members/{user_id}", srv.upsertWorkspaceMemberHandler)
				r.With(gate(authz.GateManagerOrAdmin)...).Delete("/members/{user_id}", srv.removeWorkspaceMemberHandler)
			})
		})

		r.Route("/projects", func(r chi.Router) {
			r.With(view...).Get("/", srv.listProjectsHandler)
			r.With(gate(authz.GateLeaderOrAbove)...).Post("/", srv.createProjectHandler)

			r.Route("/{project_id}", func(r chi.Router) {
				r.With(view...).Get("/", srv.getProjectHandler)
				r.With(gate(authz.GateEditPermission)...).Patch("/", srv.updateProjectHandler)
				r.With(gate(authz.GateManagerOrAdmin)...).Delete("/", srv.deleteProjectHandler)

				r.Route("/tasks", func(r chi.Router) {
					r.With(view...).Get("/", srv.listTasksHandler)
					r.With(gate(authz.GateEditPermission)...).Post("/", srv.createTaskHandler)
					r.Route("/{task_id}", func(r chi.Router) {
						r.With(view...).Get("/", srv.getTaskHandler)
						r.With(gate(authz.GateEditPermission)...).Patch("/", srv.updateTaskHandler)
						r.With(gate(authz.GateLeaderOrAbove)...).Delete("/", srv.deleteTaskHandler)

						r.With(gate(authz.GateLeaderOrAbove)...).Put("/assignees/{user_id}", srv.assignTaskHandler)
						r.With(gate(authz.GateLeaderOrAbove)...).Delete("/assignees/{user_id}", srv.unassignTaskHandler)

						r.With(view...).Get("/comments", srv.listTaskCommentsHandler)
						r.With(view...).Post("/comments", srv.createTaskCommentHandler)
						r.With(view...).Patch("/comments/{comment_id}", srv.updateTaskCommentHandler)
						r.With(view...).Delete("/comments/{comment_id}", srv.deleteTaskCommentHandler)
					})
				})

				r.With(view...).Get("/comments", srv.listProjectCommentsHandler)
				r.With(view...).Post("/comments", srv.createProjectCommentHandler)
				r.With(view...).Patch("/comments/{comment_id}", srv.updateProjectCommentHandler)
				r.With(view...).Delete("/comments/{comment_id}", srv.deleteProjectCommentHandler)
			})
		})

		r.Route("/members", func(r chi.Router) {
			search := gate(authz.GateSearchMembers)
			r.With(search...).Get("/", srv.listMembersHandler)
			r.With(search...).Get("/search", srv.searchMembersHandler)
			r.With(gate(authz.GateMemberManagement)...).Post("/", srv.createMemberHandler)
			r.Route("/{member_id}", func(r chi.Router) {
				r.With(search...).Get("/", srv.getMemberHandler)
				r.With(gate(authz.GateMemberManagement)...).Patch("/", srv.updateMemberHandler)
				r.With(gate(authz.GateManagerOrAdmin)...).Delete("/", srv.deleteMemberHandler)
			})
		})
	})

	r.Mount("/api/v1", apiRouter)

	return r
}

// acquireArgon2 tries to acquire the argon2 semaphore. Returns false if all
// slots are in use; the caller returns 503 immediately rather than block.
func (srv *Server) acquireArgon2() bool {
	select {
	case srv.argon2Sem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (srv *Server) releaseArgon2() { <-srv.argon2Sem }

type pinger interface {
	Ping(ctx context.Context) error
}

// healthResponse is the JSON body for /healthz.
type healthResponse struct {
	Status string `json:"status"`
	DB     string `json:"db,omitempty"`
}

// healthzHandler returns 200 {"status":"ok"} when the DB is reachable,
// or 503 {"status":"degraded","db":"unavailable"} when it is not.
func healthzHandler(db pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		statusCode := http.StatusOK

		if db == nil {
			resp.Status = "degraded"
			resp.DB = "unavailable"
			statusCode = http.StatusServiceUnavailable
		} else if err := db.Ping(r.Context()); err != nil {
			slog.WarnContext(r.Context(), "healthz: db ping failed", "error", err)
			resp.Status = "degraded"
			resp.DB = "unavailable"
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.ErrorContext(r.Context(), "healthz: failed to encode response", "error", err)
		}
	}
}
