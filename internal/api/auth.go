// ABOUTME: HTTP handlers for authentication: register and login (huma operations).
// ABOUTME: Both live at /api/v1/auth/... and are rate-limited per IP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/kienguyen7815/PMTweb-be-sub000/internal/auth"
	"github.com/kienguyen7815/PMTweb-be-sub000/internal/store"
)

// defaultAccessTokenTTL applies when the config leaves ACCESS_TOKEN_TTL unset.
const defaultAccessTokenTTL = 24 * time.Hour

func (srv *Server) accessTokenTTL() time.Duration {
	if srv.cfg.AccessTokenTTL > 0 {
		return srv.cfg.AccessTokenTTL
	}
	return defaultAccessTokenTTL
}

// accessTokenCookie returns the Set-Cookie value carrying the access token.
func accessTokenCookie(token string, ttl time.Duration, secure bool) string {
	c := &http.Cookie{
		Name:     accessCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	}
	return c.String()
}

// userBody is the public view of a user returned by auth operations.
type userBody struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	GlobalRole  string `json:"global_role"`
}

func toUserBody(u *store.User) userBody {
	return userBody{
		ID:          u.ID.String(),
		Email:       u.Email,
		DisplayName: u.DisplayName,
		GlobalRole:  u.GlobalRole.String(),
	}
}

// ── Register ──────────────────────────────────────────────────────────────────

// registerInput is the request body for POST /auth/register.
type registerInput struct {
	Body struct {
		Email       string `json:"email"                  format:"email" maxLength:"254"  doc:"User email address"`
		Password    string `json:"password"               minLength:"8"  maxLength:"1024" doc:"Password (min 8 characters)"`
		DisplayName string `json:"display_name,omitempty" maxLength:"100" doc:"Display name (optional)"`
	}
}

// registerOutput is the response body for POST /auth/register.
type registerOutput struct {
	Status int
	Body   struct {
		Success bool     `json:"success"`
		Data    userBody `json:"data"`
	}
}

// registerHandler handles POST /api/v1/auth/register. The first account
// created on an empty database is a global admin; every later one is a member.
func (srv *Server) registerHandler(ctx context.Context, input *registerInput) (*registerOutput, error) {
	if srv.cfg.RegistrationMode != "open" {
		return nil, huma.Error403Forbidden("registration is not open on this server")
	}

	email := strings.TrimSpace(input.Body.Email)

	// Reject duplicate email before the expensive hash.
	existing, err := srv.store.GetUserByEmail(ctx, email)
	if err != nil {
		slog.ErrorContext(ctx, "register: lookup email", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}
	if existing != nil {
		return nil, huma.Error409Conflict("email already registered")
	}

	if !srv.acquireArgon2() {
		return nil, huma.Error503ServiceUnavailable("server busy, please retry")
	}
	hash, err := auth.HashPassword(input.Body.Password)
	srv.releaseArgon2()
	if err != nil {
		slog.ErrorContext(ctx, "register: hash password", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}

	displayName := strings.TrimSpace(input.Body.DisplayName)
	if displayName == "" {
		if at := strings.Index(email, "@"); at > 0 {
			displayName = email[:at]
		} else {
			displayName = email
		}
	}

	user, err := srv.store.CreateUser(ctx, email, displayName, hash)
	if err != nil {
		if store.IsUniqueViolation(err) { // race on concurrent register
			return nil, huma.Error409Conflict("email already registered")
		}
		slog.ErrorContext(ctx, "register: create user", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}

	slog.InfoContext(ctx, "user registered", "user_id", user.ID, "global_role", user.GlobalRole.String())

	out := &registerOutput{Status: http.StatusCreated}
	out.Body.Success = true
	out.Body.Data = toUserBody(user)
	return out, nil
}

// ── Login ─────────────────────────────────────────────────────────────────────

// loginInput is the request body for POST /auth/login.
type loginInput struct {
	Body struct {
		Email    string `json:"email"    format:"email" maxLength:"254"  doc:"User email"`
		Password string `json:"password" minLength:"1"  maxLength:"1024" doc:"Password"`
	}
}

// loginOutput returns the access token in the body and as a cookie.
type loginOutput struct {
	SetCookie string `header:"Set-Cookie"`
	Body      struct {
		Success bool `json:"success"`
		Data    struct {
			AccessToken string   `json:"access_token"`
			TokenType   string   `json:"token_type"`
			ExpiresIn   int      `json:"expires_in"`
			User        userBody `json:"user"`
		} `json:"data"`
	}
}

// loginHandler handles POST /api/v1/auth/login. Unknown emails still run
// argon2 against a dummy hash so response timing does not reveal them.
func (srv *Server) loginHandler(ctx context.Context, input *loginInput) (*loginOutput, error) {
	user, err := srv.store.GetUserByEmail(ctx, strings.TrimSpace(input.Body.Email))
	if err != nil {
		slog.ErrorContext(ctx, "login: lookup email", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}

	if !srv.acquireArgon2() {
		return nil, huma.Error503ServiceUnavailable("server busy, please retry")
	}
	if user == nil {
		_, _ = auth.VerifyPassword(input.Body.Password, auth.DummyPasswordHash)
		srv.releaseArgon2()
		return nil, huma.Error401Unauthorized("invalid credentials")
	}
	ok, err := auth.VerifyPassword(input.Body.Password, user.PasswordHash)
	srv.releaseArgon2()
	if err != nil {
		slog.ErrorContext(ctx, "login: verify password", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}
	if !ok {
		return nil, huma.Error401Unauthorized("invalid credentials")
	}

	ttl := srv.accessTokenTTL()
	token, err := auth.IssueAccessToken([]byte(srv.cfg.JWTSecret), user.ID, ttl)
	if err != nil {
		slog.ErrorContext(ctx, "login: issue access token", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}

	// Non-fatal; last_login_at is informational only.
	if err := srv.store.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.WarnContext(ctx, "login: update last login", "error", err)
	}

	out := &loginOutput{SetCookie: accessTokenCookie(token, ttl, srv.cfg.CookieSecure)}
	out.Body.Success = true
	out.Body.Data.AccessToken = token
	out.Body.Data.TokenType = "Bearer"
	out.Body.Data.ExpiresIn = int(ttl.Seconds())
	out.Body.Data.User = toUserBody(user)
	return out, nil
}

func registerAuthRoutes(api huma.API, srv *Server) {
	huma.Register(api, huma.Operation{
		OperationID:   "register",
		Method:        http.MethodPost,
		Path:          "/auth/register",
		Tags:          []string{"auth"},
		Summary:       "Register a new user account",
		DefaultStatus: http.StatusCreated,
	}, srv.registerHandler)

	huma.Register(api, huma.Operation{
		OperationID:   "login",
		Method:        http.MethodPost,
		Path:          "/auth/login",
		Tags:          []string{"auth"},
		Summary:       "Log in and receive an access token",
		DefaultStatus: http.StatusOK,
	}, srv.loginHandler)
}
