// Package identity resolves a bearer credential to the calling user.
//
// A [Resolver] verifies the signed access token, then reads the user through
// a short-lived [Cache]. Cache entries are only ever removed by expiry, so a
// profile or global-role change can be served stale for up to the cache TTL.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kienguyen7815/PMTweb-be-sub000/internal/auth"
	"github.com/kienguyen7815/PMTweb-be-sub000/internal/authz"
)

// Authentication failures. Each is fatal to the request.
var (
	ErrMissingCredential = errors.New("missing credential")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrExpiredCredential = errors.New("credential expired")
	ErrUnknownSubject    = errors.New("unknown subject")
)

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pmtweb_identity_cache_lookups_total",
	Help: "Identity cache lookups by result (hit or miss).",
}, []string{"result"})

// User is the identity attached to an authenticated request.
type User struct {
	ID          uuid.UUID
	Email       string
	DisplayName string
	GlobalRole  authz.Role
}

// UserFinder loads a user by id. It returns (nil, nil) when no such user exists.
type UserFinder interface {
	FindIdentity(ctx context.Context, id uuid.UUID) (*User, error)
}

// Resolver turns a bearer credential into a User.
type Resolver struct {
	secret []byte
	users  UserFinder
	cache  Cache
}

// NewResolver returns a Resolver verifying tokens with secret. A nil cache
// disables caching.
func NewResolver(secret []byte, users UserFinder, cache Cache) *Resolver {
	if cache == nil {
		cache = NopCache{}
	}
	return &Resolver{secret: secret, users: users, cache: cache}
}

// Resolve verifies bearer and returns the user it names. Authentication
// failures are one of the package sentinel errors; storage failures are
// returned wrapped and are not authentication errors.
func (r *Resolver) Resolve(ctx context.Context, bearer string) (*User, error) {
	bearer = strings.TrimSpace(bearer)
	if bearer == "" {
		return nil, ErrMissingCredential
	}

	claims, err := auth.ParseAccessToken(bearer, r.secret)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredCredential
		}
		return nil, ErrInvalidCredential
	}
	if claims.UserID == uuid.Nil {
		return nil, ErrInvalidCredential
	}

	if u, ok := r.cache.Get(claims.UserID); ok {
		cacheLookups.WithLabelValues("hit").Inc()
		return &u, nil
	}
	cacheLookups.WithLabelValues("miss").Inc()

	u, err := r.users.FindIdentity(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}
	if u == nil {
		return nil, ErrUnknownSubject
	}
	r.cache.Set(u.ID, *u)
	out := *u
	return &out, nil
}

// IsAuthError reports whether err is one of the authentication sentinels.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrMissingCredential) ||
		errors.Is(err, ErrInvalidCredential) ||
		errors.Is(err, ErrExpiredCredential) ||
		errors.Is(err, ErrUnknownSubject)
}
