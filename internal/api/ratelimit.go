// ABOUTME: Per-client token-bucket limiter for the register and login operations.
// ABOUTME: Buckets live in a size-bounded expirable LRU so idle clients age out without a sweeper.
package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the limiter's memory; the least recently seen
// client is dropped first.
const maxTrackedClients = 10000

var authRateLimited = promauto.NewCounter(prometheus.CounterOpts{
	Name: "pmtweb_auth_rate_limited_total",
	Help: "Register and login requests rejected by the per-IP rate limiter.",
})

type ipRateLimiter struct {
	buckets *lru.LRU[string, *rate.Limiter]
	r       rate.Limit
	burst   int
}

// newIPRateLimiter admits r events per second per client with the given
// burst. A client unseen for idleTTL starts over with a full bucket.
func newIPRateLimiter(r rate.Limit, burst int, idleTTL time.Duration) *ipRateLimiter {
	return &ipRateLimiter{
		buckets: lru.NewLRU[string, *rate.Limiter](maxTrackedClients, nil, idleTTL),
		r:       r,
		burst:   burst,
	}
}

// allow consumes one token for client. When the bucket is empty it reports
// how long until the next token.
func (rl *ipRateLimiter) allow(client string, now time.Time) (bool, time.Duration) {
	l, ok := rl.buckets.Get(client)
	if !ok {
		l = rate.NewLimiter(rl.r, rl.burst)
	}
	// Re-adding refreshes the idle TTL.
	rl.buckets.Add(client, l)

	if l.AllowN(now, 1) {
		return true, 0
	}
	res := l.ReserveN(now, 1)
	wait := res.DelayFrom(now)
	res.CancelAt(now)
	return false, wait
}

// retryAfterSeconds rounds wait up to whole seconds, never below one.
func retryAfterSeconds(wait time.Duration) string {
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// clientIP is the request's remote host. chi's RealIP middleware has already
// replaced RemoteAddr when running behind a proxy.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// authRateLimit rejects clients that exceed their bucket with 429 and a
// Retry-After header.
func (srv *Server) authRateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := srv.rateLimiter.allow(clientIP(r), time.Now())
			if !ok {
				authRateLimited.Inc()
				w.Header().Set("Retry-After", retryAfterSeconds(wait))
				writeError(w, http.StatusTooManyRequests, "too many attempts, retry later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
