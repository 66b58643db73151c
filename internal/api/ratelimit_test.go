package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestIPRateLimiter_BurstThenWait(t *testing.T) {
	t.Parallel()
	// One token every 6 seconds, burst of 2.
	rl := newIPRateLimiter(rate.Every(6*time.Second), 2, time.Minute)
	now := time.Now()

	for i := 0; i < 2; i++ {
		ok, _ := rl.allow("10.0.0.1", now)
		require.True(t, ok, "attempt %d within burst", i+1)
	}
	ok, wait := rl.allow("10.0.0.1", now)
	require.False(t, ok)
	assert.InDelta(t, float64(6*time.Second), float64(wait), float64(100*time.Millisecond))

	// A denied attempt does not push the next token further out.
	ok, _ = rl.allow("10.0.0.1", now.Add(6*time.Second))
	assert.True(t, ok, "token refilled after the interval")

	ok, _ = rl.allow("10.0.0.2", now)
	assert.True(t, ok, "other clients have their own bucket")
}

func TestIPRateLimiter_IdleClientForgotten(t *testing.T) {
	t.Parallel()
	rl := newIPRateLimiter(rate.Every(time.Hour), 1, 50*time.Millisecond)
	now := time.Now()

	ok, _ := rl.allow("10.0.0.9", now)
	require.True(t, ok)
	ok, _ = rl.allow("10.0.0.9", now)
	require.False(t, ok)

	require.Eventually(t, func() bool { return rl.buckets.Len() == 0 },
		2*time.Second, 20*time.Millisecond, "idle bucket should expire")
	ok, _ = rl.allow("10.0.0.9", time.Now())
	assert.True(t, ok, "expired client starts with a full bucket")
}

func TestRetryAfterSeconds(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "1", retryAfterSeconds(0))
	assert.Equal(t, "1", retryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, "6", retryAfterSeconds(5500*time.Millisecond))
}

func TestAuthRateLimit_RejectsWithEnvelope(t *testing.T) {
	t.Parallel()
	srv := &Server{ //nolint:exhaustruct // test: only rateLimiter needed
		rateLimiter: newIPRateLimiter(rate.Every(10*time.Second), 1, time.Minute),
	}
	h := srv.authRateLimit()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send("192.0.2.1:5000").Code)

	rec := send("192.0.2.1:5001") // same host, different port
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	ra := rec.Header().Get("Retry-After")
	assert.Contains(t, []string{"9", "10"}, ra)

	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.NotEmpty(t, body.Message)

	assert.Equal(t, http.StatusOK, send("192.0.2.2:5000").Code)
}
