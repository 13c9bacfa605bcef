package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryhq/quarry/pkg/auth"
	"github.com/quarryhq/quarry/pkg/contextkeys"
	"github.com/quarryhq/quarry/pkg/observability"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestDistributedRateLimiter(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{
		RequestsPerWindow: 3,
		WindowDuration:    time.Minute,
	}, "test")

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "user:1")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, allowed)

	// A different key has its own window.
	allowed, err = limiter.Allow(ctx, "user:2")
	require.NoError(t, err)
	assert.True(t, allowed)

	remaining, err := limiter.Remaining(ctx, "user:2")
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)

	require.NoError(t, limiter.Reset(ctx, "user:1"))
	allowed, err = limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimitMiddleware(t *testing.T) {
	_, client := newTestRedis(t)
	logger := observability.NewLogger(observability.ErrorLevel, nil)

	middleware := NewRateLimitMiddleware(client, &RateLimitConfig{
		RequestsPerWindow: 2,
		WindowDuration:    time.Minute,
	}, logger, nil)

	handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	authedRequest := func() *http.Request {
		req := httptest.NewRequest("GET", "/api/v1/projects", nil)
		ctx := contextkeys.WithAuth(req.Context(), &auth.Context{User: &auth.User{ID: 1}})
		return req.WithContext(ctx)
	}

	t.Run("allows within limit with headers", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest())

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
	})

	t.Run("blocks past limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest())
		require.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest())
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	})

	t.Run("anonymous requests keyed by IP", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/auth/login", nil)
		req.Header.Set("X-Real-IP", "203.0.113.7")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRateLimitMiddlewareFailsOpen(t *testing.T) {
	mr, client := newTestRedis(t)
	logger := observability.NewLogger(observability.ErrorLevel, nil)

	middleware := NewRateLimitMiddleware(client, DefaultRateLimitConfig(), logger, nil)
	handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	mr.Close()

	req := httptest.NewRequest("GET", "/api/v1/projects", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// Redis down must not take the API with it.
	assert.Equal(t, http.StatusOK, rec.Code)
}
