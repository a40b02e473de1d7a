package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Alexander-D-Karpov/huddle/internal/auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLimiterBurstPerKey(t *testing.T) {
	l := NewLimiter(nil, 1, 2, true, zap.NewNop())
	defer l.Close()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, ScopePost, "alice")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, ScopePost, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Allow(ctx, ScopePost, "bob")
	require.NoError(t, err)
	assert.True(t, ok, "buckets are per key")
}

func TestLimiterDisabled(t *testing.T) {
	l := NewLimiter(nil, 1, 1, false, zap.NewNop())
	defer l.Close()

	for i := 0; i < 10; i++ {
		ok, err := l.Allow(context.Background(), ScopePost, "alice")
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestLimiterUnknownScopeIsUnlimited(t *testing.T) {
	l := NewLimiter(nil, 1, 1, true, zap.NewNop())
	defer l.Close()

	ok, err := l.Allow(context.Background(), Scope("other"), "x")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	l := NewLimiter(nil, 30, 1, true, zap.NewNop())
	defer l.Close()
	l.limits[ScopeRequest] = LimitConfig{RequestsPerMinute: 1, Burst: 1}

	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil)
	req = req.WithContext(auth.WithRequester(req.Context(), auth.Requester{ID: uuid.New()}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
}

func TestRequestKey(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name  string
		setup func(r *http.Request) *http.Request
		want  string
	}{
		{
			name: "requester",
			setup: func(r *http.Request) *http.Request {
				return r.WithContext(auth.WithRequester(r.Context(), auth.Requester{ID: id}))
			},
			want: "user:" + id.String(),
		},
		{
			name: "forwarded",
			setup: func(r *http.Request) *http.Request {
				r.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
				return r
			},
			want: "ip:10.0.0.1",
		},
		{
			name:  "remote addr",
			setup: func(r *http.Request) *http.Request { return r },
			want:  "ip:192.0.2.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.setup(httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tt.want, requestKey(r))
		})
	}
}
