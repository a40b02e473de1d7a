package interceptor

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Alexander-D-Karpov/huddle/internal/auth"
	"github.com/Alexander-D-Karpov/huddle/internal/auth/jwt"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	manager := jwt.NewManager("secret", "huddle")
	user := auth.Requester{ID: uuid.New(), DisplayName: "ann", Role: auth.RoleModerator}
	token, err := manager.GenerateAccessToken(user, time.Hour)
	require.NoError(t, err)

	other, err := jwt.NewManager("other-secret", "huddle").GenerateAccessToken(user, time.Hour)
	require.NoError(t, err)

	var seen auth.Requester
	handler := NewAuthInterceptor(manager).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{name: "bearer header", header: "Bearer " + token, status: http.StatusNoContent},
		{name: "query token", query: "?access_token=" + token, status: http.StatusNoContent},
		{name: "missing", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "foreign signature", header: "Bearer " + other, status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = auth.Requester{}
			r := httptest.NewRequest(http.MethodGet, "/api/v1/conversation"+tt.query, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusNoContent {
				assert.Equal(t, user, seen)
			} else {
				assert.False(t, seen.Valid())
				assert.Contains(t, w.Body.String(), `"code":"Unauthenticated"`)
			}
		})
	}
}
