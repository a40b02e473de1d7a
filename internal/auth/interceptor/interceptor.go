package interceptor

import (
	"net/http"
	"strings"

	"github.com/Alexander-D-Karpov/huddle/internal/auth"
	"github.com/Alexander-D-Karpov/huddle/internal/auth/jwt"
	"github.com/Alexander-D-Karpov/huddle/internal/common/errors"
	"github.com/Alexander-D-Karpov/huddle/internal/common/httpx"
	"github.com/Alexander-D-Karpov/huddle/internal/common/logging"
	"go.uber.org/zap"
)

// tokenQueryParam carries the token on websocket upgrades, where browsers
// cannot set an Authorization header.
const tokenQueryParam = "access_token"

type AuthInterceptor struct {
	jwtManager *jwt.Manager
}

func NewAuthInterceptor(jwtManager *jwt.Manager) *AuthInterceptor {
	return &AuthInterceptor{
		jwtManager: jwtManager,
	}
}

// Middleware resolves the bearer token into an auth.Requester on the request
// context and rejects the request with 401 when it cannot.
func (a *AuthInterceptor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := a.authenticate(r)
		if err != nil {
			logging.FromContext(r.Context()).Warn("authentication failed",
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
			httpx.WriteError(w, r, err)
			return
		}

		ctx := auth.WithRequester(r.Context(), req)
		ctx = logging.WithLogger(ctx, logging.FromContext(ctx).With(zap.String("user_id", req.ID.String())))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *AuthInterceptor) authenticate(r *http.Request) (auth.Requester, error) {
	if existing, ok := auth.FromContext(r.Context()); ok && existing.Valid() {
		return existing, nil
	}

	token, err := bearerToken(r)
	if err != nil {
		return auth.Requester{}, err
	}

	req, err := a.jwtManager.Requester(token)
	if err != nil {
		logging.FromContext(r.Context()).Debug("token rejected", zap.Error(err))
		return auth.Requester{}, errors.Unauthorized("invalid token")
	}
	return req, nil
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if token := r.URL.Query().Get(tokenQueryParam); token != "" {
			return token, nil
		}
		return "", errors.Unauthorized("missing authorization header")
	}

	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", errors.Unauthorized("invalid authorization header format")
	}
	return strings.TrimSpace(token), nil
}
