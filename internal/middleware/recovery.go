package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/Alexander-D-Karpov/huddle/internal/common/errors"
	"github.com/Alexander-D-Karpov/huddle/internal/common/httpx"
	"github.com/Alexander-D-Karpov/huddle/internal/common/logging"
	"go.uber.org/zap"
)

var quietPaths = map[string]bool{
	"/health":      true,
	"/api/v1/ping": true,
}

// Recovery turns a panicking handler into a 500 and logs every request.
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logging.FromContext(r.Context()).Error("panic recovered",
						zap.Any("panic", rec),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.String("stack", string(debug.Stack())),
					)
					httpx.WriteError(w, r, errors.Internal("internal server error", nil))
				}
			}()

			if !quietPaths[r.URL.Path] {
				logger.Info("handling request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)
			} else {
				logger.Debug("handling request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)
			}

			next.ServeHTTP(w, r)
		})
	}
}
