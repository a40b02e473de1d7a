package observability

import (
	"net/http"

	"github.com/Alexander-D-Karpov/huddle/internal/common/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	HeaderRequestID     = "X-Request-ID"
	HeaderCorrelationID = "X-Correlation-ID"
)

// RequestID tags every request with a request id and correlation id, taken
// from the incoming headers when present, and attaches a logger carrying both.
func RequestID(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := headerOrNew(r, HeaderRequestID)
			correlationID := headerOrNew(r, HeaderCorrelationID)

			w.Header().Set(HeaderRequestID, requestID)
			w.Header().Set(HeaderCorrelationID, correlationID)

			ctx := logging.WithLogger(r.Context(), logger.With(
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			))
			ctx = logging.WithCorrelationID(ctx, correlationID)
			ctx = logging.WithRequestID(ctx, requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func headerOrNew(r *http.Request, name string) string {
	if v := r.Header.Get(name); v != "" && len(v) <= 128 {
		return v
	}
	return uuid.NewString()
}
