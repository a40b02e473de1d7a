package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Alexander-D-Karpov/huddle/internal/admin"
	"github.com/Alexander-D-Karpov/huddle/internal/auth/interceptor"
	"github.com/Alexander-D-Karpov/huddle/internal/chat"
	"github.com/Alexander-D-Karpov/huddle/internal/common/config"
	"github.com/Alexander-D-Karpov/huddle/internal/common/httpx"
	"github.com/Alexander-D-Karpov/huddle/internal/middleware"
	"github.com/Alexander-D-Karpov/huddle/internal/observability"
	"github.com/Alexander-D-Karpov/huddle/internal/ratelimit"
	"github.com/Alexander-D-Karpov/huddle/internal/stream"
	"github.com/Alexander-D-Karpov/huddle/internal/version"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const APIPrefix = "/api/v1"

// Handlers are the route groups the gateway mounts.
type Handlers struct {
	Chat   *chat.Handler
	Admin  *admin.Handler
	Stream *stream.Handler
}

type Options struct {
	Auth           *interceptor.AuthInterceptor
	Limiter        *ratelimit.Limiter
	Metrics        *observability.Metrics
	RequestTimeout time.Duration
}

type Gateway struct {
	logger  *zap.Logger
	handler http.Handler
}

func New(logger *zap.Logger, h Handlers, opts Options) *Gateway {
	root := mux.NewRouter()
	root.Use(observability.RequestID(logger), middleware.Recovery(logger))
	if opts.Metrics != nil {
		root.Use(opts.Metrics.HTTPMiddleware)
	}
	root.NotFoundHandler = http.HandlerFunc(notFound)

	api := root.PathPrefix(APIPrefix).Subrouter()
	api.HandleFunc("/ping", ping).Methods(http.MethodGet)

	authed := api.NewRoute().Subrouter()
	if opts.Auth != nil {
		authed.Use(opts.Auth.Middleware)
	}
	if opts.Limiter != nil {
		authed.Use(opts.Limiter.Middleware)
	}

	// long-lived, so no request timeout
	if h.Stream != nil {
		h.Stream.Register(authed)
	}

	rest := authed.NewRoute().Subrouter()
	rest.Use(middleware.Timeout(opts.RequestTimeout), middleware.RequireJSON)
	if h.Chat != nil {
		h.Chat.Register(rest)
	}
	if h.Admin != nil {
		h.Admin.Register(rest.PathPrefix("/admin").Subrouter())
	}

	// outside the router: mux skips middleware when no route matches, and no
	// route accepts OPTIONS
	return &Gateway{
		logger:  logger,
		handler: middleware.CORS(root),
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.handler.ServeHTTP(w, r)
}

func (g *Gateway) Start(ctx context.Context, cfg config.ServerConfig) error {
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      g,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	g.logger.Info("HTTP gateway starting", zap.String("addr", server.Addr))

	errChan := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		timeout := cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		g.logger.Info("HTTP gateway shutting down")
		return server.Shutdown(shutdownCtx)
	}
}

func ping(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.String()})
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusNotFound, httpx.ErrorResponse{Error: "route not found", Code: "NotFound", Kind: "not_found"})
}
