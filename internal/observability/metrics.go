package observability

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/Alexander-D-Karpov/huddle/internal/common/errors"
	"github.com/Alexander-D-Karpov/huddle/internal/infra/cache"
	"github.com/Alexander-D-Karpov/huddle/internal/infra/db"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Metrics struct {
	registry *prometheus.Registry

	chatOperations *prometheus.CounterVec
	chatDuration   *prometheus.HistogramVec
	feedRefreshes  *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	activeStreams  prometheus.Gauge
	dbConnections  *prometheus.GaugeVec
	breakerState   *prometheus.GaugeVec
	logger         *zap.Logger
}

func NewMetrics(logger *zap.Logger) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		chatOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "huddle_chat_operations_total",
				Help: "Chat and moderation operations by outcome",
			},
			[]string{"op", "result"},
		),
		chatDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "huddle_chat_operation_duration_seconds",
				Help:    "Chat operation duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"op"},
		),
		feedRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "huddle_feed_refreshes_total",
				Help: "Conversation feed store reads",
			},
			[]string{"source", "result"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "huddle_http_requests_total",
				Help: "HTTP API requests",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "huddle_http_request_duration_seconds",
				Help:    "HTTP API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		activeStreams: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "huddle_active_streams",
				Help: "Open conversation websocket streams",
			},
		),
		dbConnections: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "huddle_db_pool_connections",
				Help: "Database pool connections by state",
			},
			[]string{"state"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "huddle_circuit_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 open, 2 half open)",
			},
			[]string{"name"},
		),
		logger: logger,
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.chatOperations,
		m.chatDuration,
		m.feedRefreshes,
		m.httpRequests,
		m.httpDuration,
		m.activeStreams,
		m.dbConnections,
		m.breakerState,
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func result(err error) string {
	if err == nil {
		return "ok"
	}
	return apperrors.Code(err).String()
}

// ObserveOperation records one chat or moderation call.
func (m *Metrics) ObserveOperation(op string, start time.Time, err error) {
	m.chatOperations.WithLabelValues(op, result(err)).Inc()
	m.chatDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveFeedRefresh(source string, err error) {
	m.feedRefreshes.WithLabelValues(source, result(err)).Inc()
}

func (m *Metrics) StreamOpened() { m.activeStreams.Inc() }
func (m *Metrics) StreamClosed() { m.activeStreams.Dec() }

func (m *Metrics) RecordPoolStats(s db.PoolStats) {
	m.dbConnections.WithLabelValues("total").Set(float64(s.TotalConns))
	m.dbConnections.WithLabelValues("idle").Set(float64(s.IdleConns))
	m.dbConnections.WithLabelValues("acquired").Set(float64(s.AcquiredConns))
}

func (m *Metrics) RecordBreakerState(name string, state int) {
	m.breakerState.WithLabelValues(name).Set(float64(state))
}

// RegisterCacheStats exposes cache-aside counters under the given cache label.
func (m *Metrics) RegisterCacheStats(name string, stats func() cache.Stats) {
	read := func(pick func(cache.Stats) uint64) func() float64 {
		return func() float64 { return float64(pick(stats())) }
	}
	m.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        "huddle_cache_hits_total",
			Help:        "Cache-aside hits",
			ConstLabels: prometheus.Labels{"cache": name},
		}, read(func(s cache.Stats) uint64 { return s.Hits })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        "huddle_cache_misses_total",
			Help:        "Cache-aside misses",
			ConstLabels: prometheus.Labels{"cache": name},
		}, read(func(s cache.Stats) uint64 { return s.Misses })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        "huddle_cache_errors_total",
			Help:        "Cache-aside redis errors",
			ConstLabels: prometheus.Labels{"cache": name},
		}, read(func(s cache.Stats) uint64 { return s.Errors })),
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack keeps websocket upgrades working behind the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Start(ctx context.Context, port int) error {
	router := http.NewServeMux()
	router.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	m.logger.Info("metrics server starting", zap.Int("port", port))

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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
