package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type queryTraceKey struct{}

type queryTrace struct {
	sql   string
	start time.Time
}

// SlowQueryLogger is a pgx tracer that warns about statements slower than
// threshold. Arguments are never logged since they carry message bodies.
type SlowQueryLogger struct {
	logger    *zap.Logger
	threshold time.Duration
}

func NewSlowQueryLogger(logger *zap.Logger, threshold time.Duration) *SlowQueryLogger {
	return &SlowQueryLogger{
		logger:    logger,
		threshold: threshold,
	}
}

func (s *SlowQueryLogger) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryTraceKey{}, queryTrace{sql: data.SQL, start: time.Now()})
}

func (s *SlowQueryLogger) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	trace, ok := ctx.Value(queryTraceKey{}).(queryTrace)
	if !ok {
		return
	}

	if duration := time.Since(trace.start); duration > s.threshold {
		s.logger.Warn("slow query detected",
			zap.Duration("duration", duration),
			zap.String("sql", trace.sql),
			zap.String("command_tag", data.CommandTag.String()),
			zap.Error(data.Err),
		)
	}
}
