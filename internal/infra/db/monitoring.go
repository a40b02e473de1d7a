package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type PoolStats struct {
	TotalConns    int32
	IdleConns     int32
	AcquiredConns int32
}

// StatsRecorder receives pool stats on every tick, typically prometheus gauges.
type StatsRecorder interface {
	RecordPoolStats(PoolStats)
}

type PoolMonitor struct {
	pool     *pgxpool.Pool
	logger   *zap.Logger
	recorder StatsRecorder
	interval time.Duration
}

func NewPoolMonitor(pool *pgxpool.Pool, logger *zap.Logger, recorder StatsRecorder, interval time.Duration) *PoolMonitor {
	return &PoolMonitor{
		pool:     pool,
		logger:   logger,
		recorder: recorder,
		interval: interval,
	}
}

// Run blocks until ctx is done.
func (m *PoolMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := m.pool.Stat()
			ps := PoolStats{
				TotalConns:    stats.TotalConns(),
				IdleConns:     stats.IdleConns(),
				AcquiredConns: stats.AcquiredConns(),
			}
			if m.recorder != nil {
				m.recorder.RecordPoolStats(ps)
			}
			m.logger.Debug("database pool stats",
				zap.Int32("total_conns", ps.TotalConns),
				zap.Int32("idle_conns", ps.IdleConns),
				zap.Int32("acquired_conns", ps.AcquiredConns),
				zap.Duration("acquire_duration", stats.AcquireDuration()),
			)
		case <-ctx.Done():
			return
		}
	}
}
