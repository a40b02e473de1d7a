package cache

import (
	"sync/atomic"
)

type Metrics struct {
	hits   atomic.Uint64
	misses atomic.Uint64
	errors atomic.Uint64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordHit()   { m.hits.Add(1) }
func (m *Metrics) RecordMiss()  { m.misses.Add(1) }
func (m *Metrics) RecordError() { m.errors.Add(1) }

type Stats struct {
	Hits    uint64
	Misses  uint64
	Errors  uint64
	HitRate float64
}

func (m *Metrics) Stats() Stats {
	s := Stats{
		Hits:   m.hits.Load(),
		Misses: m.misses.Load(),
		Errors: m.errors.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
