package infra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timestampOf(id int64) time.Time {
	return time.UnixMilli(id>>timeShift + idEpoch)
}

func nodeOf(id int64) int64 {
	return id >> nodeShift & maxNode
}

func TestSnowflakeMonotonic(t *testing.T) {
	gen := NewSnowflakeGenerator(3)

	prev := gen.Generate()
	for i := 0; i < 10000; i++ {
		next := gen.Generate()
		require.Greater(t, next, prev)
		prev = next
	}
	assert.Equal(t, int64(3), nodeOf(prev))
}

func TestSnowflakeTimestamp(t *testing.T) {
	gen := NewSnowflakeGenerator(1)
	before := time.Now().Add(-time.Millisecond)
	id := gen.Generate()
	after := time.Now().Add(time.Millisecond)

	ts := timestampOf(id)
	assert.True(t, ts.After(before), "timestamp %v before %v", ts, before)
	assert.True(t, ts.Before(after), "timestamp %v after %v", ts, after)
}

func TestSnowflakeClockSkew(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	gen := NewSnowflakeGenerator(9)
	gen.clock = func() time.Time { return now }

	first := gen.Generate()
	now = now.Add(-time.Second)
	second := gen.Generate()

	assert.Greater(t, second, first)
	assert.Equal(t, timestampOf(first), timestampOf(second))
}

func TestSnowflakeSequenceOverflow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	gen := NewSnowflakeGenerator(0)
	gen.clock = func() time.Time { return now }

	var last int64
	for i := 0; i <= sequenceMask+1; i++ {
		last = gen.Generate()
	}
	assert.Equal(t, now.Add(time.Millisecond).UnixMilli(), timestampOf(last).UnixMilli())
}

func TestSnowflakeRejectsBadNode(t *testing.T) {
	assert.Panics(t, func() { NewSnowflakeGenerator(1024) })
	assert.Panics(t, func() { NewSnowflakeGenerator(-1) })
}
