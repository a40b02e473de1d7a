package infra

import (
	"sync"
	"time"
)

// Message ids are laid out as 41 bits of milliseconds since idEpoch, 10 bits
// of node id and 12 bits of per-millisecond sequence.
const (
	nodeBits     = 10
	sequenceBits = 12

	maxNode      = 1<<nodeBits - 1
	sequenceMask = 1<<sequenceBits - 1
	nodeShift    = sequenceBits
	timeShift    = sequenceBits + nodeBits
)

var idEpoch = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

// SnowflakeGenerator hands out time-ordered int64 ids. Ids from one generator
// are strictly increasing, which gives messages a stable tiebreak when two
// share a creation timestamp.
type SnowflakeGenerator struct {
	mu    sync.Mutex
	node  int64
	clock func() time.Time

	lastMillis int64
	sequence   int64
}

// NewSnowflakeGenerator panics on a node id outside 0..1023; config
// validation rejects those before startup.
func NewSnowflakeGenerator(node int64) *SnowflakeGenerator {
	if node < 0 || node > maxNode {
		panic("snowflake: node id out of range")
	}
	return &SnowflakeGenerator{node: node, clock: time.Now}
}

// Generate never blocks. When the wall clock goes backwards or a millisecond
// runs out of sequence numbers, ids continue on a logical clock one
// millisecond ahead of the last one issued.
func (g *SnowflakeGenerator) Generate() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	millis := g.clock().UnixMilli()
	switch {
	case millis > g.lastMillis:
		g.lastMillis = millis
		g.sequence = 0
	default:
		g.sequence = (g.sequence + 1) & sequenceMask
		if g.sequence == 0 {
			g.lastMillis++
		}
	}

	return (g.lastMillis-idEpoch)<<timeShift | g.node<<nodeShift | g.sequence
}
