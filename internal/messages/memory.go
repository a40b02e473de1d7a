package messages

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Alexander-D-Karpov/huddle/internal/common/errors"
	"github.com/Alexander-D-Karpov/huddle/internal/infra"
)

// MemoryStore keeps messages in process memory. It is not persistent and is
// meant for local mode and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	messages  map[int64]*Message
	snowflake *infra.SnowflakeGenerator
	now       func() time.Time
}

func NewMemoryStore(snowflake *infra.SnowflakeGenerator, now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		messages:  make(map[int64]*Message),
		snowflake: snowflake,
		now:       now,
	}
}

func (s *MemoryStore) Create(_ context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg.ID = s.snowflake.Generate()
	msg.CreatedAt = s.now().UTC()
	s.messages[msg.ID] = msg.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, errors.NotFound("message not found")
	}
	return msg.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, id int64, patch Patch) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.messages[id]
	if !ok {
		return nil, errors.NotFound("message not found")
	}

	next := current.Clone()
	if err := Apply(next, patch); err != nil {
		return nil, err
	}
	s.messages[id] = next
	return next.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context, opts ListOptions) ([]*Message, error) {
	s.mu.RLock()
	out := make([]*Message, 0, len(s.messages))
	for _, m := range s.messages {
		if !opts.IncludeDeleted && m.IsDeleted() {
			continue
		}
		if opts.PinnedOnly && !m.IsPinned() {
			continue
		}
		out = append(out, m.Clone())
	}
	s.mu.RUnlock()

	SortByCreated(out, opts.Order)

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// SortByCreated orders messages by creation time with the id as tiebreak.
func SortByCreated(msgs []*Message, order Order) {
	sort.SliceStable(msgs, func(i, j int) bool {
		a, b := msgs[i], msgs[j]
		if order == OrderNewestFirst {
			a, b = b, a
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
