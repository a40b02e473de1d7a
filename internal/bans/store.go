package bans

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Alexander-D-Karpov/huddle/internal/common/errors"
	"github.com/google/uuid"
)

type Filter struct {
	UserID *uuid.UUID
}

type Patch struct {
	IsActive *bool
}

// Store persists ban records. ListActive returns records with IsActive set,
// without evaluating expiry.
type Store interface {
	Create(ctx context.Context, b *Ban) error
	Get(ctx context.Context, id uuid.UUID) (*Ban, error)
	Update(ctx context.Context, id uuid.UUID, p Patch) (*Ban, error)
	ListActive(ctx context.Context, f Filter) ([]Ban, error)
}

type MemoryStore struct {
	mu   sync.RWMutex
	bans map[uuid.UUID]Ban
	now  func() time.Time
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		bans: make(map[uuid.UUID]Ban),
		now:  now,
	}
}

func cloneBan(b Ban) Ban {
	if b.ExpiresAt != nil {
		t := *b.ExpiresAt
		b.ExpiresAt = &t
	}
	return b
}

func (s *MemoryStore) Create(_ context.Context, b *Ban) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if _, exists := s.bans[b.ID]; exists {
		return errors.InvalidState("ban already exists")
	}
	b.CreatedAt = s.now().UTC()
	s.bans[b.ID] = cloneBan(*b)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Ban, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bans[id]
	if !ok {
		return nil, errors.NotFound("ban not found")
	}
	out := cloneBan(b)
	return &out, nil
}

func (s *MemoryStore) Update(_ context.Context, id uuid.UUID, p Patch) (*Ban, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bans[id]
	if !ok {
		return nil, errors.NotFound("ban not found")
	}
	if p.IsActive != nil {
		b.IsActive = *p.IsActive
	}
	s.bans[id] = b
	out := cloneBan(b)
	return &out, nil
}

func (s *MemoryStore) ListActive(_ context.Context, f Filter) ([]Ban, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Ban, 0)
	for _, b := range s.bans {
		if !b.IsActive {
			continue
		}
		if f.UserID != nil && b.BannedUserID != *f.UserID {
			continue
		}
		out = append(out, cloneBan(b))
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(list []Ban) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return slices.Compare(list[i].ID[:], list[j].ID[:]) < 0
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}

var _ Store = (*MemoryStore)(nil)
