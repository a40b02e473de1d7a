package messages

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Alexander-D-Karpov/huddle/internal/circuitbreaker"
	"github.com/Alexander-D-Karpov/huddle/internal/common/errors"
	"github.com/Alexander-D-Karpov/huddle/internal/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type flakyStore struct {
	Store
	mu    sync.Mutex
	fail  bool
	lists int
}

func (s *flakyStore) List(ctx context.Context, opts ListOptions) ([]*Message, error) {
	s.mu.Lock()
	s.lists++
	fail := s.fail
	s.mu.Unlock()
	if fail {
		return nil, errors.StoreFailure("list messages", nil)
	}
	return s.Store.List(ctx, opts)
}

func (s *flakyStore) setFail(v bool) {
	s.mu.Lock()
	s.fail = v
	s.mu.Unlock()
}

func (s *flakyStore) listCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists
}

func next(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s, ok := <-ch:
		require.True(t, ok, "feed closed")
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func TestPollingFeedDeliversSnapshots(t *testing.T) {
	store, _ := newTestStore(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, store.Create(context.Background(), &Message{AuthorID: uuid.New(), Body: "hi", Content: Plain{}}))

	feed := NewPollingFeed(store, 10*time.Millisecond, nil, zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := feed.Subscribe(ctx)
	require.NoError(t, err)

	first := next(t, ch)
	require.Len(t, first.Messages, 1)

	require.NoError(t, store.Create(context.Background(), &Message{AuthorID: uuid.New(), Body: "again", Content: Plain{}}))
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-ch:
			if len(snap.Messages) == 2 {
				assert.Equal(t, "poll", snap.Reason)
				return
			}
		case <-deadline:
			t.Fatal("second message never showed up")
		}
	}
}

func TestPollingFeedIncludesDeletedMessages(t *testing.T) {
	store, _ := newTestStore(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC))
	msg := &Message{AuthorID: uuid.New(), Body: "gone", Content: Plain{}}
	require.NoError(t, store.Create(context.Background(), msg))
	_, err := store.Update(context.Background(), msg.ID, Patch{Delete: &Deletion{By: msg.AuthorID, At: time.Now()}})
	require.NoError(t, err)

	feed := NewPollingFeed(store, time.Hour, nil, zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := feed.Subscribe(ctx)
	require.NoError(t, err)
	snap := next(t, ch)
	require.Len(t, snap.Messages, 1)
	assert.True(t, snap.Messages[0].IsDeleted())
}

func TestPollingFeedOpensBreakerOnRepeatedFailures(t *testing.T) {
	mem, _ := newTestStore(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC))
	store := &flakyStore{Store: mem, fail: true}

	var mu sync.Mutex
	var observed []error
	breaker := circuitbreaker.New(2, time.Hour)
	feed := NewPollingFeed(store, 5*time.Millisecond, breaker, zap.NewNop(), func(source string, err error) {
		mu.Lock()
		observed = append(observed, err)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := feed.Subscribe(ctx)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return breaker.State() == circuitbreaker.StateOpen }, 2*time.Second, 5*time.Millisecond)

	// once open, the store is left alone
	lists := store.listCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, lists, store.listCount())

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, observed)
	assert.True(t, errors.IsStoreFailure(observed[0]))
}

func TestPushFeedRefreshesOnEvents(t *testing.T) {
	store, _ := newTestStore(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC))
	hub := events.NewHub(zap.NewNop())
	defer hub.Close()

	var mu sync.Mutex
	sources := map[string]int{}
	feed := NewPushFeed(store, hub, zap.NewNop(), func(source string, err error) {
		mu.Lock()
		sources[source]++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := feed.Subscribe(ctx)
	require.NoError(t, err)

	initial := next(t, ch)
	assert.Equal(t, "initial", initial.Reason)
	assert.Empty(t, initial.Messages)

	msg := &Message{AuthorID: uuid.New(), Body: "hello", Content: Plain{}}
	require.NoError(t, store.Create(ctx, msg))
	require.NoError(t, hub.Publish(ctx, events.New(events.MessagePosted, msg.AuthorID, time.Now()).ForMessage(msg.ID)))

	snap := next(t, ch)
	assert.Equal(t, string(events.MessagePosted), snap.Reason)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, msg.ID, snap.Messages[0].ID)

	mu.Lock()
	assert.Equal(t, 2, sources["push"])
	mu.Unlock()
}

func TestPushFeedClosesWithBroker(t *testing.T) {
	store, _ := newTestStore(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC))
	hub := events.NewHub(zap.NewNop())

	ch, err := NewPushFeed(store, hub, zap.NewNop(), nil).Subscribe(context.Background())
	require.NoError(t, err)
	next(t, ch)

	require.NoError(t, hub.Close())
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("feed not closed")
	}
}

func TestOfferKeepsLatest(t *testing.T) {
	ch := make(chan Snapshot, 1)
	offer(ch, Snapshot{Reason: "a"})
	offer(ch, Snapshot{Reason: "b"})
	assert.Equal(t, "b", (<-ch).Reason)
}
