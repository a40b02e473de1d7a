package events

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("event broker closed")

const defaultBuffer = 64

// Hub is the in-process Broker.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]chan Event
	logger      *zap.Logger
	buffer      int
	closed      bool
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subscribers: make(map[uuid.UUID]chan Event),
		logger:      logger,
		buffer:      defaultBuffer,
	}
}

func (h *Hub) Publish(_ context.Context, e Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return ErrClosed
	}

	delivered := 0
	for id, ch := range h.subscribers {
		select {
		case ch <- e:
			delivered++
		default:
			h.logger.Warn("subscriber channel full, dropping event",
				zap.String("subscriber_id", id.String()),
				zap.String("event_id", e.ID.String()),
				zap.String("event_type", string(e.Type)),
			)
		}
	}

	h.logger.Debug("event published",
		zap.String("event_id", e.ID.String()),
		zap.String("event_type", string(e.Type)),
		zap.Int("subscribers", len(h.subscribers)),
		zap.Int("delivered", delivered),
	)
	return nil
}

func (h *Hub) Subscribe(ctx context.Context) (<-chan Event, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	id := uuid.New()
	ch := make(chan Event, h.buffer)
	h.subscribers[id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.remove(id)
	}()

	return ch, nil
}

func (h *Hub) remove(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close disconnects every subscriber. Later publishes fail with ErrClosed.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
	h.logger.Info("event hub closed")
	return nil
}

var _ Broker = (*Hub)(nil)
