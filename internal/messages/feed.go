package messages

import (
	"context"
	"time"

	"github.com/Alexander-D-Karpov/huddle/internal/circuitbreaker"
	"github.com/Alexander-D-Karpov/huddle/internal/events"
	"go.uber.org/zap"
)

// Snapshot is a full read of the conversation at At.
type Snapshot struct {
	Messages []*Message
	At       time.Time
	Reason   string
}

// Feed delivers fresh snapshots of the whole collection. Consumers always get
// the latest snapshot; intermediate ones may be skipped.
type Feed interface {
	Subscribe(ctx context.Context) (<-chan Snapshot, error)
}

// RefreshObserver is told about every store read a feed makes.
type RefreshObserver func(source string, err error)

var feedListOptions = ListOptions{IncludeDeleted: true, Order: OrderOldestFirst}

// offer replaces any unread snapshot with s.
func offer(ch chan Snapshot, s Snapshot) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

type PollingFeed struct {
	store    Store
	interval time.Duration
	breaker  *circuitbreaker.CircuitBreaker
	logger   *zap.Logger
	observe  RefreshObserver
	now      func() time.Time
}

func NewPollingFeed(store Store, interval time.Duration, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger, observe RefreshObserver) *PollingFeed {
	if breaker == nil {
		breaker = circuitbreaker.New(5, 30*time.Second)
	}
	return &PollingFeed{
		store:    store,
		interval: interval,
		breaker:  breaker,
		logger:   logger,
		observe:  observe,
		now:      time.Now,
	}
}

func (f *PollingFeed) Subscribe(ctx context.Context) (<-chan Snapshot, error) {
	out := make(chan Snapshot, 1)

	go func() {
		defer close(out)

		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()

		f.refresh(ctx, out, "initial")
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				f.refresh(ctx, out, "poll")
			}
		}
	}()

	return out, nil
}

func (f *PollingFeed) refresh(ctx context.Context, out chan Snapshot, reason string) {
	var msgs []*Message
	err := f.breaker.Call(func() error {
		var err error
		msgs, err = f.store.List(ctx, feedListOptions)
		return err
	})
	if f.observe != nil {
		f.observe("poll", err)
	}
	if err != nil {
		if ctx.Err() == nil {
			f.logger.Warn("feed refresh failed",
				zap.String("reason", reason),
				zap.String("breaker", f.breaker.State().String()),
				zap.Error(err),
			)
		}
		return
	}
	offer(out, Snapshot{Messages: msgs, At: f.now(), Reason: reason})
}

// PushFeed re-reads the store whenever the broker reports a change.
type PushFeed struct {
	store   Store
	broker  events.Broker
	logger  *zap.Logger
	observe RefreshObserver
	now     func() time.Time
}

func NewPushFeed(store Store, broker events.Broker, logger *zap.Logger, observe RefreshObserver) *PushFeed {
	return &PushFeed{
		store:   store,
		broker:  broker,
		logger:  logger,
		observe: observe,
		now:     time.Now,
	}
}

func (f *PushFeed) Subscribe(ctx context.Context) (<-chan Snapshot, error) {
	evs, err := f.broker.Subscribe(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan Snapshot, 1)
	go func() {
		defer close(out)

		f.refresh(ctx, out, "initial")
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-evs:
				if !ok {
					return
				}
				f.refresh(ctx, out, string(e.Type))
			}
		}
	}()

	return out, nil
}

func (f *PushFeed) refresh(ctx context.Context, out chan Snapshot, reason string) {
	msgs, err := f.store.List(ctx, feedListOptions)
	if f.observe != nil {
		f.observe("push", err)
	}
	if err != nil {
		if ctx.Err() == nil {
			f.logger.Warn("feed refresh failed", zap.String("reason", reason), zap.Error(err))
		}
		return
	}
	offer(out, Snapshot{Messages: msgs, At: f.now(), Reason: reason})
}

var (
	_ Feed = (*PollingFeed)(nil)
	_ Feed = (*PushFeed)(nil)
)
