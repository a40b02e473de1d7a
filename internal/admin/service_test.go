package admin

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Alexander-D-Karpov/huddle/internal/audit"
	"github.com/Alexander-D-Karpov/huddle/internal/auth"
	"github.com/Alexander-D-Karpov/huddle/internal/bans"
	"github.com/Alexander-D-Karpov/huddle/internal/chat"
	"github.com/Alexander-D-Karpov/huddle/internal/common/errors"
	"github.com/Alexander-D-Karpov/huddle/internal/events"
	"github.com/Alexander-D-Karpov/huddle/internal/infra"
	"github.com/Alexander-D-Karpov/huddle/internal/messages"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingBroker struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBroker) Publish(_ context.Context, e events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return nil
}

func (b *recordingBroker) Subscribe(context.Context) (<-chan events.Event, error) {
	return make(chan events.Event), nil
}

func (b *recordingBroker) Close() error { return nil }

func (b *recordingBroker) last() events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.events[len(b.events)-1]
}

type fixture struct {
	admin  *Service
	chat   *chat.Service
	broker *recordingBroker
	audit  *observer.ObservedLogs
	clock  *time.Time
	mod    auth.Requester
	user   auth.Requester
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := time.Date(2025, 4, 14, 9, 30, 0, 0, time.UTC)
	now := func() time.Time { return clock }

	store := messages.NewMemoryStore(infra.NewSnowflakeGenerator(1), now)
	registry := bans.NewRegistry(bans.NewMemoryStore(now), zap.NewNop(), bans.WithClock(now))
	broker := &recordingBroker{}
	chatService := chat.NewService(store, registry, broker, zap.NewNop(), chat.WithClock(now))

	core, logs := observer.New(zap.InfoLevel)
	f := &fixture{
		chat:   chatService,
		broker: broker,
		audit:  logs,
		clock:  &clock,
		mod:    auth.Requester{ID: uuid.New(), DisplayName: "mod", Role: auth.RoleModerator},
		user:   auth.Requester{ID: uuid.New(), DisplayName: "ann", Role: auth.RoleRegular},
	}
	f.admin = NewService(chatService, registry, audit.NewLogger(zap.New(core)), broker, WithClock(func() time.Time { return *f.clock }))
	return f
}

func (f *fixture) post(t *testing.T, body string) *messages.Message {
	t.Helper()
	msg, err := f.chat.Post(context.Background(), f.user, chat.PostRequest{Body: body})
	require.NoError(t, err)
	return msg
}

func (f *fixture) audited(action audit.Action) int {
	return f.audit.FilterMessage("audit event").FilterField(zap.String("action", string(action))).Len()
}

func TestRegularUsersAreForbidden(t *testing.T) {
	f := newFixture(t)
	msg := f.post(t, "hello")
	ctx := context.Background()

	calls := map[string]func(auth.Requester) error{
		"delete": func(r auth.Requester) error { _, err := f.admin.DeleteMessage(ctx, msg.ID, r); return err },
		"restore": func(r auth.Requester) error {
			_, err := f.admin.RestoreMessage(ctx, msg.ID, r)
			return err
		},
		"pin":   func(r auth.Requester) error { _, err := f.admin.PinMessage(ctx, msg.ID, r); return err },
		"unpin": func(r auth.Requester) error { _, err := f.admin.UnpinMessage(ctx, msg.ID, r); return err },
		"ban": func(r auth.Requester) error {
			_, err := f.admin.BanUser(ctx, r, bans.BanRequest{TargetID: uuid.New(), Permanent: true})
			return err
		},
		"unban":  func(r auth.Requester) error { _, err := f.admin.UnbanUser(ctx, uuid.New(), r); return err },
		"list":   func(r auth.Requester) error { _, err := f.admin.ListActiveBans(ctx, r); return err },
		"status": func(r auth.Requester) error { _, err := f.admin.UserStatus(ctx, uuid.New(), r); return err },
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			assert.True(t, errors.IsForbidden(call(f.user)))
			assert.True(t, errors.IsUnauthorized(call(auth.Requester{})))
		})
	}

	got, err := f.chat.Get(ctx, msg.ID, f.mod)
	require.NoError(t, err)
	assert.False(t, got.IsDeleted())
	assert.Zero(t, f.audit.FilterMessage("audit event").Len())
}

func TestMessageModeration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	msg := f.post(t, "hello")

	pinned, err := f.admin.PinMessage(ctx, msg.ID, f.mod)
	require.NoError(t, err)
	require.NotNil(t, pinned.Pin)
	assert.Equal(t, f.mod.ID, pinned.Pin.By)

	unpinned, err := f.admin.UnpinMessage(ctx, msg.ID, f.mod)
	require.NoError(t, err)
	assert.Nil(t, unpinned.Pin)

	deleted, err := f.admin.DeleteMessage(ctx, msg.ID, f.mod)
	require.NoError(t, err)
	require.NotNil(t, deleted.Deletion)
	assert.Equal(t, f.mod.ID, deleted.Deletion.By)

	restored, err := f.admin.RestoreMessage(ctx, msg.ID, f.mod)
	require.NoError(t, err)
	assert.Nil(t, restored.Deletion)

	for _, action := range []audit.Action{
		audit.ActionMessagePin, audit.ActionMessageUnpin, audit.ActionMessageDelete, audit.ActionMessageRestore,
	} {
		assert.Equal(t, 1, f.audited(action), action)
	}
}

func TestFailedActionsAreNotAudited(t *testing.T) {
	f := newFixture(t)
	msg := f.post(t, "hello")

	_, err := f.admin.RestoreMessage(context.Background(), msg.ID, f.mod)
	assert.True(t, errors.IsInvalidState(err))

	_, err = f.admin.PinMessage(context.Background(), 424242, f.mod)
	assert.True(t, errors.IsNotFound(err))

	assert.Zero(t, f.audit.FilterMessage("audit event").Len())
}

func TestBanLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ban, err := f.admin.BanUser(ctx, f.mod, bans.BanRequest{TargetID: f.user.ID, Reason: "spam", DurationHours: 1})
	require.NoError(t, err)
	assert.Equal(t, "spam", ban.Reason)
	require.NotNil(t, ban.ExpiresAt)
	assert.Equal(t, f.clock.Add(time.Hour), *ban.ExpiresAt)
	assert.Equal(t, 1, f.audited(audit.ActionUserBan))

	e := f.broker.last()
	assert.Equal(t, events.UserBanned, e.Type)
	require.NotNil(t, e.BanID)
	assert.Equal(t, ban.ID, *e.BanID)

	_, err = f.chat.Post(ctx, f.user, chat.PostRequest{Body: "let me in"})
	assert.True(t, errors.IsBanned(err))

	active, err := f.admin.ListActiveBans(ctx, f.mod)
	require.NoError(t, err)
	require.Len(t, active, 1)

	st, err := f.admin.UserStatus(ctx, f.user.ID, f.mod)
	require.NoError(t, err)
	assert.True(t, st.Restricted)
	require.NotNil(t, st.Until)

	lifted, err := f.admin.UnbanUser(ctx, ban.ID, f.mod)
	require.NoError(t, err)
	assert.False(t, lifted.IsActive)
	assert.Equal(t, events.UserUnbanned, f.broker.last().Type)
	assert.Equal(t, 1, f.audited(audit.ActionUserUnban))

	st, err = f.admin.UserStatus(ctx, f.user.ID, f.mod)
	require.NoError(t, err)
	assert.False(t, st.Restricted)

	_, err = f.chat.Post(ctx, f.user, chat.PostRequest{Body: "thanks"})
	assert.NoError(t, err)
}

func TestExpiredBanDropsFromListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.admin.BanUser(ctx, f.mod, bans.BanRequest{TargetID: f.user.ID, DurationHours: 1})
	require.NoError(t, err)

	*f.clock = f.clock.Add(2 * time.Hour)

	active, err := f.admin.ListActiveBans(ctx, f.mod)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestBanValidationErrorsPassThrough(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.admin.BanUser(ctx, f.mod, bans.BanRequest{TargetID: f.user.ID})
	assert.True(t, errors.IsInvalidDuration(err))

	_, err = f.admin.BanUser(ctx, f.mod, bans.BanRequest{TargetID: f.mod.ID, Permanent: true})
	assert.True(t, errors.IsBadRequest(err))

	assert.Zero(t, f.audited(audit.ActionUserBan))
}
