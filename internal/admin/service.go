package admin

import (
	"context"
	"strconv"
	"time"

	"github.com/Alexander-D-Karpov/huddle/internal/audit"
	"github.com/Alexander-D-Karpov/huddle/internal/auth"
	"github.com/Alexander-D-Karpov/huddle/internal/bans"
	"github.com/Alexander-D-Karpov/huddle/internal/chat"
	"github.com/Alexander-D-Karpov/huddle/internal/common/errors"
	"github.com/Alexander-D-Karpov/huddle/internal/common/logging"
	"github.com/Alexander-D-Karpov/huddle/internal/events"
	"github.com/Alexander-D-Karpov/huddle/internal/messages"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service is the moderation console. Every call is gated on the moderator
// role and every successful action lands in the audit log.
type Service struct {
	chat    *chat.Service
	bans    *bans.Registry
	audit   *audit.Logger
	broker  events.Broker
	metrics chat.Recorder
	now     func() time.Time
}

type Option func(*Service)

func WithMetrics(r chat.Recorder) Option    { return func(s *Service) { s.metrics = r } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(chatService *chat.Service, registry *bans.Registry, auditLog *audit.Logger, broker events.Broker, opts ...Option) *Service {
	s := &Service{
		chat:   chatService,
		bans:   registry,
		audit:  auditLog,
		broker: broker,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func requireModerator(req auth.Requester) error {
	if !req.Valid() {
		return errors.Unauthorized("user not authenticated")
	}
	if !req.IsModerator() {
		return errors.Forbidden("moderator role required")
	}
	return nil
}

func (s *Service) observe(op string, start time.Time, err *error) {
	if s.metrics != nil {
		s.metrics.ObserveOperation("admin."+op, start, *err)
	}
}

func (s *Service) publishBan(ctx context.Context, t events.Type, actor, banID uuid.UUID) {
	if s.broker == nil {
		return
	}
	if err := s.broker.Publish(ctx, events.New(t, actor, s.now().UTC()).ForBan(banID)); err != nil {
		logging.FromContext(ctx).Warn("failed to publish event",
			zap.String("event_type", string(t)),
			zap.String("ban_id", banID.String()),
			zap.Error(err),
		)
	}
}

type messageOp func(context.Context, int64, auth.Requester) (*messages.Message, error)

func (s *Service) moderate(ctx context.Context, id int64, req auth.Requester, action audit.Action, op messageOp) (*messages.Message, error) {
	if err := requireModerator(req); err != nil {
		return nil, err
	}
	msg, err := op(ctx, id, req)
	if err != nil {
		return nil, err
	}
	s.audit.LogMessage(ctx, req.ID, action, strconv.FormatInt(id, 10))
	return msg, nil
}

func (s *Service) DeleteMessage(ctx context.Context, id int64, req auth.Requester) (msg *messages.Message, err error) {
	defer s.observe("delete_message", time.Now(), &err)
	return s.moderate(ctx, id, req, audit.ActionMessageDelete, s.chat.SoftDelete)
}

func (s *Service) RestoreMessage(ctx context.Context, id int64, req auth.Requester) (msg *messages.Message, err error) {
	defer s.observe("restore_message", time.Now(), &err)
	return s.moderate(ctx, id, req, audit.ActionMessageRestore, s.chat.Restore)
}

func (s *Service) PinMessage(ctx context.Context, id int64, req auth.Requester) (msg *messages.Message, err error) {
	defer s.observe("pin_message", time.Now(), &err)
	return s.moderate(ctx, id, req, audit.ActionMessagePin, s.chat.Pin)
}

func (s *Service) UnpinMessage(ctx context.Context, id int64, req auth.Requester) (msg *messages.Message, err error) {
	defer s.observe("unpin_message", time.Now(), &err)
	return s.moderate(ctx, id, req, audit.ActionMessageUnpin, s.chat.Unpin)
}

func (s *Service) BanUser(ctx context.Context, req auth.Requester, br bans.BanRequest) (ban *bans.Ban, err error) {
	defer s.observe("ban_user", time.Now(), &err)

	if err := requireModerator(req); err != nil {
		return nil, err
	}
	ban, err = s.bans.Ban(ctx, req.ID, br)
	if err != nil {
		return nil, err
	}

	s.audit.LogBan(ctx, req.ID, ban.BannedUserID, ban.ID, ban.Reason, ban.ExpiresAt)
	s.publishBan(ctx, events.UserBanned, req.ID, ban.ID)
	return ban, nil
}

func (s *Service) UnbanUser(ctx context.Context, banID uuid.UUID, req auth.Requester) (ban *bans.Ban, err error) {
	defer s.observe("unban_user", time.Now(), &err)

	if err := requireModerator(req); err != nil {
		return nil, err
	}
	ban, err = s.bans.Unban(ctx, banID, req.ID)
	if err != nil {
		return nil, err
	}

	s.audit.LogUnban(ctx, req.ID, ban.BannedUserID, ban.ID)
	s.publishBan(ctx, events.UserUnbanned, req.ID, ban.ID)
	return ban, nil
}

func (s *Service) ListActiveBans(ctx context.Context, req auth.Requester) ([]bans.Ban, error) {
	if err := requireModerator(req); err != nil {
		return nil, err
	}
	return s.bans.Active(ctx, s.now())
}

func (s *Service) UserStatus(ctx context.Context, userID uuid.UUID, req auth.Requester) (bans.Status, error) {
	if err := requireModerator(req); err != nil {
		return bans.Status{}, err
	}
	return s.bans.Status(ctx, userID, s.now())
}
