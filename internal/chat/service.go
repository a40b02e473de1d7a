package chat

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Alexander-D-Karpov/huddle/internal/auth"
	"github.com/Alexander-D-Karpov/huddle/internal/common/errors"
	"github.com/Alexander-D-Karpov/huddle/internal/common/logging"
	"github.com/Alexander-D-Karpov/huddle/internal/events"
	"github.com/Alexander-D-Karpov/huddle/internal/messages"
	"github.com/Alexander-D-Karpov/huddle/internal/polls"
	"github.com/Alexander-D-Karpov/huddle/internal/ratelimit"
	"github.com/Alexander-D-Karpov/huddle/internal/reactions"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultMaxBodyLength = 4000

// Restrictions answers whether a user is currently banned from posting.
type Restrictions interface {
	IsRestricted(ctx context.Context, userID uuid.UUID, now time.Time) (bool, error)
}

type Limiter interface {
	Allow(ctx context.Context, scope ratelimit.Scope, key string) (bool, error)
}

type Recorder interface {
	ObserveOperation(op string, start time.Time, err error)
}

// Service drives the message lifecycle. Every transition reads the record,
// computes the new state and performs exactly one store write; the record
// returned is the one the store handed back.
type Service struct {
	store   messages.Store
	bans    Restrictions
	broker  events.Broker
	limiter Limiter
	metrics Recorder
	logger  *zap.Logger
	now     func() time.Time
	maxBody int
}

type Option func(*Service)

func WithLimiter(l Limiter) Option          { return func(s *Service) { s.limiter = l } }
func WithMetrics(r Recorder) Option         { return func(s *Service) { s.metrics = r } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithMaxBodyLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

func NewService(store messages.Store, bans Restrictions, broker events.Broker, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:   store,
		bans:    bans,
		broker:  broker,
		logger:  logger,
		now:     time.Now,
		maxBody: DefaultMaxBodyLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) observe(op string, start time.Time, err *error) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, start, *err)
	}
}

// publish runs after the write has landed, so a failure here is only logged.
func (s *Service) publish(ctx context.Context, t events.Type, actor uuid.UUID, messageID int64) {
	if s.broker == nil {
		return
	}
	e := events.New(t, actor, s.now().UTC()).ForMessage(messageID)
	if err := s.broker.Publish(ctx, e); err != nil {
		logging.FromContext(ctx).Warn("failed to publish event",
			zap.String("event_type", string(t)),
			zap.Int64("message_id", messageID),
			zap.Error(err),
		)
	}
}

func requireIdentity(req auth.Requester) error {
	if !req.Valid() {
		return errors.Unauthorized("user not authenticated")
	}
	return nil
}

func (s *Service) validateBody(body string, hasAttachments bool, kind messages.Kind) error {
	if utf8.RuneCountInString(body) > s.maxBody {
		return errors.BadRequest("message is too long")
	}
	if strings.TrimSpace(body) == "" && !hasAttachments && kind != messages.KindVoice {
		return errors.BadRequest("message body is required")
	}
	return nil
}

type PostRequest struct {
	Body          string
	Kind          messages.Kind
	Attachments   []string
	ReplyToID     *int64
	PollOptions   []string
	VoiceURL      string
	VoiceDuration int
}

func buildContent(pr PostRequest) (messages.Content, error) {
	if pr.Kind != messages.KindPoll && len(pr.PollOptions) > 0 {
		return nil, errors.BadRequest("poll options are only allowed on polls")
	}

	switch pr.Kind {
	case messages.KindPlain:
		return messages.Plain{}, nil
	case messages.KindPoll:
		p, err := polls.New(pr.PollOptions)
		if err != nil {
			return nil, err
		}
		return messages.PollContent{Poll: p}, nil
	case messages.KindVoice:
		if strings.TrimSpace(pr.VoiceURL) == "" {
			return nil, errors.BadRequest("voice message needs an audio url")
		}
		if pr.VoiceDuration < 0 {
			return nil, errors.BadRequest("voice duration cannot be negative")
		}
		return messages.Voice{AudioURL: strings.TrimSpace(pr.VoiceURL), DurationSeconds: pr.VoiceDuration}, nil
	default:
		return nil, errors.BadRequest("unknown message kind")
	}
}

// Post creates an active, unpinned, unedited message. The ban check happens
// at call time; a ban landing between the check and the write does not
// undo the post.
func (s *Service) Post(ctx context.Context, req auth.Requester, pr PostRequest) (msg *messages.Message, err error) {
	defer s.observe("post", time.Now(), &err)

	if err := requireIdentity(req); err != nil {
		return nil, err
	}
	if pr.Kind == "" {
		pr.Kind = messages.KindPlain
	}

	content, err := buildContent(pr)
	if err != nil {
		return nil, err
	}

	attachments := make([]messages.Attachment, 0, len(pr.Attachments))
	for _, uri := range pr.Attachments {
		uri = strings.TrimSpace(uri)
		if uri == "" {
			return nil, errors.BadRequest("attachment url cannot be empty")
		}
		attachments = append(attachments, messages.NewAttachment(uri))
	}

	if err := s.validateBody(pr.Body, len(attachments) > 0, pr.Kind); err != nil {
		return nil, err
	}
	if pr.ReplyToID != nil && *pr.ReplyToID <= 0 {
		return nil, errors.BadRequest("invalid reply_to_id")
	}

	restricted, err := s.bans.IsRestricted(ctx, req.ID, s.now())
	if err != nil {
		return nil, err
	}
	if restricted {
		return nil, errors.Banned("you are banned from posting")
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, ratelimit.ScopePost, req.ID.String())
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, errors.RateLimited("too many messages, slow down")
		}
	}

	draft := &messages.Message{
		AuthorID:          req.ID,
		AuthorDisplayName: req.DisplayName,
		Body:              pr.Body,
		Content:           content,
		Attachments:       attachments,
		ReplyToID:         pr.ReplyToID,
		Reactions:         []reactions.Reaction{},
	}
	if err := s.store.Create(ctx, draft); err != nil {
		return nil, err
	}

	msg, err = s.store.Get(ctx, draft.ID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.MessagePosted, req.ID, msg.ID)
	return msg, nil
}

func (s *Service) Edit(ctx context.Context, id int64, req auth.Requester, body string) (msg *messages.Message, err error) {
	defer s.observe("edit", time.Now(), &err)

	if err := requireIdentity(req); err != nil {
		return nil, err
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.AuthorID != req.ID {
		return nil, errors.Forbidden("can only edit own messages")
	}
	if current.IsDeleted() {
		return nil, errors.Forbidden("cannot edit a deleted message")
	}
	if err := s.validateBody(body, len(current.Attachments) > 0, current.Kind()); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	msg, err = s.store.Update(ctx, id, messages.Patch{Body: &body, EditedAt: &now})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.MessageEdited, req.ID, id)
	return msg, nil
}

// SoftDelete is allowed for the author and moderators. Deleting an already
// deleted message succeeds without writing.
func (s *Service) SoftDelete(ctx context.Context, id int64, req auth.Requester) (msg *messages.Message, err error) {
	defer s.observe("delete", time.Now(), &err)

	if err := requireIdentity(req); err != nil {
		return nil, err
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.AuthorID != req.ID && !req.IsModerator() {
		return nil, errors.Forbidden("can only delete own messages")
	}
	if current.IsDeleted() {
		return current, nil
	}

	msg, err = s.store.Update(ctx, id, messages.Patch{
		Delete: &messages.Deletion{By: req.ID, At: s.now().UTC()},
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.MessageDeleted, req.ID, id)
	return msg, nil
}

func (s *Service) Restore(ctx context.Context, id int64, req auth.Requester) (msg *messages.Message, err error) {
	defer s.observe("restore", time.Now(), &err)

	if err := requireIdentity(req); err != nil {
		return nil, err
	}
	if !req.IsModerator() {
		return nil, errors.Forbidden("only moderators can restore messages")
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.IsDeleted() {
		return nil, errors.InvalidState("message is not deleted")
	}

	msg, err = s.store.Update(ctx, id, messages.Patch{Undelete: true})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.MessageRestored, req.ID, id)
	return msg, nil
}

func (s *Service) Pin(ctx context.Context, id int64, req auth.Requester) (msg *messages.Message, err error) {
	defer s.observe("pin", time.Now(), &err)
	return s.setPinned(ctx, id, req, true)
}

func (s *Service) Unpin(ctx context.Context, id int64, req auth.Requester) (msg *messages.Message, err error) {
	defer s.observe("unpin", time.Now(), &err)
	return s.setPinned(ctx, id, req, false)
}

func (s *Service) setPinned(ctx context.Context, id int64, req auth.Requester, pinned bool) (*messages.Message, error) {
	if err := requireIdentity(req); err != nil {
		return nil, err
	}
	if !req.IsModerator() {
		return nil, errors.Forbidden("only moderators can pin messages")
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.IsDeleted() {
		return nil, errors.InvalidState("cannot pin or unpin a deleted message")
	}
	if current.IsPinned() == pinned {
		return current, nil
	}

	patch := messages.Patch{Unpin: true}
	eventType := events.MessageUnpinned
	if pinned {
		patch = messages.Patch{Pin: &messages.Pin{By: req.ID, At: s.now().UTC()}}
		eventType = events.MessagePinned
	}

	msg, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, eventType, req.ID, id)
	return msg, nil
}

// Vote toggles the requester's vote on one option. Votes on different
// options are independent; authors may vote on their own polls.
func (s *Service) Vote(ctx context.Context, id int64, optionID uuid.UUID, req auth.Requester) (msg *messages.Message, err error) {
	defer s.observe("vote", time.Now(), &err)

	if err := requireIdentity(req); err != nil {
		return nil, err
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.IsDeleted() {
		return nil, errors.InvalidState("cannot vote on a deleted message")
	}
	poll, ok := current.Poll()
	if !ok {
		return nil, errors.InvalidPoll("message is not a poll")
	}

	next, err := polls.Toggle(poll, optionID, req.ID)
	if err != nil {
		return nil, err
	}

	msg, err = s.store.Update(ctx, id, messages.Patch{Poll: &next})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.MessageVoted, req.ID, id)
	return msg, nil
}

func (s *Service) ToggleReaction(ctx context.Context, id int64, emoji string, req auth.Requester) (msg *messages.Message, err error) {
	defer s.observe("react", time.Now(), &err)

	if err := requireIdentity(req); err != nil {
		return nil, err
	}
	emoji, err = reactions.ValidateEmoji(emoji)
	if err != nil {
		return nil, err
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.IsDeleted() {
		return nil, errors.InvalidState("cannot react to a deleted message")
	}

	next := reactions.Toggle(current.Reactions, emoji, req.ID)
	msg, err = s.store.Update(ctx, id, messages.Patch{Reactions: &next})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.MessageReacted, req.ID, id)
	return msg, nil
}

// Get hides deleted messages from regular users.
func (s *Service) Get(ctx context.Context, id int64, req auth.Requester) (*messages.Message, error) {
	msg, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted() && !req.IsModerator() {
		return nil, errors.NotFound("message not found")
	}
	return msg, nil
}

// List returns messages oldest first. Only moderators may include deleted ones.
func (s *Service) List(ctx context.Context, req auth.Requester, opts messages.ListOptions) ([]*messages.Message, error) {
	if !req.IsModerator() {
		opts.IncludeDeleted = false
	}
	return s.store.List(ctx, opts)
}

// Snapshot is the full collection, deleted messages included, for the
// conversation view builder.
func (s *Service) Snapshot(ctx context.Context) ([]*messages.Message, error) {
	return s.store.List(ctx, messages.ListOptions{IncludeDeleted: true, Order: messages.OrderOldestFirst})
}

type Reply struct {
	ID          int64             `json:"id"`
	Unavailable bool              `json:"unavailable"`
	Message     *messages.Message `json:"-"`
}

// ResolveReply follows a weak reply reference. A missing target, or one the
// requester cannot see, is reported as unavailable rather than an error.
func (s *Service) ResolveReply(ctx context.Context, id int64, req auth.Requester) (Reply, error) {
	msg, err := s.store.Get(ctx, id)
	if errors.IsNotFound(err) {
		return Reply{ID: id, Unavailable: true}, nil
	}
	if err != nil {
		return Reply{}, err
	}
	if msg.IsDeleted() && !req.IsModerator() {
		return Reply{ID: id, Unavailable: true}, nil
	}
	return Reply{ID: id, Message: msg}, nil
}
