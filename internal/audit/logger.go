package audit

import (
	"context"
	"time"

	"github.com/Alexander-D-Karpov/huddle/internal/common/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Action string

const (
	ActionMessageDelete  Action = "message.delete"
	ActionMessageRestore Action = "message.restore"
	ActionMessagePin     Action = "message.pin"
	ActionMessageUnpin   Action = "message.unpin"
	ActionUserBan        Action = "user.ban"
	ActionUserUnban      Action = "user.unban"
)

type Event struct {
	ID           uuid.UUID
	ActorID      uuid.UUID
	Action       Action
	ResourceID   string
	ResourceType string
	Metadata     map[string]interface{}
	Timestamp    time.Time
}

// Logger writes moderation actions as structured log lines on a dedicated
// "audit" logger so they can be routed separately.
type Logger struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewLogger(logger *zap.Logger) *Logger {
	return &Logger{
		logger: logger.Named("audit"),
		now:    time.Now,
	}
}

func (al *Logger) Log(ctx context.Context, event Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = al.now()
	}

	fields := []zap.Field{
		zap.String("event_id", event.ID.String()),
		zap.String("actor_id", event.ActorID.String()),
		zap.String("action", string(event.Action)),
		zap.String("resource_id", event.ResourceID),
		zap.String("resource_type", event.ResourceType),
		zap.Time("timestamp", event.Timestamp),
	}
	if requestID := logging.GetRequestID(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if correlationID := logging.GetCorrelationID(ctx); correlationID != "" {
		fields = append(fields, zap.String("correlation_id", correlationID))
	}
	if len(event.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", event.Metadata))
	}

	al.logger.Info("audit event", fields...)
}

func (al *Logger) LogMessage(ctx context.Context, actor uuid.UUID, action Action, messageID string) {
	al.Log(ctx, Event{
		ActorID:      actor,
		Action:       action,
		ResourceID:   messageID,
		ResourceType: "message",
	})
}

func (al *Logger) LogBan(ctx context.Context, actor, target, banID uuid.UUID, reason string, expiresAt *time.Time) {
	meta := map[string]interface{}{
		"ban_id":    banID.String(),
		"reason":    reason,
		"permanent": expiresAt == nil,
	}
	if expiresAt != nil {
		meta["expires_at"] = expiresAt.UTC().Format(time.RFC3339)
	}
	al.Log(ctx, Event{
		ActorID:      actor,
		Action:       ActionUserBan,
		ResourceID:   target.String(),
		ResourceType: "user",
		Metadata:     meta,
	})
}

func (al *Logger) LogUnban(ctx context.Context, actor, target, banID uuid.UUID) {
	al.Log(ctx, Event{
		ActorID:      actor,
		Action:       ActionUserUnban,
		ResourceID:   target.String(),
		ResourceType: "user",
		Metadata:     map[string]interface{}{"ban_id": banID.String()},
	})
}
