package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	MessagePosted   Type = "message.posted"
	MessageEdited   Type = "message.edited"
	MessageDeleted  Type = "message.deleted"
	MessageRestored Type = "message.restored"
	MessagePinned   Type = "message.pinned"
	MessageUnpinned Type = "message.unpinned"
	MessageVoted    Type = "message.voted"
	MessageReacted  Type = "message.reacted"
	UserBanned      Type = "ban.created"
	UserUnbanned    Type = "ban.lifted"
)

// Event tells subscribers that the conversation changed. It carries ids only;
// subscribers re-read the store for the authoritative state.
type Event struct {
	ID        uuid.UUID  `json:"id"`
	Type      Type       `json:"type"`
	ActorID   uuid.UUID  `json:"actor_id"`
	MessageID int64      `json:"message_id,omitempty"`
	BanID     *uuid.UUID `json:"ban_id,omitempty"`
	At        time.Time  `json:"at"`
}

func New(t Type, actor uuid.UUID, at time.Time) Event {
	return Event{
		ID:      uuid.New(),
		Type:    t,
		ActorID: actor,
		At:      at,
	}
}

func (e Event) ForMessage(id int64) Event {
	e.MessageID = id
	return e
}

func (e Event) ForBan(id uuid.UUID) Event {
	e.BanID = &id
	return e
}

// Broker fans events out to subscribers. Delivery is best effort: a slow
// subscriber loses events rather than blocking publishers.
type Broker interface {
	Publish(ctx context.Context, e Event) error
	// Subscribe returns a channel closed when ctx is done or the broker shuts down.
	Subscribe(ctx context.Context) (<-chan Event, error)
	Close() error
}
