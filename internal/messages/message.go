package messages

import (
	"path"
	"slices"
	"strings"
	"time"

	"github.com/Alexander-D-Karpov/huddle/internal/polls"
	"github.com/Alexander-D-Karpov/huddle/internal/reactions"
	"github.com/google/uuid"
)

type Kind string

const (
	KindPlain Kind = "plain"
	KindPoll  Kind = "poll"
	KindVoice Kind = "voice"
)

func (k Kind) Valid() bool {
	switch k {
	case KindPlain, KindPoll, KindVoice:
		return true
	}
	return false
}

// Content is the kind-specific part of a message. Each variant carries only
// the fields its kind needs, so a plain message cannot hold poll options.
type Content interface {
	Kind() Kind
}

type Plain struct{}

func (Plain) Kind() Kind { return KindPlain }

type PollContent struct {
	Poll polls.Poll
}

func (PollContent) Kind() Kind { return KindPoll }

type Voice struct {
	AudioURL        string
	DurationSeconds int
}

func (Voice) Kind() Kind { return KindVoice }

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaFile  MediaType = "file"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

type Attachment struct {
	URL       string    `json:"url"`
	MediaType MediaType `json:"media_type"`
}

// NewAttachment sniffs the media type from the file extension only; the URI
// is otherwise opaque.
func NewAttachment(uri string) Attachment {
	return Attachment{URL: uri, MediaType: SniffMediaType(uri)}
}

func SniffMediaType(uri string) MediaType {
	p := uri
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if slices.Contains(imageExtensions, strings.ToLower(path.Ext(p))) {
		return MediaImage
	}
	return MediaFile
}

type Deletion struct {
	By uuid.UUID
	At time.Time
}

type Pin struct {
	By uuid.UUID
	At time.Time
}

type Message struct {
	ID                int64
	AuthorID          uuid.UUID
	AuthorDisplayName string
	Body              string
	Content           Content
	Attachments       []Attachment
	ReplyToID         *int64
	Reactions         []reactions.Reaction
	CreatedAt         time.Time
	EditedAt          *time.Time
	Deletion          *Deletion
	Pin               *Pin
}

func (m *Message) Kind() Kind {
	if m.Content == nil {
		return KindPlain
	}
	return m.Content.Kind()
}

func (m *Message) IsPoll() bool    { return m.Kind() == KindPoll }
func (m *Message) IsEdited() bool  { return m.EditedAt != nil }
func (m *Message) IsDeleted() bool { return m.Deletion != nil }
func (m *Message) IsPinned() bool  { return m.Pin != nil }

// Poll returns the poll of a poll-typed message.
func (m *Message) Poll() (polls.Poll, bool) {
	pc, ok := m.Content.(PollContent)
	if !ok {
		return polls.Poll{}, false
	}
	return pc.Poll, true
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	out := *m
	out.Attachments = slices.Clone(m.Attachments)
	out.Reactions = reactions.Clone(m.Reactions)
	if m.ReplyToID != nil {
		id := *m.ReplyToID
		out.ReplyToID = &id
	}
	if m.EditedAt != nil {
		t := *m.EditedAt
		out.EditedAt = &t
	}
	if m.Deletion != nil {
		d := *m.Deletion
		out.Deletion = &d
	}
	if m.Pin != nil {
		p := *m.Pin
		out.Pin = &p
	}
	if pc, ok := m.Content.(PollContent); ok {
		out.Content = PollContent{Poll: pc.Poll.Clone()}
	}
	return &out
}
