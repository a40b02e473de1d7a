package messages

import (
	"time"

	"github.com/Alexander-D-Karpov/huddle/internal/common/errors"
	"github.com/Alexander-D-Karpov/huddle/internal/polls"
	"github.com/Alexander-D-Karpov/huddle/internal/reactions"
)

// Patch is a partial update of the mutable message fields. Nil fields are
// left untouched. Identity, kind and creation time cannot be patched.
type Patch struct {
	Body      *string
	EditedAt  *time.Time
	Delete    *Deletion
	Undelete  bool
	Pin       *Pin
	Unpin     bool
	Poll      *polls.Poll
	Reactions *[]reactions.Reaction
}

func (p Patch) Empty() bool {
	return p.Body == nil && p.EditedAt == nil && p.Delete == nil && !p.Undelete &&
		p.Pin == nil && !p.Unpin && p.Poll == nil && p.Reactions == nil
}

// Apply writes the patch onto m. It is shared by every Store implementation
// so the field rules are identical regardless of backend.
func Apply(m *Message, p Patch) error {
	if p.Delete != nil && p.Undelete {
		return errors.BadRequest("patch both deletes and restores")
	}
	if p.Pin != nil && p.Unpin {
		return errors.BadRequest("patch both pins and unpins")
	}
	if p.Poll != nil && !m.IsPoll() {
		return errors.InvalidPoll("message is not a poll")
	}

	if p.Body != nil {
		m.Body = *p.Body
	}
	if p.EditedAt != nil {
		t := *p.EditedAt
		m.EditedAt = &t
	}
	if p.Delete != nil {
		d := *p.Delete
		m.Deletion = &d
		m.Pin = nil
	}
	if p.Undelete {
		m.Deletion = nil
	}
	if p.Pin != nil {
		if m.IsDeleted() {
			return errors.InvalidState("cannot pin a deleted message")
		}
		pin := *p.Pin
		m.Pin = &pin
	}
	if p.Unpin {
		m.Pin = nil
	}
	if p.Poll != nil {
		m.Content = PollContent{Poll: p.Poll.Clone()}
	}
	if p.Reactions != nil {
		m.Reactions = reactions.Clone(*p.Reactions)
	}
	return nil
}
