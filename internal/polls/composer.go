package polls

import "github.com/Alexander-D-Karpov/huddle/internal/common/errors"

// Composer is an in-progress poll before it is posted. It starts with the
// minimum number of empty slots.
type Composer struct {
	slots []string
}

func NewComposer() *Composer {
	return &Composer{slots: make([]string, MinOptions)}
}

func (c *Composer) Len() int { return len(c.slots) }

func (c *Composer) Add(text string) error {
	if len(c.slots) >= MaxOptions {
		return errors.InvalidPoll("a poll can have at most 6 options")
	}
	c.slots = append(c.slots, text)
	return nil
}

func (c *Composer) Set(i int, text string) error {
	if i < 0 || i >= len(c.slots) {
		return errors.BadRequest("option index out of range")
	}
	c.slots[i] = text
	return nil
}

func (c *Composer) Remove(i int) error {
	if i < 0 || i >= len(c.slots) {
		return errors.BadRequest("option index out of range")
	}
	if len(c.slots) <= MinOptions {
		return errors.InvalidPoll("a poll needs at least 2 options")
	}
	c.slots = append(c.slots[:i], c.slots[i+1:]...)
	return nil
}

func (c *Composer) Options() []string {
	out := make([]string, len(c.slots))
	copy(out, c.slots)
	return out
}

func (c *Composer) Build() (Poll, error) {
	return New(c.slots)
}
