// Package reactions aggregates per-emoji reaction sets on a message.
package reactions

import (
	"slices"
	"strings"

	"github.com/Alexander-D-Karpov/huddle/internal/common/errors"
	"github.com/google/uuid"
)

const maxEmojiBytes = 32

// Reaction is one entry per distinct emoji in use on a message. UserIDs is a
// set: a user appears at most once, and an entry never exists with no users.
type Reaction struct {
	Emoji   string      `json:"emoji"`
	UserIDs []uuid.UUID `json:"user_ids"`
}

type Summary struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
	Mine  bool   `json:"mine"`
}

// ValidateEmoji returns the emoji in the form it is stored under.
func ValidateEmoji(emoji string) (string, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return "", errors.BadRequest("emoji is required")
	}
	if len(emoji) > maxEmojiBytes {
		return "", errors.BadRequest("emoji is too long")
	}
	return emoji, nil
}

func Clone(list []Reaction) []Reaction {
	out := make([]Reaction, len(list))
	for i, r := range list {
		out[i] = Reaction{Emoji: r.Emoji, UserIDs: slices.Clone(r.UserIDs)}
	}
	return out
}

// Toggle flips user's membership in the emoji entry and returns the new list.
// The input list is left untouched.
func Toggle(list []Reaction, emoji string, user uuid.UUID) []Reaction {
	emoji = strings.TrimSpace(emoji)
	out := Clone(list)

	for i := range out {
		if out[i].Emoji != emoji {
			continue
		}
		if idx := slices.Index(out[i].UserIDs, user); idx >= 0 {
			out[i].UserIDs = slices.Delete(out[i].UserIDs, idx, idx+1)
			if len(out[i].UserIDs) == 0 {
				out = slices.Delete(out, i, i+1)
			}
		} else {
			out[i].UserIDs = append(out[i].UserIDs, user)
		}
		return out
	}

	return append(out, Reaction{Emoji: emoji, UserIDs: []uuid.UUID{user}})
}

func HasReacted(list []Reaction, emoji string, user uuid.UUID) bool {
	emoji = strings.TrimSpace(emoji)
	for _, r := range list {
		if r.Emoji == emoji {
			return slices.Contains(r.UserIDs, user)
		}
	}
	return false
}

// Summarize returns display counts in entry order with the viewer's own
// reactions flagged.
func Summarize(list []Reaction, viewer uuid.UUID) []Summary {
	out := make([]Summary, 0, len(list))
	for _, r := range list {
		if len(r.UserIDs) == 0 {
			continue
		}
		out = append(out, Summary{
			Emoji: r.Emoji,
			Count: len(r.UserIDs),
			Mine:  slices.Contains(r.UserIDs, viewer),
		})
	}
	return out
}
