// Package polls holds the option list, vote toggling and tally rules for
// poll-typed messages. All functions are pure: they return new values and
// never mutate their input, so the caller decides when to write to the store.
package polls

import (
	"math"
	"slices"
	"strings"

	"github.com/Alexander-D-Karpov/huddle/internal/common/errors"
	"github.com/google/uuid"
)

const (
	MinOptions = 2
	MaxOptions = 6

	maxOptionLength = 200
)

type Option struct {
	ID       uuid.UUID   `json:"id"`
	Text     string      `json:"text"`
	VoterIDs []uuid.UUID `json:"voter_ids"`
}

// Poll is fixed once posted. There is no way to add options to an existing
// Poll; use a Composer before submission.
type Poll struct {
	Options []Option `json:"options"`
}

// New validates option texts and builds a poll with fresh option ids.
// Blank texts are ignored.
func New(texts []string) (Poll, error) {
	var options []Option
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if len([]rune(t)) > maxOptionLength {
			return Poll{}, errors.InvalidPoll("poll option is too long")
		}
		options = append(options, Option{ID: uuid.New(), Text: t, VoterIDs: []uuid.UUID{}})
	}

	if len(options) < MinOptions {
		return Poll{}, errors.InvalidPoll("a poll needs at least 2 options")
	}
	if len(options) > MaxOptions {
		return Poll{}, errors.InvalidPoll("a poll can have at most 6 options")
	}

	return Poll{Options: options}, nil
}

func (p Poll) Option(id uuid.UUID) (Option, bool) {
	for _, o := range p.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

func (p Poll) Clone() Poll {
	out := Poll{Options: make([]Option, len(p.Options))}
	for i, o := range p.Options {
		out.Options[i] = Option{ID: o.ID, Text: o.Text, VoterIDs: slices.Clone(o.VoterIDs)}
		if out.Options[i].VoterIDs == nil {
			out.Options[i].VoterIDs = []uuid.UUID{}
		}
	}
	return out
}

// Toggle adds voter to the option, or removes them if already present.
// A voter may hold votes on several options at once; exclusivity is not
// enforced.
func Toggle(p Poll, optionID, voter uuid.UUID) (Poll, error) {
	out := p.Clone()
	for i := range out.Options {
		o := &out.Options[i]
		if o.ID != optionID {
			continue
		}
		if idx := slices.Index(o.VoterIDs, voter); idx >= 0 {
			o.VoterIDs = slices.Delete(o.VoterIDs, idx, idx+1)
		} else {
			o.VoterIDs = append(o.VoterIDs, voter)
		}
		return out, nil
	}
	return Poll{}, errors.InvalidPoll("unknown poll option")
}

func HasVoted(p Poll, optionID, voter uuid.UUID) bool {
	o, ok := p.Option(optionID)
	if !ok {
		return false
	}
	return slices.Contains(o.VoterIDs, voter)
}

type OptionTally struct {
	ID      uuid.UUID `json:"id"`
	Text    string    `json:"text"`
	Votes   int       `json:"votes"`
	Percent int       `json:"percent"`
}

type Result struct {
	Options    []OptionTally `json:"options"`
	TotalVotes int           `json:"total_votes"`
}

// Tally counts votes per option. Percentages are rounded to the nearest
// integer and are all zero when nobody voted.
func Tally(p Poll) Result {
	total := 0
	for _, o := range p.Options {
		total += len(o.VoterIDs)
	}

	res := Result{Options: make([]OptionTally, len(p.Options)), TotalVotes: total}
	for i, o := range p.Options {
		votes := len(o.VoterIDs)
		pct := 0
		if total > 0 {
			pct = int(math.Round(float64(votes) / float64(total) * 100))
		}
		res.Options[i] = OptionTally{ID: o.ID, Text: o.Text, Votes: votes, Percent: pct}
	}
	return res
}
