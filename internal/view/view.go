// Package view turns a raw message collection into what a chat screen
// renders: a pinned bucket plus day sections whose entries carry their
// position in a same-author run. It owns the visibility rule for deleted
// messages.
package view

import (
	"time"

	"github.com/Alexander-D-Karpov/huddle/internal/auth"
	"github.com/Alexander-D-Karpov/huddle/internal/messages"
	"github.com/Alexander-D-Karpov/huddle/internal/polls"
	"github.com/Alexander-D-Karpov/huddle/internal/reactions"
	"github.com/google/uuid"
)

type Position string

const (
	PositionSingle Position = "single"
	PositionStart  Position = "start"
	PositionMiddle Position = "middle"
	PositionEnd    Position = "end"
)

const (
	LabelToday     = "Today"
	LabelYesterday = "Yesterday"
	fullDateLayout = "January 2, 2006"
)

type Viewer struct {
	Requester auth.Requester
	Location  *time.Location
}

type ReplyPreview struct {
	ID                int64  `json:"id"`
	Unavailable       bool   `json:"unavailable"`
	AuthorDisplayName string `json:"author_display_name,omitempty"`
	Body              string `json:"body,omitempty"`
}

type PollView struct {
	polls.Result
	Voted []uuid.UUID `json:"voted"`
}

type Entry struct {
	Message   *messages.Message
	Position  Position
	Deleted   bool
	Mine      bool
	Reply     *ReplyPreview
	Poll      *PollView
	Reactions []reactions.Summary
}

type Day struct {
	Label   string
	Date    time.Time
	Entries []Entry
}

type Conversation struct {
	Pinned []Entry
	Days   []Day
}

const replySnippetLength = 120

// Build applies the visibility filter, extracts the pinned bucket in input
// order, then groups the rest by the viewer's calendar day and author runs.
func Build(msgs []*messages.Message, viewer Viewer, now time.Time) Conversation {
	loc := viewer.Location
	if loc == nil {
		loc = time.Local
	}
	moderator := viewer.Requester.IsModerator()

	byID := make(map[int64]*messages.Message, len(msgs))
	for _, m := range msgs {
		byID[m.ID] = m
	}

	conv := Conversation{Pinned: []Entry{}, Days: []Day{}}
	var timeline []*messages.Message

	for _, m := range msgs {
		if m.IsDeleted() && !moderator {
			continue
		}
		if m.IsPinned() && !m.IsDeleted() {
			e := newEntry(m, viewer, byID, moderator)
			e.Position = PositionSingle
			conv.Pinned = append(conv.Pinned, e)
			continue
		}
		timeline = append(timeline, m)
	}

	messages.SortByCreated(timeline, messages.OrderOldestFirst)

	today := startOfDay(now.In(loc))
	var current *Day
	for _, m := range timeline {
		day := startOfDay(m.CreatedAt.In(loc))
		if current == nil || !current.Date.Equal(day) {
			conv.Days = append(conv.Days, Day{Label: Label(day, today), Date: day})
			current = &conv.Days[len(conv.Days)-1]
		}
		current.Entries = append(current.Entries, newEntry(m, viewer, byID, moderator))
	}

	for i := range conv.Days {
		assignPositions(conv.Days[i].Entries)
	}
	return conv
}

func newEntry(m *messages.Message, viewer Viewer, byID map[int64]*messages.Message, moderator bool) Entry {
	e := Entry{
		Message:   m,
		Deleted:   m.IsDeleted(),
		Mine:      m.AuthorID == viewer.Requester.ID,
		Reactions: reactions.Summarize(m.Reactions, viewer.Requester.ID),
	}

	if m.ReplyToID != nil {
		e.Reply = previewReply(*m.ReplyToID, byID, moderator)
	}

	e.Poll = PollFor(m, viewer.Requester.ID)
	return e
}

// PollFor tallies m's poll and marks the options voter picked. It returns nil
// for messages without a poll.
func PollFor(m *messages.Message, voter uuid.UUID) *PollView {
	p, ok := m.Poll()
	if !ok {
		return nil
	}
	pv := &PollView{Result: polls.Tally(p), Voted: []uuid.UUID{}}
	for _, o := range p.Options {
		if polls.HasVoted(p, o.ID, voter) {
			pv.Voted = append(pv.Voted, o.ID)
		}
	}
	return pv
}

// previewReply resolves the weak reply reference against the collection.
func previewReply(id int64, byID map[int64]*messages.Message, moderator bool) *ReplyPreview {
	target, ok := byID[id]
	if !ok || (target.IsDeleted() && !moderator) {
		return &ReplyPreview{ID: id, Unavailable: true}
	}
	body := []rune(target.Body)
	if len(body) > replySnippetLength {
		body = append(body[:replySnippetLength], '…')
	}
	return &ReplyPreview{
		ID:                id,
		AuthorDisplayName: target.AuthorDisplayName,
		Body:              string(body),
	}
}

func joins(a, b *messages.Message) bool {
	return a.AuthorID == b.AuthorID && !a.IsPoll() && !b.IsPoll()
}

func assignPositions(entries []Entry) {
	for i := range entries {
		m := entries[i].Message
		prev := i > 0 && joins(entries[i-1].Message, m)
		next := i < len(entries)-1 && joins(m, entries[i+1].Message)

		switch {
		case prev && next:
			entries[i].Position = PositionMiddle
		case next:
			entries[i].Position = PositionStart
		case prev:
			entries[i].Position = PositionEnd
		default:
			entries[i].Position = PositionSingle
		}
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Label names day relative to today. Both must be local midnights.
func Label(day, today time.Time) string {
	// Round absorbs the 23h and 25h days around DST changes.
	daysAgo := int(today.Sub(day).Round(24*time.Hour) / (24 * time.Hour))
	switch {
	case daysAgo == 0:
		return LabelToday
	case daysAgo == 1:
		return LabelYesterday
	case daysAgo > 1 && daysAgo < 7:
		return day.Weekday().String()
	default:
		return day.Format(fullDateLayout)
	}
}
