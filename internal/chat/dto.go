package chat

import (
	"strconv"
	"time"

	"github.com/Alexander-D-Karpov/huddle/internal/auth"
	"github.com/Alexander-D-Karpov/huddle/internal/messages"
	"github.com/Alexander-D-Karpov/huddle/internal/reactions"
	"github.com/Alexander-D-Karpov/huddle/internal/view"
	"github.com/google/uuid"
)

type PollResponse = view.PollView

type VoiceResponse struct {
	URL             string `json:"url"`
	DurationSeconds int    `json:"duration_seconds"`
}

type MessageResponse struct {
	ID                string                `json:"id"`
	AuthorID          uuid.UUID             `json:"author_id"`
	AuthorDisplayName string                `json:"author_display_name"`
	Kind              messages.Kind         `json:"kind"`
	Body              string                `json:"body"`
	Attachments       []messages.Attachment `json:"attachments"`
	ReplyToID         *string               `json:"reply_to_id,omitempty"`
	Poll              *PollResponse         `json:"poll,omitempty"`
	Voice             *VoiceResponse        `json:"voice,omitempty"`
	Reactions         []reactions.Summary   `json:"reactions"`
	CreatedAt         time.Time             `json:"created_at"`
	EditedAt          *time.Time            `json:"edited_at,omitempty"`
	Deleted           bool                  `json:"deleted"`
	DeletedAt         *time.Time            `json:"deleted_at,omitempty"`
	DeletedBy         *uuid.UUID            `json:"deleted_by,omitempty"`
	Pinned            bool                  `json:"pinned"`
	PinnedAt          *time.Time            `json:"pinned_at,omitempty"`
	PinnedBy          *uuid.UUID            `json:"pinned_by,omitempty"`
}

// formatID renders snowflake ids as strings; they exceed the integer range
// JavaScript clients can represent exactly.
func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// NewMessageResponse renders m for viewer; poll votes and reactions are
// summarised from the viewer's point of view.
func NewMessageResponse(m *messages.Message, viewer auth.Requester) MessageResponse {
	return messageResponse(m, reactions.Summarize(m.Reactions, viewer.ID), view.PollFor(m, viewer.ID))
}

func messageResponse(m *messages.Message, summary []reactions.Summary, poll *PollResponse) MessageResponse {
	resp := MessageResponse{
		ID:                formatID(m.ID),
		AuthorID:          m.AuthorID,
		AuthorDisplayName: m.AuthorDisplayName,
		Kind:              m.Kind(),
		Body:              m.Body,
		Attachments:       m.Attachments,
		Reactions:         summary,
		Poll:              poll,
		CreatedAt:         m.CreatedAt,
		EditedAt:          m.EditedAt,
		Deleted:           m.IsDeleted(),
		Pinned:            m.IsPinned(),
	}
	if resp.Reactions == nil {
		resp.Reactions = []reactions.Summary{}
	}
	if resp.Attachments == nil {
		resp.Attachments = []messages.Attachment{}
	}
	if m.ReplyToID != nil {
		s := formatID(*m.ReplyToID)
		resp.ReplyToID = &s
	}
	if m.Deletion != nil {
		resp.DeletedAt = &m.Deletion.At
		resp.DeletedBy = &m.Deletion.By
	}
	if m.Pin != nil {
		resp.PinnedAt = &m.Pin.At
		resp.PinnedBy = &m.Pin.By
	}

	if v, ok := m.Content.(messages.Voice); ok {
		resp.Voice = &VoiceResponse{URL: v.AudioURL, DurationSeconds: v.DurationSeconds}
	}
	return resp
}

type EntryResponse struct {
	MessageResponse
	Position view.Position      `json:"position"`
	Mine     bool               `json:"mine"`
	Reply    *view.ReplyPreview `json:"reply,omitempty"`
}

type DayResponse struct {
	Label   string          `json:"label"`
	Date    string          `json:"date"`
	Entries []EntryResponse `json:"entries"`
}

type ConversationResponse struct {
	Pinned []EntryResponse `json:"pinned"`
	Days   []DayResponse   `json:"days"`
}

// newEntryResponse reuses the poll and reaction views the builder already
// computed for the entry's viewer.
func newEntryResponse(e view.Entry) EntryResponse {
	return EntryResponse{
		MessageResponse: messageResponse(e.Message, e.Reactions, e.Poll),
		Position:        e.Position,
		Mine:            e.Mine,
		Reply:           e.Reply,
	}
}

func NewConversationResponse(c view.Conversation) ConversationResponse {
	resp := ConversationResponse{
		Pinned: make([]EntryResponse, 0, len(c.Pinned)),
		Days:   make([]DayResponse, 0, len(c.Days)),
	}
	for _, e := range c.Pinned {
		resp.Pinned = append(resp.Pinned, newEntryResponse(e))
	}
	for _, d := range c.Days {
		day := DayResponse{
			Label:   d.Label,
			Date:    d.Date.Format(time.DateOnly),
			Entries: make([]EntryResponse, 0, len(d.Entries)),
		}
		for _, e := range d.Entries {
			day.Entries = append(day.Entries, newEntryResponse(e))
		}
		resp.Days = append(resp.Days, day)
	}
	return resp
}
