package chat

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Alexander-D-Karpov/huddle/internal/common/errors"
	"github.com/Alexander-D-Karpov/huddle/internal/common/httpx"
	"github.com/Alexander-D-Karpov/huddle/internal/messages"
	"github.com/Alexander-D-Karpov/huddle/internal/view"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type Handler struct {
	service  *Service
	location *time.Location
	now      func() time.Time
}

func NewHandler(service *Service, location *time.Location) *Handler {
	if location == nil {
		location = time.Local
	}
	return &Handler{
		service:  service,
		location: location,
		now:      time.Now,
	}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/messages", h.postMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages", h.listMessages).Methods(http.MethodGet)

	r.HandleFunc("/messages/{id}", h.getMessage).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id}", h.editMessage).Methods(http.MethodPatch)
	r.HandleFunc("/messages/{id}", h.deleteMessage).Methods(http.MethodDelete)
	r.HandleFunc("/messages/{id}/reply", h.getReply).Methods(http.MethodGet)

	r.HandleFunc("/messages/{id}/votes", h.vote).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}/reactions", h.react).Methods(http.MethodPost)

	r.HandleFunc("/conversation", h.conversation).Methods(http.MethodGet)
}

type postMessageRequest struct {
	Body          string        `json:"body"`
	Kind          messages.Kind `json:"kind"`
	Attachments   []string      `json:"attachments"`
	ReplyToID     string        `json:"reply_to_id"`
	PollOptions   []string      `json:"poll_options"`
	VoiceURL      string        `json:"voice_url"`
	VoiceDuration int           `json:"voice_duration"`
}

func (h *Handler) postMessage(w http.ResponseWriter, r *http.Request) {
	req, err := httpx.Requester(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	var body postMessageRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	pr := PostRequest{
		Body:          body.Body,
		Kind:          body.Kind,
		Attachments:   body.Attachments,
		PollOptions:   body.PollOptions,
		VoiceURL:      body.VoiceURL,
		VoiceDuration: body.VoiceDuration,
	}
	if body.ReplyToID != "" {
		id, err := strconv.ParseInt(body.ReplyToID, 10, 64)
		if err != nil {
			httpx.WriteError(w, r, errors.BadRequest("invalid reply_to_id"))
			return
		}
		pr.ReplyToID = &id
	}

	msg, err := h.service.Post(r.Context(), req, pr)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, NewMessageResponse(msg, req))
}

type listMessagesResponse struct {
	Messages []MessageResponse `json:"messages"`
	HasMore  bool              `json:"has_more"`
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	req, err := httpx.Requester(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	limit, err := httpx.QueryInt(r, "limit", defaultListLimit)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if limit == 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	q := r.URL.Query()
	opts := messages.ListOptions{
		IncludeDeleted: q.Get("include_deleted") == "true",
		PinnedOnly:     q.Get("pinned") == "true",
		Limit:          limit,
	}
	if q.Get("order") == "newest" {
		opts.Order = messages.OrderNewestFirst
	}

	list, err := h.service.List(r.Context(), req, opts)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	resp := listMessagesResponse{
		Messages: make([]MessageResponse, 0, len(list)),
		HasMore:  len(list) == limit,
	}
	for _, m := range list {
		resp.Messages = append(resp.Messages, NewMessageResponse(m, req))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) getMessage(w http.ResponseWriter, r *http.Request) {
	req, err := httpx.Requester(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	id, err := httpx.PathInt64(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	msg, err := h.service.Get(r.Context(), id, req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, NewMessageResponse(msg, req))
}

type editMessageRequest struct {
	Body string `json:"body"`
}

func (h *Handler) editMessage(w http.ResponseWriter, r *http.Request) {
	req, err := httpx.Requester(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	id, err := httpx.PathInt64(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	var body editMessageRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	msg, err := h.service.Edit(r.Context(), id, req, body.Body)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, NewMessageResponse(msg, req))
}

func (h *Handler) deleteMessage(w http.ResponseWriter, r *http.Request) {
	req, err := httpx.Requester(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	id, err := httpx.PathInt64(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	msg, err := h.service.SoftDelete(r.Context(), id, req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, NewMessageResponse(msg, req))
}

type replyResponse struct {
	ID          string           `json:"id"`
	Unavailable bool             `json:"unavailable"`
	Message     *MessageResponse `json:"message,omitempty"`
}

// getReply resolves the message the given message replies to.
func (h *Handler) getReply(w http.ResponseWriter, r *http.Request) {
	req, err := httpx.Requester(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	id, err := httpx.PathInt64(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	msg, err := h.service.Get(r.Context(), id, req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if msg.ReplyToID == nil {
		httpx.WriteError(w, r, errors.NotFound("message is not a reply"))
		return
	}

	reply, err := h.service.ResolveReply(r.Context(), *msg.ReplyToID, req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	resp := replyResponse{ID: formatID(reply.ID), Unavailable: reply.Unavailable}
	if reply.Message != nil {
		m := NewMessageResponse(reply.Message, req)
		resp.Message = &m
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

type voteRequest struct {
	OptionID uuid.UUID `json:"option_id"`
}

func (h *Handler) vote(w http.ResponseWriter, r *http.Request) {
	req, err := httpx.Requester(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	id, err := httpx.PathInt64(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	var body voteRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	msg, err := h.service.Vote(r.Context(), id, body.OptionID, req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, NewMessageResponse(msg, req))
}

type reactRequest struct {
	Emoji string `json:"emoji"`
}

func (h *Handler) react(w http.ResponseWriter, r *http.Request) {
	req, err := httpx.Requester(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	id, err := httpx.PathInt64(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	var body reactRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	msg, err := h.service.ToggleReaction(r.Context(), id, body.Emoji, req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, NewMessageResponse(msg, req))
}

func (h *Handler) conversation(w http.ResponseWriter, r *http.Request) {
	req, err := httpx.Requester(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	all, err := h.service.Snapshot(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	conv := view.Build(all, view.Viewer{Requester: req, Location: h.location}, h.now())
	httpx.WriteJSON(w, http.StatusOK, NewConversationResponse(conv))
}
