package admin

import (
	"net/http"

	"github.com/Alexander-D-Karpov/huddle/internal/bans"
	"github.com/Alexander-D-Karpov/huddle/internal/chat"
	"github.com/Alexander-D-Karpov/huddle/internal/common/httpx"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the console under r, normally the /api/v1/admin subrouter.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/messages/{id}", h.deleteMessage).Methods(http.MethodDelete)
	r.HandleFunc("/messages/{id}/restore", h.restoreMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}/pin", h.pinMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}/pin", h.unpinMessage).Methods(http.MethodDelete)

	r.HandleFunc("/bans", h.listBans).Methods(http.MethodGet)
	r.HandleFunc("/bans", h.banUser).Methods(http.MethodPost)
	r.HandleFunc("/bans/{id}", h.unbanUser).Methods(http.MethodDelete)
	r.HandleFunc("/users/{id}/status", h.userStatus).Methods(http.MethodGet)
}

func (h *Handler) messageAction(w http.ResponseWriter, r *http.Request, op messageOp) {
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

	msg, err := op(r.Context(), id, req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, chat.NewMessageResponse(msg, req))
}

func (h *Handler) deleteMessage(w http.ResponseWriter, r *http.Request) {
	h.messageAction(w, r, h.service.DeleteMessage)
}

func (h *Handler) restoreMessage(w http.ResponseWriter, r *http.Request) {
	h.messageAction(w, r, h.service.RestoreMessage)
}

func (h *Handler) pinMessage(w http.ResponseWriter, r *http.Request) {
	h.messageAction(w, r, h.service.PinMessage)
}

func (h *Handler) unpinMessage(w http.ResponseWriter, r *http.Request) {
	h.messageAction(w, r, h.service.UnpinMessage)
}

type banRequest struct {
	UserID        uuid.UUID `json:"user_id"`
	Reason        string    `json:"reason"`
	Permanent     bool      `json:"permanent"`
	DurationHours int       `json:"duration_hours"`
}

func (h *Handler) banUser(w http.ResponseWriter, r *http.Request) {
	req, err := httpx.Requester(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	var body banRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	ban, err := h.service.BanUser(r.Context(), req, bans.BanRequest{
		TargetID:      body.UserID,
		Reason:        body.Reason,
		Permanent:     body.Permanent,
		DurationHours: body.DurationHours,
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, ban)
}

func (h *Handler) unbanUser(w http.ResponseWriter, r *http.Request) {
	req, err := httpx.Requester(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	banID, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	ban, err := h.service.UnbanUser(r.Context(), banID, req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ban)
}

func (h *Handler) listBans(w http.ResponseWriter, r *http.Request) {
	req, err := httpx.Requester(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	list, err := h.service.ListActiveBans(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"bans": list})
}

func (h *Handler) userStatus(w http.ResponseWriter, r *http.Request) {
	req, err := httpx.Requester(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	userID, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	st, err := h.service.UserStatus(r.Context(), userID, req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, st)
}
