package stream

import (
	"context"
	"net/http"
	"time"

	"github.com/Alexander-D-Karpov/huddle/internal/auth"
	"github.com/Alexander-D-Karpov/huddle/internal/chat"
	"github.com/Alexander-D-Karpov/huddle/internal/common/httpx"
	"github.com/Alexander-D-Karpov/huddle/internal/common/logging"
	"github.com/Alexander-D-Karpov/huddle/internal/messages"
	"github.com/Alexander-D-Karpov/huddle/internal/view"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 4096
)

type Metrics interface {
	StreamOpened()
	StreamClosed()
}

// Frame is one push to the client: the whole conversation as the viewer
// should see it right now.
type Frame struct {
	Type         string                    `json:"type"`
	Reason       string                    `json:"reason"`
	At           time.Time                 `json:"at"`
	Conversation chat.ConversationResponse `json:"conversation"`
}

type Handler struct {
	feed     messages.Feed
	location *time.Location
	metrics  Metrics
	upgrader websocket.Upgrader
	now      func() time.Time
}

func NewHandler(feed messages.Feed, location *time.Location, metrics Metrics) *Handler {
	if location == nil {
		location = time.Local
	}
	return &Handler{
		feed:     feed,
		location: location,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		now: time.Now,
	}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/stream", h.Serve).Methods(http.MethodGet)
}

// Serve upgrades the connection and pushes a Frame for every feed snapshot
// until the client goes away.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	req, err := httpx.Requester(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	logger := logging.FromContext(r.Context())

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	snapshots, err := h.feed.Subscribe(ctx)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.StreamOpened()
		defer h.metrics.StreamClosed()
	}
	logger.Info("stream connection established")

	go h.readPump(conn, cancel)
	h.writePump(ctx, conn, snapshots, req, logger)

	logger.Info("stream connection closed")
}

// readPump only services control frames; clients never send data.
func (h *Handler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writePump(ctx context.Context, conn *websocket.Conn, snapshots <-chan messages.Snapshot, req auth.Requester, logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case snap, ok := <-snapshots:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"), time.Now().Add(writeWait))
				return
			}
			frame := h.frame(snap, req)
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame); err != nil {
				logger.Debug("stream write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) frame(snap messages.Snapshot, req auth.Requester) Frame {
	conv := view.Build(snap.Messages, view.Viewer{Requester: req, Location: h.location}, h.now())
	return Frame{
		Type:         "conversation",
		Reason:       snap.Reason,
		At:           snap.At,
		Conversation: chat.NewConversationResponse(conv),
	}
}
