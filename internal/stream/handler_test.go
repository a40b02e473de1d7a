package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Alexander-D-Karpov/huddle/internal/auth"
	"github.com/Alexander-D-Karpov/huddle/internal/messages"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanFeed struct {
	ch chan messages.Snapshot
}

func (f *chanFeed) Subscribe(context.Context) (<-chan messages.Snapshot, error) {
	return f.ch, nil
}

type streamCounter struct {
	open atomic.Int64
}

func (c *streamCounter) StreamOpened() { c.open.Add(1) }
func (c *streamCounter) StreamClosed() { c.open.Add(-1) }

func withRequester(req auth.Requester, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if req.Valid() {
			r = r.WithContext(auth.WithRequester(r.Context(), req))
		}
		next.ServeHTTP(w, r)
	})
}

func newServer(t *testing.T, feed messages.Feed, req auth.Requester, counter *streamCounter) string {
	t.Helper()
	router := mux.NewRouter()
	NewHandler(feed, time.UTC, counter).Register(router)
	srv := httptest.NewServer(withRequester(req, router))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
}

func TestStreamPushesViewerSpecificConversation(t *testing.T) {
	author, mod := uuid.New(), uuid.New()
	now := time.Now().UTC()
	snapshot := messages.Snapshot{
		Reason: "message.deleted",
		At:     now,
		Messages: []*messages.Message{
			{ID: 1, AuthorID: author, Body: "kept", Content: messages.Plain{}, CreatedAt: now.Add(-2 * time.Minute)},
			{ID: 2, AuthorID: author, Body: "gone", Content: messages.Plain{}, CreatedAt: now.Add(-time.Minute),
				Deletion: &messages.Deletion{By: mod, At: now}},
		},
	}

	tests := []struct {
		name    string
		role    auth.Role
		entries int
	}{
		{name: "regular viewer", role: auth.RoleRegular, entries: 1},
		{name: "moderator", role: auth.RoleModerator, entries: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed := &chanFeed{ch: make(chan messages.Snapshot, 1)}
			counter := &streamCounter{}
			url := newServer(t, feed, auth.Requester{ID: uuid.New(), Role: tt.role}, counter)

			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			require.NoError(t, err)
			defer conn.Close()

			feed.ch <- snapshot

			var frame Frame
			require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
			require.NoError(t, conn.ReadJSON(&frame))

			assert.Equal(t, "conversation", frame.Type)
			assert.Equal(t, "message.deleted", frame.Reason)
			require.Len(t, frame.Conversation.Days, 1)
			assert.Len(t, frame.Conversation.Days[0].Entries, tt.entries)
			assert.Equal(t, int64(1), counter.open.Load())
		})
	}
}

func TestStreamClosesWithFeed(t *testing.T) {
	feed := &chanFeed{ch: make(chan messages.Snapshot)}
	counter := &streamCounter{}
	url := newServer(t, feed, auth.Requester{ID: uuid.New()}, counter)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	close(feed.ch)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
	assert.Eventually(t, func() bool { return counter.open.Load() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStreamRequiresIdentity(t *testing.T) {
	feed := &chanFeed{ch: make(chan messages.Snapshot)}
	url := newServer(t, feed, auth.Requester{}, &streamCounter{})

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
