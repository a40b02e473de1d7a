package messages

import (
	"testing"
	"time"

	"github.com/Alexander-D-Karpov/huddle/internal/polls"
	"github.com/Alexander-D-Karpov/huddle/internal/reactions"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSniffMediaType(t *testing.T) {
	tests := []struct {
		uri  string
		want MediaType
	}{
		{"https://cdn.example.com/a.jpg", MediaImage},
		{"https://cdn.example.com/a.JPEG", MediaImage},
		{"https://cdn.example.com/a.Png?size=large", MediaImage},
		{"https://cdn.example.com/anim.gif#frag", MediaImage},
		{"https://cdn.example.com/pic.webp", MediaImage},
		{"https://cdn.example.com/notes.pdf", MediaFile},
		{"https://cdn.example.com/jpg", MediaFile},
		{"https://cdn.example.com/archive.jpg.zip", MediaFile},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			assert.Equal(t, tt.want, SniffMediaType(tt.uri))
		})
	}
}

func TestKindFromContent(t *testing.T) {
	p, err := polls.New([]string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, KindPlain, (&Message{}).Kind())
	assert.Equal(t, KindPlain, (&Message{Content: Plain{}}).Kind())
	assert.Equal(t, KindVoice, (&Message{Content: Voice{AudioURL: "x"}}).Kind())

	m := &Message{Content: PollContent{Poll: p}}
	assert.Equal(t, KindPoll, m.Kind())
	assert.True(t, m.IsPoll())
	got, ok := m.Poll()
	assert.True(t, ok)
	assert.Len(t, got.Options, 2)

	_, ok = (&Message{Content: Plain{}}).Poll()
	assert.False(t, ok)
}

func TestCloneIsDeep(t *testing.T) {
	p, err := polls.New([]string{"a", "b"})
	require.NoError(t, err)
	reply := int64(7)
	now := time.Now()

	m := &Message{
		ID:          1,
		Content:     PollContent{Poll: p},
		Attachments: []Attachment{NewAttachment("x.png")},
		ReplyToID:   &reply,
		Reactions:   reactions.Toggle(nil, "👍", uuid.New()),
		EditedAt:    &now,
	}
	c := m.Clone()

	*c.ReplyToID = 9
	c.Attachments[0].URL = "changed"
	c.Reactions[0].Emoji = "👎"
	cp, _ := c.Poll()
	cp.Options[0].Text = "changed"

	assert.Equal(t, int64(7), *m.ReplyToID)
	assert.Equal(t, "x.png", m.Attachments[0].URL)
	assert.Equal(t, "👍", m.Reactions[0].Emoji)
	mp, _ := m.Poll()
	assert.Equal(t, "a", mp.Options[0].Text)
}

func TestApplyPatch(t *testing.T) {
	mod := uuid.New()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("delete clears pin", func(t *testing.T) {
		m := &Message{Pin: &Pin{By: mod, At: at}}
		require.NoError(t, Apply(m, Patch{Delete: &Deletion{By: mod, At: at}}))
		assert.True(t, m.IsDeleted())
		assert.False(t, m.IsPinned())
	})

	t.Run("restore clears deletion", func(t *testing.T) {
		m := &Message{Deletion: &Deletion{By: mod, At: at}}
		require.NoError(t, Apply(m, Patch{Undelete: true}))
		assert.False(t, m.IsDeleted())
		assert.Nil(t, m.Deletion)
	})

	t.Run("pin on deleted rejected", func(t *testing.T) {
		m := &Message{Deletion: &Deletion{By: mod, At: at}}
		assert.Error(t, Apply(m, Patch{Pin: &Pin{By: mod, At: at}}))
	})

	t.Run("poll patch on plain rejected", func(t *testing.T) {
		p, err := polls.New([]string{"a", "b"})
		require.NoError(t, err)
		m := &Message{Content: Plain{}}
		assert.Error(t, Apply(m, Patch{Poll: &p}))
		assert.Equal(t, KindPlain, m.Kind())
	})

	t.Run("contradicting patch rejected", func(t *testing.T) {
		m := &Message{}
		assert.Error(t, Apply(m, Patch{Delete: &Deletion{By: mod, At: at}, Undelete: true}))
		assert.Error(t, Apply(m, Patch{Pin: &Pin{By: mod, At: at}, Unpin: true}))
	})

	t.Run("edit", func(t *testing.T) {
		m := &Message{Body: "old"}
		body := "new"
		require.NoError(t, Apply(m, Patch{Body: &body, EditedAt: &at}))
		assert.Equal(t, "new", m.Body)
		assert.True(t, m.IsEdited())
	})

	assert.True(t, Patch{}.Empty())
	assert.False(t, Patch{Unpin: true}.Empty())
}
