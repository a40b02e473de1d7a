package reactions

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestToggleCreatesAndRemovesEntry(t *testing.T) {
	user := uuid.New()

	once := Toggle(nil, "👍", user)
	assert.Len(t, once, 1)
	assert.True(t, HasReacted(once, "👍", user))

	twice := Toggle(once, "👍", user)
	assert.Empty(t, twice, "entry must be removed when its last user leaves")
	assert.False(t, HasReacted(twice, "👍", user))
	assert.Len(t, once, 1, "input must not be mutated")
}

func TestToggleRoundTripKeepsOthers(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()

	list := Toggle(nil, "🎉", alice)
	before := Clone(list)

	list = Toggle(list, "🎉", bob)
	assert.Len(t, list[0].UserIDs, 2)

	list = Toggle(list, "🎉", bob)
	assert.Equal(t, before, list)
}

func TestDistinctEmojisAreIndependent(t *testing.T) {
	user := uuid.New()

	list := Toggle(nil, "👍", user)
	list = Toggle(list, "❤️", user)
	assert.Len(t, list, 2)
	assert.True(t, HasReacted(list, "👍", user))
	assert.True(t, HasReacted(list, "❤️", user))

	list = Toggle(list, "👍", user)
	assert.Len(t, list, 1)
	assert.Equal(t, "❤️", list[0].Emoji)
}

func TestUserAppearsOncePerEmoji(t *testing.T) {
	user, other := uuid.New(), uuid.New()
	list := Toggle(nil, "👍", other)
	list = Toggle(list, "👍", user)
	list = Toggle(list, "👍", user)
	list = Toggle(list, "👍", user)

	count := 0
	for _, id := range list[0].UserIDs {
		if id == user {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestSummarize(t *testing.T) {
	me, other := uuid.New(), uuid.New()
	list := Toggle(nil, "👍", other)
	list = Toggle(list, "👍", me)
	list = Toggle(list, "😂", other)

	got := Summarize(list, me)
	assert.Equal(t, []Summary{
		{Emoji: "👍", Count: 2, Mine: true},
		{Emoji: "😂", Count: 1, Mine: false},
	}, got)
}

func TestValidateEmoji(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "👍", want: "👍"},
		{in: " 👍\n", want: "👍"},
		{in: "", wantErr: true},
		{in: "   ", wantErr: true},
		{in: "this-is-definitely-not-an-emoji-at-all", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ValidateEmoji(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestToggleTreatsPaddedEmojiAsSame(t *testing.T) {
	user := uuid.New()

	list := Toggle(nil, "👍", user)
	list = Toggle(list, " 👍", user)

	assert.Empty(t, list)
	assert.False(t, HasReacted(Toggle(nil, "👍 ", user), "x", user))
	assert.True(t, HasReacted(Toggle(nil, "👍 ", user), "👍", user))
}
