package polls

import (
	"testing"

	"github.com/Alexander-D-Karpov/huddle/internal/common/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		texts   []string
		want    int
		wantErr bool
	}{
		{name: "two options", texts: []string{"yes", "no"}, want: 2},
		{name: "six options", texts: []string{"a", "b", "c", "d", "e", "f"}, want: 6},
		{name: "blank options dropped", texts: []string{"a", " ", "b", ""}, want: 2},
		{name: "single option", texts: []string{"only"}, wantErr: true},
		{name: "blank only", texts: []string{"", "  "}, wantErr: true},
		{name: "seven options", texts: []string{"a", "b", "c", "d", "e", "f", "g"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.texts)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsInvalidPoll(err))
				return
			}
			require.NoError(t, err)
			assert.Len(t, p.Options, tt.want)
			for _, o := range p.Options {
				assert.NotEqual(t, uuid.Nil, o.ID)
				assert.Empty(t, o.VoterIDs)
			}
		})
	}
}

func TestToggleRoundTrip(t *testing.T) {
	p, err := New([]string{"a", "b"})
	require.NoError(t, err)
	voter := uuid.New()
	opt := p.Options[0].ID

	voted, err := Toggle(p, opt, voter)
	require.NoError(t, err)
	assert.True(t, HasVoted(voted, opt, voter))
	assert.False(t, HasVoted(p, opt, voter), "input must not be mutated")

	undone, err := Toggle(voted, opt, voter)
	require.NoError(t, err)
	assert.False(t, HasVoted(undone, opt, voter))
	assert.Equal(t, p, undone)
}

func TestToggleAllowsMultipleOptions(t *testing.T) {
	p, err := New([]string{"a", "b", "c"})
	require.NoError(t, err)
	voter := uuid.New()

	p, err = Toggle(p, p.Options[0].ID, voter)
	require.NoError(t, err)
	p, err = Toggle(p, p.Options[2].ID, voter)
	require.NoError(t, err)

	assert.True(t, HasVoted(p, p.Options[0].ID, voter))
	assert.True(t, HasVoted(p, p.Options[2].ID, voter))
	assert.Equal(t, 2, Tally(p).TotalVotes)
}

func TestToggleUnknownOption(t *testing.T) {
	p, err := New([]string{"a", "b"})
	require.NoError(t, err)

	_, err = Toggle(p, uuid.New(), uuid.New())
	require.Error(t, err)
	assert.True(t, errors.IsInvalidPoll(err))
}

func TestTally(t *testing.T) {
	p, err := New([]string{"one", "two", "three"})
	require.NoError(t, err)

	res := Tally(p)
	assert.Equal(t, 0, res.TotalVotes)
	for _, o := range res.Options {
		assert.Equal(t, 0, o.Percent)
	}

	userB, userC := uuid.New(), uuid.New()

	p, err = Toggle(p, p.Options[1].ID, userB)
	require.NoError(t, err)
	res = Tally(p)
	assert.Equal(t, []int{0, 100, 0}, percents(res))

	p, err = Toggle(p, p.Options[0].ID, userC)
	require.NoError(t, err)
	res = Tally(p)
	assert.Equal(t, []int{50, 50, 0}, percents(res))
	assert.Equal(t, 2, res.TotalVotes)
}

func TestTallyRounding(t *testing.T) {
	p, err := New([]string{"a", "b", "c"})
	require.NoError(t, err)
	for i := range p.Options {
		p, err = Toggle(p, p.Options[i].ID, uuid.New())
		require.NoError(t, err)
	}
	assert.Equal(t, []int{33, 33, 33}, percents(Tally(p)))

	p, err = Toggle(p, p.Options[0].ID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, []int{50, 25, 25}, percents(Tally(p)))
}

func percents(r Result) []int {
	out := make([]int, len(r.Options))
	for i, o := range r.Options {
		out[i] = o.Percent
	}
	return out
}
