package lexicon_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/PabloGalante/farum-triage/internal/lexicon"
)

func TestNormalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Hello, how are you?", "hello how are you"},
		{"I’m  FINE...really", "i'm fine really"},
		{"'quoted' words", "quoted words"},
		{"", ""},
		{"   ", ""},
		{"end-my-life", "end my life"},
		{"don't\tstop\n", "don't stop"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, lexicon.Normalize(tc.in), tc.in)
	}
}

func TestTextWholeWordMatching(t *testing.T) {
	text := lexicon.NewText("Whatever, I think about ending my life.")

	assert.False(t, text.Has("hate"), "substring inside a word must not match")
	assert.True(t, text.Has("ending my life"))
	assert.True(t, text.Has("Ending My Life"))
	assert.False(t, text.Has("end my life"))
	assert.False(t, text.Has(""))
}

func TestTextCount(t *testing.T) {
	text := lexicon.NewText("fail fail, and I fail again")

	assert.Equal(t, 3, text.Count("fail"))
	assert.Equal(t, 1, text.Count("fail fail"))
	assert.Equal(t, 0, text.Count("failure"))
}

func TestTextMatchesKeepsKeywordOrder(t *testing.T) {
	text := lexicon.NewText("I always fail at everything and I'm useless")

	got := text.Matches([]string{"useless", "never", "always", "i'm"})
	assert.Equal(t, []string{"useless", "always", "i'm"}, got)
	assert.True(t, text.HasAny([]string{"nope", "everything"}))
	assert.False(t, text.HasAny(nil))
}

func TestTextEmpty(t *testing.T) {
	assert.True(t, lexicon.NewText(" ?! ").Empty())
	assert.False(t, lexicon.NewText("hi").Empty())
}
