package tokenizer

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(text string) []string {
	var out []string
	for term := range Terms(text) {
		out = append(out, term)
	}
	return out
}

func TestTerms(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "simple", text: "the quick fox", want: []string{"the", "quick", "fox"}},
		{name: "lowercasing", text: "The QUICK Fox", want: []string{"the", "quick", "fox"}},
		{name: "punctuation", text: "hello, world! foo--bar", want: []string{"hello", "world", "foo", "bar"}},
		{name: "digits", text: "mp3 player v2", want: []string{"mp3", "player", "v2"}},
		{name: "leading and trailing separators", text: "  ...fox...  ", want: []string{"fox"}},
		{name: "empty", text: "", want: nil},
		{name: "separators only", text: " \t\n!?-", want: nil},
		{name: "no stemming", text: "running runs run", want: []string{"running", "runs", "run"}},
		{name: "unicode letters", text: "café Straße", want: []string{"café", "straße"}},
		{name: "unicode uppercase", text: "ÉCOLE Über", want: []string{"école", "über"}},
		{name: "mixed script", text: "go言語 rocks", want: []string{"go言語", "rocks"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, collect(tt.text))
		})
	}
}

func TestTermsDeterministic(t *testing.T) {
	text := "The Quick Brown Fox, jumps (over) the LAZY dog 42 times!"
	first := collect(text)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, collect(text))
	}
}

func TestTermsRestartable(t *testing.T) {
	seq := Terms("alpha beta gamma")

	var first, second []string
	for term := range seq {
		first = append(first, term)
	}
	for term := range seq {
		second = append(second, term)
	}
	assert.Equal(t, first, second)
}

func TestTermsEarlyStop(t *testing.T) {
	var got []string
	for term := range Terms("one two three four") {
		got = append(got, term)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"one", "two"}, got)
}

func TestTermsInvalidUTF8(t *testing.T) {
	// A stray continuation byte acts as a separator and must not panic.
	text := "foo" + string([]byte{0x80}) + "bar"
	assert.Equal(t, []string{"foo", "bar"}, collect(text))
}

func TestFrequencies(t *testing.T) {
	freqs := Frequencies("the quick fox and the lazy fox")
	require.Len(t, freqs, 5)
	assert.Equal(t, 2, freqs["the"])
	assert.Equal(t, 2, freqs["fox"])
	assert.Equal(t, 1, freqs["quick"])
	assert.Equal(t, 1, freqs["and"])
	assert.Equal(t, 1, freqs["lazy"])
}

func TestCount(t *testing.T) {
	assert.Equal(t, 0, Count(""))
	assert.Equal(t, 3, Count("the quick fox"))
	assert.Equal(t, 7, Count("the quick fox and the lazy fox"))
}

func TestQueryMatchesIndexTokenization(t *testing.T) {
	// Query text and document text run through the same normalization.
	doc := collect("The Quick-Fox!")
	query := collect("the quick fox")
	assert.True(t, slices.Equal(doc, query))
}
