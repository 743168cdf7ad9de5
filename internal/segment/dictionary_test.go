package segment

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDictionary(t *testing.T, terms []string, entries []DictEntry) *Dictionary {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, writeDictionary(&buf, terms, entries))
	d, err := newDictionary(buf.Bytes())
	require.NoError(t, err)
	return d
}

func TestDictionaryLookup(t *testing.T) {
	terms := []string{"fox", "foxes", "lazy", "quick", "the", "zebra"}
	entries := make([]DictEntry, len(terms))
	off := uint64(0)
	for i := range terms {
		entries[i] = DictEntry{
			PostOff:   off,
			PostLen:   uint32(10 + i),
			DocFreq:   uint32(i + 1),
			MaxWeight: float32(i) * 0.5,
		}
		off += uint64(10 + i)
	}

	d := buildDictionary(t, terms, entries)
	require.Equal(t, len(terms), d.Len())

	for i, term := range terms {
		e, ok := d.Lookup(term)
		require.True(t, ok, term)
		assert.Equal(t, entries[i], e, term)
	}

	for _, miss := range []string{"", "aardvark", "fo", "foxe", "foxx", "zz"} {
		_, ok := d.Lookup(miss)
		assert.False(t, ok, miss)
	}

	for i, term := range terms {
		gotTerm, gotEntry := d.At(i)
		assert.Equal(t, term, gotTerm)
		assert.Equal(t, entries[i], gotEntry)
	}
}

func TestDictionaryEmpty(t *testing.T) {
	d := buildDictionary(t, nil, nil)
	assert.Equal(t, 0, d.Len())
	_, ok := d.Lookup("anything")
	assert.False(t, ok)
}

func TestDictionaryRejectsTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeDictionary(&buf, []string{"alpha", "beta"}, make([]DictEntry, 2)))
	payload := buf.Bytes()

	_, err := newDictionary(payload[:2])
	assert.ErrorIs(t, err, ErrCorrupt)

	// Count says two entries but the table is cut short.
	_, err = newDictionary(payload[:4+dictEntrySize])
	assert.ErrorIs(t, err, ErrCorrupt)

	// Table intact, blob missing the last term's bytes.
	_, err = newDictionary(payload[:len(payload)-1])
	assert.ErrorIs(t, err, ErrCorrupt)
}
