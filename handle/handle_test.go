package handle_test

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lexgo/handle"
	"github.com/hupe1980/lexgo/model"
)

func TestLifecycle(t *testing.T) {
	tok := handle.Create(t.TempDir(), "balanced")
	require.NotZero(t, tok)

	docs := []model.Document{
		{ExternalID: "1", Text: "the quick fox"},
		{ExternalID: "2", Text: "the lazy fox"},
	}
	count := handle.Batch(tok, docs, nil)
	assert.EqualValues(t, 2, count)
	assert.Empty(t, handle.LastError())

	require.Equal(t, handle.StatusOK, handle.Commit(tok))

	res, status := handle.Search(tok, "fox", 10, 0)
	require.Equal(t, handle.StatusOK, status)
	require.NotNil(t, res)
	assert.Len(t, res.Hits, 2)
	assert.EqualValues(t, 2, res.TotalMatches)

	n, status := handle.DocCount(tok)
	require.Equal(t, handle.StatusOK, status)
	assert.EqualValues(t, 2, n)

	stats, status := handle.MemoryStats(tok)
	require.Equal(t, handle.StatusOK, status)
	assert.EqualValues(t, 2, stats.DocsIndexed)

	assert.Equal(t, "balanced", handle.ProfileName(tok))

	require.Equal(t, handle.StatusOK, handle.Clear(tok))
	n, status = handle.DocCount(tok)
	require.Equal(t, handle.StatusOK, status)
	assert.Zero(t, n)

	assert.Equal(t, handle.StatusOK, handle.Close(tok))
}

func TestCreateUnknownProfile(t *testing.T) {
	tok := handle.Create(t.TempDir(), "turbo")
	assert.Zero(t, tok)
	assert.Contains(t, handle.LastError(), "turbo")
}

func TestOpenMissing(t *testing.T) {
	tok := handle.Open(filepath.Join(t.TempDir(), "missing"))
	assert.Zero(t, tok)
	assert.NotEmpty(t, handle.LastError())
}

func TestInvalidToken(t *testing.T) {
	const bogus = handle.Token(1 << 60)

	assert.Equal(t, handle.StatusInvalidHandle, handle.Commit(bogus))
	assert.NotEmpty(t, handle.LastError())

	assert.EqualValues(t, handle.StatusInvalidHandle, handle.Batch(bogus, nil, nil))
	assert.EqualValues(t, handle.StatusInvalidHandle, handle.BatchBinary(bogus, nil, 0, nil))

	res, status := handle.Search(bogus, "fox", 1, 0)
	assert.Nil(t, res)
	assert.Equal(t, handle.StatusInvalidHandle, status)

	_, status = handle.MemoryStats(bogus)
	assert.Equal(t, handle.StatusInvalidHandle, status)

	_, status = handle.DocCount(bogus)
	assert.Equal(t, handle.StatusInvalidHandle, status)

	assert.Equal(t, handle.StatusInvalidHandle, handle.Clear(bogus))
	assert.Empty(t, handle.ProfileName(bogus))
	assert.Equal(t, handle.StatusInvalidHandle, handle.Close(bogus))
}

func TestClosedTokenRejected(t *testing.T) {
	tok := handle.Create(t.TempDir(), "speed")
	require.NotZero(t, tok)
	require.Equal(t, handle.StatusOK, handle.Close(tok))

	assert.Equal(t, handle.StatusInvalidHandle, handle.Commit(tok))
	assert.NotEmpty(t, handle.LastError())
}

func TestBatchBinaryFraming(t *testing.T) {
	tok := handle.Create(t.TempDir(), "balanced")
	require.NotZero(t, tok)
	defer handle.Close(tok)

	var wire []byte
	wire = binary.LittleEndian.AppendUint32(wire, 1)
	wire = append(wire, 'a')
	wire = binary.LittleEndian.AppendUint32(wire, 5)
	wire = append(wire, "alpha"...)

	count := handle.BatchBinary(tok, wire, 1, nil)
	assert.EqualValues(t, 1, count)

	count = handle.BatchBinary(tok, wire[:len(wire)-1], 1, nil)
	assert.EqualValues(t, handle.StatusInvalidArgument, count)
	assert.NotEmpty(t, handle.LastError())
}

func TestLastErrorLifecycle(t *testing.T) {
	tok := handle.Create(t.TempDir(), "turbo")
	require.Zero(t, tok)
	require.NotEmpty(t, handle.LastError())

	// The next boundary call overwrites the message, clearing it on success.
	tok = handle.Create(t.TempDir(), "compact")
	require.NotZero(t, tok)
	assert.Empty(t, handle.LastError())

	handle.Close(tok)
}

func TestListProfiles(t *testing.T) {
	assert.Equal(t, `["speed","balanced","compact"]`, handle.ListProfiles())
}

func TestTokensDistinct(t *testing.T) {
	tok1 := handle.Create(t.TempDir(), "speed")
	tok2 := handle.Create(t.TempDir(), "speed")
	require.NotZero(t, tok1)
	require.NotZero(t, tok2)
	assert.NotEqual(t, tok1, tok2)

	require.Equal(t, handle.StatusOK, handle.Close(tok1))

	// Closing one token leaves the other live.
	assert.Equal(t, "speed", handle.ProfileName(tok2))
	assert.Equal(t, handle.StatusOK, handle.Close(tok2))
}
