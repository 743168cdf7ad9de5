package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	content := []byte("segment bytes")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seg-000001.post"), content, 0o644))

	store := NewLocalStore(dir)

	blob, err := store.Open(ctx, "seg-000001.post")
	require.NoError(t, err)
	defer blob.Close()

	assert.Equal(t, int64(len(content)), blob.Size())

	buf := make([]byte, 7)
	n, err := blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("segment"), buf[:n])

	// Local blobs expose their mapping directly.
	m, ok := blob.(Mappable)
	require.True(t, ok)
	data, err := m.Bytes()
	require.NoError(t, err)
	assert.Equal(t, content, data)

	_, err = store.Open(ctx, "missing.post")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Open(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	store.Put("a/seg-000001.dict", []byte("alpha"))
	store.Put("a/seg-000002.dict", []byte("beta"))
	store.Put("b/other", []byte("gamma"))

	blob, err := store.Open(ctx, "a/seg-000001.dict")
	require.NoError(t, err)
	data, err := ReadAll(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, []byte("alpha"), data)
	require.NoError(t, blob.Close())

	assert.ElementsMatch(t, []string{"a/seg-000001.dict", "a/seg-000002.dict"}, store.List("a/"))

	store.Delete("a/seg-000001.dict")
	_, err = store.Open(ctx, "a/seg-000001.dict")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreCreate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	w := store.Create("streamed")
	_, err := w.Write([]byte("part one "))
	require.NoError(t, err)
	_, err = w.Write([]byte("part two"))
	require.NoError(t, err)

	// Not visible until closed.
	_, err = store.Open(ctx, "streamed")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, w.Close())

	blob, err := store.Open(ctx, "streamed")
	require.NoError(t, err)
	data, err := ReadAll(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, []byte("part one part two"), data)
}

func TestReadAllEmptyBlob(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Put("empty", nil)

	blob, err := store.Open(ctx, "empty")
	require.NoError(t, err)
	data, err := ReadAll(ctx, blob)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestBlobReadAtShortTail(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Put("short", []byte("abcdef"))

	blob, err := store.Open(ctx, "short")
	require.NoError(t, err)

	buf := make([]byte, 10)
	n, err := blob.ReadAt(ctx, buf, 4)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte("ef"), buf[:n])
}
