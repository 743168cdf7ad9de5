package lexgo_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lexgo"
	"github.com/hupe1980/lexgo/model"
)

func newTestIndex(t *testing.T, profile model.Profile, opts ...lexgo.Option) (*lexgo.Index, string) {
	t.Helper()
	dir := t.TempDir()
	idx, err := lexgo.Create(dir, profile, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx, dir
}

func ingestAll(t *testing.T, idx *lexgo.Index, docs []model.Document) {
	t.Helper()
	indexed, err := idx.IngestBatch(context.Background(), docs, nil)
	require.NoError(t, err)
	require.EqualValues(t, len(docs), indexed)
}

var sampleWords = []string{
	"drift", "harbor", "signal", "quarry", "lattice", "ember",
	"cobalt", "meadow", "tundra", "orchid", "basalt", "zephyr",
}

// sampleDocs builds a small deterministic corpus. Texts rotate through
// sampleWords so neighboring documents share some terms.
func sampleDocs(n int, prefix string) []model.Document {
	docs := make([]model.Document, n)
	for i := range docs {
		var sb strings.Builder
		for j := 0; j < i%4+3; j++ {
			sb.WriteString(sampleWords[(i+j)%len(sampleWords)])
			sb.WriteByte(' ')
		}
		docs[i] = model.Document{
			ExternalID: fmt.Sprintf("%s-%d", prefix, i),
			Text:       sb.String(),
		}
	}
	return docs
}

// segmentFiles lists the segment artifact files in dir, sorted.
func segmentFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "seg-") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names
}

func dirListing(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names
}

func TestCreateAndReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx, err := lexgo.Create(dir, model.ProfileBalanced)
	require.NoError(t, err)
	ingestAll(t, idx, sampleDocs(6, "doc"))
	require.NoError(t, idx.Commit(ctx))
	require.NoError(t, idx.Close())

	reopened, err := lexgo.Open(dir)
	require.NoError(t, err)
	assert.Equal(t, model.ProfileBalanced, reopened.Profile())

	count, err := reopened.DocCount()
	require.NoError(t, err)
	assert.EqualValues(t, 6, count)

	res, err := reopened.Search(ctx, sampleWords[0], 10, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Hits)
	require.NoError(t, reopened.Close())

	// Create on an existing index with the matching profile reopens it.
	again, err := lexgo.Create(dir, model.ProfileBalanced)
	require.NoError(t, err)
	count, err = again.DocCount()
	require.NoError(t, err)
	assert.EqualValues(t, 6, count)
	require.NoError(t, again.Close())
}

func TestCreateProfileMismatch(t *testing.T) {
	dir := t.TempDir()

	idx, err := lexgo.Create(dir, model.ProfileSpeed)
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	_, err = lexgo.Create(dir, model.ProfileCompact)
	require.ErrorIs(t, err, lexgo.ErrInvalidArgument)
}

func TestCreateInvalidProfile(t *testing.T) {
	_, err := lexgo.Create(t.TempDir(), model.Profile(99))
	require.ErrorIs(t, err, lexgo.ErrInvalidArgument)
}

func TestOpenNeverCreated(t *testing.T) {
	parent := t.TempDir()
	path := filepath.Join(parent, "never", "idx")

	_, err := lexgo.Open(path)
	require.ErrorIs(t, err, lexgo.ErrNotFound)

	// Open must not leave anything behind on a path without an index.
	_, statErr := os.Stat(filepath.Join(parent, "never"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestOpenCorruptManifest(t *testing.T) {
	dir := t.TempDir()

	idx, err := lexgo.Create(dir, model.ProfileBalanced)
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	current, err := os.ReadFile(filepath.Join(dir, "CURRENT"))
	require.NoError(t, err)
	name := strings.TrimSpace(string(current))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("not json"), 0o644))

	_, err = lexgo.Open(dir)
	require.ErrorIs(t, err, lexgo.ErrCorruption)
}

func TestOpenCorruptSegment(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx, err := lexgo.Create(dir, model.ProfileBalanced)
	require.NoError(t, err)
	ingestAll(t, idx, sampleDocs(8, "doc"))
	require.NoError(t, idx.Commit(ctx))
	require.NoError(t, idx.Close())

	files := segmentFiles(t, dir)
	require.NotEmpty(t, files)

	// Flip a byte in the middle of the postings file; the checksum has to
	// catch it on reopen.
	path := filepath.Join(dir, "seg-000001.post")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)/2] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = lexgo.Open(dir)
	require.ErrorIs(t, err, lexgo.ErrCorruption)
}

func TestDirectoryLock(t *testing.T) {
	dir := t.TempDir()

	idx, err := lexgo.Create(dir, model.ProfileBalanced)
	require.NoError(t, err)

	_, err = lexgo.Open(dir)
	require.ErrorIs(t, err, lexgo.ErrIO)

	_, err = lexgo.Create(dir, model.ProfileBalanced)
	require.ErrorIs(t, err, lexgo.ErrIO)

	require.NoError(t, idx.Close())

	second, err := lexgo.Open(dir)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestCreateSweepsOrphans(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx, err := lexgo.Create(dir, model.ProfileBalanced)
	require.NoError(t, err)
	ingestAll(t, idx, sampleDocs(4, "doc"))
	require.NoError(t, idx.Commit(ctx))
	committed := segmentFiles(t, dir)
	require.NoError(t, idx.Close())

	// Plant files a crash between seal and commit would leave behind.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seg-000099.post"), []byte("orphan"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seg-000099.dict"), []byte("orphan"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leftover.tmp"), []byte("junk"), 0o644))

	reopened, err := lexgo.Create(dir, model.ProfileBalanced)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, committed, segmentFiles(t, dir))
	assert.NotContains(t, dirListing(t, dir), "leftover.tmp")

	count, err := reopened.DocCount()
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)
}

func TestUncommittedSegmentsAreOrphans(t *testing.T) {
	dir := t.TempDir()

	idx, err := lexgo.Create(dir, model.ProfileBalanced, lexgo.WithMaxSegmentDocs(5))
	require.NoError(t, err)
	ingestAll(t, idx, sampleDocs(12, "doc"))

	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.EqualValues(t, 12, count)

	// Close without committing: two auto-sealed segments stay on disk as
	// orphans, the builder's two documents are gone.
	require.NoError(t, idx.Close())
	assert.Len(t, segmentFiles(t, dir), 6)

	reopened, err := lexgo.Open(dir)
	require.NoError(t, err)
	count, err = reopened.DocCount()
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
	require.NoError(t, reopened.Close())

	// Create sweeps what no manifest names.
	swept, err := lexgo.Create(dir, model.ProfileBalanced)
	require.NoError(t, err)
	defer swept.Close()
	assert.Empty(t, segmentFiles(t, dir))
}

func TestCloseSemantics(t *testing.T) {
	idx, _ := newTestIndex(t, model.ProfileBalanced)
	ctx := context.Background()
	require.NoError(t, idx.Close())

	_, err := idx.IngestBatch(ctx, sampleDocs(1, "doc"), nil)
	assert.ErrorIs(t, err, lexgo.ErrClosed)

	_, err = idx.IngestBatchBinary(ctx, nil, 0, nil)
	assert.ErrorIs(t, err, lexgo.ErrClosed)

	assert.ErrorIs(t, idx.Commit(ctx), lexgo.ErrClosed)
	assert.ErrorIs(t, idx.Clear(ctx), lexgo.ErrClosed)

	_, err = idx.Search(ctx, "anything", 10, 0)
	assert.ErrorIs(t, err, lexgo.ErrClosed)

	_, err = idx.DocCount()
	assert.ErrorIs(t, err, lexgo.ErrClosed)

	_, err = idx.MemoryStats()
	assert.ErrorIs(t, err, lexgo.ErrClosed)

	assert.ErrorIs(t, idx.Close(), lexgo.ErrClosed)
}

func TestClearResets(t *testing.T) {
	idx, dir := newTestIndex(t, model.ProfileBalanced)
	ctx := context.Background()

	ingestAll(t, idx, sampleDocs(6, "old"))
	require.NoError(t, idx.Commit(ctx))
	ingestAll(t, idx, sampleDocs(3, "pending"))

	require.NoError(t, idx.Clear(ctx))

	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
	assert.Empty(t, segmentFiles(t, dir))

	res, err := idx.Search(ctx, sampleWords[0], 10, 0)
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
	assert.EqualValues(t, 0, res.TotalMatches)

	// The index stays usable and segment numbering restarts.
	ingestAll(t, idx, sampleDocs(2, "fresh"))
	require.NoError(t, idx.Commit(ctx))
	assert.Contains(t, segmentFiles(t, dir), "seg-000001.dict")

	count, err = idx.DocCount()
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestCommitIdempotent(t *testing.T) {
	idx, dir := newTestIndex(t, model.ProfileBalanced)
	ctx := context.Background()

	ingestAll(t, idx, sampleDocs(5, "doc"))
	require.NoError(t, idx.Commit(ctx))

	before := dirListing(t, dir)
	countBefore, err := idx.DocCount()
	require.NoError(t, err)

	require.NoError(t, idx.Commit(ctx))

	assert.Equal(t, before, dirListing(t, dir))
	countAfter, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, countBefore, countAfter)
}

func TestMemoryStats(t *testing.T) {
	idx, _ := newTestIndex(t, model.ProfileBalanced)
	ctx := context.Background()

	ingestAll(t, idx, sampleDocs(10, "doc"))

	// Builder only: owned memory, nothing mapped.
	stats, err := idx.MemoryStats()
	require.NoError(t, err)
	assert.Positive(t, stats.IndexBytes)
	assert.EqualValues(t, 10, stats.DocsIndexed)
	assert.Zero(t, stats.MmapBytes)

	require.NoError(t, idx.Commit(ctx))

	stats, err = idx.MemoryStats()
	require.NoError(t, err)
	assert.Positive(t, stats.IndexBytes)
	assert.Positive(t, stats.TermDictBytes)
	assert.Positive(t, stats.PostingsBytes)
	assert.Positive(t, stats.MmapBytes)
	assert.EqualValues(t, 10, stats.DocsIndexed)
}
