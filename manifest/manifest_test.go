package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hupe1980/lexgo/internal/fs"
	"github.com/hupe1980/lexgo/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissing(t *testing.T) {
	store := NewStore(fs.Default, t.TempDir())

	_, err := store.Load()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := NewStore(fs.Default, t.TempDir())

	m := &Manifest{
		Profile:       model.ProfileBalanced,
		NextSegmentID: 3,
		Segments: []SegmentInfo{
			{ID: 1, Docs: 1000, DictBytes: 64, PostBytes: 512, DocsBytes: 2048},
			{ID: 2, Docs: 250, DictBytes: 32, PostBytes: 128, DocsBytes: 600},
		},
	}
	require.NoError(t, store.Save(m))
	assert.Equal(t, uint64(1), m.ID)

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, model.ProfileBalanced, got.Profile)
	assert.Equal(t, model.SegmentID(3), got.NextSegmentID)
	assert.Equal(t, m.Segments, got.Segments)
	assert.Equal(t, uint64(1250), got.TotalDocs())
}

func TestSaveBumpsID(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(fs.Default, dir)

	m := &Manifest{Profile: model.ProfileSpeed}
	require.NoError(t, store.Save(m))
	require.NoError(t, store.Save(m))
	require.NoError(t, store.Save(m))
	assert.Equal(t, uint64(3), m.ID)

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got.ID)

	// Every save leaves its own manifest file; CURRENT names the newest.
	current, err := os.ReadFile(filepath.Join(dir, CurrentFileName))
	require.NoError(t, err)
	assert.Equal(t, Filename(3), string(current))
}

func TestLoadCorruptJSON(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(fs.Default, dir)
	require.NoError(t, store.Save(&Manifest{Profile: model.ProfileCompact}))

	require.NoError(t, os.WriteFile(filepath.Join(dir, Filename(1)), []byte("{nope"), 0o644))

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestLoadUnsupportedVersion(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(fs.Default, dir)
	require.NoError(t, store.Save(&Manifest{Profile: model.ProfileSpeed}))

	raw, err := os.ReadFile(filepath.Join(dir, Filename(1)))
	require.NoError(t, err)
	mutated := strings.Replace(string(raw), `"version": 1`, `"version": 99`, 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, Filename(1)), []byte(mutated), 0o644))

	_, err = store.Load()
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestLoadDanglingCurrent(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(fs.Default, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, CurrentFileName), []byte(Filename(7)), 0o644))

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestSaveFailureLeavesOldManifest(t *testing.T) {
	dir := t.TempDir()
	ffs := fs.NewFaultyFS(nil)
	store := NewStore(ffs, dir)

	m := &Manifest{Profile: model.ProfileBalanced, NextSegmentID: 1}
	require.NoError(t, store.Save(m))

	// The second save dies while writing the new manifest file. CURRENT
	// still names the first one, so readers see the old state.
	ffs.FailFile(Filename(2), fs.Fault{FailWrites: true})
	err := store.Save(&Manifest{Profile: model.ProfileBalanced, NextSegmentID: 9})
	require.ErrorIs(t, err, fs.ErrInjected)

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.ID)
	assert.Equal(t, model.SegmentID(1), got.NextSegmentID)

	// No temp litter.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestIsManifestFile(t *testing.T) {
	assert.True(t, IsManifestFile("CURRENT"))
	assert.True(t, IsManifestFile(Filename(12)))
	assert.False(t, IsManifestFile("seg-000001.post"))
	assert.False(t, IsManifestFile("LOCK"))
}
