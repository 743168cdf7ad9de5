package lexgo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/lexgo/blobstore"
	"github.com/hupe1980/lexgo/internal/cache"
	"github.com/hupe1980/lexgo/internal/fs"
	"github.com/hupe1980/lexgo/internal/query"
	"github.com/hupe1980/lexgo/internal/resource"
	"github.com/hupe1980/lexgo/internal/segment"
	"github.com/hupe1980/lexgo/manifest"
	"github.com/hupe1980/lexgo/model"
)

// LockFileName is the advisory lock file guarding the single-writer
// assumption across processes.
const LockFileName = "LOCK"

// snapshot is the immutable view one search sees: the sealed segments plus
// the live builder at a single instant. The whole struct swaps atomically,
// so a reader never observes a half-applied seal or commit.
type snapshot struct {
	segments  []*segment.Segment
	builder   *segment.Builder
	builderID model.SegmentID
}

// Index is an embedded full-text index rooted in one directory.
//
// One goroutine at a time may ingest; any number may search concurrently.
// Sealed segments are immutable and memory-mapped, the open builder is
// searchable live, and Commit makes sealed segments durable in the manifest.
type Index struct {
	dir     string
	profile model.Profile

	logger  *Logger
	metrics MetricsCollector

	fsys   fs.FileSystem
	store  blobstore.BlobStore
	bcache *cache.BlockCache
	ctrl   *resource.Controller
	flk    *flock.Flock

	manStore *manifest.Store
	exec     *query.Executor

	maxSegmentDocs uint32

	// op serializes lifecycle transitions against running operations:
	// Close and Clear take it exclusively, everything else shares it.
	op     sync.RWMutex
	closed atomic.Bool

	// writer serializes the ingestion stream: IngestBatch, Commit, seal.
	writer sync.Mutex

	// snap is the current searchable view. Readers load it lock-free.
	snap atomic.Pointer[snapshot]

	// man and pending are writer state: the last committed manifest and the
	// segments sealed since. Pending segments are searchable immediately but
	// become durable only at the next Commit.
	man     *manifest.Manifest
	pending []manifest.SegmentInfo
}

// Create opens the index at path, creating it when the directory holds no
// index yet. An existing index reopens as long as it was created with the
// same profile; a mismatch is ErrInvalidArgument, malformed metadata is
// ErrCorruption. The profile is fixed for the life of the index.
//
// Segment files not named by the committed manifest, leftovers of a crash
// between seal and commit, are deleted.
func Create(path string, profile model.Profile, optFns ...Option) (*Index, error) {
	opts := applyOptions(optFns)

	if !profile.Valid() {
		return nil, fmt.Errorf("%w: unknown profile %d", ErrInvalidArgument, profile)
	}

	fsys := fs.Default
	if err := fsys.MkdirAll(path, 0o755); err != nil {
		return nil, translateError(err)
	}

	manStore := manifest.NewStore(fsys, path)
	man, err := manStore.Load()
	switch {
	case err == nil:
		if man.Profile != profile {
			return nil, fmt.Errorf("%w: index at %s was created with profile %s",
				ErrInvalidArgument, path, man.Profile)
		}
	case errors.Is(err, os.ErrNotExist):
		man = nil
	default:
		return nil, translateError(err)
	}

	flk, err := lockDir(path)
	if err != nil {
		return nil, err
	}

	keep := make(map[model.SegmentID]struct{})
	if man != nil {
		for _, info := range man.Segments {
			keep[info.ID] = struct{}{}
		}
	}
	if err := sweepStray(fsys, path, keep); err != nil {
		_ = flk.Unlock()
		return nil, translateError(err)
	}

	if man == nil {
		man = &manifest.Manifest{Profile: profile, NextSegmentID: 1}
		if err := manStore.Save(man); err != nil {
			_ = flk.Unlock()
			return nil, translateError(err)
		}
	}

	idx, err := newIndex(path, fsys, manStore, man, flk, opts)
	if err != nil {
		return nil, err
	}
	idx.logger.LogOpen(path, idx.profile, len(idx.snap.Load().segments), nil)
	return idx, nil
}

// Open opens an existing index at path. It returns ErrNotFound when nothing
// was ever created there and ErrCorruption when metadata or segments are
// malformed. Open never creates files on a path without an index.
func Open(path string, optFns ...Option) (*Index, error) {
	opts := applyOptions(optFns)

	fsys := fs.Default
	manStore := manifest.NewStore(fsys, path)
	man, err := manStore.Load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: no index at %s", ErrNotFound, path)
		}
		return nil, translateError(err)
	}

	flk, err := lockDir(path)
	if err != nil {
		return nil, err
	}

	idx, err := newIndex(path, fsys, manStore, man, flk, opts)
	if err != nil {
		return nil, err
	}
	idx.logger.LogOpen(path, idx.profile, len(idx.snap.Load().segments), nil)
	return idx, nil
}

// lockDir acquires the directory's writer lock without blocking. A held lock
// means another process owns the index.
func lockDir(path string) (*flock.Flock, error) {
	flk := flock.New(filepath.Join(path, LockFileName))
	locked, err := flk.TryLock()
	if err != nil {
		return nil, fmt.Errorf("%w: acquiring %s: %w", ErrIO, LockFileName, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: index at %s is locked by another process", ErrIO, path)
	}
	return flk, nil
}

// newIndex wires the runtime around a loaded manifest: block cache, resource
// controller, blob store, the committed segments and a fresh builder. It owns
// flk; every failure path releases the lock.
func newIndex(dir string, fsys fs.FileSystem, manStore *manifest.Store, man *manifest.Manifest, flk *flock.Flock, opts options) (*Index, error) {
	fail := func(err error) (*Index, error) {
		_ = flk.Unlock()
		return nil, translateError(err)
	}

	bcache, err := cache.NewBlockCache(opts.blockCacheCapacity)
	if err != nil {
		return fail(err)
	}

	idx := &Index{
		dir:     dir,
		profile: man.Profile,
		logger:  opts.logger,
		metrics: opts.metricsCollector,
		fsys:    fsys,
		store:   blobstore.NewLocalStore(dir),
		bcache:  bcache,
		ctrl: resource.NewController(resource.Config{
			MemoryLimitBytes: int64(opts.memoryLimitBytes),
			IngestDocsPerSec: opts.ingestDocsPerSec,
		}),
		flk:            flk,
		manStore:       manStore,
		exec:           query.New(man.Profile),
		maxSegmentDocs: opts.maxSegmentDocs,
		man:            man,
	}

	segments, err := idx.openSegments(context.Background(), man.Segments)
	if err != nil {
		return fail(err)
	}

	builder, err := segment.NewBuilder(man.Profile, idx.ctrl)
	if err != nil {
		closeAll(segments)
		return fail(err)
	}

	idx.snap.Store(&snapshot{
		segments:  segments,
		builder:   builder,
		builderID: man.NextSegmentID,
	})
	return idx, nil
}

// openSegments maps and verifies the committed segments in parallel. On any
// failure the already opened segments are closed and nothing leaks.
func (idx *Index) openSegments(ctx context.Context, infos []manifest.SegmentInfo) ([]*segment.Segment, error) {
	if len(infos) == 0 {
		return nil, nil
	}

	segments := make([]*segment.Segment, len(infos))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, info := range infos {
		g.Go(func() error {
			seg, err := segment.Open(ctx, idx.store, idx.bcache, idx.profile, info)
			if err != nil {
				return fmt.Errorf("segment %d: %w", info.ID, err)
			}
			segments[i] = seg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		closeAll(segments)
		return nil, err
	}
	return segments, nil
}

func closeAll(segments []*segment.Segment) {
	for _, seg := range segments {
		if seg != nil {
			_ = seg.Close()
		}
	}
}

// sweepStray deletes temp files and segment files whose id is not in keep.
// Manifest files, CURRENT and LOCK are never touched. Callers must hold the
// directory lock.
func sweepStray(fsys fs.FileSystem, dir string, keep map[model.SegmentID]struct{}) error {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".tmp") {
			if err := fsys.Remove(filepath.Join(dir, name)); err != nil {
				return err
			}
			continue
		}
		id, _, ok := segment.ParseFileName(name)
		if !ok {
			continue
		}
		if _, live := keep[id]; live {
			continue
		}
		if err := fsys.Remove(filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}
