package lexgo

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/lexgo/internal/segment"
	"github.com/hupe1980/lexgo/manifest"
)

// Commit makes the sealed state durable: it seals the open builder when it
// holds documents, then writes a manifest naming every sealed segment. The
// new manifest replaces the old one atomically, so a crash leaves either the
// previous commit or this one, never a mix. With nothing pending Commit is a
// no-op: no new segment, no manifest churn.
//
// Concurrent searches observe the pre- or post-commit segment set, never a
// partial one.
func (idx *Index) Commit(ctx context.Context) error {
	start := time.Now()
	segments, err := idx.commit(ctx)
	duration := time.Since(start)

	err = translateError(err)
	idx.metrics.RecordCommit(duration, err)
	idx.logger.LogCommit(ctx, segments, duration, err)
	return err
}

func (idx *Index) commit(ctx context.Context) (int, error) {
	idx.op.RLock()
	defer idx.op.RUnlock()
	if idx.closed.Load() {
		return 0, ErrClosed
	}

	idx.writer.Lock()
	defer idx.writer.Unlock()

	if err := ctx.Err(); err != nil {
		return len(idx.man.Segments), err
	}

	if !idx.snap.Load().builder.Empty() {
		if err := idx.sealLocked(ctx); err != nil {
			return len(idx.man.Segments), err
		}
	}
	if len(idx.pending) == 0 {
		return len(idx.man.Segments), nil
	}

	next := *idx.man
	next.Segments = make([]manifest.SegmentInfo, 0, len(idx.man.Segments)+len(idx.pending))
	next.Segments = append(next.Segments, idx.man.Segments...)
	next.Segments = append(next.Segments, idx.pending...)
	next.NextSegmentID = idx.snap.Load().builderID

	if err := idx.manStore.Save(&next); err != nil {
		return len(idx.man.Segments), err
	}

	idx.man = &next
	idx.pending = nil
	return len(next.Segments), nil
}

// Clear drops every segment, committed and pending, deletes their files and
// resets the index to the fresh-create state under the same profile. It
// waits for in-flight operations to drain first.
func (idx *Index) Clear(ctx context.Context) error {
	start := time.Now()
	dropped, err := idx.clear(ctx)
	duration := time.Since(start)

	err = translateError(err)
	idx.metrics.RecordClear(duration, err)
	idx.logger.LogClear(ctx, dropped, err)
	return err
}

func (idx *Index) clear(ctx context.Context) (int, error) {
	idx.op.Lock()
	defer idx.op.Unlock()
	if idx.closed.Load() {
		return 0, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	builder, err := segment.NewBuilder(idx.profile, idx.ctrl)
	if err != nil {
		return 0, err
	}

	// Persist the empty state first. If the save fails, nothing visible has
	// changed yet.
	next := &manifest.Manifest{ID: idx.man.ID, Profile: idx.profile, NextSegmentID: 1}
	if err := idx.manStore.Save(next); err != nil {
		return 0, err
	}

	old := idx.snap.Swap(&snapshot{builder: builder, builderID: 1})
	idx.man = next
	idx.pending = nil

	dropped := len(old.segments)

	var errs []error
	for _, seg := range old.segments {
		if err := seg.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	old.builder.Release()
	idx.bcache.Purge()

	if err := sweepStray(idx.fsys, idx.dir, nil); err != nil {
		errs = append(errs, err)
	}
	return dropped, errors.Join(errs...)
}
