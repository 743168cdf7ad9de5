package lexgo

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/hupe1980/lexgo/internal/segment"
	"github.com/hupe1980/lexgo/model"
)

// ingestProgressGroup is the document group size between progress callbacks,
// context checks and throttle waits.
const ingestProgressGroup = 1000

// IngestBatch streams docs through the open builder and returns the number
// actually indexed. Documents with an empty external id are skipped, not
// fatal. progress is optional and runs synchronously on the caller's
// goroutine: once at the start (0, total), after every group of 1,000
// documents, and once at completion.
//
// When the builder reaches the segment ceiling the batch seals it in place
// and continues into a fresh one; the sealed documents stay searchable
// throughout.
func (idx *Index) IngestBatch(ctx context.Context, docs []model.Document, progress model.ProgressFunc) (uint64, error) {
	start := time.Now()
	indexed, err := idx.ingest(ctx, docs, progress)
	duration := time.Since(start)

	err = translateError(err)
	idx.metrics.RecordIngest(len(docs), int(indexed), duration, err)
	idx.logger.LogIngest(ctx, len(docs), indexed, err)
	return indexed, err
}

// IngestBatchBinary ingests documents from the compact wire form: per
// record a 4-byte little-endian id length, the id bytes, a 4-byte
// little-endian text length and the text bytes, repeated docCount times.
// Malformed framing (a truncated record, a length beyond the remaining
// payload, trailing bytes) rejects the whole payload with
// ErrInvalidArgument before anything is indexed.
func (idx *Index) IngestBatchBinary(ctx context.Context, wire []byte, docCount uint32, progress model.ProgressFunc) (uint64, error) {
	start := time.Now()

	docs, err := decodeBinaryDocs(wire, docCount)
	var indexed uint64
	if err == nil {
		indexed, err = idx.ingest(ctx, docs, progress)
	}
	duration := time.Since(start)

	err = translateError(err)
	idx.metrics.RecordIngest(int(docCount), int(indexed), duration, err)
	idx.logger.LogIngest(ctx, int(docCount), indexed, err)
	return indexed, err
}

func (idx *Index) ingest(ctx context.Context, docs []model.Document, progress model.ProgressFunc) (uint64, error) {
	idx.op.RLock()
	defer idx.op.RUnlock()
	if idx.closed.Load() {
		return 0, ErrClosed
	}

	idx.writer.Lock()
	defer idx.writer.Unlock()

	total := uint64(len(docs))
	if progress != nil {
		progress(0, total)
	}

	var indexed uint64
	snap := idx.snap.Load()
	for off := 0; off < len(docs); off += ingestProgressGroup {
		end := min(off+ingestProgressGroup, len(docs))
		group := docs[off:end]

		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		if err := idx.ctrl.WaitIngest(ctx, len(group)); err != nil {
			return indexed, err
		}

		for _, doc := range group {
			if doc.ExternalID == "" {
				continue
			}
			if err := snap.builder.Add(doc); err != nil {
				return indexed, err
			}
			indexed++

			if snap.builder.DocCount() >= idx.maxSegmentDocs {
				if err := idx.sealLocked(ctx); err != nil {
					return indexed, err
				}
				snap = idx.snap.Load()
			}
		}

		if progress != nil && end < len(docs) {
			progress(indexed, total)
		}
	}

	if progress != nil {
		progress(indexed, total)
	}
	return indexed, nil
}

// sealLocked freezes the open builder into segment files on disk, opens the
// result and swaps a snapshot with the new segment and a fresh builder. The
// segment is searchable from that moment; the manifest records it at the
// next Commit. Callers hold the writer lock and must not call this on an
// empty builder.
//
// On failure the snapshot is unchanged and the builder keeps its documents,
// so the seal can be retried under the same segment id.
func (idx *Index) sealLocked(ctx context.Context) error {
	start := time.Now()
	snap := idx.snap.Load()
	id := snap.builderID
	docs := snap.builder.DocCount()

	info, err := snap.builder.Seal(ctx, idx.fsys, idx.dir, id)
	if err != nil {
		idx.metrics.RecordSeal(int(docs), time.Since(start), err)
		idx.logger.LogSeal(ctx, id, docs, err)
		return err
	}

	seg, err := segment.Open(ctx, idx.store, idx.bcache, idx.profile, info)
	if err != nil {
		err = fmt.Errorf("reopening sealed segment %d: %w", id, err)
		idx.metrics.RecordSeal(int(docs), time.Since(start), err)
		idx.logger.LogSeal(ctx, id, docs, err)
		return err
	}

	builder, err := segment.NewBuilder(idx.profile, idx.ctrl)
	if err != nil {
		_ = seg.Close()
		idx.metrics.RecordSeal(int(docs), time.Since(start), err)
		idx.logger.LogSeal(ctx, id, docs, err)
		return err
	}

	segments := make([]*segment.Segment, len(snap.segments), len(snap.segments)+1)
	copy(segments, snap.segments)
	segments = append(segments, seg)

	idx.snap.Store(&snapshot{
		segments:  segments,
		builder:   builder,
		builderID: id + 1,
	})
	idx.pending = append(idx.pending, info)

	idx.metrics.RecordSeal(int(docs), time.Since(start), nil)
	idx.logger.LogSeal(ctx, id, docs, nil)
	return nil
}

// decodeBinaryDocs parses the whole payload before any document is indexed:
// a batch either ingests from byte zero or fails whole.
func decodeBinaryDocs(wire []byte, docCount uint32) ([]model.Document, error) {
	size := uint64(len(wire))

	// Two length prefixes is the least a record can occupy. This bounds the
	// allocation below against a docCount that the payload cannot hold.
	if uint64(docCount)*8 > size {
		return nil, fmt.Errorf("%w: %d documents cannot fit in %d payload bytes", ErrInvalidArgument, docCount, size)
	}

	docs := make([]model.Document, 0, docCount)
	var off uint64
	for i := uint32(0); i < docCount; i++ {
		id, next, err := readBinaryField(wire, off)
		if err != nil {
			return nil, fmt.Errorf("document %d id: %w", i, err)
		}
		text, next, err := readBinaryField(wire, next)
		if err != nil {
			return nil, fmt.Errorf("document %d text: %w", i, err)
		}
		docs = append(docs, model.Document{ExternalID: id, Text: text})
		off = next
	}
	if off != size {
		return nil, fmt.Errorf("%w: %d trailing bytes after %d documents", ErrInvalidArgument, size-off, docCount)
	}
	return docs, nil
}

func readBinaryField(wire []byte, off uint64) (string, uint64, error) {
	size := uint64(len(wire))
	if off+4 > size {
		return "", 0, fmt.Errorf("%w: truncated length prefix at offset %d", ErrInvalidArgument, off)
	}
	n := uint64(binary.LittleEndian.Uint32(wire[off:]))
	off += 4
	if n > size-off {
		return "", 0, fmt.Errorf("%w: length %d exceeds %d remaining bytes", ErrInvalidArgument, n, size-off)
	}
	return string(wire[off : off+n]), off + n, nil
}
