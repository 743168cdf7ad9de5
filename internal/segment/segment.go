// Package segment builds and reads the immutable segments of an index.
//
// A segment is three files: a term dictionary, an encoded postings blob and
// a block-compressed document store, all framed by the same checksummed
// container format. The Builder accumulates documents in memory and serves
// live searches; Seal freezes it into the three artifacts; Open maps a
// sealed segment back in for querying.
package segment

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/lexgo/blobstore"
	"github.com/hupe1980/lexgo/internal/cache"
	"github.com/hupe1980/lexgo/manifest"
	"github.com/hupe1980/lexgo/model"
	"github.com/hupe1980/lexgo/postings"
)

// Segment is one sealed segment opened for reading. It is immutable and
// safe for concurrent use; all mutation ended at Seal.
type Segment struct {
	id      model.SegmentID
	profile model.Profile
	codec   postings.Codec
	info    manifest.SegmentInfo

	dict     *Dictionary
	dictBlob blobstore.Blob
	post     blobstore.Blob
	postData []byte
	docs     *DocStore

	mmapBytes int64
}

// Open opens the three artifacts of the segment described by info,
// validating container frames and the manifest-recorded sizes. Postings and
// dictionary bytes are served zero-copy when the store hands out mappable
// blobs; otherwise the dictionary is loaded eagerly and postings lists are
// fetched per term.
func Open(ctx context.Context, store blobstore.BlobStore, bc *cache.BlockCache, profile model.Profile, info manifest.SegmentInfo) (*Segment, error) {
	codec, err := postings.ForProfile(profile)
	if err != nil {
		return nil, err
	}
	s := &Segment{id: info.ID, profile: profile, codec: codec, info: info}

	var opened []io.Closer
	fail := func(err error) (*Segment, error) {
		for _, c := range opened {
			c.Close()
		}
		return nil, err
	}

	openBlob := func(suffix string, wantSize int64, magic [4]byte) (blobstore.Blob, int64, error) {
		name := FileName(info.ID, suffix)
		blob, err := store.Open(ctx, name)
		if err != nil {
			if errors.Is(err, blobstore.ErrNotFound) {
				return nil, 0, fmt.Errorf("%w: missing segment file %s", ErrCorrupt, name)
			}
			return nil, 0, err
		}
		opened = append(opened, blob)
		if blob.Size() != wantSize {
			return nil, 0, fmt.Errorf("%w: %s: %d bytes on disk, manifest records %d", ErrCorrupt, name, blob.Size(), wantSize)
		}
		payloadLen, err := verifyContainer(ctx, blob, name, magic, profile)
		if err != nil {
			return nil, 0, err
		}
		if m, ok := blob.(blobstore.Mappable); ok {
			if _, err := m.Bytes(); err == nil {
				s.mmapBytes += blob.Size()
			}
		}
		return blob, payloadLen, nil
	}

	dictBlob, dictPayloadLen, err := openBlob(DictSuffix, info.DictBytes, dictMagic)
	if err != nil {
		return fail(err)
	}
	dictPayload, err := containerPayload(ctx, dictBlob, dictPayloadLen)
	if err != nil {
		return fail(err)
	}
	if s.dict, err = newDictionary(dictPayload); err != nil {
		return fail(fmt.Errorf("%s: %w", FileName(info.ID, DictSuffix), err))
	}
	s.dictBlob = dictBlob

	postBlob, _, err := openBlob(PostSuffix, info.PostBytes, postMagic)
	if err != nil {
		return fail(err)
	}
	s.post = postBlob
	if m, ok := postBlob.(blobstore.Mappable); ok {
		if s.postData, err = m.Bytes(); err != nil {
			return fail(err)
		}
	}

	docsBlob, docsPayloadLen, err := openBlob(DocsSuffix, info.DocsBytes, docsMagic)
	if err != nil {
		return fail(err)
	}
	if s.docs, err = openDocStore(ctx, docsBlob, FileName(info.ID, DocsSuffix), info.ID, docsPayloadLen, bc); err != nil {
		return fail(err)
	}

	return s, nil
}

// containerPayload returns the payload bytes of a frame-verified blob,
// aliasing the mapping when possible.
func containerPayload(ctx context.Context, b blobstore.Blob, payloadLen int64) ([]byte, error) {
	if m, ok := b.(blobstore.Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return nil, err
		}
		return data[headerSize : headerSize+payloadLen], nil
	}
	buf := make([]byte, payloadLen)
	if _, err := b.ReadAt(ctx, buf, headerSize); err != nil {
		return nil, err
	}
	return buf, nil
}

// ID returns the segment id.
func (s *Segment) ID() model.SegmentID { return s.id }

// DocCount returns the number of documents in the segment.
func (s *Segment) DocCount() uint32 { return s.info.Docs }

// Info returns the manifest entry the segment was opened from.
func (s *Segment) Info() manifest.SegmentInfo { return s.info }

// TermCount returns the number of distinct terms.
func (s *Segment) TermCount() int { return s.dict.Len() }

// MmapBytes reports how many of the segment's bytes are served by memory
// mapping rather than owned allocations.
func (s *Segment) MmapBytes() int64 { return s.mmapBytes }

// TermStats returns the dictionary entry for term. The query planner uses
// DocFreq and MaxWeight without touching postings bytes.
func (s *Segment) TermStats(term string) (DictEntry, bool) {
	return s.dict.Lookup(term)
}

// Postings opens an iterator over term's postings list. ok is false when
// the segment has no such term, which is a normal miss, not an error.
func (s *Segment) Postings(ctx context.Context, term string) (it postings.Iterator, ok bool, err error) {
	e, found := s.dict.Lookup(term)
	if !found {
		return nil, false, nil
	}

	start := headerSize + int64(e.PostOff)
	end := start + int64(e.PostLen)
	if end > s.post.Size()-footerSize {
		return nil, false, fmt.Errorf("%w: %s: postings list for %q overruns file", ErrCorrupt, FileName(s.id, PostSuffix), term)
	}

	var data []byte
	if s.postData != nil {
		data = s.postData[start:end]
	} else {
		data = make([]byte, e.PostLen)
		if _, err := s.post.ReadAt(ctx, data, start); err != nil {
			return nil, false, err
		}
	}

	it, err = s.codec.Iterator(data)
	if err != nil {
		return nil, false, err
	}
	return it, true, nil
}

// Doc returns the stored document with the given segment-local id.
func (s *Segment) Doc(ctx context.Context, id model.DocID) (model.Document, error) {
	return s.docs.Doc(ctx, id)
}

// Close releases the underlying blobs and evicts the segment's cached
// blocks.
func (s *Segment) Close() error {
	var errs []error
	if s.dictBlob != nil {
		errs = append(errs, s.dictBlob.Close())
	}
	if s.post != nil {
		errs = append(errs, s.post.Close())
	}
	if s.docs != nil {
		errs = append(errs, s.docs.Close())
	}
	return errors.Join(errs...)
}
