package segment

import (
	"context"
	"errors"
	"io"
	"maps"
	"math"
	"path/filepath"
	"slices"
	"sync"

	"github.com/hupe1980/lexgo/internal/fs"
	"github.com/hupe1980/lexgo/internal/resource"
	"github.com/hupe1980/lexgo/manifest"
	"github.com/hupe1980/lexgo/model"
	"github.com/hupe1980/lexgo/postings"
	"github.com/hupe1980/lexgo/tokenizer"
)

// BM25 parameters, fixed for all profiles so rankings agree across them.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Per-item bookkeeping estimates for the memory charge. They cover map and
// slice headers, not just payload bytes, so the charge errs high.
const (
	docOverheadBytes  = 64
	termOverheadBytes = 48
	postingBytes      = 8
)

// bm25IDF is ln(1 + (N - df + 0.5)/(df + 0.5)). Always positive: a term
// present in every document still contributes to its score.
func bm25IDF(n, df int) float64 {
	return math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
}

// bm25Weight combines idf with a length-normalized term frequency.
func bm25Weight(idf, tf, docLen, avgLen float64) float32 {
	norm := tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*docLen/avgLen))
	return float32(idf * norm)
}

// termList accumulates one term's postings. Weight holds the raw term
// frequency until Seal computes the final weights.
type termList struct {
	list []postings.Posting
}

// Builder accumulates documents for the one in-progress segment of an
// index. Adds are serialized by the index's writer path; live searches read
// concurrently under the read lock.
//
// Weights freeze at Seal. Live reads compute them on the fly from the
// current accumulator statistics, so a buffered document's score can drift
// slightly as more documents arrive, and settles once the segment seals.
type Builder struct {
	profile model.Profile
	codec   postings.Codec
	ctrl    *resource.Controller

	mu          sync.RWMutex
	terms       map[string]*termList
	docs        []docRecord
	totalTokens uint64
	charged     int64
}

// NewBuilder returns an empty builder for the given profile.
func NewBuilder(profile model.Profile, ctrl *resource.Controller) (*Builder, error) {
	codec, err := postings.ForProfile(profile)
	if err != nil {
		return nil, err
	}
	return &Builder{
		profile: profile,
		codec:   codec,
		ctrl:    ctrl,
		terms:   make(map[string]*termList),
	}, nil
}

// Add tokenizes doc, assigns the next doc id and appends to the per-term
// accumulators. The estimated footprint is charged against the resource
// controller before anything is mutated, so a rejected add leaves the
// builder unchanged.
func (b *Builder) Add(doc model.Document) error {
	freqs := make(map[string]int)
	tokens := 0
	for term := range tokenizer.Terms(doc.Text) {
		freqs[term]++
		tokens++
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	cost := int64(len(doc.ExternalID)+len(doc.Text)) + docOverheadBytes
	for term := range freqs {
		if _, ok := b.terms[term]; !ok {
			cost += int64(len(term)) + termOverheadBytes
		}
		cost += postingBytes
	}
	if err := b.ctrl.AcquireMemory(cost); err != nil {
		return err
	}

	docID := uint32(len(b.docs))
	for term, tf := range freqs {
		tl := b.terms[term]
		if tl == nil {
			tl = &termList{}
			b.terms[term] = tl
		}
		tl.list = append(tl.list, postings.Posting{Doc: docID, Weight: float32(tf)})
	}
	b.docs = append(b.docs, docRecord{
		externalID: doc.ExternalID,
		text:       doc.Text,
		length:     uint32(tokens),
	})
	b.totalTokens += uint64(tokens)
	b.charged += cost
	return nil
}

// DocCount returns the number of buffered documents.
func (b *Builder) DocCount() uint32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return uint32(len(b.docs))
}

// Empty reports whether the builder holds no documents.
func (b *Builder) Empty() bool { return b.DocCount() == 0 }

// MemoryBytes returns the estimated footprint of the accumulators.
func (b *Builder) MemoryBytes() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.charged
}

// Doc returns a buffered document by its segment-local id.
func (b *Builder) Doc(id model.DocID) (model.Document, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if int(id) >= len(b.docs) {
		return model.Document{}, false
	}
	d := b.docs[id]
	return model.Document{ExternalID: d.externalID, Text: d.text}, true
}

// TermPostings returns a weighted snapshot of one term's postings, scored
// with the accumulator's current statistics, or nil when the term is
// absent. The slice is freshly allocated; iterate it with
// postings.IterSlice.
func (b *Builder) TermPostings(term string) []postings.Posting {
	b.mu.RLock()
	defer b.mu.RUnlock()

	tl := b.terms[term]
	if tl == nil {
		return nil
	}
	avg := b.avgLenLocked()
	idf := bm25IDF(len(b.docs), len(tl.list))
	out := make([]postings.Posting, len(tl.list))
	for i, p := range tl.list {
		docLen := float64(b.docs[p.Doc].length)
		out[i] = postings.Posting{Doc: p.Doc, Weight: bm25Weight(idf, float64(p.Weight), docLen, avg)}
	}
	return out
}

func (b *Builder) avgLenLocked() float64 {
	if len(b.docs) == 0 || b.totalTokens == 0 {
		return 1
	}
	return float64(b.totalTokens) / float64(len(b.docs))
}

// Seal freezes the builder into segment id under dir: weights are computed
// with the final segment statistics, every postings list is encoded with
// the index codec and the three artifacts are written atomically, in the
// order postings, dictionary, document store. On success the charged memory
// is released and the builder must not receive further adds. On failure the
// accumulators are intact and partially written files have been removed, so
// a retry or the orphan sweep sees no half-segment.
func (b *Builder) Seal(ctx context.Context, fsys fs.FileSystem, dir string, id model.SegmentID) (manifest.SegmentInfo, error) {
	b.mu.RLock()
	info, err := b.sealLocked(ctx, fsys, dir, id)
	b.mu.RUnlock()
	if err != nil {
		return manifest.SegmentInfo{}, err
	}

	b.mu.Lock()
	b.ctrl.ReleaseMemory(b.charged)
	b.charged = 0
	b.mu.Unlock()
	return info, nil
}

func (b *Builder) sealLocked(ctx context.Context, fsys fs.FileSystem, dir string, id model.SegmentID) (manifest.SegmentInfo, error) {
	if len(b.docs) == 0 {
		return manifest.SegmentInfo{}, errors.New("segment: seal of an empty builder")
	}

	terms := slices.Sorted(maps.Keys(b.terms))
	entries := make([]DictEntry, len(terms))
	n := len(b.docs)
	avg := b.avgLenLocked()

	postName := FileName(id, PostSuffix)
	postSize, err := writeSegmentFile(fsys, dir, postName, postMagic, b.profile, func(w io.Writer) error {
		var off uint64
		var enc []byte
		weighted := make([]postings.Posting, 0, 1024)
		for i, term := range terms {
			if i&0x3ff == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			tl := b.terms[term]
			idf := bm25IDF(n, len(tl.list))
			maxWeight := float32(0)
			weighted = weighted[:0]
			for _, p := range tl.list {
				w := bm25Weight(idf, float64(p.Weight), float64(b.docs[p.Doc].length), avg)
				if w > maxWeight {
					maxWeight = w
				}
				weighted = append(weighted, postings.Posting{Doc: p.Doc, Weight: w})
			}

			var err error
			enc, err = b.codec.Encode(enc[:0], weighted)
			if err != nil {
				return err
			}
			if _, err := w.Write(enc); err != nil {
				return err
			}
			entries[i] = DictEntry{
				PostOff:   off,
				PostLen:   uint32(len(enc)),
				DocFreq:   uint32(len(tl.list)),
				MaxWeight: maxWeight,
			}
			off += uint64(len(enc))
		}
		return nil
	})
	if err != nil {
		return manifest.SegmentInfo{}, err
	}

	dictName := FileName(id, DictSuffix)
	dictSize, err := writeSegmentFile(fsys, dir, dictName, dictMagic, b.profile, func(w io.Writer) error {
		return writeDictionary(w, terms, entries)
	})
	if err != nil {
		fsys.Remove(filepath.Join(dir, postName))
		return manifest.SegmentInfo{}, err
	}

	docsName := FileName(id, DocsSuffix)
	docsSize, err := writeSegmentFile(fsys, dir, docsName, docsMagic, b.profile, func(w io.Writer) error {
		return writeDocStore(w, b.docs, compressionFor(b.profile))
	})
	if err != nil {
		fsys.Remove(filepath.Join(dir, postName))
		fsys.Remove(filepath.Join(dir, dictName))
		return manifest.SegmentInfo{}, err
	}

	if err := fs.SyncDir(fsys, dir); err != nil {
		return manifest.SegmentInfo{}, err
	}

	return manifest.SegmentInfo{
		ID:        id,
		Docs:      uint32(n),
		DictBytes: dictSize,
		PostBytes: postSize,
		DocsBytes: docsSize,
	}, nil
}

// Release drops the charged memory without sealing. The index calls it when
// it discards the builder on clear or close.
func (b *Builder) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ctrl.ReleaseMemory(b.charged)
	b.charged = 0
}
