// Package query executes ranked top-k searches across the segments of one
// index snapshot.
//
// Each source is searched independently on an errgroup: a per-source bounded
// heap collects its best candidates and a Roaring bitmap collects its
// matching doc ids for the exact total. The per-source results are merged on
// the calling goroutine under a total order on (score, location), so the
// final ranking is deterministic no matter how the goroutines interleave.
//
// Sealed segments are immutable; the open builder keeps ingesting while
// searches run, so BuilderSource pins per-term snapshots for the duration of
// one call.
package query

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/lexgo/internal/segment"
	"github.com/hupe1980/lexgo/model"
	"github.com/hupe1980/lexgo/postings"
	"github.com/hupe1980/lexgo/tokenizer"
)

// Source is one searchable unit: a sealed segment or the open builder.
type Source interface {
	// ID returns the segment id that candidates from this source carry.
	ID() model.SegmentID
	// Postings opens an iterator over one term's postings list. ok reports
	// whether the source contains the term at all.
	Postings(ctx context.Context, term string) (it postings.Iterator, ok bool, err error)
	// Doc returns a stored document by its segment-local id.
	Doc(ctx context.Context, id model.DocID) (model.Document, error)
}

// Sealed segments satisfy Source directly.
var _ Source = (*segment.Segment)(nil)

// BuilderSource adapts the open builder to the Source interface. The id is
// the one the builder will seal under, so a document keeps its Location
// across the seal.
//
// Per-term postings are memoized on first fetch: the counting and scoring
// passes of one search observe the same snapshot even while ingestion keeps
// appending. Build one per Search call; it must not be shared across calls.
type BuilderSource struct {
	b     *segment.Builder
	segID model.SegmentID
	terms map[string][]postings.Posting
}

// NewBuilderSource wraps the open builder as a searchable source sealing
// into id.
func NewBuilderSource(b *segment.Builder, id model.SegmentID) *BuilderSource {
	return &BuilderSource{b: b, segID: id, terms: make(map[string][]postings.Posting)}
}

// ID returns the segment id the builder seals into.
func (s *BuilderSource) ID() model.SegmentID { return s.segID }

// Postings snapshots one term's accumulated postings, weighted with the
// builder's statistics at first fetch.
func (s *BuilderSource) Postings(_ context.Context, term string) (postings.Iterator, bool, error) {
	ps, cached := s.terms[term]
	if !cached {
		ps = s.b.TermPostings(term)
		s.terms[term] = ps
	}
	if ps == nil {
		return nil, false, nil
	}
	return postings.IterSlice(ps), true, nil
}

// Doc returns a buffered document by its builder-local id.
func (s *BuilderSource) Doc(_ context.Context, id model.DocID) (model.Document, error) {
	doc, ok := s.b.Doc(id)
	if !ok {
		return model.Document{}, fmt.Errorf("query: builder has no document %d", id)
	}
	return doc, nil
}

// Executor runs ranked queries for one index. It is stateless apart from
// the profile dispatch and safe for concurrent use.
type Executor struct {
	profile model.Profile
}

// New returns an executor dispatching on the given profile.
func New(profile model.Profile) *Executor {
	return &Executor{profile: profile}
}

// sourceHits is one source's contribution before the merge.
type sourceHits struct {
	hits    []hit
	matches uint64
}

// Search runs one ranked query across the sources.
//
// limit bounds the returned page and offset skips that many ranked hits
// before it; TotalMatches always counts every matching document. An empty
// query, or one whose tokens all normalize away, returns an empty result
// and no error.
func (e *Executor) Search(ctx context.Context, sources []Source, query string, limit, offset uint32) (*model.SearchResult, error) {
	start := time.Now()

	result := &model.SearchResult{
		Hits:    []model.Hit{},
		Profile: e.profile.String(),
	}

	terms := queryTerms(query)
	if len(terms) == 0 {
		result.Duration = time.Since(start)
		return result, nil
	}

	// Candidates kept per source. Every global top-(limit+offset) hit is in
	// its own source's local top-(limit+offset), so merging the local heaps
	// loses nothing.
	k := int(limit) + int(offset)

	partials := make([]sourceHits, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, src := range sources {
		g.Go(func() error {
			part, err := e.searchSource(gctx, src, terms, k)
			if err != nil {
				return err
			}
			partials[i] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	global := newHitHeap(k)
	for _, part := range partials {
		result.TotalMatches += part.matches
		for _, ht := range part.hits {
			global.Push(ht)
		}
	}

	ranked := global.Sorted()
	if int(offset) < len(ranked) {
		ranked = ranked[offset:]
	} else {
		ranked = nil
	}

	byID := make(map[model.SegmentID]Source, len(sources))
	for _, src := range sources {
		byID[src.ID()] = src
	}
	for _, ht := range ranked {
		doc, err := byID[ht.loc.SegmentID].Doc(ctx, ht.loc.DocID)
		if err != nil {
			return nil, err
		}
		result.Hits = append(result.Hits, model.Hit{
			ExternalID: doc.ExternalID,
			Score:      ht.score,
			Text:       doc.Text,
			Loc:        ht.loc,
		})
	}

	result.Duration = time.Since(start)
	return result, nil
}

// searchSource runs the counting and scoring passes over one source.
func (e *Executor) searchSource(ctx context.Context, src Source, terms []string, k int) (sourceHits, error) {
	if err := ctx.Err(); err != nil {
		return sourceHits{}, err
	}

	// Counting pass. Iterators are single-pass, so the scoring pass below
	// reopens its own.
	matched := roaring.New()
	for _, term := range terms {
		it, ok, err := src.Postings(ctx, term)
		if err != nil {
			return sourceHits{}, err
		}
		if !ok {
			continue
		}
		n := 0
		for it.Next() {
			matched.Add(it.Doc())
			n++
			if n&ctxCheckMask == 0 {
				if err := ctx.Err(); err != nil {
					return sourceHits{}, err
				}
			}
		}
	}
	part := sourceHits{matches: matched.GetCardinality()}
	if part.matches == 0 || k == 0 {
		return part, nil
	}

	its := make([]postings.Iterator, 0, len(terms))
	for _, term := range terms {
		it, ok, err := src.Postings(ctx, term)
		if err != nil {
			return sourceHits{}, err
		}
		if ok {
			its = append(its, it)
		}
	}

	h := newHitHeap(k)
	var err error
	if e.profile == model.ProfileSpeed {
		err = mergeLinear(ctx, its, src.ID(), h)
	} else {
		err = mergeWAND(ctx, its, src.ID(), h)
	}
	if err != nil {
		return sourceHits{}, err
	}
	part.hits = h.Sorted()
	return part, nil
}

// queryTerms tokenizes a query with the indexing tokenizer and deduplicates
// the terms, keeping first-seen order.
func queryTerms(query string) []string {
	var terms []string
	seen := make(map[string]struct{})
	for term := range tokenizer.Terms(query) {
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	return terms
}
