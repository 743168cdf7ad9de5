package model

import (
	"fmt"
	"time"
)

// SegmentID is the unique identifier for a segment within an index.
type SegmentID uint64

// DocID is a dense, segment-local document identifier. It is assigned
// monotonically by the segment builder and never reused within a segment.
type DocID uint32

// Location identifies a document globally: doc ids are unique only within
// their segment, so the pair is the true identity of an indexed document.
type Location struct {
	SegmentID SegmentID
	DocID     DocID
}

// String returns a string representation of the Location.
func (l Location) String() string {
	return fmt.Sprintf("Loc(%d:%d)", l.SegmentID, l.DocID)
}

// Less reports whether l sorts before o. Search ties are broken by
// ascending Location so rankings are stable across runs and profiles.
func (l Location) Less(o Location) bool {
	if l.SegmentID != o.SegmentID {
		return l.SegmentID < o.SegmentID
	}
	return l.DocID < o.DocID
}

// Document is the unit of ingestion: a caller-supplied external id and the
// raw text to index. The external id is opaque to the engine and surfaces
// unchanged in search hits.
type Document struct {
	ExternalID string `json:"id"`
	Text       string `json:"text"`
}

// Hit is a single ranked search result.
type Hit struct {
	// ExternalID is the caller-supplied document id.
	ExternalID string `json:"id"`
	// Score is the summed term weight of the matched query terms.
	Score float32 `json:"score"`
	// Text is the stored document text, empty when text storage is disabled.
	Text string `json:"text,omitempty"`
	// Loc is the internal identity of the hit.
	Loc Location `json:"-"`
}

// SearchResult is the outcome of one search call.
type SearchResult struct {
	// Hits are ranked by descending score, ties broken by ascending Location.
	Hits []Hit `json:"hits"`
	// TotalMatches counts every document containing at least one query term,
	// regardless of limit/offset.
	TotalMatches uint64 `json:"total"`
	// Duration is the wall-clock execution time of the search.
	Duration time.Duration `json:"duration_ns"`
	// Profile is the name of the index profile that served the query.
	Profile string `json:"profile"`
}

// MemoryStats reports byte-level accounting for an open index.
//
// MmapBytes counts memory-mapped (shared, page-cache backed) segment data;
// the remaining fields count owned allocations, so MmapBytes overlaps
// IndexBytes rather than adding to it.
type MemoryStats struct {
	// IndexBytes is the total footprint: sealed artifacts plus the open
	// builder's accumulators.
	IndexBytes uint64 `json:"index_bytes"`
	// TermDictBytes covers the term dictionaries of all sealed segments.
	TermDictBytes uint64 `json:"term_dict_bytes"`
	// PostingsBytes covers the encoded postings of all sealed segments.
	PostingsBytes uint64 `json:"postings_bytes"`
	// DocsIndexed is the number of documents visible to search.
	DocsIndexed uint64 `json:"docs_indexed"`
	// MmapBytes is the portion of IndexBytes served by memory mapping.
	MmapBytes uint64 `json:"mmap_bytes"`
}

// ProgressFunc reports ingestion progress. It is invoked synchronously on
// the ingesting goroutine: once up front with (0, total), after every
// bounded group of documents, and once at completion. Implementations must
// be cheap; the engine never runs them concurrently.
type ProgressFunc func(indexed, total uint64)
