package lexgo

import (
	"context"
	"time"

	"github.com/hupe1980/lexgo/internal/query"
	"github.com/hupe1980/lexgo/model"
)

// Search runs a ranked top-k query over every segment plus the open builder.
// Hits are ordered by score descending with ties broken by ascending
// document identity; the first offset hits after ordering are dropped and at
// most limit are returned. TotalMatches counts every document containing at
// least one query term, regardless of limit.
//
// An empty query, or one whose tokens all normalize away, returns zero hits
// with a nil error. Searches run lock-free against ingestion: each call
// works on the snapshot current at entry.
func (idx *Index) Search(ctx context.Context, q string, limit, offset uint32) (*model.SearchResult, error) {
	start := time.Now()
	res, err := idx.search(ctx, q, limit, offset)
	duration := time.Since(start)

	err = translateError(err)
	var hits int
	var total uint64
	if res != nil {
		hits = len(res.Hits)
		total = res.TotalMatches
	}
	idx.metrics.RecordSearch(hits, duration, err)
	idx.logger.LogSearch(ctx, hits, total, duration, err)
	return res, err
}

func (idx *Index) search(ctx context.Context, q string, limit, offset uint32) (*model.SearchResult, error) {
	idx.op.RLock()
	defer idx.op.RUnlock()
	if idx.closed.Load() {
		return nil, ErrClosed
	}

	snap := idx.snap.Load()
	sources := make([]query.Source, 0, len(snap.segments)+1)
	for _, seg := range snap.segments {
		sources = append(sources, seg)
	}
	if !snap.builder.Empty() {
		sources = append(sources, query.NewBuilderSource(snap.builder, snap.builderID))
	}

	return idx.exec.Search(ctx, sources, q, limit, offset)
}
