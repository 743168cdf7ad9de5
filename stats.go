package lexgo

import (
	"github.com/hupe1980/lexgo/model"
)

// Profile returns the postings profile the index was created with.
func (idx *Index) Profile() model.Profile {
	return idx.profile
}

// DocCount returns the number of searchable documents: committed segments,
// sealed-but-uncommitted segments and the open builder together.
func (idx *Index) DocCount() (uint64, error) {
	idx.op.RLock()
	defer idx.op.RUnlock()
	if idx.closed.Load() {
		return 0, ErrClosed
	}

	snap := idx.snap.Load()
	var n uint64
	for _, seg := range snap.segments {
		n += uint64(seg.DocCount())
	}
	return n + uint64(snap.builder.DocCount()), nil
}

// MemoryStats reports the byte accounting of the open index. Mapped segment
// files count under MmapBytes, separate from owned memory; IndexBytes covers
// segment artifacts plus the builder's resident accumulators.
func (idx *Index) MemoryStats() (model.MemoryStats, error) {
	idx.op.RLock()
	defer idx.op.RUnlock()
	if idx.closed.Load() {
		return model.MemoryStats{}, ErrClosed
	}

	snap := idx.snap.Load()
	var stats model.MemoryStats
	for _, seg := range snap.segments {
		info := seg.Info()
		stats.IndexBytes += uint64(info.DictBytes + info.PostBytes + info.DocsBytes)
		stats.TermDictBytes += uint64(info.DictBytes)
		stats.PostingsBytes += uint64(info.PostBytes)
		stats.MmapBytes += uint64(seg.MmapBytes())
		stats.DocsIndexed += uint64(seg.DocCount())
	}
	stats.IndexBytes += uint64(snap.builder.MemoryBytes())
	stats.DocsIndexed += uint64(snap.builder.DocCount())
	return stats, nil
}
