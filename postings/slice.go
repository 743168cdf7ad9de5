package postings

// IterSlice returns an Iterator over an in-memory postings slice. The open
// segment builder serves live searches with it, so the unsealed accumulator
// and the sealed codecs present one iteration contract to the query engine.
//
// The slice is retained, not copied: it must be strictly ascending by doc id
// and stay unmodified for the iterator's lifetime. Like the flat layout, the
// whole list acts as a single block.
func IterSlice(ps []Posting) Iterator {
	maxWeight := float32(0)
	for _, p := range ps {
		if p.Weight > maxWeight {
			maxWeight = p.Weight
		}
	}
	return &sliceIterator{ps: ps, maxWeight: maxWeight, pos: -1}
}

type sliceIterator struct {
	ps        []Posting
	maxWeight float32
	pos       int
}

func (it *sliceIterator) Next() bool {
	if it.pos+1 >= len(it.ps) {
		it.pos = len(it.ps)
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator) SeekGE(target uint32) bool {
	if it.pos >= 0 && it.pos < len(it.ps) && it.ps[it.pos].Doc >= target {
		return true
	}
	start := it.pos + 1
	if start >= len(it.ps) {
		it.pos = len(it.ps)
		return false
	}
	lo, hi := start, len(it.ps)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if it.ps[mid].Doc < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	it.pos = lo
	return it.pos < len(it.ps)
}

func (it *sliceIterator) Doc() uint32 {
	if it.pos < 0 || it.pos >= len(it.ps) {
		return DocEOF
	}
	return it.ps[it.pos].Doc
}

func (it *sliceIterator) Weight() float32 {
	return it.ps[it.pos].Weight
}

func (it *sliceIterator) BlockMax() float32 { return it.maxWeight }

func (it *sliceIterator) BlockLastDoc() uint32 {
	if len(it.ps) == 0 {
		return DocEOF
	}
	return it.ps[len(it.ps)-1].Doc
}

func (it *sliceIterator) SkipBlock() bool {
	it.pos = len(it.ps)
	return false
}

func (it *sliceIterator) MaxWeight() float32 { return it.maxWeight }

func (it *sliceIterator) Count() int { return len(it.ps) }
