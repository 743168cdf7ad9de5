package query

import (
	"context"

	"github.com/hupe1980/lexgo/model"
	"github.com/hupe1980/lexgo/postings"
)

// ctxCheckMask spaces the context checks: one check per 1024 scoring steps.
const ctxCheckMask = 0x3ff

// mergeLinear scores every matching document with a document-at-a-time walk
// across the term iterators: advance the minimum doc id, sum the weights of
// the lists positioned on it, offer the hit. No pruning.
func mergeLinear(ctx context.Context, its []postings.Iterator, seg model.SegmentID, h *hitHeap) error {
	live := primed(its)

	steps := 0
	for len(live) > 0 {
		if steps&ctxCheckMask == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		steps++

		minDoc := uint32(postings.DocEOF)
		for _, it := range live {
			if d := it.Doc(); d < minDoc {
				minDoc = d
			}
		}

		var score float32
		n := 0
		for _, it := range live {
			if it.Doc() == minDoc {
				score += it.Weight()
				if !it.Next() {
					continue
				}
			}
			live[n] = it
			n++
		}
		live = live[:n]

		h.Push(hit{
			loc:   model.Location{SegmentID: seg, DocID: model.DocID(minDoc)},
			score: score,
		})
	}
	return nil
}

// mergeWAND scores matching documents with Block-Max WAND. Iterators stay
// sorted by current doc id; the pivot is the shortest prefix whose summed
// list max weights beat the heap threshold. A pivot candidate is scored only
// when the block maxima of the lists sitting on it still beat the threshold;
// otherwise every aligned list jumps past the earliest block boundary, which
// SeekGE resolves through the block index without decoding the skipped
// blocks.
//
// Pruning with a non-strict threshold comparison is safe for the tie rule:
// doc ids rise monotonically during the merge, so a later candidate that
// only ties the heap's weakest score also loses the location tie-break.
func mergeWAND(ctx context.Context, its []postings.Iterator, seg model.SegmentID, h *hitHeap) error {
	live := primed(its)

	steps := 0
	for len(live) > 0 {
		if steps&ctxCheckMask == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		steps++

		sortByDoc(live)
		for len(live) > 0 && live[len(live)-1].Doc() == postings.DocEOF {
			live = live[:len(live)-1]
		}
		if len(live) == 0 {
			break
		}

		threshold := h.Threshold()

		// Pivot selection by whole-list maxima. No qualifying prefix
		// means no remaining document can enter the heap.
		pivot := -1
		var ub float32
		for i, it := range live {
			ub += it.MaxWeight()
			if ub > threshold {
				pivot = i
				break
			}
		}
		if pivot < 0 {
			break
		}
		pivotDoc := live[pivot].Doc()

		if live[0].Doc() != pivotDoc {
			// Lists ahead of the pivot are still behind pivotDoc. Align
			// them; the next round re-evaluates.
			for _, it := range live[:pivot] {
				if it.Doc() < pivotDoc {
					it.SeekGE(pivotDoc)
				}
			}
			continue
		}

		// Every list up to the pivot sits on pivotDoc. Later lists may
		// have reached it too; they contribute to the score as well.
		end := pivot
		for end+1 < len(live) && live[end+1].Doc() == pivotDoc {
			end++
		}

		var blockUB float32
		for _, it := range live[:end+1] {
			blockUB += it.BlockMax()
		}
		if blockUB > threshold {
			var score float32
			for _, it := range live[:end+1] {
				score += it.Weight()
				it.Next()
			}
			h.Push(hit{
				loc:   model.Location{SegmentID: seg, DocID: model.DocID(pivotDoc)},
				score: score,
			})
			continue
		}

		// The current blocks cannot produce a competitive score before the
		// earliest of their boundaries, and lists beyond end hold no doc
		// below their current position. Jump the aligned lists to the
		// nearest of the two frontiers.
		next := uint32(postings.DocEOF)
		for _, it := range live[:end+1] {
			if last := it.BlockLastDoc(); last < next {
				next = last
			}
		}
		target := next + 1
		if end+1 < len(live) {
			if d := live[end+1].Doc(); d < target {
				target = d
			}
		}
		if target <= pivotDoc {
			target = pivotDoc + 1
		}
		for _, it := range live[:end+1] {
			if it.Doc() < target {
				it.SeekGE(target)
			}
		}
	}
	return nil
}

// primed advances every iterator onto its first posting and drops the empty
// ones.
func primed(its []postings.Iterator) []postings.Iterator {
	live := make([]postings.Iterator, 0, len(its))
	for _, it := range its {
		if it.Next() {
			live = append(live, it)
		}
	}
	return live
}

// sortByDoc orders the iterators by current doc id. Insertion sort: the
// slice is nearly sorted after every advance.
func sortByDoc(its []postings.Iterator) {
	for i := 1; i < len(its); i++ {
		for j := i; j > 0 && its[j].Doc() < its[j-1].Doc(); j-- {
			its[j], its[j-1] = its[j-1], its[j]
		}
	}
}
