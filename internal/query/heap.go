package query

import "github.com/hupe1980/lexgo/model"

// hit pairs a candidate location with its summed score while a query runs.
type hit struct {
	loc   model.Location
	score float32
}

// better reports whether a outranks b: higher score first, equal scores
// broken by ascending location so rankings are stable across runs.
func better(a, b hit) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.loc.Less(b.loc)
}

// hitHeap keeps the best capacity hits seen so far. It is a value-based
// min-heap whose root is the weakest kept hit, so a full heap admits a new
// hit by replacing the root when the new hit outranks it.
type hitHeap struct {
	capacity int
	items    []hit
}

func newHitHeap(capacity int) *hitHeap {
	return &hitHeap{capacity: capacity, items: make([]hit, 0, min(capacity, 64))}
}

// Len returns the number of kept hits.
func (h *hitHeap) Len() int { return len(h.items) }

// Full reports whether the heap holds capacity hits.
func (h *hitHeap) Full() bool { return len(h.items) >= h.capacity }

// Threshold returns the score a hit must beat to enter a full heap. While
// the heap still has room every score is competitive and Threshold returns
// -1, which sits below any term weight.
func (h *hitHeap) Threshold() float32 {
	if !h.Full() {
		return -1
	}
	return h.items[0].score
}

// Push offers a hit. A full heap keeps it only when it outranks the current
// weakest entry.
func (h *hitHeap) Push(x hit) {
	if h.capacity <= 0 {
		return
	}
	if len(h.items) < h.capacity {
		h.items = append(h.items, x)
		h.siftUp(len(h.items) - 1)
		return
	}
	if better(x, h.items[0]) {
		h.items[0] = x
		h.siftDown(0)
	}
}

// Sorted drains the heap and returns the hits best first. The heap is empty
// afterwards.
func (h *hitHeap) Sorted() []hit {
	out := make([]hit, len(h.items))
	for i := len(h.items) - 1; i >= 0; i-- {
		out[i] = h.pop()
	}
	return out
}

// pop removes and returns the weakest kept hit.
func (h *hitHeap) pop() hit {
	n := len(h.items)
	item := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return item
}

// less orders the min-heap: i sorts before j when j outranks i, keeping the
// weakest hit at the root.
func (h *hitHeap) less(i, j int) bool {
	return better(h.items[j], h.items[i])
}

func (h *hitHeap) swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
}

// siftUp moves the element at index i up until the heap invariant holds.
func (h *hitHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.less(i, parent) {
			break
		}
		h.swap(i, parent)
		i = parent
	}
}

// siftDown moves the element at index i down until the heap invariant holds.
func (h *hitHeap) siftDown(i int) {
	n := len(h.items)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		child := left
		if right := left + 1; right < n && h.less(right, left) {
			child = right
		}
		if !h.less(child, i) {
			break
		}
		h.swap(i, child)
		i = child
	}
}
