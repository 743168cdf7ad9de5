package postings

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// speedHeaderSize is [count u32][maxWeight f32].
const speedHeaderSize = 8

// speedEntrySize is one (doc u32, weight f32) pair.
const speedEntrySize = 8

// SpeedCodec stores postings as a flat little-endian array of
// (doc id, weight) pairs. No compression, no block structure; queries scan
// the full list. This buys the lowest per-posting decode cost at the price
// of eight bytes per posting.
type SpeedCodec struct{}

// Name implements Codec.
func (SpeedCodec) Name() string { return "speed" }

// Encode implements Codec.
func (SpeedCodec) Encode(dst []byte, ps []Posting) ([]byte, error) {
	if err := validateAscending(ps); err != nil {
		return nil, err
	}

	maxWeight := float32(0)
	for _, p := range ps {
		if p.Weight > maxWeight {
			maxWeight = p.Weight
		}
	}

	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(ps)))
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(maxWeight))
	for _, p := range ps {
		dst = binary.LittleEndian.AppendUint32(dst, p.Doc)
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(p.Weight))
	}
	return dst, nil
}

// Iterator implements Codec.
func (SpeedCodec) Iterator(data []byte) (Iterator, error) {
	if len(data) < speedHeaderSize {
		return nil, fmt.Errorf("%w: speed list shorter than header", ErrCorrupt)
	}
	count := int(binary.LittleEndian.Uint32(data[0:4]))
	maxWeight := math.Float32frombits(binary.LittleEndian.Uint32(data[4:8]))
	if len(data) != speedHeaderSize+count*speedEntrySize {
		return nil, fmt.Errorf("%w: speed list size %d does not match count %d", ErrCorrupt, len(data), count)
	}
	return &speedIterator{
		data:      data[speedHeaderSize:],
		count:     count,
		maxWeight: maxWeight,
		pos:       -1,
	}, nil
}

// Decode implements Codec.
func (c SpeedCodec) Decode(data []byte) ([]Posting, error) {
	it, err := c.Iterator(data)
	if err != nil {
		return nil, err
	}
	return decodeAll(it), nil
}

type speedIterator struct {
	data      []byte
	count     int
	maxWeight float32
	pos       int
}

func (it *speedIterator) docAt(i int) uint32 {
	return binary.LittleEndian.Uint32(it.data[i*speedEntrySize:])
}

func (it *speedIterator) Next() bool {
	if it.pos+1 >= it.count {
		it.pos = it.count
		return false
	}
	it.pos++
	return true
}

func (it *speedIterator) SeekGE(target uint32) bool {
	if it.pos >= 0 && it.pos < it.count && it.docAt(it.pos) >= target {
		return true
	}
	start := it.pos + 1
	if start >= it.count {
		it.pos = it.count
		return false
	}
	// Binary search the remaining suffix.
	off := sort.Search(it.count-start, func(i int) bool {
		return it.docAt(start+i) >= target
	})
	it.pos = start + off
	return it.pos < it.count
}

func (it *speedIterator) Doc() uint32 {
	if it.pos < 0 || it.pos >= it.count {
		return DocEOF
	}
	return it.docAt(it.pos)
}

func (it *speedIterator) Weight() float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(it.data[it.pos*speedEntrySize+4:]))
}

// The flat layout has no blocks; the whole list acts as one block.

func (it *speedIterator) BlockMax() float32 { return it.maxWeight }

func (it *speedIterator) BlockLastDoc() uint32 {
	if it.count == 0 {
		return DocEOF
	}
	return it.docAt(it.count - 1)
}

func (it *speedIterator) SkipBlock() bool {
	it.pos = it.count
	return false
}

func (it *speedIterator) MaxWeight() float32 { return it.maxWeight }

func (it *speedIterator) Count() int { return it.count }
