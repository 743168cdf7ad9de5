package postings

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// Compact layout:
//
//	header  [count u32][lastDoc u32][lowBits u8][reserved u8][maxQ u16]
//	        [minWeight f32][weightStep f32][numBlocks u32][lowLen u32][highLen u32]
//	index   numBlocks entries of 12 bytes:
//	        [lastDoc u32][highBitPos u32][maxQ u16][reserved u16]
//	data    packed low bits (lowLen bytes),
//	        unary high-bit words (highLen bytes),
//	        count quantized little-endian uint16 weights
//
// Doc ids use Elias-Fano; weights are linearly quantized to 16 bits against
// a per-list (min, step) scale: weight ≈ min + q*step. Quantization is
// idempotent — re-quantizing a dequantized weight recovers the same level —
// which is what makes decode→encode reproduce identical bytes.
const (
	compactHeaderSize = 32
	compactEntrySize  = 12
)

// CompactCodec minimizes the in-memory footprint of postings at the price
// of per-posting decode work, intended for cold or archival segments.
type CompactCodec struct{}

// Name implements Codec.
func (CompactCodec) Name() string { return "compact" }

// Encode implements Codec.
func (CompactCodec) Encode(dst []byte, ps []Posting) ([]byte, error) {
	if err := validateAscending(ps); err != nil {
		return nil, err
	}

	count := len(ps)
	numBlocks := (count + BlockSize - 1) / BlockSize

	var lastDoc uint32
	if count > 0 {
		lastDoc = ps[count-1].Doc
	}
	universe := uint64(lastDoc) + 1
	lowBits := efLowBits(count, universe)
	lowLen := efLowLen(count, lowBits)
	highLen := efHighLen(count, universe, lowBits)

	minW, step := quantScale(ps)
	maxQ := uint16(0)

	dst = binary.LittleEndian.AppendUint32(dst, uint32(count))
	dst = binary.LittleEndian.AppendUint32(dst, lastDoc)
	dst = append(dst, lowBits, 0)
	maxQOff := len(dst)
	dst = binary.LittleEndian.AppendUint16(dst, 0) // maxQ, patched below
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(minW))
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(step))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(numBlocks))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(lowLen))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(highLen))

	indexOff := len(dst)
	dst = append(dst, make([]byte, numBlocks*compactEntrySize)...)

	// Low bits, packed LSB-first.
	lw := bitWriter{buf: dst}
	if lowBits > 0 {
		for _, p := range ps {
			lw.writeBits(p.Doc&((1<<lowBits)-1), lowBits)
		}
		lw.flush()
	}
	dst = lw.buf

	// High bits: for the i-th value, set bit (doc >> lowBits) + i.
	highStart := len(dst)
	dst = append(dst, make([]byte, highLen)...)
	highs := dst[highStart:]
	for i, p := range ps {
		pos := uint64(p.Doc>>lowBits) + uint64(i)
		highs[pos>>3] |= 1 << (pos & 7)
	}

	// Quantized weights, plus per-block metadata.
	for b := 0; b < numBlocks; b++ {
		lo := b * BlockSize
		hi := min(lo+BlockSize, count)

		blockMaxQ := uint16(0)
		for _, p := range ps[lo:hi] {
			q := quantize(p.Weight, minW, step)
			if q > blockMaxQ {
				blockMaxQ = q
			}
		}
		if blockMaxQ > maxQ {
			maxQ = blockMaxQ
		}

		firstPos := uint64(ps[lo].Doc>>lowBits) + uint64(lo)
		entry := dst[indexOff+b*compactEntrySize:]
		binary.LittleEndian.PutUint32(entry[0:4], ps[hi-1].Doc)
		binary.LittleEndian.PutUint32(entry[4:8], uint32(firstPos))
		binary.LittleEndian.PutUint16(entry[8:10], blockMaxQ)
	}
	for _, p := range ps {
		dst = binary.LittleEndian.AppendUint16(dst, quantize(p.Weight, minW, step))
	}
	binary.LittleEndian.PutUint16(dst[maxQOff:], maxQ)

	return dst, nil
}

// Iterator implements Codec.
func (CompactCodec) Iterator(data []byte) (Iterator, error) {
	if len(data) < compactHeaderSize {
		return nil, fmt.Errorf("%w: compact list shorter than header", ErrCorrupt)
	}
	count := int(binary.LittleEndian.Uint32(data[0:4]))
	lowBits := data[8]
	maxQ := binary.LittleEndian.Uint16(data[10:12])
	minW := math.Float32frombits(binary.LittleEndian.Uint32(data[12:16]))
	step := math.Float32frombits(binary.LittleEndian.Uint32(data[16:20]))
	numBlocks := int(binary.LittleEndian.Uint32(data[20:24]))
	lowLen := int(binary.LittleEndian.Uint32(data[24:28]))
	highLen := int(binary.LittleEndian.Uint32(data[28:32]))

	if numBlocks != (count+BlockSize-1)/BlockSize {
		return nil, fmt.Errorf("%w: compact block count %d inconsistent with %d postings", ErrCorrupt, numBlocks, count)
	}
	indexEnd := compactHeaderSize + numBlocks*compactEntrySize
	total := indexEnd + lowLen + highLen + count*2
	if len(data) != total {
		return nil, fmt.Errorf("%w: compact list size %d, want %d", ErrCorrupt, len(data), total)
	}

	return &compactIterator{
		index:     data[compactHeaderSize:indexEnd],
		lows:      data[indexEnd : indexEnd+lowLen],
		highs:     data[indexEnd+lowLen : indexEnd+lowLen+highLen],
		weights:   data[indexEnd+lowLen+highLen:],
		count:     count,
		numBlocks: numBlocks,
		lowBits:   lowBits,
		minW:      minW,
		step:      step,
		maxQ:      maxQ,
		i:         -1,
		highPos:   -1,
	}, nil
}

// Decode implements Codec.
func (c CompactCodec) Decode(data []byte) ([]Posting, error) {
	it, err := c.Iterator(data)
	if err != nil {
		return nil, err
	}
	return decodeAll(it), nil
}

// quantScale derives the per-list linear quantization scale.
func quantScale(ps []Posting) (minW, step float32) {
	if len(ps) == 0 {
		return 0, 0
	}
	minW = ps[0].Weight
	maxW := ps[0].Weight
	for _, p := range ps[1:] {
		if p.Weight < minW {
			minW = p.Weight
		}
		if p.Weight > maxW {
			maxW = p.Weight
		}
	}
	step = (maxW - minW) / math.MaxUint16
	return minW, step
}

func quantize(w, minW, step float32) uint16 {
	if step == 0 {
		return 0
	}
	q := math.Round(float64(w-minW) / float64(step))
	if q < 0 {
		return 0
	}
	if q > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(q)
}

func dequantize(q uint16, minW, step float32) float32 {
	return minW + float32(q)*step
}

type compactIterator struct {
	index   []byte
	lows    []byte
	highs   []byte
	weights []byte

	count     int
	numBlocks int
	lowBits   uint8
	minW      float32
	step      float32
	maxQ      uint16

	i       int   // posting index, -1 before first, count when exhausted
	highPos int64 // bit position of the i-th set bit
	doc     uint32
}

func (it *compactIterator) entry(b int) []byte {
	return it.index[b*compactEntrySize : (b+1)*compactEntrySize]
}

func (it *compactIterator) entryLastDoc(b int) uint32 {
	return binary.LittleEndian.Uint32(it.entry(b)[0:4])
}

// load recomputes the current doc id from the high-bit position and the
// packed low bits.
func (it *compactIterator) load() {
	high := uint32(it.highPos - int64(it.i))
	low := uint32(0)
	if it.lowBits > 0 {
		low = readBits(it.lows, uint64(it.i)*uint64(it.lowBits), it.lowBits)
	}
	it.doc = high<<it.lowBits | low
}

func (it *compactIterator) Next() bool {
	if it.i+1 >= it.count {
		it.i = it.count
		return false
	}
	pos := nextSetBit(it.highs, it.highPos+1)
	if pos < 0 {
		it.i = it.count
		return false
	}
	it.i++
	it.highPos = pos
	it.load()
	return true
}

// jumpToBlock repositions the cursor at the first posting of block b using
// the stored high-bit position, skipping everything before it.
func (it *compactIterator) jumpToBlock(b int) bool {
	if b >= it.numBlocks {
		it.i = it.count
		return false
	}
	it.i = b * BlockSize
	it.highPos = int64(binary.LittleEndian.Uint32(it.entry(b)[4:8]))
	it.load()
	return true
}

func (it *compactIterator) SeekGE(target uint32) bool {
	if it.i >= it.count {
		return false
	}
	if it.i >= 0 && it.doc >= target {
		return true
	}

	cur := it.curBlock()
	if cur >= it.numBlocks || target > it.entryLastDoc(cur) {
		lo := cur + 1
		if it.i < 0 {
			lo = 0
		}
		b := lo + sort.Search(it.numBlocks-lo, func(k int) bool {
			return it.entryLastDoc(lo+k) >= target
		})
		if !it.jumpToBlock(b) {
			return false
		}
		if it.doc >= target {
			return true
		}
	}
	for it.Next() {
		if it.doc >= target {
			return true
		}
	}
	return false
}

func (it *compactIterator) curBlock() int {
	if it.i < 0 {
		return 0
	}
	return it.i / BlockSize
}

func (it *compactIterator) Doc() uint32 {
	if it.i < 0 || it.i >= it.count {
		return DocEOF
	}
	return it.doc
}

func (it *compactIterator) Weight() float32 {
	q := binary.LittleEndian.Uint16(it.weights[it.i*2:])
	return dequantize(q, it.minW, it.step)
}

func (it *compactIterator) BlockMax() float32 {
	b := it.curBlock()
	if b >= it.numBlocks {
		return 0
	}
	return dequantize(binary.LittleEndian.Uint16(it.entry(b)[8:10]), it.minW, it.step)
}

func (it *compactIterator) BlockLastDoc() uint32 {
	b := it.curBlock()
	if b >= it.numBlocks {
		return DocEOF
	}
	return it.entryLastDoc(b)
}

func (it *compactIterator) SkipBlock() bool {
	return it.jumpToBlock(it.curBlock() + 1)
}

func (it *compactIterator) MaxWeight() float32 {
	return dequantize(it.maxQ, it.minW, it.step)
}

func (it *compactIterator) Count() int { return it.count }

// predecessor returns the posting with the largest doc id <= target. It
// repositions from scratch and leaves the iterator on the returned posting;
// ok is false when every doc id exceeds target.
func (it *compactIterator) predecessor(target uint32) (Posting, bool) {
	if it.count == 0 {
		return Posting{}, false
	}
	if last := it.entryLastDoc(it.numBlocks - 1); target >= last {
		it.jumpToBlock(it.numBlocks - 1)
		for it.doc < last {
			it.Next()
		}
		return Posting{Doc: it.doc, Weight: it.Weight()}, true
	}

	b := sort.Search(it.numBlocks, func(k int) bool {
		return it.entryLastDoc(k) >= target
	})
	it.jumpToBlock(b)
	if it.doc > target {
		// Predecessor is the last posting of the previous block.
		if b == 0 {
			return Posting{}, false
		}
		it.jumpToBlock(b - 1)
		last := it.entryLastDoc(b - 1)
		for it.doc < last {
			it.Next()
		}
		return Posting{Doc: it.doc, Weight: it.Weight()}, true
	}

	prev := Posting{Doc: it.doc, Weight: it.Weight()}
	for it.Next() && it.doc <= target {
		prev = Posting{Doc: it.doc, Weight: it.Weight()}
	}
	return prev, true
}
