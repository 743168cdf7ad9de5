package postings

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// Balanced layout:
//
//	header  [count u32][maxWeight f32][numBlocks u32]
//	index   numBlocks entries of 16 bytes:
//	        [lastDoc u32][offset u32][maxWeight f32][count u16][idsLen u16]
//	data    per block: varint-encoded doc id deltas (idsLen bytes),
//	        then count raw little-endian float32 weights
//
// Doc ids are stored as gaps: the first posting of the list is encoded as
// its absolute id, every later posting as the difference to its
// predecessor (crossing block boundaries via the previous block's last
// doc id). Gaps use the standard varint scheme: 7-bit groups, continuation
// bit set on all but the final byte.
const (
	balancedHeaderSize = 12
	balancedEntrySize  = 16
)

// BalancedCodec is the default profile's codec: blocked delta+varint doc ids
// with per-block max weights so multi-term queries can skip whole blocks
// that cannot beat the current top-k threshold.
type BalancedCodec struct{}

// Name implements Codec.
func (BalancedCodec) Name() string { return "balanced" }

// Encode implements Codec.
func (BalancedCodec) Encode(dst []byte, ps []Posting) ([]byte, error) {
	if err := validateAscending(ps); err != nil {
		return nil, err
	}

	count := len(ps)
	numBlocks := (count + BlockSize - 1) / BlockSize

	maxWeight := float32(0)
	for _, p := range ps {
		if p.Weight > maxWeight {
			maxWeight = p.Weight
		}
	}

	dst = binary.LittleEndian.AppendUint32(dst, uint32(count))
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(maxWeight))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(numBlocks))

	indexOff := len(dst)
	dst = append(dst, make([]byte, numBlocks*balancedEntrySize)...)
	dataOff := len(dst)

	var varintBuf [binary.MaxVarintLen32]byte
	prev := uint32(0)
	for b := 0; b < numBlocks; b++ {
		lo := b * BlockSize
		hi := min(lo+BlockSize, count)
		block := ps[lo:hi]

		blockOff := len(dst) - dataOff

		idsStart := len(dst)
		for i, p := range block {
			delta := p.Doc - prev
			if !(b == 0 && i == 0) && delta == 0 {
				return nil, ErrOutOfOrder
			}
			n := binary.PutUvarint(varintBuf[:], uint64(delta))
			dst = append(dst, varintBuf[:n]...)
			prev = p.Doc
		}
		idsLen := len(dst) - idsStart

		blockMax := float32(0)
		for _, p := range block {
			dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(p.Weight))
			if p.Weight > blockMax {
				blockMax = p.Weight
			}
		}

		entry := dst[indexOff+b*balancedEntrySize:]
		binary.LittleEndian.PutUint32(entry[0:4], block[len(block)-1].Doc)
		binary.LittleEndian.PutUint32(entry[4:8], uint32(blockOff))
		binary.LittleEndian.PutUint32(entry[8:12], math.Float32bits(blockMax))
		binary.LittleEndian.PutUint16(entry[12:14], uint16(len(block)))
		binary.LittleEndian.PutUint16(entry[14:16], uint16(idsLen))
	}

	return dst, nil
}

// Iterator implements Codec.
func (BalancedCodec) Iterator(data []byte) (Iterator, error) {
	if len(data) < balancedHeaderSize {
		return nil, fmt.Errorf("%w: balanced list shorter than header", ErrCorrupt)
	}
	count := int(binary.LittleEndian.Uint32(data[0:4]))
	maxWeight := math.Float32frombits(binary.LittleEndian.Uint32(data[4:8]))
	numBlocks := int(binary.LittleEndian.Uint32(data[8:12]))

	if numBlocks != (count+BlockSize-1)/BlockSize {
		return nil, fmt.Errorf("%w: balanced block count %d inconsistent with %d postings", ErrCorrupt, numBlocks, count)
	}
	dataOff := balancedHeaderSize + numBlocks*balancedEntrySize
	if len(data) < dataOff {
		return nil, fmt.Errorf("%w: balanced list truncated before data region", ErrCorrupt)
	}

	it := &balancedIterator{
		index:     data[balancedHeaderSize:dataOff],
		data:      data[dataOff:],
		count:     count,
		numBlocks: numBlocks,
		maxWeight: maxWeight,
	}
	it.openBlock(0)
	return it, nil
}

// Decode implements Codec.
func (c BalancedCodec) Decode(data []byte) ([]Posting, error) {
	it, err := c.Iterator(data)
	if err != nil {
		return nil, err
	}
	return decodeAll(it), nil
}

type balancedIterator struct {
	index []byte
	data  []byte

	count     int
	numBlocks int
	maxWeight float32

	block      int // current block, numBlocks when exhausted
	pos        int // index within the current block, -1 before first
	blockCount int
	weightsOff int // absolute offset of the current block's weights in data
	docs       [BlockSize]uint32
}

func (it *balancedIterator) entry(b int) []byte {
	return it.index[b*balancedEntrySize : (b+1)*balancedEntrySize]
}

func (it *balancedIterator) entryLastDoc(b int) uint32 {
	return binary.LittleEndian.Uint32(it.entry(b)[0:4])
}

// openBlock decodes the doc ids of block b and positions the iterator
// before its first posting. It reports false when b is out of range or the
// block bytes are malformed, leaving the iterator exhausted. Segment-level
// checksums make the malformed case unreachable in practice.
func (it *balancedIterator) openBlock(b int) bool {
	if b >= it.numBlocks {
		it.block = it.numBlocks
		it.pos = 0
		it.blockCount = 0
		return false
	}

	e := it.entry(b)
	offset := int(binary.LittleEndian.Uint32(e[4:8]))
	blockCount := int(binary.LittleEndian.Uint16(e[12:14]))
	idsLen := int(binary.LittleEndian.Uint16(e[14:16]))

	if blockCount > BlockSize || offset+idsLen+blockCount*4 > len(it.data) {
		it.block = it.numBlocks
		it.pos = 0
		it.blockCount = 0
		return false
	}

	prev := uint32(0)
	if b > 0 {
		prev = it.entryLastDoc(b - 1)
	}
	ids := it.data[offset : offset+idsLen]
	for i := 0; i < blockCount; i++ {
		delta, n := binary.Uvarint(ids)
		if n <= 0 {
			it.block = it.numBlocks
			it.pos = 0
			it.blockCount = 0
			return false
		}
		prev += uint32(delta)
		it.docs[i] = prev
		ids = ids[n:]
	}

	it.block = b
	it.pos = -1
	it.blockCount = blockCount
	it.weightsOff = offset + idsLen
	return true
}

func (it *balancedIterator) Next() bool {
	if it.pos+1 < it.blockCount {
		it.pos++
		return true
	}
	if !it.openBlock(it.block + 1) {
		return false
	}
	it.pos = 0
	return true
}

func (it *balancedIterator) SeekGE(target uint32) bool {
	if it.block >= it.numBlocks {
		return false
	}
	if it.pos >= 0 && it.docs[it.pos] >= target {
		return true
	}

	if target > it.entryLastDoc(it.block) {
		// Binary search the block index for the first block that can
		// contain target, skipping everything in between undecoded.
		lo := it.block + 1
		b := lo + sort.Search(it.numBlocks-lo, func(i int) bool {
			return it.entryLastDoc(lo+i) >= target
		})
		if !it.openBlock(b) {
			return false
		}
	}

	for i := max(it.pos, 0); i < it.blockCount; i++ {
		if it.docs[i] >= target {
			it.pos = i
			return true
		}
	}
	// target lies beyond this block but within its lastDoc bound only if
	// the data is inconsistent; treat as exhausted.
	it.openBlock(it.numBlocks)
	return false
}

func (it *balancedIterator) Doc() uint32 {
	if it.block >= it.numBlocks || it.pos < 0 || it.pos >= it.blockCount {
		return DocEOF
	}
	return it.docs[it.pos]
}

func (it *balancedIterator) Weight() float32 {
	off := it.weightsOff + it.pos*4
	return math.Float32frombits(binary.LittleEndian.Uint32(it.data[off:]))
}

func (it *balancedIterator) BlockMax() float32 {
	if it.block >= it.numBlocks {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(it.entry(it.block)[8:12]))
}

func (it *balancedIterator) BlockLastDoc() uint32 {
	if it.block >= it.numBlocks {
		return DocEOF
	}
	return it.entryLastDoc(it.block)
}

func (it *balancedIterator) SkipBlock() bool {
	if !it.openBlock(it.block + 1) {
		return false
	}
	it.pos = 0
	return true
}

func (it *balancedIterator) MaxWeight() float32 { return it.maxWeight }

func (it *balancedIterator) Count() int { return it.count }
