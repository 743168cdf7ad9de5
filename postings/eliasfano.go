package postings

import (
	"encoding/binary"
	"math/bits"
)

// Elias-Fano building blocks for the Compact codec.
//
// A monotone sequence of n doc ids over universe u is split per value into
// lowBits = floor(log2(u/n)) low bits, stored fixed-width, and the remaining
// high bits, stored as a unary-coded bitset: for the i-th value the bit at
// position (value >> lowBits) + i is set. Space lands near the
// log2(u/n) + 2 bits/value entropy bound while set-bit walking yields the
// next value in O(1) amortized.

// efLowBits returns the low-bit width for n values over universe u.
func efLowBits(n int, u uint64) uint8 {
	if n <= 0 || u <= uint64(n) {
		return 0
	}
	l := bits.Len64(u/uint64(n)) - 1
	if l > 30 {
		l = 30
	}
	return uint8(l)
}

// efHighLen returns the byte length of the high-bit region: one set bit per
// value plus one zero per high bucket, rounded up to whole 64-bit words.
func efHighLen(n int, u uint64, lowBits uint8) int {
	if n == 0 {
		return 0
	}
	totalBits := uint64(n) + ((u - 1) >> lowBits)
	words := (totalBits + 63) / 64
	return int(words) * 8
}

// efLowLen returns the byte length of the packed low-bit region.
func efLowLen(n int, lowBits uint8) int {
	return int((uint64(n)*uint64(lowBits) + 7) / 8)
}

// bitWriter packs values LSB-first into a little-endian byte stream.
type bitWriter struct {
	buf   []byte
	cur   uint64
	nbits uint
}

func (w *bitWriter) writeBits(v uint32, width uint8) {
	w.cur |= uint64(v) << w.nbits
	w.nbits += uint(width)
	for w.nbits >= 8 {
		w.buf = append(w.buf, byte(w.cur))
		w.cur >>= 8
		w.nbits -= 8
	}
}

func (w *bitWriter) flush() {
	if w.nbits > 0 {
		w.buf = append(w.buf, byte(w.cur))
		w.cur = 0
		w.nbits = 0
	}
}

// readBits extracts width bits at bit offset off from data, LSB-first.
// Reads near the end of the slice fall back to a byte loop so callers can
// hand in exactly-sized regions.
func readBits(data []byte, off uint64, width uint8) uint32 {
	if width == 0 {
		return 0
	}
	byteOff := off >> 3
	shift := uint(off & 7)

	var word uint64
	if int(byteOff)+8 <= len(data) {
		word = binary.LittleEndian.Uint64(data[byteOff:])
	} else {
		for i := 0; int(byteOff)+i < len(data) && i < 8; i++ {
			word |= uint64(data[int(byteOff)+i]) << (8 * i)
		}
	}
	return uint32((word >> shift) & ((1 << width) - 1))
}

// highWord loads the w-th 64-bit word of the high-bit region.
func highWord(highs []byte, w int) uint64 {
	off := w * 8
	if off+8 <= len(highs) {
		return binary.LittleEndian.Uint64(highs[off:])
	}
	var word uint64
	for i := 0; off+i < len(highs); i++ {
		word |= uint64(highs[off+i]) << (8 * i)
	}
	return word
}

// nextSetBit returns the position of the first set bit at or after pos,
// or -1 when the region is exhausted.
func nextSetBit(highs []byte, pos int64) int64 {
	if pos < 0 {
		pos = 0
	}
	numWords := (len(highs) + 7) / 8
	w := int(pos >> 6)
	if w >= numWords {
		return -1
	}
	word := highWord(highs, w) &^ ((1 << uint(pos&63)) - 1)
	for {
		if word != 0 {
			return int64(w)<<6 + int64(bits.TrailingZeros64(word))
		}
		w++
		if w >= numWords {
			return -1
		}
		word = highWord(highs, w)
	}
}
