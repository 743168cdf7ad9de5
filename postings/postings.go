// Package postings implements the three interchangeable postings-list
// encodings behind an index profile: Speed (flat pairs), Balanced
// (delta+varint blocks with block-max pruning) and Compact (Elias-Fano).
//
// A postings list is a sequence of (doc id, weight) pairs strictly ascending
// by doc id. Every codec depends on that ordering: delta encoding, Elias-Fano
// monotonicity and block-max skip validity all break without it, so encoders
// reject out-of-order input instead of producing silently wrong bytes.
//
// Encoded layouts are deterministic: decoding a list and re-encoding it under
// the same codec reproduces the identical bytes.
package postings

import (
	"errors"
	"math"

	"github.com/hupe1980/lexgo/model"
)

// BlockSize is the number of postings per block in the Balanced and Compact
// layouts. Block-max metadata is kept at this granularity.
const BlockSize = 128

// DocEOF is the doc id reported by an exhausted iterator. It sorts after
// every valid doc id, which keeps lockstep merging free of special cases.
const DocEOF = math.MaxUint32

var (
	// ErrOutOfOrder reports a non-monotonic doc id sequence passed to Encode.
	// Callers treat it as corruption: given monotonic doc id assignment it
	// can only mean a broken invariant upstream.
	ErrOutOfOrder = errors.New("postings: doc ids not strictly ascending")

	// ErrCorrupt reports encoded bytes that fail structural validation.
	ErrCorrupt = errors.New("postings: corrupt encoding")

	// ErrUnknownProfile reports a profile with no registered codec.
	ErrUnknownProfile = errors.New("postings: unknown profile")
)

// Posting pairs a segment-local doc id with the precomputed weight of one
// term in that document.
type Posting struct {
	Doc    uint32
	Weight float32
}

// Iterator walks one encoded postings list in ascending doc order.
//
// The iterator starts positioned before the first posting; call Next or
// SeekGE to advance. After either returns false the iterator is exhausted
// and Doc reports DocEOF.
type Iterator interface {
	// Next advances to the next posting.
	Next() bool
	// SeekGE advances to the first posting with doc id >= target. It never
	// moves backwards: a target at or before the current doc id is a no-op
	// returning true.
	SeekGE(target uint32) bool
	// Doc returns the current doc id, or DocEOF when exhausted.
	Doc() uint32
	// Weight returns the weight of the current posting.
	Weight() float32

	// BlockMax returns the maximum weight within the current block.
	BlockMax() float32
	// BlockLastDoc returns the last doc id of the current block.
	BlockLastDoc() uint32
	// SkipBlock advances past the current block without decoding the rest
	// of it. It reports false when no blocks remain.
	SkipBlock() bool

	// MaxWeight returns the maximum weight across the whole list.
	MaxWeight() float32
	// Count returns the number of postings in the list.
	Count() int
}

// Codec encodes sorted postings and opens iterators over the encoded form.
// Implementations are stateless and safe for concurrent use.
type Codec interface {
	// Name returns the codec's profile name.
	Name() string
	// Encode appends the encoded list to dst and returns the extended slice.
	// Doc ids must be strictly ascending.
	Encode(dst []byte, ps []Posting) ([]byte, error)
	// Iterator opens an iterator over one encoded list. The data slice is
	// retained and must stay valid (and unmodified) for the iterator's
	// lifetime; it may point into a memory-mapped file.
	Iterator(data []byte) (Iterator, error)
	// Decode materializes the full list. Intended for tooling and tests;
	// query paths use Iterator.
	Decode(data []byte) ([]Posting, error)
}

// ForProfile returns the codec for p. The mapping is a closed set fixed at
// compile time; an index picks its codec once at creation and never changes
// it afterwards.
func ForProfile(p model.Profile) (Codec, error) {
	switch p {
	case model.ProfileSpeed:
		return SpeedCodec{}, nil
	case model.ProfileBalanced:
		return BalancedCodec{}, nil
	case model.ProfileCompact:
		return CompactCodec{}, nil
	default:
		return nil, ErrUnknownProfile
	}
}

// validateAscending checks the strict doc id ordering required by every
// codec.
func validateAscending(ps []Posting) error {
	for i := 1; i < len(ps); i++ {
		if ps[i].Doc <= ps[i-1].Doc {
			return ErrOutOfOrder
		}
	}
	return nil
}

// decodeAll drains an iterator into a slice. Shared by the Decode
// implementations.
func decodeAll(it Iterator) []Posting {
	out := make([]Posting, 0, it.Count())
	for it.Next() {
		out = append(out, Posting{Doc: it.Doc(), Weight: it.Weight()})
	}
	return out
}
