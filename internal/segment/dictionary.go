package segment

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
)

// Dictionary payload layout, after the container header:
//
//	[0:4]  term count u32
//	[4:..] entry table, term count fixed-width entries
//	[..:]  term blob: all terms concatenated in ascending byte order
//
// One entry (28 bytes):
//
//	[0:4]   term offset u32 (into the blob)
//	[4:8]   term length u32
//	[8:16]  postings offset u64 (into the postings payload)
//	[16:20] postings length u32
//	[20:24] document frequency u32
//	[24:28] max weight f32
//
// Entries are sorted by term bytes, so lookup is a binary search over the
// fixed-width table with no per-entry decoding.
const dictEntrySize = 28

// DictEntry locates one term's postings list and carries the per-term stats
// the query planner orders terms by.
type DictEntry struct {
	PostOff   uint64
	PostLen   uint32
	DocFreq   uint32
	MaxWeight float32
}

// writeDictionary streams the dictionary payload. terms must be sorted
// ascending; entries runs parallel to it.
func writeDictionary(w io.Writer, terms []string, entries []DictEntry) error {
	var buf [dictEntrySize]byte

	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(terms)))
	if _, err := w.Write(buf[0:4]); err != nil {
		return err
	}

	off := uint32(0)
	for i, term := range terms {
		e := entries[i]
		binary.LittleEndian.PutUint32(buf[0:4], off)
		binary.LittleEndian.PutUint32(buf[4:8], uint32(len(term)))
		binary.LittleEndian.PutUint64(buf[8:16], e.PostOff)
		binary.LittleEndian.PutUint32(buf[16:20], e.PostLen)
		binary.LittleEndian.PutUint32(buf[20:24], e.DocFreq)
		binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(e.MaxWeight))
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
		off += uint32(len(term))
	}

	for _, term := range terms {
		if _, err := io.WriteString(w, term); err != nil {
			return err
		}
	}
	return nil
}

// Dictionary is a read-only view over a segment's term dictionary. It keeps
// the payload bytes (usually a memory-mapped slice) and decodes entries on
// demand.
type Dictionary struct {
	entries []byte
	blob    []byte
	count   int
}

func newDictionary(payload []byte) (*Dictionary, error) {
	if len(payload) < 4 {
		return nil, fmt.Errorf("%w: dictionary shorter than its count field", ErrCorrupt)
	}
	count := int(binary.LittleEndian.Uint32(payload[0:4]))
	tableEnd := 4 + count*dictEntrySize
	if tableEnd < 4 || tableEnd > len(payload) {
		return nil, fmt.Errorf("%w: dictionary entry table overruns payload", ErrCorrupt)
	}
	d := &Dictionary{
		entries: payload[4:tableEnd],
		blob:    payload[tableEnd:],
		count:   count,
	}
	// The blob must cover the last term; earlier offsets are monotonic by
	// construction.
	if count > 0 {
		off, length := d.termBounds(count - 1)
		if int(off)+int(length) > len(d.blob) {
			return nil, fmt.Errorf("%w: dictionary term blob overruns payload", ErrCorrupt)
		}
	}
	return d, nil
}

// Len returns the number of terms.
func (d *Dictionary) Len() int { return d.count }

func (d *Dictionary) termBounds(i int) (off, length uint32) {
	e := d.entries[i*dictEntrySize:]
	return binary.LittleEndian.Uint32(e[0:4]), binary.LittleEndian.Uint32(e[4:8])
}

func (d *Dictionary) termAt(i int) []byte {
	off, length := d.termBounds(i)
	return d.blob[off : off+length]
}

func (d *Dictionary) entryAt(i int) DictEntry {
	e := d.entries[i*dictEntrySize:]
	return DictEntry{
		PostOff:   binary.LittleEndian.Uint64(e[8:16]),
		PostLen:   binary.LittleEndian.Uint32(e[16:20]),
		DocFreq:   binary.LittleEndian.Uint32(e[20:24]),
		MaxWeight: math.Float32frombits(binary.LittleEndian.Uint32(e[24:28])),
	}
}

// Lookup finds term and reports whether it exists. A miss is the normal
// outcome for query terms absent from this segment.
func (d *Dictionary) Lookup(term string) (DictEntry, bool) {
	i := sort.Search(d.count, func(i int) bool {
		return string(d.termAt(i)) >= term
	})
	if i < d.count && string(d.termAt(i)) == term {
		return d.entryAt(i), true
	}
	return DictEntry{}, false
}

// At returns the i-th term and its entry in ascending term order.
func (d *Dictionary) At(i int) (string, DictEntry) {
	return string(d.termAt(i)), d.entryAt(i)
}
