package segment

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/lexgo/blobstore"
	"github.com/hupe1980/lexgo/internal/cache"
	"github.com/hupe1980/lexgo/model"
)

// Document store payload layout, after the container header:
//
//	[0:4]   doc count u32
//	[4:8]   block count u32
//	[8]     compression u8 (1 = lz4, 2 = zstd)
//	[9:12]  reserved
//	[..]    doc directory, doc count x {block u32, offset-in-block u32}
//	[..]    block directory, block count x {region offset u64, compressed
//	        length u32, raw length u32}
//	[..]    block region: compressed blocks back to back
//
// A block whose compressed length equals its raw length is stored raw; that
// is the incompressible fallback, not a special codec. One document record
// inside a raw block:
//
//	[0:4]  token count u32 (document length at ingest time)
//	[4:8]  external id length u32
//	[..]   external id bytes
//	[..:4] text length u32
//	[..]   text bytes
const (
	docsHeaderSize    = 12
	docDirEntrySize   = 8
	blockDirEntrySize = 16

	// docBlockTargetSize is the raw size a block is flushed at. Documents
	// are never split: one oversized document becomes one oversized block.
	docBlockTargetSize = 64 << 10
)

const (
	compressionLZ4  = 1
	compressionZstd = 2
)

// compressionFor picks the document store compression for a profile. The
// compact profile trades decode speed for footprint here too.
func compressionFor(p model.Profile) byte {
	if p == model.ProfileCompact {
		return compressionZstd
	}
	return compressionLZ4
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) { zstdEncoderPool.Put(enc) }

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) { zstdDecoderPool.Put(dec) }

// compressDocBlock compresses one raw block. A nil result means the data is
// incompressible and should be stored raw.
func compressDocBlock(compression byte, data []byte) ([]byte, error) {
	switch compression {
	case compressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, nil
		}
		return buf[:n], nil
	case compressionZstd:
		enc := getZstdEncoder()
		defer putZstdEncoder(enc)
		return enc.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("segment: unknown doc block compression %d", compression)
	}
}

// decompressDocBlock inflates one stored block to exactly rawLen bytes.
func decompressDocBlock(compression byte, comp []byte, rawLen int) ([]byte, error) {
	switch compression {
	case compressionLZ4:
		out := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(comp, out)
		if err != nil {
			return nil, fmt.Errorf("%w: doc block: %v", ErrCorrupt, err)
		}
		if n != rawLen {
			return nil, fmt.Errorf("%w: doc block inflated to %d bytes, directory says %d", ErrCorrupt, n, rawLen)
		}
		return out, nil
	case compressionZstd:
		dec := getZstdDecoder()
		defer putZstdDecoder(dec)
		out, err := dec.DecodeAll(comp, make([]byte, 0, rawLen))
		if err != nil {
			return nil, fmt.Errorf("%w: doc block: %v", ErrCorrupt, err)
		}
		if len(out) != rawLen {
			return nil, fmt.Errorf("%w: doc block inflated to %d bytes, directory says %d", ErrCorrupt, len(out), rawLen)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown doc block compression %d", ErrCorrupt, compression)
	}
}

// docRecord is one document as the builder accumulates it.
type docRecord struct {
	externalID string
	text       string
	length     uint32
}

// writeDocStore assembles and writes the document store payload. The block
// region has to exist before the directories can be sized, so everything is
// staged in memory first; segment size is bounded by the builder's document
// ceiling, which keeps this affordable.
func writeDocStore(w io.Writer, docs []docRecord, compression byte) error {
	docDir := make([]byte, len(docs)*docDirEntrySize)
	var blockDir bytes.Buffer
	var blocks bytes.Buffer
	var raw bytes.Buffer
	blockCount := uint32(0)

	flush := func() error {
		if raw.Len() == 0 {
			return nil
		}
		rawLen := raw.Len()
		comp, err := compressDocBlock(compression, raw.Bytes())
		if err != nil {
			return err
		}
		stored := comp
		if stored == nil || len(stored) >= rawLen {
			stored = raw.Bytes()
		}

		var e [blockDirEntrySize]byte
		binary.LittleEndian.PutUint64(e[0:8], uint64(blocks.Len()))
		binary.LittleEndian.PutUint32(e[8:12], uint32(len(stored)))
		binary.LittleEndian.PutUint32(e[12:16], uint32(rawLen))
		blockDir.Write(e[:])

		blocks.Write(stored)
		blockCount++
		raw.Reset()
		return nil
	}

	var hdr [8]byte
	for i, d := range docs {
		if raw.Len() >= docBlockTargetSize {
			if err := flush(); err != nil {
				return err
			}
		}

		binary.LittleEndian.PutUint32(docDir[i*docDirEntrySize:], blockCount)
		binary.LittleEndian.PutUint32(docDir[i*docDirEntrySize+4:], uint32(raw.Len()))

		binary.LittleEndian.PutUint32(hdr[0:4], d.length)
		binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(d.externalID)))
		raw.Write(hdr[:])
		raw.WriteString(d.externalID)
		binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(d.text)))
		raw.Write(hdr[0:4])
		raw.WriteString(d.text)
	}
	if err := flush(); err != nil {
		return err
	}

	var head [docsHeaderSize]byte
	binary.LittleEndian.PutUint32(head[0:4], uint32(len(docs)))
	binary.LittleEndian.PutUint32(head[4:8], blockCount)
	head[8] = compression
	if _, err := w.Write(head[:]); err != nil {
		return err
	}
	if _, err := w.Write(docDir); err != nil {
		return err
	}
	if _, err := w.Write(blockDir.Bytes()); err != nil {
		return err
	}
	_, err := w.Write(blocks.Bytes())
	return err
}

// DocStore reads documents back from a sealed segment. Blocks are inflated
// on demand and kept in the shared block cache; with a memory-mapped blob,
// raw-stored blocks are served zero-copy straight from the mapping.
type DocStore struct {
	seg         model.SegmentID
	name        string
	blob        blobstore.Blob
	mapped      []byte
	cache       *cache.BlockCache
	compression byte
	docCount    uint32
	blockCount  uint32
	docDir      []byte
	blockDir    []byte
	blocksOff   int64
}

// openDocStore parses the directories of an already frame-verified blob.
// payloadLen is what verifyContainer reported.
func openDocStore(ctx context.Context, blob blobstore.Blob, name string, seg model.SegmentID, payloadLen int64, bc *cache.BlockCache) (*DocStore, error) {
	ds := &DocStore{seg: seg, name: name, blob: blob, cache: bc}

	if m, ok := blob.(blobstore.Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return nil, err
		}
		ds.mapped = data
	}

	if payloadLen < docsHeaderSize {
		return nil, fmt.Errorf("%w: %s: payload shorter than the doc store header", ErrCorrupt, name)
	}
	head, err := ds.readRange(ctx, headerSize, docsHeaderSize)
	if err != nil {
		return nil, err
	}
	ds.docCount = binary.LittleEndian.Uint32(head[0:4])
	ds.blockCount = binary.LittleEndian.Uint32(head[4:8])
	ds.compression = head[8]
	switch ds.compression {
	case compressionLZ4, compressionZstd:
	default:
		return nil, fmt.Errorf("%w: %s: unknown doc block compression %d", ErrCorrupt, name, ds.compression)
	}

	docDirLen := int64(ds.docCount) * docDirEntrySize
	blockDirLen := int64(ds.blockCount) * blockDirEntrySize
	if docsHeaderSize+docDirLen+blockDirLen > payloadLen {
		return nil, fmt.Errorf("%w: %s: directories overrun payload", ErrCorrupt, name)
	}

	if ds.docDir, err = ds.readRange(ctx, headerSize+docsHeaderSize, int(docDirLen)); err != nil {
		return nil, err
	}
	if ds.blockDir, err = ds.readRange(ctx, headerSize+docsHeaderSize+docDirLen, int(blockDirLen)); err != nil {
		return nil, err
	}
	ds.blocksOff = headerSize + docsHeaderSize + docDirLen + blockDirLen
	return ds, nil
}

// readRange returns n bytes at absolute file offset off, aliasing the
// mapping when one exists.
func (ds *DocStore) readRange(ctx context.Context, off int64, n int) ([]byte, error) {
	if ds.mapped != nil {
		if off+int64(n) > int64(len(ds.mapped)) {
			return nil, fmt.Errorf("%w: %s: read past end of file", ErrCorrupt, ds.name)
		}
		return ds.mapped[off : off+int64(n)], nil
	}
	buf := make([]byte, n)
	if _, err := ds.blob.ReadAt(ctx, buf, off); err != nil {
		return nil, err
	}
	return buf, nil
}

// Count returns the number of documents in the store.
func (ds *DocStore) Count() uint32 { return ds.docCount }

// Doc returns the document with the given segment-local id.
func (ds *DocStore) Doc(ctx context.Context, id model.DocID) (model.Document, error) {
	if uint32(id) >= ds.docCount {
		return model.Document{}, fmt.Errorf("%w: %s: doc id %d out of range (%d docs)", ErrCorrupt, ds.name, id, ds.docCount)
	}
	e := ds.docDir[uint32(id)*docDirEntrySize:]
	blockIdx := binary.LittleEndian.Uint32(e[0:4])
	off := binary.LittleEndian.Uint32(e[4:8])

	block, err := ds.block(ctx, blockIdx)
	if err != nil {
		return model.Document{}, err
	}
	doc, _, err := ds.parseRecord(block, off)
	return doc, err
}

// block returns the raw (inflated) bytes of block b.
func (ds *DocStore) block(ctx context.Context, b uint32) ([]byte, error) {
	if b >= ds.blockCount {
		return nil, fmt.Errorf("%w: %s: block %d out of range (%d blocks)", ErrCorrupt, ds.name, b, ds.blockCount)
	}

	key := cache.Key{Segment: ds.seg, Block: b}
	if ds.cache != nil {
		if block, ok := ds.cache.Get(key); ok {
			return block, nil
		}
	}

	e := ds.blockDir[b*blockDirEntrySize:]
	off := binary.LittleEndian.Uint64(e[0:8])
	compLen := binary.LittleEndian.Uint32(e[8:12])
	rawLen := binary.LittleEndian.Uint32(e[12:16])

	fileOff := ds.blocksOff + int64(off)
	if fileOff+int64(compLen) > ds.blob.Size()-footerSize {
		return nil, fmt.Errorf("%w: %s: block %d overruns file", ErrCorrupt, ds.name, b)
	}
	comp, err := ds.readRange(ctx, fileOff, int(compLen))
	if err != nil {
		return nil, err
	}

	if compLen == rawLen {
		// Stored raw. Mapped bytes are already as cheap as a cache hit.
		if ds.mapped == nil && ds.cache != nil {
			ds.cache.Set(key, comp)
		}
		return comp, nil
	}

	block, err := decompressDocBlock(ds.compression, comp, int(rawLen))
	if err != nil {
		return nil, err
	}
	if ds.cache != nil {
		ds.cache.Set(key, block)
	}
	return block, nil
}

// parseRecord decodes one document record at off within a raw block.
func (ds *DocStore) parseRecord(block []byte, off uint32) (model.Document, uint32, error) {
	n := uint64(len(block))
	p := uint64(off)
	if p+8 > n {
		return model.Document{}, 0, fmt.Errorf("%w: %s: doc record header overruns block", ErrCorrupt, ds.name)
	}
	length := binary.LittleEndian.Uint32(block[p : p+4])
	idLen := uint64(binary.LittleEndian.Uint32(block[p+4 : p+8]))
	p += 8
	if p+idLen+4 > n {
		return model.Document{}, 0, fmt.Errorf("%w: %s: doc record id overruns block", ErrCorrupt, ds.name)
	}
	id := string(block[p : p+idLen])
	p += idLen
	textLen := uint64(binary.LittleEndian.Uint32(block[p : p+4]))
	p += 4
	if p+textLen > n {
		return model.Document{}, 0, fmt.Errorf("%w: %s: doc record text overruns block", ErrCorrupt, ds.name)
	}
	text := string(block[p : p+textLen])
	return model.Document{ExternalID: id, Text: text}, length, nil
}

// Close releases the blob and evicts this segment's blocks from the cache.
func (ds *DocStore) Close() error {
	if ds.cache != nil {
		ds.cache.DropSegment(ds.seg)
	}
	return ds.blob.Close()
}
