package segment

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hupe1980/lexgo/blobstore"
	"github.com/hupe1980/lexgo/internal/fs"
	"github.com/hupe1980/lexgo/model"
)

// A sealed segment is persisted as three container files sharing one frame:
//
//	header  [0:4] magic  [4:6] format version u16  [6] profile u8  [7] reserved
//	payload file-specific, see dictionary.go / docstore.go and the postings
//	        package for the encoded layouts
//	footer  [0:4] CRC32 (IEEE) over header+payload  [4:8] footer magic
//
// All fixed-width integers are little endian. The profile byte pins the
// codec the file was written with, so opening a segment under the wrong
// index profile fails loudly instead of misreading postings.
var (
	dictMagic   = [4]byte{'L', 'X', 'D', '1'}
	postMagic   = [4]byte{'L', 'X', 'P', '1'}
	docsMagic   = [4]byte{'L', 'X', 'S', '1'}
	footerMagic = [4]byte{'L', 'X', 'F', '1'}
)

const (
	formatVersion = uint16(1)

	headerSize = 8
	footerSize = 8
)

// ErrCorrupt reports a segment file that exists but cannot be trusted: bad
// magic, an unsupported format version, a profile mismatch, a failed
// checksum or structurally invalid payload bytes.
var ErrCorrupt = errors.New("segment: corrupt")

const (
	filePrefix = "seg-"

	// DictSuffix names the term dictionary file of a segment.
	DictSuffix = ".dict"
	// PostSuffix names the encoded postings file of a segment.
	PostSuffix = ".post"
	// DocsSuffix names the document store file of a segment.
	DocsSuffix = ".docs"
)

// FileName returns the canonical file name for one artifact of segment id,
// e.g. seg-000007.post.
func FileName(id model.SegmentID, suffix string) string {
	return fmt.Sprintf("seg-%06d%s", id, suffix)
}

// ParseFileName reports the segment id and suffix of a segment file name.
// It recognizes the three artifact suffixes and their .tmp intermediates,
// which is what the orphan sweep runs on.
func ParseFileName(name string) (id model.SegmentID, suffix string, ok bool) {
	base := strings.TrimSuffix(name, ".tmp")
	if !strings.HasPrefix(base, filePrefix) {
		return 0, "", false
	}
	rest := base[len(filePrefix):]
	dot := strings.IndexByte(rest, '.')
	if dot < 0 {
		return 0, "", false
	}
	suffix = rest[dot:]
	switch suffix {
	case DictSuffix, PostSuffix, DocsSuffix:
	default:
		return 0, "", false
	}
	n, err := strconv.ParseUint(rest[:dot], 10, 64)
	if err != nil {
		return 0, "", false
	}
	return model.SegmentID(n), suffix, true
}

// checksumWriter threads a running CRC32 through everything written via it.
// The segment writers stream header and payload through one instance and
// stamp the sum into the footer.
type checksumWriter struct {
	w    io.Writer
	hash hash.Hash32
	n    int64
}

func newChecksumWriter(w io.Writer) *checksumWriter {
	return &checksumWriter{w: w, hash: crc32.NewIEEE()}
}

func (cw *checksumWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	if n > 0 {
		cw.hash.Write(p[:n])
		cw.n += int64(n)
	}
	return n, err
}

// Sum returns the CRC32 of all bytes written so far.
func (cw *checksumWriter) Sum() uint32 { return cw.hash.Sum32() }

// writeSegmentFile writes one container file atomically: stream the payload
// through a CRC32 writer between header and footer, into a temp file that
// is fsynced and renamed into place. The caller syncs the directory once
// after all artifacts of a segment are in place. Returns the final file
// size. On failure the temp file is removed and nothing is renamed.
func writeSegmentFile(fsys fs.FileSystem, dir, name string, magic [4]byte, profile model.Profile, payload func(w io.Writer) error) (int64, error) {
	path := filepath.Join(dir, name)
	tmp := path + ".tmp"

	f, err := fsys.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}

	fail := func(err error) (int64, error) {
		f.Close()
		fsys.Remove(tmp)
		return 0, err
	}

	bw := bufio.NewWriterSize(f, 1<<16)
	cw := newChecksumWriter(bw)

	var hdr [headerSize]byte
	copy(hdr[0:4], magic[:])
	binary.LittleEndian.PutUint16(hdr[4:6], formatVersion)
	hdr[6] = byte(profile)
	if _, err := cw.Write(hdr[:]); err != nil {
		return fail(err)
	}

	if err := payload(cw); err != nil {
		return fail(err)
	}

	var ftr [footerSize]byte
	binary.LittleEndian.PutUint32(ftr[0:4], cw.Sum())
	copy(ftr[4:8], footerMagic[:])
	if _, err := bw.Write(ftr[:]); err != nil {
		return fail(err)
	}

	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	if err := f.Sync(); err != nil {
		return fail(err)
	}
	if err := f.Close(); err != nil {
		fsys.Remove(tmp)
		return 0, err
	}
	if err := fsys.Rename(tmp, path); err != nil {
		fsys.Remove(tmp)
		return 0, err
	}
	return cw.n + footerSize, nil
}

// verifyContainer validates the framing of an opened segment file: magics,
// format version, profile byte and, when the blob's bytes are directly
// addressable, the full CRC32. Remote blobs skip the checksum to avoid
// downloading the whole object; their size is still cross-checked against
// the manifest by the caller. Returns the payload length.
func verifyContainer(ctx context.Context, b blobstore.Blob, name string, magic [4]byte, profile model.Profile) (int64, error) {
	size := b.Size()
	if size < headerSize+footerSize {
		return 0, fmt.Errorf("%w: %s: %d bytes is shorter than the container frame", ErrCorrupt, name, size)
	}

	var hdr [headerSize]byte
	if _, err := b.ReadAt(ctx, hdr[:], 0); err != nil {
		return 0, err
	}
	if [4]byte(hdr[0:4]) != magic {
		return 0, fmt.Errorf("%w: %s: bad magic %q", ErrCorrupt, name, hdr[0:4])
	}
	if v := binary.LittleEndian.Uint16(hdr[4:6]); v != formatVersion {
		return 0, fmt.Errorf("%w: %s: format version %d, this build reads %d", ErrCorrupt, name, v, formatVersion)
	}
	if got := model.Profile(hdr[6]); got != profile {
		return 0, fmt.Errorf("%w: %s: written with profile %s, index uses %s", ErrCorrupt, name, got, profile)
	}

	var ftr [footerSize]byte
	if _, err := b.ReadAt(ctx, ftr[:], size-footerSize); err != nil {
		return 0, err
	}
	if [4]byte(ftr[4:8]) != footerMagic {
		return 0, fmt.Errorf("%w: %s: bad footer magic %q", ErrCorrupt, name, ftr[4:8])
	}

	if m, ok := b.(blobstore.Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return 0, err
		}
		want := binary.LittleEndian.Uint32(ftr[0:4])
		if got := crc32.ChecksumIEEE(data[:size-footerSize]); got != want {
			return 0, fmt.Errorf("%w: %s: checksum mismatch", ErrCorrupt, name)
		}
	}

	return size - headerSize - footerSize, nil
}
