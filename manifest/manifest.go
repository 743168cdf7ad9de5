// Package manifest persists the committed state of an index: which profile
// it was created with, which segments are live and what the next segment id
// is. Updates are atomic; a crash mid-save leaves the previous manifest
// intact because CURRENT flips only after the new manifest file is durable.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hupe1980/lexgo/internal/fs"
	"github.com/hupe1980/lexgo/model"
)

const (
	// FilePrefix is the prefix of versioned manifest files,
	// MANIFEST-%06d.json.
	FilePrefix = "MANIFEST"
	// CurrentFileName is the pointer file naming the live manifest.
	CurrentFileName = "CURRENT"
	// CurrentVersion is the manifest format version this build reads and
	// writes.
	CurrentVersion = 1
)

// ErrCorrupt reports a manifest that exists but cannot be trusted: bad JSON,
// an unsupported version, an invalid profile or a dangling CURRENT pointer.
var ErrCorrupt = errors.New("manifest: corrupt")

// Manifest is the durable state of an index at one commit point.
type Manifest struct {
	Version       int             `json:"version"`
	ID            uint64          `json:"id"`
	Profile       model.Profile   `json:"profile"`
	NextSegmentID model.SegmentID `json:"next_segment_id"`
	Segments      []SegmentInfo   `json:"segments"`
}

// SegmentInfo describes one committed segment. File sizes are recorded so
// memory accounting works without opening every segment.
type SegmentInfo struct {
	ID        model.SegmentID `json:"id"`
	Docs      uint32          `json:"docs"`
	DictBytes int64           `json:"dict_bytes"`
	PostBytes int64           `json:"post_bytes"`
	DocsBytes int64           `json:"docs_bytes"`
}

// TotalDocs sums the committed document counts.
func (m *Manifest) TotalDocs() uint64 {
	var n uint64
	for _, s := range m.Segments {
		n += uint64(s.Docs)
	}
	return n
}

// Filename returns the manifest file name for a given manifest id.
func Filename(id uint64) string {
	return fmt.Sprintf("%s-%06d.json", FilePrefix, id)
}

// IsManifestFile reports whether name looks like a manifest or CURRENT file.
// Used when sweeping an index directory.
func IsManifestFile(name string) bool {
	return name == CurrentFileName || strings.HasPrefix(name, FilePrefix+"-")
}

// Store manages manifest files in one index directory.
type Store struct {
	fs  fs.FileSystem
	dir string
	mu  sync.Mutex
}

// NewStore creates a store over dir. The directory must already exist.
func NewStore(fsys fs.FileSystem, dir string) *Store {
	return &Store{fs: fsys, dir: dir}
}

// Load reads the live manifest. A missing CURRENT file returns an error
// satisfying errors.Is(err, os.ErrNotExist): the index does not exist yet.
// Any other failure mode wraps ErrCorrupt.
func (s *Store) Load() (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.readFile(filepath.Join(s.dir, CurrentFileName))
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(string(current))
	data, err := s.readFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: CURRENT names missing file %q", ErrCorrupt, name)
		}
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if m.Version != CurrentVersion {
		return nil, fmt.Errorf("%w: version %d, this build reads %d", ErrCorrupt, m.Version, CurrentVersion)
	}
	if !m.Profile.Valid() {
		return nil, fmt.Errorf("%w: invalid profile", ErrCorrupt)
	}

	return &m, nil
}

// Save durably writes m as the new live manifest and bumps its ID. The
// sequence is: write MANIFEST-n to a temp file, fsync, rename, fsync the
// directory, then flip CURRENT the same way. Readers holding the old
// manifest are unaffected.
func (s *Store) Save(m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.Version = CurrentVersion
	m.ID++

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	name := Filename(m.ID)
	if err := s.writeFileAtomic(name, data); err != nil {
		return err
	}
	return s.writeFileAtomic(CurrentFileName, []byte(name))
}

func (s *Store) readFile(path string) ([]byte, error) {
	f, err := s.fs.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Store) writeFileAtomic(name string, data []byte) error {
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"

	f, err := s.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		s.fs.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		s.fs.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		s.fs.Remove(tmp)
		return err
	}

	if err := s.fs.Rename(tmp, path); err != nil {
		s.fs.Remove(tmp)
		return err
	}
	return fs.SyncDir(s.fs, s.dir)
}
