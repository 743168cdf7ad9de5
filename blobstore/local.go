package blobstore

import (
	"context"
	"io"
	"path/filepath"

	"github.com/hupe1980/lexgo/internal/mmap"
)

// LocalStore serves blobs from a local directory via mmap. Segment access is
// dominated by scattered postings reads, so mappings are advised for random
// access by default.
type LocalStore struct {
	root    string
	pattern mmap.AccessPattern
}

// LocalStoreOption configures a LocalStore.
type LocalStoreOption func(*LocalStore)

// WithAccessPattern overrides the madvise hint applied to new mappings.
func WithAccessPattern(p mmap.AccessPattern) LocalStoreOption {
	return func(s *LocalStore) { s.pattern = p }
}

// NewLocalStore creates a store rooted at dir.
func NewLocalStore(dir string, opts ...LocalStoreOption) *LocalStore {
	s := &LocalStore{root: dir, pattern: mmap.AccessRandom}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open implements BlobStore.
func (s *LocalStore) Open(_ context.Context, name string) (Blob, error) {
	m, err := mmap.Open(filepath.Join(s.root, name))
	if err != nil {
		return nil, err
	}
	if s.pattern != mmap.AccessDefault {
		_ = m.Advise(s.pattern)
	}
	return &localBlob{m: m}, nil
}

type localBlob struct {
	m *mmap.Mapping
}

func (b *localBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	return b.m.ReadAt(p, off)
}

func (b *localBlob) Close() error { return b.m.Close() }

func (b *localBlob) Size() int64 { return int64(b.m.Size()) }

// Bytes implements Mappable.
func (b *localBlob) Bytes() ([]byte, error) {
	data := b.m.Bytes()
	if data == nil && b.m.Size() > 0 {
		return nil, mmap.ErrClosed
	}
	return data, nil
}

var _ io.Closer = (*localBlob)(nil)
var _ Mappable = (*localBlob)(nil)
