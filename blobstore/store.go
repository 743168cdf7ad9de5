// Package blobstore abstracts where immutable segment files live.
//
// The engine reads committed segments exclusively through [BlobStore], so an
// index directory on local disk, an in-memory store in tests and an S3 bucket
// holding archived segments all look the same to the read path. Blobs are
// immutable once written; implementations must be safe for concurrent use.
//
// [LocalStore] memory-maps files and additionally implements [Mappable] for
// zero-copy access. Remote stores serve ranged reads instead; callers that
// need the whole blob fall back to ReadAt.
package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist. It maps to
// os.ErrNotExist so errors.Is works across local and remote stores.
var ErrNotFound = os.ErrNotExist

// BlobStore opens immutable blobs by name.
type BlobStore interface {
	Open(ctx context.Context, name string) (Blob, error)
}

// Blob is a read-only handle to an immutable blob.
type Blob interface {
	// ReadAt reads len(p) bytes at offset off. The context bounds remote
	// round trips; local implementations ignore it.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	io.Closer
	Size() int64
}

// Mappable is implemented by blobs whose bytes are directly addressable.
// The returned slice stays valid until the blob is closed.
type Mappable interface {
	Bytes() ([]byte, error)
}

// WritableBlob is a streaming handle for writing a new blob. The blob
// becomes visible atomically on Close.
type WritableBlob interface {
	io.WriteCloser
}

// ReadAll reads an entire blob into memory. It prefers the zero-copy path
// when the blob is Mappable, in which case the returned slice aliases the
// mapping and is only valid until the blob is closed.
func ReadAll(ctx context.Context, b Blob) ([]byte, error) {
	if m, ok := b.(Mappable); ok {
		return m.Bytes()
	}
	buf := make([]byte, b.Size())
	if _, err := b.ReadAt(ctx, buf, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}
