package lexgo

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hupe1980/lexgo/internal/resource"
	"github.com/hupe1980/lexgo/internal/segment"
	"github.com/hupe1980/lexgo/manifest"
	"github.com/hupe1980/lexgo/postings"
)

var (
	// ErrClosed is returned by every call on an index after Close.
	ErrClosed = errors.New("lexgo: index closed")

	// ErrInvalidArgument reports a caller mistake: a bad profile, malformed
	// binary framing, or opening an index under the wrong profile.
	ErrInvalidArgument = errors.New("lexgo: invalid argument")

	// ErrIO reports a filesystem or storage failure.
	ErrIO = errors.New("lexgo: io error")

	// ErrCorruption reports on-disk state that fails structural validation:
	// bad magic, version, checksum or framing in a manifest or segment.
	ErrCorruption = errors.New("lexgo: corruption detected")

	// ErrAllocationFailed reports that an operation would exceed the
	// configured memory budget.
	ErrAllocationFailed = errors.New("lexgo: allocation failed")

	// ErrNotFound is returned by Open when nothing was ever created at the
	// given path.
	ErrNotFound = errors.New("lexgo: index not found")
)

// publicSentinels are the stable error identities of the package. Internal
// errors are mapped onto them at the API boundary.
var publicSentinels = []error{
	ErrClosed,
	ErrInvalidArgument,
	ErrIO,
	ErrCorruption,
	ErrAllocationFailed,
	ErrNotFound,
}

// translateError maps internal failures onto the public sentinels. Errors
// already carrying a sentinel, and context errors, pass through unchanged;
// anything unrecognized is an io failure.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range publicSentinels {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, resource.ErrMemoryLimitExceeded):
		return fmt.Errorf("%w: %w", ErrAllocationFailed, err)
	case errors.Is(err, segment.ErrCorrupt),
		errors.Is(err, manifest.ErrCorrupt),
		errors.Is(err, postings.ErrCorrupt):
		return fmt.Errorf("%w: %w", ErrCorruption, err)
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	default:
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
}
