// Package handle exposes the index through opaque capability tokens for
// callers that cannot hold Go pointers, mirroring a C-style boundary.
//
// Every operation validates its Token against a process-wide registry; zero
// is never a valid Token. Failing operations return sentinel status codes
// and record a message retrievable via LastError until the next boundary
// call overwrites it. The boundary carries no cancellation; long-running
// calls run to completion or failure.
package handle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/lexgo"
	"github.com/hupe1980/lexgo/model"
)

// Token is a non-owning capability for one open index. It is an opaque
// registry key, never a pointer.
type Token uint64

// Boundary status codes. Batch operations return the indexed count or the
// negative code.
const (
	StatusOK              = 0
	StatusInvalidHandle   = -1
	StatusInvalidArgument = -2
	StatusEngineFailure   = -3
)

var errInvalidToken = errors.New("invalid or closed handle token")

var (
	mu      sync.Mutex
	nextTok Token = 1
	indexes       = map[Token]*lexgo.Index{}

	errMu   sync.Mutex
	lastErr string
)

func register(idx *lexgo.Index) Token {
	mu.Lock()
	defer mu.Unlock()
	tok := nextTok
	nextTok++
	indexes[tok] = idx
	return tok
}

func lookup(tok Token) (*lexgo.Index, bool) {
	mu.Lock()
	defer mu.Unlock()
	idx, ok := indexes[tok]
	return idx, ok
}

// record stores err as the boundary's last error. A nil err clears it, so
// LastError always describes the most recent boundary call.
func record(err error) {
	errMu.Lock()
	defer errMu.Unlock()
	if err != nil {
		lastErr = err.Error()
	} else {
		lastErr = ""
	}
}

func statusOf(err error) int {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, lexgo.ErrClosed):
		return StatusInvalidHandle
	case errors.Is(err, lexgo.ErrInvalidArgument):
		return StatusInvalidArgument
	default:
		return StatusEngineFailure
	}
}

// LastError returns the message recorded by the most recent boundary call,
// or the empty string if it succeeded. The value is only meaningful until
// the next boundary call on any Token.
func LastError() string {
	errMu.Lock()
	defer errMu.Unlock()
	return lastErr
}

// Create initializes an index at path with the named profile and returns
// its Token, or zero on failure.
func Create(path, profile string) Token {
	p, ok := model.ParseProfile(profile)
	if !ok {
		record(fmt.Errorf("%w: unknown profile %q", lexgo.ErrInvalidArgument, profile))
		return 0
	}
	idx, err := lexgo.Create(path, p)
	if err != nil {
		record(err)
		return 0
	}
	record(nil)
	return register(idx)
}

// Open opens an existing index at path and returns its Token, or zero on
// failure.
func Open(path string) Token {
	idx, err := lexgo.Open(path)
	if err != nil {
		record(err)
		return 0
	}
	record(nil)
	return register(idx)
}

// Close releases the index behind tok and invalidates the Token. Further
// calls with it report StatusInvalidHandle.
func Close(tok Token) int {
	mu.Lock()
	idx, ok := indexes[tok]
	delete(indexes, tok)
	mu.Unlock()
	if !ok {
		record(errInvalidToken)
		return StatusInvalidHandle
	}
	err := idx.Close()
	record(err)
	return statusOf(err)
}

// Batch ingests structured documents and returns the indexed count, or the
// negative status code on fatal failure.
func Batch(tok Token, docs []model.Document, progress model.ProgressFunc) int64 {
	idx, ok := lookup(tok)
	if !ok {
		record(errInvalidToken)
		return StatusInvalidHandle
	}
	indexed, err := idx.IngestBatch(context.Background(), docs, progress)
	record(err)
	if err != nil {
		return int64(statusOf(err))
	}
	return int64(indexed)
}

// BatchBinary ingests docCount length-prefixed records from wire and
// returns the indexed count, or the negative status code on fatal failure.
func BatchBinary(tok Token, wire []byte, docCount uint32, progress model.ProgressFunc) int64 {
	idx, ok := lookup(tok)
	if !ok {
		record(errInvalidToken)
		return StatusInvalidHandle
	}
	indexed, err := idx.IngestBatchBinary(context.Background(), wire, docCount, progress)
	record(err)
	if err != nil {
		return int64(statusOf(err))
	}
	return int64(indexed)
}

// Commit seals and durably persists pending documents. It returns StatusOK
// on success and a negative status code on failure.
func Commit(tok Token) int {
	idx, ok := lookup(tok)
	if !ok {
		record(errInvalidToken)
		return StatusInvalidHandle
	}
	err := idx.Commit(context.Background())
	record(err)
	return statusOf(err)
}

// Search runs a ranked query and returns the result with StatusOK, or a nil
// result with the status code on failure.
func Search(tok Token, query string, limit, offset uint32) (*model.SearchResult, int) {
	idx, ok := lookup(tok)
	if !ok {
		record(errInvalidToken)
		return nil, StatusInvalidHandle
	}
	res, err := idx.Search(context.Background(), query, limit, offset)
	record(err)
	if err != nil {
		return nil, statusOf(err)
	}
	return res, StatusOK
}

// MemoryStats reports the index's byte accounting.
func MemoryStats(tok Token) (model.MemoryStats, int) {
	idx, ok := lookup(tok)
	if !ok {
		record(errInvalidToken)
		return model.MemoryStats{}, StatusInvalidHandle
	}
	stats, err := idx.MemoryStats()
	record(err)
	if err != nil {
		return model.MemoryStats{}, statusOf(err)
	}
	return stats, StatusOK
}

// DocCount returns the number of searchable documents.
func DocCount(tok Token) (uint64, int) {
	idx, ok := lookup(tok)
	if !ok {
		record(errInvalidToken)
		return 0, StatusInvalidHandle
	}
	n, err := idx.DocCount()
	record(err)
	if err != nil {
		return 0, statusOf(err)
	}
	return n, StatusOK
}

// Clear drops all indexed documents, resetting the index to its
// fresh-created state.
func Clear(tok Token) int {
	idx, ok := lookup(tok)
	if !ok {
		record(errInvalidToken)
		return StatusInvalidHandle
	}
	err := idx.Clear(context.Background())
	record(err)
	return statusOf(err)
}

// ProfileName returns the index's profile name, or the empty string for an
// invalid Token.
func ProfileName(tok Token) string {
	idx, ok := lookup(tok)
	if !ok {
		record(errInvalidToken)
		return ""
	}
	record(nil)
	return idx.Profile().String()
}

// ListProfiles returns the selectable profile names as a JSON array.
func ListProfiles() string {
	profiles := model.Profiles()
	names := make([]string, 0, len(profiles))
	for _, p := range profiles {
		names = append(names, p.String())
	}
	data, _ := json.Marshal(names)
	record(nil)
	return string(data)
}
