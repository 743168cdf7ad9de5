// Package cache keeps recently decompressed document-store blocks so paging
// through results and re-running popular queries does not re-inflate the
// same blocks over and over.
package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hupe1980/lexgo/model"
)

// Key identifies one decompressed block within one segment.
type Key struct {
	Segment model.SegmentID
	Block   uint32
}

// BlockCache is an LRU over decompressed blocks. Capacity is counted in
// blocks, not bytes; block size is bounded by the store's flush threshold,
// which keeps the byte footprint predictable. Cached slices are read-only.
type BlockCache struct {
	lru *lru.Cache[Key, []byte]

	hits   atomic.Int64
	misses atomic.Int64
}

// NewBlockCache creates a cache holding up to capacity blocks.
func NewBlockCache(capacity int) (*BlockCache, error) {
	l, err := lru.New[Key, []byte](capacity)
	if err != nil {
		return nil, err
	}
	return &BlockCache{lru: l}, nil
}

// Get returns a cached block.
func (c *BlockCache) Get(key Key) ([]byte, bool) {
	b, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return b, ok
}

// Set caches a block. The slice is retained; callers must not modify it.
func (c *BlockCache) Set(key Key, block []byte) {
	c.lru.Add(key, block)
}

// DropSegment removes every block belonging to one segment.
func (c *BlockCache) DropSegment(id model.SegmentID) {
	for _, key := range c.lru.Keys() {
		if key.Segment == id {
			c.lru.Remove(key)
		}
	}
}

// Purge empties the cache.
func (c *BlockCache) Purge() {
	c.lru.Purge()
}

// Len returns the number of cached blocks.
func (c *BlockCache) Len() int { return c.lru.Len() }

// Stats returns cumulative hit and miss counts.
func (c *BlockCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
