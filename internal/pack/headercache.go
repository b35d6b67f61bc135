package pack

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dedupfs/corepack/internal/debug"
	"github.com/dedupfs/corepack/internal/id"
)

// HeaderCache is a fixed-size LRU of parsed pack headers keyed by pack id,
// adapted from restic's internal/bloblru.Cache (which caches blob bytes
// instead of parsed headers) onto golang-lru's generic v2 API.
type HeaderCache struct {
	c *lru.Cache[id.ID, []HeaderEntry]
}

// NewHeaderCache returns a cache holding at most size parsed headers.
func NewHeaderCache(size int) *HeaderCache {
	c, err := lru.New[id.ID, []HeaderEntry](size)
	if err != nil {
		// only returns an error for size <= 0, which is a caller bug.
		panic(err)
	}
	return &HeaderCache{c: c}
}

// Get returns the cached header entries for packID, if present.
func (c *HeaderCache) Get(packID id.ID) ([]HeaderEntry, bool) {
	entries, ok := c.c.Get(packID)
	debug.Log("pack.HeaderCache: get %v, hit %v", packID, ok)
	return entries, ok
}

// Add stores the parsed header entries for packID, evicting the least
// recently used entry if the cache is full.
func (c *HeaderCache) Add(packID id.ID, entries []HeaderEntry) {
	debug.Log("pack.HeaderCache: add %v (%d entries)", packID, len(entries))
	c.c.Add(packID, entries)
}
