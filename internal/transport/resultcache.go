package transport

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/wire"
)

// ResultKey identifies one mutating request for dedup purposes: the
// peer's (ip, port) plus its transaction id (spec.md §3 Operation-result
// cache entry).
type ResultKey struct {
	PeerIP   string
	PeerPort int
	TxID     uint16
}

func (k ResultKey) String() string {
	return fmt.Sprintf("%s:%d/%d", k.PeerIP, k.PeerPort, k.TxID)
}

// ResultEntry is the cached outcome of a previously executed mutating
// request.
type ResultEntry struct {
	Result int32
	Errno  wire.Errno
}

// ResultCache deduplicates retransmitted mutating requests, per
// spec.md §4.6 and §9 ("Result cache unbounded growth... bound it").
// Unlike the source's unbounded map, this is capped with an LRU
// eviction policy sized generously relative to the retry window
// (RETRY_LIMIT * AGAIN_LIMIT in-flight transactions per peer).
type ResultCache struct {
	cache *lru.Cache[ResultKey, ResultEntry]
}

// DefaultResultCacheSize is large enough to hold many in-flight peers'
// worth of recent mutating transactions without unbounded growth.
const DefaultResultCacheSize = 4096

// NewResultCache returns a ResultCache capped at size entries.
func NewResultCache(size int) *ResultCache {
	if size <= 0 {
		size = DefaultResultCacheSize
	}
	c, _ := lru.New[ResultKey, ResultEntry](size)
	return &ResultCache{cache: c}
}

// Lookup returns the cached entry for key, if present.
func (c *ResultCache) Lookup(key ResultKey) (ResultEntry, bool) {
	return c.cache.Get(key)
}

// Store records the outcome of a mutating request under key.
func (c *ResultCache) Store(key ResultKey, entry ResultEntry) {
	c.cache.Add(key, entry)
}
