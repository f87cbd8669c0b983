package flare

import (
	"bytes"
	"sync"

	"github.com/google/btree"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ring"
)

// cacheItem adapts *Flare to btree.Item, ordering by BinHash. This is
// the "ordered map from binary hash to flare" spec.md §4.4 calls for;
// Go's standard library has no ordered-map primitive, so the cache uses
// google/btree for ordered iteration (used by the console's
// "print cache" walk) with O(log n) lookup.
type cacheItem struct {
	*Flare
}

func (a cacheItem) Less(than btree.Item) bool {
	b := than.(cacheItem)
	return bytes.Compare(a.BinHash[:], b.BinHash[:]) < 0
}

// Cache is the process-wide flare cache and its companion per-flare
// lock table, per spec.md §4.4: a single lookupMutex serializes
// structural changes to both the ordered map and the lock table; the
// per-flare RWMutex guards read/write access to one flare's on-disk
// bytes and in-memory fields.
//
// Each flare's RWMutex lives in the locks map, keyed by binary hash: it
// is allocated under lookupMutex the first time that hash is locked,
// reused by later lookups, and dropped by Evict.
type Cache struct {
	lookupMutex sync.Mutex
	tree        *btree.BTree
	locks       map[[20]byte]*sync.RWMutex

	store *Store
}

// NewCache returns an empty cache backed by store for misses.
func NewCache(store *Store) *Cache {
	return &Cache{
		tree:  btree.New(32),
		locks: make(map[[20]byte]*sync.RWMutex),
		store: store,
	}
}

// lockFor returns the per-flare RWMutex for hash, creating it under
// lookupMutex if absent.
func (c *Cache) lockFor(hash [20]byte) *sync.RWMutex {
	c.lookupMutex.Lock()
	defer c.lookupMutex.Unlock()
	l, ok := c.locks[hash]
	if !ok {
		l = &sync.RWMutex{}
		c.locks[hash] = l
	}
	return l
}

// get returns the cached flare for hash without touching disk.
func (c *Cache) get(hash [20]byte) *Flare {
	c.lookupMutex.Lock()
	defer c.lookupMutex.Unlock()
	probe := cacheItem{&Flare{BinHash: hash}}
	item := c.tree.Get(probe)
	if item == nil {
		return nil
	}
	return item.(cacheItem).Flare
}

// put inserts f into the ordered map under lookupMutex.
func (c *Cache) put(f *Flare) {
	c.lookupMutex.Lock()
	defer c.lookupMutex.Unlock()
	c.tree.ReplaceOrInsert(cacheItem{f})
}

// Evict removes f from both the ordered map and the lock table.
func (c *Cache) Evict(f *Flare) {
	c.lookupMutex.Lock()
	defer c.lookupMutex.Unlock()
	c.tree.Delete(cacheItem{f})
	delete(c.locks, f.BinHash)
}

// SearchOrCreate implements spec.md §4.4 search_or_create(path):
// simplify the path, look up; if absent, construct an un-upcasted flare
// and load it if its contents exist on disk; if present but not yet
// upcasted, load it. Never returns nil for a simplifiable path unless
// the underlying Load fails for a reason other than "file does not yet
// exist" (a brand-new flare about to be created has no contents yet,
// which is not an error at this stage).
func (c *Cache) SearchOrCreate(path string) (*Flare, error) {
	simplified := Simplify(path)
	key := ring.HashPath(simplified)
	rawSlice, err := ring.Dearmour(key)
	if err != nil {
		return nil, err
	}
	var raw [20]byte
	copy(raw[:], rawSlice)

	if existing := c.get(raw); existing != nil {
		if !existing.IsUpcasted && c.store.Exists(existing) {
			if err := c.store.Load(existing); err != nil {
				return nil, err
			}
		}
		return existing, nil
	}

	f := NewUnupcasted(simplified, c.store.HashpathDir)
	if c.store.Exists(f) {
		if err := c.store.Load(f); err != nil {
			return nil, err
		}
	}
	c.put(f)
	return f, nil
}

// WithLock runs fn while holding the per-flare lock for f: write lock
// when write is true, read lock otherwise.
func (c *Cache) WithLock(f *Flare, write bool, fn func() error) error {
	lock := c.lockFor(f.BinHash)
	if write {
		lock.Lock()
		defer lock.Unlock()
	} else {
		lock.RLock()
		defer lock.RUnlock()
	}
	return fn()
}

// Len reports the number of cached flares, for console/debug output.
func (c *Cache) Len() int {
	c.lookupMutex.Lock()
	defer c.lookupMutex.Unlock()
	return c.tree.Len()
}

// Walk visits every cached flare in binary-hash order, stopping early
// if fn returns false. Used by the console's "print cache" command.
func (c *Cache) Walk(fn func(*Flare) bool) {
	c.lookupMutex.Lock()
	items := make([]*Flare, 0, c.tree.Len())
	c.tree.Ascend(func(item btree.Item) bool {
		items = append(items, item.(cacheItem).Flare)
		return true
	})
	c.lookupMutex.Unlock()

	for _, f := range items {
		if !fn(f) {
			return
		}
	}
}
