package flare

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSearchOrCreateReturnsSameInstance(t *testing.T) {
	store := newTestStore(t)
	cache := NewCache(store)

	f1, err := cache.SearchOrCreate("/a")
	require.NoError(t, err)
	f2, err := cache.SearchOrCreate("/a")
	require.NoError(t, err)
	require.Same(t, f1, f2)
}

func TestSearchOrCreateLoadsFromDisk(t *testing.T) {
	store := newTestStore(t)
	cache := NewCache(store)

	f, err := cache.SearchOrCreate("/a")
	require.NoError(t, err)
	f.Type = TypeRegular
	f.Stat.Mode = 0o100644
	require.NoError(t, store.Save(f, true))
	cache.Evict(f)

	reloaded, err := cache.SearchOrCreate("/a")
	require.NoError(t, err)
	require.True(t, reloaded.IsUpcasted)
	require.Equal(t, TypeRegular, reloaded.Type)
}

func TestWithLockSerializesWriters(t *testing.T) {
	store := newTestStore(t)
	cache := NewCache(store)
	f, err := cache.SearchOrCreate("/a")
	require.NoError(t, err)

	var mu sync.Mutex
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cache.WithLock(f, true, func() error {
				mu.Lock()
				counter++
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	require.Equal(t, 20, counter)
}

func TestCacheWalkOrdersByHash(t *testing.T) {
	store := newTestStore(t)
	cache := NewCache(store)
	for _, p := range []string{"/a", "/b", "/c"} {
		_, err := cache.SearchOrCreate(p)
		require.NoError(t, err)
	}

	var hashes []string
	cache.Walk(func(f *Flare) bool {
		hashes = append(hashes, string(f.Hash))
		return true
	})
	require.Len(t, hashes, 3)
	for i := 1; i < len(hashes); i++ {
		require.True(t, hashes[i-1] < hashes[i])
	}
}
