package nfsgateway

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/catalog"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/flare"
)

func newLocalGateway(t *testing.T) (*Local, *flare.Store) {
	t.Helper()
	dir := t.TempDir()
	cat, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	store, err := flare.NewStore(filepath.Join(dir, "hashpath"), cat)
	require.NoError(t, err)
	cache := flare.NewCache(store)

	return &Local{Cache: cache, Catalog: cat}, store
}

func TestMountThenLookupRoundTrips(t *testing.T) {
	g, store := newLocalGateway(t)
	ctx := context.Background()

	f, err := g.Cache.SearchOrCreate("/export/readme.txt")
	require.NoError(t, err)
	f.Type = flare.TypeRegular
	f.IsUpcasted = true
	require.NoError(t, store.Save(f, true))

	handle, err := g.Mount(ctx, "/export/readme.txt")
	require.NoError(t, err)
	assert.Equal(t, Handle(f.BinHash), handle)

	path, err := g.Lookup(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, "/export/readme.txt", path)
}

func TestLookupUnknownHandleFails(t *testing.T) {
	g, _ := newLocalGateway(t)
	_, err := g.Lookup(context.Background(), Handle{})
	assert.Error(t, err)
}
