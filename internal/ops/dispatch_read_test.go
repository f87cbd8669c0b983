package ops

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/catalog"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/flare"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ring"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/transport"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/wire"
)

// twoNodeServers builds two Servers sharing one ring split into two
// halves, so every path has exactly one owner and one redundant owner
// among {a, b}.
func twoNodeServers(t *testing.T) (a, b *Server) {
	t.Helper()
	selfA := &ring.Volcano{
		Nickname: "a", IPAddr: "127.0.0.1", Port: 9000, Alive: true,
		StartKey: ring.MinKey, StopKey: "7fffffffffffffffffffffffffffffffffffffff",
	}
	selfB := &ring.Volcano{
		Nickname: "b", IPAddr: "127.0.0.1", Port: 9001, Alive: true,
		StartKey: "8000000000000000000000000000000000000000", StopKey: ring.MaxKey,
	}

	lava := ring.NewLava()
	lava.InsertSorted(selfA)
	lava.InsertSorted(selfB)

	return newServerOn(t, "a", lava), newServerOn(t, "b", lava)
}

func newServerOn(t *testing.T, nickname string, lava *ring.Lava) *Server {
	t.Helper()
	dir := t.TempDir()
	cat, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	store, err := flare.NewStore(filepath.Join(dir, "hashpath"), cat)
	require.NoError(t, err)
	cache := flare.NewCache(store)

	return NewServer(nickname, lava, cache, store, nil, nil, logrus.NewEntry(logrus.New()))
}

// putDirDirectly writes a directory flare straight to a server's store,
// bypassing dispatch entirely, to simulate a copy that already arrived
// there (by an earlier replica transfer, in the redundant owner's case).
func putDirDirectly(t *testing.T, s *Server, path string) {
	t.Helper()
	f, err := s.Cache.SearchOrCreate(path)
	require.NoError(t, err)
	f.Type = flare.TypeDir
	f.Stat.Mode = 0040755
	require.NoError(t, s.Store.Save(f, true))
}

func getattrRequest(path string) []byte {
	e := wire.NewEncoder()
	e.PutString(path)
	return e.Bytes()
}

// TestDispatchReadAnswersLocallyFromRedundantOwner confirms a read
// routed to the redundant owner is served from its own copy rather than
// unconditionally forwarded to the true owner, once that copy exists.
func TestDispatchReadAnswersLocallyFromRedundantOwner(t *testing.T) {
	a, b := twoNodeServers(t)
	const path = "/docs"

	owner, err := ring.Route(a.Ring, path)
	require.NoError(t, err)
	redOwner := ring.RedundantOwner(a.Ring, owner)
	require.NotNil(t, redOwner)

	var ownerSrv, redSrv *Server
	if owner.Nickname == "a" {
		ownerSrv, redSrv = a, b
	} else {
		ownerSrv, redSrv = b, a
	}

	// The redundant owner already holds the replicated copy. Its Send
	// is replaced by a stub that fails the test, so any attempt to
	// forward is caught.
	redSrv.Send = func(addr string, request []byte) ([]byte, error) {
		t.Fatalf("unexpected forward to %s; redundant owner should have answered locally", addr)
		return nil, nil
	}
	putDirDirectly(t, redSrv, path)

	header := wire.RequestHeader{OpType: wire.OpGetattr, TTL: wire.DefaultTTL, TransactionID: 1}
	_, errc, _ := redSrv.Getattr(context.Background(), &net.UDPAddr{IP: net.ParseIP("127.0.0.1")}, header, getattrRequest(path))
	require.Equal(t, wire.EOK, errc)

	_ = ownerSrv // only used to resolve roles above
}

// TestDispatchReadFallsBackToOwnerWhenRedundantCopyMissing confirms the
// redundant owner forwards to the true owner when its own local attempt
// fails (e.g. the replica has not arrived yet), per the read-only
// forward rule.
func TestDispatchReadFallsBackToOwnerWhenRedundantCopyMissing(t *testing.T) {
	a, b := twoNodeServers(t)
	const path = "/docs"

	owner, err := ring.Route(a.Ring, path)
	require.NoError(t, err)
	redOwner := ring.RedundantOwner(a.Ring, owner)
	require.NotNil(t, redOwner)

	var ownerSrv, redSrv *Server
	if owner.Nickname == "a" {
		ownerSrv, redSrv = a, b
	} else {
		ownerSrv, redSrv = b, a
	}

	putDirDirectly(t, ownerSrv, path)

	ownerDispatcher := transport.NewDispatcher(transport.NewResultCache(16), logrus.NewEntry(logrus.New()))
	ownerSrv.Register(ownerDispatcher)
	redSrv.Send = func(addr string, request []byte) ([]byte, error) {
		return ownerDispatcher.Handle(context.Background(), &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1}, request), nil
	}

	header := wire.RequestHeader{OpType: wire.OpGetattr, TTL: wire.DefaultTTL, TransactionID: 1}
	_, errc, _ := redSrv.Getattr(context.Background(), &net.UDPAddr{IP: net.ParseIP("127.0.0.1")}, header, getattrRequest(path))
	require.Equal(t, wire.EOK, errc)
}
