package replication

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/catalog"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/flare"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ops"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ring"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/transport"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/wire"
)

func newTestOpsServer(t *testing.T, nickname string) *ops.Server {
	t.Helper()
	dir := t.TempDir()
	cat, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	store, err := flare.NewStore(filepath.Join(dir, "hashpath"), cat)
	require.NoError(t, err)
	cache := flare.NewCache(store)

	self := &ring.Volcano{Nickname: nickname, IPAddr: "127.0.0.1", Port: 9000, Alive: true}
	lava := ring.NewBootstrapLava(self)
	return ops.NewServer(nickname, lava, cache, store, nil, nil, logrus.NewEntry(logrus.New()))
}

func TestTransmitKeyRoundtrip(t *testing.T) {
	source := newTestOpsServer(t, "source")
	target := newTestOpsServer(t, "target")

	targetDispatcher := transport.NewDispatcher(transport.NewResultCache(16), logrus.NewEntry(logrus.New()))
	targetDispatcher.Register(wire.OpTransmitKey, NewTransmitKeyHandler(target))

	source.Send = func(addr string, request []byte) ([]byte, error) {
		return targetDispatcher.Handle(context.Background(), &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1}, request), nil
	}

	ctx := context.Background()
	me := wire.NewEncoder()
	me.PutString("/replicated.txt")
	me.PutUint32(0100644)
	me.PutUint64(0)
	_, errc, _ := source.Mknod(ctx, &net.UDPAddr{}, wire.RequestHeader{OpType: wire.OpMknod, TTL: wire.DefaultTTL}, me.Bytes())
	require.Equal(t, wire.EOK, errc)

	we := wire.NewEncoder()
	we.PutString("/replicated.txt")
	we.PutUint64(0)
	we.PutBytes([]byte("payload"))
	_, errc2, _ := source.Write(ctx, &net.UDPAddr{}, wire.RequestHeader{OpType: wire.OpWrite, TTL: wire.DefaultTTL}, we.Bytes())
	require.Equal(t, wire.EOK, errc2)

	queue := NewQueue(source, logrus.NewEntry(logrus.New()))
	remote := &ring.Volcano{Nickname: "target", IPAddr: "127.0.0.1", Port: 9000}
	err := queue.transmitKey(ctx, ops.ReplicaTask{Op: wire.OpWrite, Path: "/replicated.txt", Target: remote})
	require.NoError(t, err)

	f, err := target.Cache.SearchOrCreate("/replicated.txt")
	require.NoError(t, err)
	require.NoError(t, target.Store.Load(f))
	assert.Equal(t, flare.TypeRegular, f.Type)
	assert.Equal(t, uint64(len("payload")), f.Stat.Size)
}

func TestQueueEnqueueAndDrainDoesNotBlock(t *testing.T) {
	source := newTestOpsServer(t, "source")
	target := newTestOpsServer(t, "target")

	targetDispatcher := transport.NewDispatcher(transport.NewResultCache(16), logrus.NewEntry(logrus.New()))
	targetDispatcher.Register(wire.OpTransmitKey, NewTransmitKeyHandler(target))
	source.Send = func(addr string, request []byte) ([]byte, error) {
		return targetDispatcher.Handle(context.Background(), &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1}, request), nil
	}

	ctx := context.Background()
	me := wire.NewEncoder()
	me.PutString("/f")
	me.PutUint32(0100644)
	me.PutUint64(0)
	_, errc, _ := source.Mknod(ctx, &net.UDPAddr{}, wire.RequestHeader{OpType: wire.OpMknod, TTL: wire.DefaultTTL}, me.Bytes())
	require.Equal(t, wire.EOK, errc)

	queue := NewQueue(source, logrus.NewEntry(logrus.New()))
	runCtx, cancel := context.WithCancel(context.Background())
	queue.Start(runCtx)
	defer cancel()

	remote := &ring.Volcano{Nickname: "target", IPAddr: "127.0.0.1", Port: 9000}
	queue.Enqueue(ops.ReplicaTask{Op: wire.OpMknod, Path: "/f", Target: remote})

	require.Eventually(t, func() bool {
		f, err := target.Cache.SearchOrCreate("/f")
		if err != nil {
			return false
		}
		return target.Store.Exists(f)
	}, time.Second, 10*time.Millisecond)

	queue.Stop()
}
