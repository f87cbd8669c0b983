package membership

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/catalog"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/flare"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ops"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/replication"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ring"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/transport"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/wire"
)

// testNode bundles one node's whole stack, mirroring
// replication's newTestOpsServer helper but also wiring a membership
// Handlers and a real (in-process) replication queue, since join needs
// both.
type testNode struct {
	Server     *ops.Server
	Catalog    *catalog.Catalog
	Handlers   *Handlers
	Dispatcher *transport.Dispatcher
	Volcano    *ring.Volcano
}

func newTestNode(t *testing.T, nickname string, lava *ring.Lava) *testNode {
	t.Helper()
	dir := t.TempDir()
	cat, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	store, err := flare.NewStore(filepath.Join(dir, "hashpath"), cat)
	require.NoError(t, err)
	cache := flare.NewCache(store)

	self := lava.ByNickname(nickname)
	require.NotNil(t, self)

	server := ops.NewServer(nickname, lava, cache, store, nil, nil, logrus.NewEntry(logrus.New()))
	queue := replication.NewQueue(server, logrus.NewEntry(logrus.New()))
	server.Replica = queue

	handlers := NewHandlers(server, cat, queue, logrus.NewEntry(logrus.New()))
	dispatcher := transport.NewDispatcher(transport.NewResultCache(64), logrus.NewEntry(logrus.New()))
	server.Register(dispatcher)
	handlers.Register(dispatcher)
	dispatcher.Register(wire.OpTransmitKey, replication.NewTransmitKeyHandler(server))

	return &testNode{Server: server, Catalog: cat, Handlers: handlers, Dispatcher: dispatcher, Volcano: self}
}

// sendTo wires a fake UDP send function that routes straight into
// target's dispatcher, as replication's tests do to avoid real sockets.
func sendTo(target *testNode) func(addr string, request []byte) ([]byte, error) {
	return func(addr string, request []byte) ([]byte, error) {
		return target.Dispatcher.Handle(context.Background(), &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1}, request), nil
	}
}

func TestBootstrapCreatesRootAndDHT(t *testing.T) {
	node := newTestNode(t, "alpha", ring.NewBootstrapLava(&ring.Volcano{Nickname: "alpha", IPAddr: "127.0.0.1", Port: 9000, Alive: true}))

	require.NoError(t, Bootstrap(node.Server))

	root, err := node.Server.Cache.SearchOrCreate("/")
	require.NoError(t, err)
	require.NoError(t, node.Server.Store.Load(root))
	assert.Equal(t, flare.TypeDir, root.Type)
	assert.Equal(t, uint32(0o777), root.Stat.Mode&0o777)

	dht, err := node.Server.Cache.SearchOrCreate(DHTPath)
	require.NoError(t, err)
	require.NoError(t, node.Server.Store.Load(dht))
	assert.Equal(t, flare.TypeDir, dht.Type)
	assert.Equal(t, uint32(0o700), dht.Stat.Mode&0o777)
}

func TestIsCoordinatorOwnerOfDHT(t *testing.T) {
	lava := ring.NewBootstrapLava(&ring.Volcano{Nickname: "alpha", IPAddr: "127.0.0.1", Port: 9000, Alive: true})
	node := newTestNode(t, "alpha", lava)
	assert.True(t, IsCoordinator(node.Server))
}

func TestJoinAssignsEmptyTopSlice(t *testing.T) {
	alphaLava := ring.NewBootstrapLava(&ring.Volcano{Nickname: "alpha", IPAddr: "127.0.0.1", Port: 9000, Alive: true})
	alpha := newTestNode(t, "alpha", alphaLava)
	require.NoError(t, Bootstrap(alpha.Server))

	betaProfile := Profile{Nickname: "beta", FQDN: "beta.local", IPAddr: "127.0.0.1", Port: 9001, Bandwidth: 100, Storage: 100}
	txids := &transport.TransactionAllocator{}

	joinedLava, joinerVolcano, err := Join(sendTo(alpha), txids, "alpha:9000", betaProfile, "")
	require.NoError(t, err)

	assert.Equal(t, "beta", joinerVolcano.Nickname)
	assert.Equal(t, ring.MaxKey, joinerVolcano.StopKey)
	assert.NotEqual(t, ring.MinKey, joinerVolcano.StartKey)
	assert.Equal(t, 2, joinedLava.Participants())

	require.NoError(t, joinedLava.CheckPartition())

	alphaAfter := alpha.Server.Ring.ByNickname("alpha")
	require.NotNil(t, alphaAfter)
	assert.Equal(t, ring.MinKey, alphaAfter.StartKey)
	assert.NotEqual(t, ring.MaxKey, alphaAfter.StopKey)
	assert.Empty(t, alphaAfter.JoiningNode)
	require.NoError(t, alpha.Server.Ring.CheckPartition())

	rows, err := alpha.Catalog.LoadNodes()
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestJoinRejectsWrongSecretKey(t *testing.T) {
	alphaLava := ring.NewBootstrapLava(&ring.Volcano{Nickname: "alpha", IPAddr: "127.0.0.1", Port: 9000, Alive: true})
	alpha := newTestNode(t, "alpha", alphaLava)
	alpha.Handlers.SecretKey = "correct-horse"
	require.NoError(t, Bootstrap(alpha.Server))

	betaProfile := Profile{Nickname: "beta", FQDN: "beta.local", IPAddr: "127.0.0.1", Port: 9001, Bandwidth: 100, Storage: 100}
	txids := &transport.TransactionAllocator{}

	_, _, err := Join(sendTo(alpha), txids, "alpha:9000", betaProfile, "wrong-key")
	require.Error(t, err)
}

func TestJoinAcceptsMatchingSecretKey(t *testing.T) {
	alphaLava := ring.NewBootstrapLava(&ring.Volcano{Nickname: "alpha", IPAddr: "127.0.0.1", Port: 9000, Alive: true})
	alpha := newTestNode(t, "alpha", alphaLava)
	alpha.Handlers.SecretKey = "correct-horse"
	require.NoError(t, Bootstrap(alpha.Server))

	betaProfile := Profile{Nickname: "beta", FQDN: "beta.local", IPAddr: "127.0.0.1", Port: 9001, Bandwidth: 100, Storage: 100}
	txids := &transport.TransactionAllocator{}

	_, joinerVolcano, err := Join(sendTo(alpha), txids, "alpha:9000", betaProfile, "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "beta", joinerVolcano.Nickname)
}

func TestJoinRejectsDuplicateNickname(t *testing.T) {
	alphaLava := ring.NewBootstrapLava(&ring.Volcano{Nickname: "alpha", IPAddr: "127.0.0.1", Port: 9000, Alive: true})
	alpha := newTestNode(t, "alpha", alphaLava)
	require.NoError(t, Bootstrap(alpha.Server))

	dupProfile := Profile{Nickname: "alpha", FQDN: "other.local", IPAddr: "10.0.0.5", Port: 9009}
	txids := &transport.TransactionAllocator{}

	_, _, err := Join(sendTo(alpha), txids, "alpha:9000", dupProfile, "")
	require.Error(t, err)
}

func TestRebootBroadcastsNetworkBuiltOnceHeartbeatsAgree(t *testing.T) {
	// alpha alone owns the whole ring, so it necessarily owns hash("/.dht")
	// and becomes the reboot coordinator; beta is tracked only via the
	// catalog's stored node rows, as a coordinated reboot would find it
	// after loading topology from disk.
	lava := ring.NewBootstrapLava(&ring.Volcano{Nickname: "alpha", IPAddr: "127.0.0.1", Port: 9000, Alive: true})
	alpha := newTestNode(t, "alpha", lava)
	require.True(t, IsCoordinator(alpha.Server))

	beta := newTestNode(t, "beta", ring.NewBootstrapLava(&ring.Volcano{Nickname: "beta", IPAddr: "127.0.0.1", Port: 9001, Alive: true}))

	require.NoError(t, alpha.Catalog.UpsertNode(catalog.NodeRow{
		Nickname: "beta", FQDN: "beta.local", IPAddr: "127.0.0.1", Port: 9001,
		StartKey: string(beta.Volcano.StartKey), StopKey: string(beta.Volcano.StopKey),
	}))

	alpha.Server.Send = func(addr string, request []byte) ([]byte, error) {
		return sendTo(beta)(addr, request)
	}

	require.NoError(t, Reboot(context.Background(), alpha.Server, alpha.Catalog))
	assert.True(t, beta.Handlers.Ready())
}
