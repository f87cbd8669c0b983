// Package integration runs the node daemon's components against real
// UDP sockets instead of the in-process dispatcher stubs the unit
// tests use, exercising the same wiring cmd/volcano's main() performs:
// bootstrap, join, forward-on-non-owner, and async replication to the
// redundant owner, end to end over the loopback interface.
package integration

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/catalog"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/flare"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/membership"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ops"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/replication"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ring"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/transport"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/wire"
)

// liveNode bundles one node's whole stack bound to a real, kernel-
// assigned loopback UDP port, mirroring internal/membership's testNode
// helper but without the fake in-process sendTo shortcut.
type liveNode struct {
	Self     *ring.Volcano
	Server   *ops.Server
	Catalog  *catalog.Catalog
	Queue    *replication.Queue
	Handlers *membership.Handlers
	Service  *transport.Service
}

func newLiveNode(t *testing.T, ctx context.Context, nickname string, lava *ring.Lava, self *ring.Volcano) *liveNode {
	t.Helper()
	dir := t.TempDir()
	cat, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	store, err := flare.NewStore(filepath.Join(dir, "hashpath"), cat)
	require.NoError(t, err)
	cache := flare.NewCache(store)

	log := logrus.NewEntry(logrus.New()).WithField("node", nickname)

	server := ops.NewServer(nickname, lava, cache, store, nil, nil, log)
	queue := replication.NewQueue(server, log)
	server.Replica = queue

	handlers := membership.NewHandlers(server, cat, queue, log)
	dispatcher := transport.NewDispatcher(transport.NewResultCache(64), log)
	server.Register(dispatcher)
	handlers.Register(dispatcher)
	dispatcher.Register(wire.OpTransmitKey, replication.NewTransmitKeyHandler(server))

	svc, err := transport.NewService(nickname, "127.0.0.1:0", 0, dispatcher.Handle, log)
	require.NoError(t, err)
	self.Port = uint16(svc.LocalAddr().Port)

	go svc.Serve(ctx)
	queue.Start(ctx)

	return &liveNode{Self: self, Server: server, Catalog: cat, Queue: queue, Handlers: handlers, Service: svc}
}

func (n *liveNode) addr() string {
	return fmt.Sprintf("127.0.0.1:%d", n.Self.Port)
}

// TestBootstrapJoinMkdirReplicates exercises a two-node ring end to end:
// alpha bootstraps alone, beta joins it over real UDP, a client mkdir
// sent to alpha is routed to whichever node owns the path (forwarded if
// necessary) and asynchronously replicated to the redundant owner.
func TestBootstrapJoinMkdirReplicates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	selfAlpha := &ring.Volcano{Nickname: "alpha", IPAddr: "127.0.0.1", Alive: true, Bandwidth: 100, Storage: 100}
	alpha := newLiveNode(t, ctx, "alpha", ring.NewBootstrapLava(selfAlpha), selfAlpha)
	require.NoError(t, membership.Bootstrap(alpha.Server))

	selfBeta := &ring.Volcano{Nickname: "beta", IPAddr: "127.0.0.1", Alive: true, Bandwidth: 100, Storage: 100}
	betaLava := ring.NewLava()
	betaLava.InsertSorted(selfBeta)
	beta := newLiveNode(t, ctx, "beta", betaLava, selfBeta)

	txids := &transport.TransactionAllocator{}
	joined, joinerVolcano, err := membership.Join(transport.SendAndAwait, txids, alpha.addr(), membership.ProfileOf(selfBeta), "")
	require.NoError(t, err)
	beta.Server.Ring.InstallFrom(joined)
	selfBeta.StartKey = joinerVolcano.StartKey
	selfBeta.StopKey = joinerVolcano.StopKey
	require.NoError(t, beta.Server.Ring.CheckPartition())

	const path = "/docs"
	header := wire.RequestHeader{OpType: wire.OpMkdir, TTL: 2, TransactionID: txids.Next(), UID: 0, GID: 0o700}
	e := wire.NewEncoder()
	e.PutRequestHeader(header)
	e.PutString(path)
	e.PutUint32(flare.TypeBits(flare.TypeDir) | 0o755)

	reply, err := transport.SendAndAwait(alpha.addr(), e.Bytes())
	require.NoError(t, err)

	dec := wire.NewDecoder(reply)
	resp := dec.GetResponseHeader()
	require.NoError(t, dec.Err())
	require.Equal(t, wire.EOK, resp.Errno)

	owner, err := ring.Route(alpha.Server.Ring, path)
	require.NoError(t, err)
	redOwner := ring.RedundantOwner(alpha.Server.Ring, owner)
	require.NotNil(t, redOwner)

	ownerNode, otherNode := alpha, beta
	if owner.Nickname == "beta" {
		ownerNode, otherNode = beta, alpha
	}

	f, err := ownerNode.Server.Cache.SearchOrCreate(path)
	require.NoError(t, err)
	assert.True(t, ownerNode.Server.Store.Exists(f))

	require.Equal(t, otherNode.Self.Nickname, redOwner.Nickname)
	assert.Eventually(t, func() bool {
		rf, err := otherNode.Server.Cache.SearchOrCreate(path)
		if err != nil {
			return false
		}
		return otherNode.Server.Store.Exists(rf)
	}, 2*time.Second, 20*time.Millisecond, "mkdir was never replicated to the redundant owner")
}
