package membership

import (
	"context"
	"net"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/catalog"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ops"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ring"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/transport"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/wire"
)

// IsCoordinator reports whether server owns the hidden DHT profile
// directory, making it responsible for driving coordinated reboot, per
// spec.md §4.9 ("coordinator node = owner of hash('/.dht')").
func IsCoordinator(server *ops.Server) bool {
	owner, err := ring.Route(server.Ring, DHTPath)
	if err != nil {
		return false
	}
	self := server.Self()
	return self != nil && owner.Equal(self)
}

// Reboot re-forms the ring after every node in the stored topology
// restarts together, per spec.md §4.9 coordinated reboot. Only the
// coordinator drives it: it pings every other node's heartbeat,
// verifies each one's reported interval against the catalog's last
// known assignment, and broadcasts network_built(ready) once every
// peer has confirmed. Non-coordinator nodes return immediately; they
// become ready when they receive the broadcast.
func Reboot(ctx context.Context, server *ops.Server, cat *catalog.Catalog) error {
	if !IsCoordinator(server) {
		return nil
	}

	rows, err := cat.LoadNodes()
	if err != nil {
		return errors.Wrap(err, "load stored nodes")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, row := range rows {
		row := row
		if row.Nickname == server.SelfNickname {
			continue
		}
		g.Go(func() error {
			return verifyHeartbeat(gctx, server, row)
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "verify peer heartbeats")
	}

	return broadcastNetworkBuilt(ctx, server, rows)
}

// verifyHeartbeat confirms that row's node is up and that its reported
// interval still matches what the catalog last recorded.
func verifyHeartbeat(ctx context.Context, server *ops.Server, row catalog.NodeRow) error {
	stats, err := SendHeartbeat(server.Send, server.Txids, row.IPAddr+":"+portString(row.Port))
	if err != nil {
		return errors.Wrapf(err, "heartbeat %s", row.Nickname)
	}
	if string(stats.StartKey) != row.StartKey || string(stats.StopKey) != row.StopKey {
		return errors.Errorf("heartbeat %s: interval %s-%s disagrees with catalog %s-%s", row.Nickname, stats.StartKey, stats.StopKey, row.StartKey, row.StopKey)
	}
	return nil
}

// PeerStats is a peer's self-reported interval and capacity figures, per
// the heartbeat reply body of `magma_pktqs_heartbeat` in the original
// protocol (storage, free_storage, bandwidth, total_keys; the source's
// load field is commented out there and is never part of the wire
// reply here either — it is recomputed locally by each node).
type PeerStats struct {
	StartKey    ring.Key
	StopKey     ring.Key
	Storage     uint32
	FreeStorage uint32
	Bandwidth   uint32
	TotalKeys   uint32
}

// SendHeartbeat sends a heartbeat request to addr and decodes the
// peer's reported stats. Used by coordinated reboot (interval
// cross-check) and by the balancer loop (liveness and capacity
// refresh), per spec.md §4.9 and §4.11.
func SendHeartbeat(send func(addr string, request []byte) ([]byte, error), txids *transport.TransactionAllocator, addr string) (PeerStats, error) {
	header := wire.RequestHeader{OpType: wire.OpHeartbeat, TTL: wire.TerminalTTL, TransactionID: txids.Next()}
	e := wire.NewEncoder()
	e.PutRequestHeader(header)

	reply, err := send(addr, e.Bytes())
	if err != nil {
		return PeerStats{}, err
	}

	dec := wire.NewDecoder(reply)
	resp := dec.GetResponseHeader()
	if dec.Err() != nil {
		return PeerStats{}, dec.Err()
	}
	if resp.Errno != wire.EOK {
		return PeerStats{}, resp.Errno
	}

	stats := PeerStats{
		StartKey:    ring.Key(dec.GetString()),
		StopKey:     ring.Key(dec.GetString()),
		Storage:     dec.GetUint32(),
		FreeStorage: dec.GetUint32(),
		Bandwidth:   dec.GetUint32(),
		TotalKeys:   dec.GetUint32(),
	}
	if dec.Err() != nil {
		return PeerStats{}, dec.Err()
	}
	return stats, nil
}

// broadcastNetworkBuilt notifies every other stored node that the ring
// is confirmed and ready to serve, per spec.md §4.9.
func broadcastNetworkBuilt(ctx context.Context, server *ops.Server, rows []catalog.NodeRow) error {
	g, _ := errgroup.WithContext(ctx)
	for _, row := range rows {
		row := row
		if row.Nickname == server.SelfNickname {
			continue
		}
		g.Go(func() error {
			header := wire.RequestHeader{OpType: wire.OpNetworkBuilt, TTL: wire.TerminalTTL, TransactionID: server.Txids.Next()}
			e := wire.NewEncoder()
			e.PutRequestHeader(header)
			_, err := server.Send(row.IPAddr+":"+portString(row.Port), e.Bytes())
			return errors.Wrapf(err, "network_built to %s", row.Nickname)
		})
	}
	return g.Wait()
}

// Heartbeat is the server-side handler for heartbeat: it answers with
// this node's own current interval and capacity figures, letting the
// coordinator cross-check the interval against the catalog during a
// coordinated reboot, and letting a polling peer's balancer loop refresh
// its view of this node.
func (h *Handlers) Heartbeat(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	self := h.Server.Self()
	if self == nil {
		return -1, wire.EIO, nil
	}
	e := wire.NewEncoder()
	e.PutString(string(self.StartKey))
	e.PutString(string(self.StopKey))
	e.PutUint32(self.Storage)
	e.PutUint32(self.FreeStorage)
	e.PutUint32(self.Bandwidth)
	e.PutUint32(self.TotalKeys)
	return 0, wire.EOK, e.Bytes()
}

// NetworkBuilt is the server-side handler for network_built(ready): it
// marks this node ready to serve client traffic, per spec.md §4.9.
func (h *Handlers) NetworkBuilt(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	h.ready.Store(true)
	return 0, wire.EOK, nil
}

// ShutdownNotice is the server-side handler for a departing peer's
// shutdown fan-out: it is purely informational, logged for operators.
// The balancer's next heartbeat cycle marks a non-responding node as
// not alive; nothing removes it from the ring.
func (h *Handlers) ShutdownNotice(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	h.Log.WithField("peer", peerAddr(peer)).Info("peer announced shutdown")
	return 0, wire.EOK, nil
}

// peerAddr mirrors ops's tiny helper for logging a possibly-nil peer
// address without importing net in callers that don't otherwise need
// it.
func peerAddr(peer *net.UDPAddr) string {
	if peer == nil {
		return "?"
	}
	return peer.String()
}

// Shutdown notifies every other node in the ring that this node is
// leaving, best-effort, per spec.md §4.9 shutdown fan-out.
func Shutdown(server *ops.Server) {
	self := server.Self()
	for _, v := range server.Ring.All() {
		if self != nil && v.Equal(self) {
			continue
		}
		header := wire.RequestHeader{OpType: wire.OpShutdown, TTL: wire.TerminalTTL, TransactionID: server.Txids.Next()}
		e := wire.NewEncoder()
		e.PutRequestHeader(header)
		if _, err := server.Send(ops.NodeAddr(v), e.Bytes()); err != nil {
			server.Log.WithError(err).WithField("peer", v.Nickname).Warn("shutdown notice failed")
		}
	}
}
