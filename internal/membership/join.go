package membership

import (
	"context"
	"net"

	"github.com/pkg/errors"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/catalog"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ring"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/transport"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/wire"
)

// newcomerStart computes the start key a join_network/finish_join_network
// caller should be assigned: one past the highest flare hash this node
// already has on disk, or the ring's minimum key if this node is
// empty. Per spec.md §4.9 and vulcano.c's magma_get_highest_used_key,
// this is deliberately the *local* highest stored hash, not the ring's
// highest assigned interval boundary — it guarantees the range handed
// to a joiner contains none of this node's existing flares, so the
// keyspace streamed at finish time is normally empty.
func (h *Handlers) newcomerStart() (ring.Key, error) {
	maxHash, exists, err := h.Catalog.MaxHash()
	if err != nil {
		return "", err
	}
	if !exists {
		return ring.MinKey, nil
	}
	start, ok := ring.Key(maxHash).Inc()
	if !ok {
		return "", errors.New("this node's highest stored hash is already the ring maximum")
	}
	return start, nil
}

// JoinNetwork is the server-side handler for join_network: it checks
// the candidate for a nickname/FQDN/(ip,port) collision and, if none,
// answers with the interval the joiner would receive — from one past
// this node's highest stored flare hash through this node's current
// stop key — without yet mutating anything, per spec.md §4.9.
func (h *Handlers) JoinNetwork(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	dec := wire.NewDecoder(body)
	profile := getProfile(dec)
	secretKey := dec.GetString()
	if dec.Err() != nil {
		return -1, wire.EINVAL, nil
	}

	if h.SecretKey != "" && secretKey != h.SecretKey {
		return -1, wire.EACCES, nil
	}

	if h.Server.Ring.NodeExists(profile.toVolcano()) {
		return -1, wire.EEXIST, nil
	}

	self := h.Server.Self()
	if self == nil {
		return -1, wire.EIO, nil
	}
	start, err := h.newcomerStart()
	if err != nil {
		h.Log.WithError(err).Warn("join_network: cannot compute newcomer interval")
		return -1, wire.EIO, nil
	}

	e := wire.NewEncoder()
	e.PutString(string(start))
	e.PutString(string(self.StopKey))
	return 0, wire.EOK, e.Bytes()
}

// FinishJoinNetwork is the server-side handler for finish_join_network.
// The caller is the joiner itself, reporting both halves of the split
// it was told about by join_network: its own new interval and the
// interval this node should narrow down to. This node independently
// recomputes both and refuses to proceed if they disagree (a
// concurrent join or a stale join_network reply), then clones the
// ring, narrows its own entry, inserts the joiner in sorted position,
// streams the joiner's newly owned keyspace, installs the new ring,
// and persists both node rows — per spec.md §4.9.
func (h *Handlers) FinishJoinNetwork(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	dec := wire.NewDecoder(body)
	profile := getProfile(dec)
	joinerStart := ring.Key(dec.GetString())
	joinerStop := ring.Key(dec.GetString())
	selfNewStop := ring.Key(dec.GetString())
	secretKey := dec.GetString()
	if dec.Err() != nil {
		return -1, wire.EINVAL, nil
	}

	if h.SecretKey != "" && secretKey != h.SecretKey {
		return -1, wire.EACCES, nil
	}

	self := h.Server.Self()
	if self == nil {
		return -1, wire.EIO, nil
	}

	wantStart, err := h.newcomerStart()
	if err != nil || joinerStart != wantStart || joinerStop != self.StopKey {
		return -1, wire.EINVAL, nil
	}
	wantSelfNewStop, ok := joinerStart.Dec()
	if !ok || selfNewStop != wantSelfNewStop {
		return -1, wire.EINVAL, nil
	}

	joiner := profile.toVolcano()
	if h.Server.Ring.NodeExists(joiner) {
		return -1, wire.EEXIST, nil
	}
	joiner.StartKey = joinerStart
	joiner.StopKey = joinerStop

	clone := h.Server.Ring.Clone()
	selfClone := clone.ByNickname(self.Nickname)
	if selfClone == nil {
		return -1, wire.EIO, nil
	}
	selfClone.StopKey = selfNewStop
	selfClone.JoiningNode = joiner.Nickname
	clone.InsertSorted(joiner)

	if err := clone.CheckPartition(); err != nil {
		h.Log.WithError(err).Warn("finish_join_network would break ring partition")
		return -1, wire.EIO, nil
	}

	if err := h.streamKeyspace(ctx, joiner); err != nil {
		h.Log.WithError(err).WithField("joiner", joiner.Nickname).Warn("keyspace streaming to joiner failed")
		return -1, wire.EIO, nil
	}

	h.Server.Ring.InstallFrom(clone)
	selfClone.JoiningNode = ""

	if err := h.persistNode(selfClone); err != nil {
		return -1, wire.EIO, nil
	}
	if err := h.persistNode(joiner); err != nil {
		return -1, wire.EIO, nil
	}

	e := wire.NewEncoder()
	e.PutUint16(uint16(clone.Participants()))
	return int32(clone.Participants()), wire.EOK, e.Bytes()
}

// streamKeyspace transmits every flare this node currently owns whose
// hash now falls within joiner's interval, per spec.md §4.9 "streams
// its full keyspace to the joiner."
func (h *Handlers) streamKeyspace(ctx context.Context, joiner *ring.Volcano) error {
	rows, err := h.Catalog.ListHashRange(string(joiner.StartKey), string(joiner.StopKey))
	if err != nil {
		return errors.Wrap(err, "list keyspace for joiner")
	}
	for _, row := range rows {
		if err := h.Transmit.TransmitPath(ctx, row.Path, joiner); err != nil {
			return errors.Wrapf(err, "transmit %s to joiner", row.Path)
		}
	}
	return nil
}

func (h *Handlers) persistNode(v *ring.Volcano) error {
	return h.Catalog.UpsertNode(catalog.NodeRow{
		Nickname:  v.Nickname,
		FQDN:      v.FQDN,
		IPAddr:    v.IPAddr,
		Port:      v.Port,
		Bandwidth: v.Bandwidth,
		Storage:   v.Storage,
		StartKey:  string(v.StartKey),
		StopKey:   string(v.StopKey),
	})
}

// Join runs the joining side of spec.md §4.9's two-phase protocol
// against bootAddr, an address of any already-running node: fetch the
// current topology, negotiate the new interval via join_network, then
// confirm and trigger the keyspace transfer via finish_join_network.
// It returns the joiner's own ring record (with its assigned interval)
// and the ring as fetched, ready for the caller to install locally once
// finish_join_network returns success upstream.
func Join(send func(addr string, request []byte) ([]byte, error), txids *transport.TransactionAllocator, bootAddr string, self Profile, secretKey string) (*ring.Lava, *ring.Volcano, error) {
	lava, err := FetchTopology(send, txids, bootAddr)
	if err != nil {
		return nil, nil, errors.Wrap(err, "fetch topology")
	}

	start, stop, err := joinNetwork(send, txids, bootAddr, self, secretKey)
	if err != nil {
		return nil, nil, errors.Wrap(err, "join_network")
	}

	selfNewStop, ok := start.Dec()
	if !ok {
		return nil, nil, errors.New("join_network: joiner would own the whole ring")
	}

	participants, err := finishJoinNetwork(send, txids, bootAddr, self, start, stop, selfNewStop, secretKey)
	if err != nil {
		return nil, nil, errors.Wrap(err, "finish_join_network")
	}
	if want := lava.Participants() + 1; int(participants) != want {
		return nil, nil, errors.Errorf("finish_join_network: participant count %d disagrees with locally known %d", participants, want)
	}

	joiner := self.toVolcano()
	joiner.StartKey = start
	joiner.StopKey = stop

	// The contacted node is the one whose current StopKey equals the
	// interval join_network handed back, before narrowing; it is unique
	// in the fetched topology under the ring partition invariant.
	for _, v := range lava.All() {
		if v.StopKey == stop {
			v.StopKey = selfNewStop
			break
		}
	}
	lava.InsertSorted(joiner)

	return lava, joiner, nil
}

func joinNetwork(send func(addr string, request []byte) ([]byte, error), txids *transport.TransactionAllocator, bootAddr string, self Profile, secretKey string) (start, stop ring.Key, err error) {
	header := wire.RequestHeader{OpType: wire.OpJoin, TTL: wire.TerminalTTL, TransactionID: txids.Next()}
	e := wire.NewEncoder()
	e.PutRequestHeader(header)
	putProfile(e, self)
	e.PutString(secretKey)

	reply, sendErr := send(bootAddr, e.Bytes())
	if sendErr != nil {
		return "", "", sendErr
	}
	dec := wire.NewDecoder(reply)
	resp := dec.GetResponseHeader()
	if dec.Err() != nil {
		return "", "", dec.Err()
	}
	if resp.Errno != wire.EOK {
		return "", "", resp.Errno
	}
	start = ring.Key(dec.GetString())
	stop = ring.Key(dec.GetString())
	if dec.Err() != nil {
		return "", "", dec.Err()
	}
	return start, stop, nil
}

func finishJoinNetwork(send func(addr string, request []byte) ([]byte, error), txids *transport.TransactionAllocator, bootAddr string, self Profile, start, stop, selfNewStop ring.Key, secretKey string) (uint16, error) {
	header := wire.RequestHeader{OpType: wire.OpFinishJoin, TTL: wire.TerminalTTL, TransactionID: txids.Next()}
	e := wire.NewEncoder()
	e.PutRequestHeader(header)
	putProfile(e, self)
	e.PutString(string(start))
	e.PutString(string(stop))
	e.PutString(string(selfNewStop))
	e.PutString(secretKey)

	reply, err := send(bootAddr, e.Bytes())
	if err != nil {
		return 0, err
	}
	dec := wire.NewDecoder(reply)
	resp := dec.GetResponseHeader()
	if dec.Err() != nil {
		return 0, dec.Err()
	}
	if resp.Errno != wire.EOK {
		return 0, resp.Errno
	}
	participants := dec.GetUint16()
	if dec.Err() != nil {
		return 0, dec.Err()
	}
	return participants, nil
}
