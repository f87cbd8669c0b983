package membership

import (
	"context"
	"strconv"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/catalog"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ops"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ring"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/transport"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/wire"
)

// Transmitter synchronously ships one path's whole object to target. It
// is satisfied by *replication.Queue's TransmitPath method; membership
// depends only on this narrow interface so it never needs to import the
// replication package's queueing machinery.
type Transmitter interface {
	TransmitPath(ctx context.Context, path string, target *ring.Volcano) error
}

// Handlers serves the node-to-node membership operations of spec.md
// §4.9: topology transfer, the two-phase join, and coordinated reboot's
// heartbeat/network_built handshake. One Handlers is registered on the
// same inter-node Dispatcher as internal/ops's Server and
// internal/replication's transmit_key handler.
type Handlers struct {
	Server   *ops.Server
	Catalog  *catalog.Catalog
	Transmit Transmitter
	Log      *logrus.Entry

	// SecretKey authorizes incoming joins by equality, per spec.md §6's
	// "--secretkey (used to authorize joins; compared by equality)". An
	// empty SecretKey accepts any candidate, including one presenting no
	// secret key at all.
	SecretKey string

	ready atomic.Bool
}

// NewHandlers returns Handlers bound to server's ring/cache/store.
func NewHandlers(server *ops.Server, cat *catalog.Catalog, transmit Transmitter, log *logrus.Entry) *Handlers {
	return &Handlers{Server: server, Catalog: cat, Transmit: transmit, Log: log}
}

// Ready reports whether this node has received network_built(ready)
// since its last restart, per spec.md §4.9 coordinated reboot.
func (h *Handlers) Ready() bool { return h.ready.Load() }

// Register installs every membership handler onto d.
func (h *Handlers) Register(d *transport.Dispatcher) {
	d.Register(wire.OpTransmitTopology, h.TransmitTopology)
	d.Register(wire.OpJoin, h.JoinNetwork)
	d.Register(wire.OpFinishJoin, h.FinishJoinNetwork)
	d.Register(wire.OpHeartbeat, h.Heartbeat)
	d.Register(wire.OpNetworkBuilt, h.NetworkBuilt)
	d.Register(wire.OpShutdown, h.ShutdownNotice)
}

// portString formats a uint16 port for address concatenation.
func portString(port uint16) string {
	return strconv.Itoa(int(port))
}
