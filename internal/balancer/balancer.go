package balancer

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/catalog"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/membership"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ops"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ring"
)

// DefaultInterval is CHECK_LOAD_TIMEOUT: the source re-balances roughly
// every five minutes.
const DefaultInterval = 300 * time.Second

// Balancer runs the refresh loop bound to one node's Server and
// Catalog. It never redistributes keys — see the package doc.
type Balancer struct {
	Server   *ops.Server
	Catalog  *catalog.Catalog
	Interval time.Duration
	Log      *logrus.Entry

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// Start runs the refresh loop in its own goroutine until Stop is
// called. The ticker/select shape mirrors the teacher's
// HealthMonitor.Start (internal/coordinator/health_monitor.go),
// generalized from HTTP polling to this node's own UDP heartbeat.
func (b *Balancer) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.wg.Add(1)
	go b.run(ctx)
}

// Stop cancels the refresh loop and waits for it to exit.
func (b *Balancer) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
}

func (b *Balancer) run(ctx context.Context) {
	defer b.wg.Done()

	interval := b.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	b.tick(ctx)
	for {
		select {
		case <-ticker.C:
			b.tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// tick performs one refresh cycle in the order spec.md §4.11 lists:
// total_keys, free space, peer pings (if not alone), then persist.
func (b *Balancer) tick(ctx context.Context) {
	self := b.Server.Self()
	if self == nil {
		b.Log.Warn("balancer: this node is not present in its own ring, skipping cycle")
		return
	}

	if err := b.refreshTotalKeys(self); err != nil {
		b.Log.WithError(err).Warn("balancer: refresh total keys failed")
	}
	if err := b.refreshFreeSpace(self); err != nil {
		b.Log.WithError(err).Warn("balancer: refresh free space failed")
	}
	if b.Server.Ring.Participants() > 1 {
		b.pingPeers(ctx, self)
	}

	self.Load = loadMetric(self)

	if err := b.persist(self); err != nil {
		b.Log.WithError(err).Warn("balancer: persist self profile failed")
	}
}

func (b *Balancer) refreshTotalKeys(self *ring.Volcano) error {
	n, err := b.Catalog.CountHashRange(string(self.StartKey), string(self.StopKey))
	if err != nil {
		return err
	}
	self.TotalKeys = uint32(n)
	b.Log.WithField("total_keys", self.TotalKeys).Debug("balancer: this node hosts these many keys")
	return nil
}

func (b *Balancer) refreshFreeSpace(self *ring.Volcano) error {
	st, err := b.Server.Store.Statfs()
	if err != nil {
		return err
	}
	self.Storage = uint32(uint64(st.Bsize) * uint64(st.Blocks))
	self.FreeStorage = uint32(uint64(st.Bsize) * uint64(st.Bavail))
	b.Log.WithField("free_storage", humanize.Bytes(uint64(self.FreeStorage))).
		WithField("storage", humanize.Bytes(uint64(self.Storage))).
		Debug("balancer: this node has these bytes available")
	return nil
}

// pingPeers heartbeats every sibling in the ring, updating its liveness
// and reported capacity figures and persisting the ones that answer,
// per spec.md §4.11 and balance.c's magma_ping_nodes.
func (b *Balancer) pingPeers(ctx context.Context, self *ring.Volcano) {
	for _, v := range b.Server.Ring.All() {
		if v.Equal(self) {
			continue
		}
		stats, err := membership.SendHeartbeat(b.Server.Send, b.Server.Txids, ops.NodeAddr(v))
		if err != nil {
			v.Alive = false
			b.Log.WithError(err).WithField("peer", v.Nickname).Debug("balancer: peer heartbeat failed")
			continue
		}
		v.Alive = true
		v.Storage = stats.Storage
		v.FreeStorage = stats.FreeStorage
		v.Bandwidth = stats.Bandwidth
		v.TotalKeys = stats.TotalKeys
		if err := b.persist(v); err != nil {
			b.Log.WithError(err).WithField("peer", v.Nickname).Warn("balancer: persist peer profile failed")
		}
	}
}

func (b *Balancer) persist(v *ring.Volcano) error {
	return b.Catalog.UpsertNode(catalog.NodeRow{
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

// loadMetric computes the log-scaled figure balance.c guards behind
// `#if 0` and never acts on: log2(1+used_keys) / log2(1+bandwidth
// class). It is informational only: tick stores it in Volcano.Load, which
// persist does not write and the console does not print, and no routing
// or replication decision reads it.
func loadMetric(v *ring.Volcano) float64 {
	bandwidth := math.Log2(1 + float64(v.Bandwidth))
	if bandwidth == 0 {
		return 0
	}
	return math.Log2(1+float64(v.TotalKeys)) / bandwidth
}
