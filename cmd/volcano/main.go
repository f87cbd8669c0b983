package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/acl"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/balancer"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/catalog"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/config"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/console"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/flare"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/membership"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ops"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/replication"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ring"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/transport"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/wire"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logrus.NewEntry(logrus.New())
	if len(cfg.Debug) > 0 {
		log.Logger.SetLevel(logrus.DebugLevel)
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("volcano exiting")
	}
}

// run wires every component together and blocks until a shutdown signal
// arrives, at which point it tears them down in reverse dependency
// order via the deferred Close/Stop calls below — the same shape as
// cmd/node/main.go's signal.Notify/<-stop/s.Shutdown(ctx) sequence,
// generalized to this daemon's several listeners and background loops.
func run(cfg *config.Config, log *logrus.Entry) error {
	cat, err := catalog.Open(filepath.Join(cfg.Hashpath, "catalog.db"))
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer cat.Close()

	store, err := flare.NewStore(cfg.Hashpath, cat)
	if err != nil {
		return fmt.Errorf("open flare store: %w", err)
	}
	cache := flare.NewCache(store)

	self := &ring.Volcano{
		Nickname:  cfg.Nickname,
		FQDN:      cfg.FQDN,
		IPAddr:    cfg.IP,
		Port:      config.NodePort,
		Bandwidth: cfg.Bandwidth,
		Storage:   cfg.Storage,
		Alive:     true,
	}

	var lava *ring.Lava
	if cfg.Bootstrap {
		lava = ring.NewBootstrapLava(self)
	} else {
		lava = ring.NewLava()
		lava.InsertSorted(self)
	}

	server := ops.NewServer(cfg.Nickname, lava, cache, store, nil, nil, log.WithField("component", "ops"))
	queue := replication.NewQueue(server, log.WithField("component", "replication"))
	server.Replica = queue
	server.ACL = acl.AllowAll{}

	handlers := membership.NewHandlers(server, cat, queue, log.WithField("component", "membership"))
	handlers.SecretKey = cfg.SecretKey

	nodeDispatcher := transport.NewDispatcher(transport.NewResultCache(4096), log.WithField("component", "node-transport"))
	server.Register(nodeDispatcher)
	handlers.Register(nodeDispatcher)
	nodeDispatcher.Register(wire.OpTransmitKey, replication.NewTransmitKeyHandler(server))

	flareDispatcher := transport.NewDispatcher(transport.NewResultCache(4096), log.WithField("component", "flare-transport"))
	server.Register(flareDispatcher)

	if cfg.Bootstrap {
		if err := membership.Bootstrap(server); err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
		log.Info("bootstrapped a new ring")
	} else {
		joined, joinerVolcano, err := membership.Join(transport.SendAndAwait, server.Txids, cfg.BootServer, membership.ProfileOf(self), cfg.SecretKey)
		if err != nil {
			return fmt.Errorf("join %s: %w", cfg.BootServer, err)
		}
		server.Ring.InstallFrom(joined)
		self.StartKey = joinerVolcano.StartKey
		self.StopKey = joinerVolcano.StopKey
		log.WithField("start", self.StartKey).WithField("stop", self.StopKey).Info("joined the ring")
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	queue.Start(ctx)
	defer queue.Stop()

	bal := &balancer.Balancer{Server: server, Catalog: cat, Log: log.WithField("component", "balancer")}
	bal.Start(ctx)
	defer bal.Stop()

	flareSvc, err := transport.NewService("flare", net.JoinHostPort(cfg.IP, portString(cfg.Port)), 0, flareDispatcher.Handle, log)
	if err != nil {
		return fmt.Errorf("bind flare socket: %w", err)
	}
	defer flareSvc.Close()
	go serveUntilClosed(ctx, flareSvc, log)

	nodeSvc, err := transport.NewService("node", net.JoinHostPort(cfg.IP, portString(config.NodePort)), 0, nodeDispatcher.Handle, log)
	if err != nil {
		return fmt.Errorf("bind node socket: %w", err)
	}
	defer nodeSvc.Close()
	go serveUntilClosed(ctx, nodeSvc, log)

	consoleSrv := &console.Server{
		Ops:     server,
		Catalog: cat,
		ACL:     server.ACL,
		Log:     log.WithField("component", "console"),
		Shutdown: func() {
			membership.Shutdown(server)
			stopSignals()
		},
	}
	defer consoleSrv.Close()
	go func() {
		addr := net.JoinHostPort(cfg.IP, portString(config.ConsolePort))
		if err := consoleSrv.ListenAndServe(ctx, addr); err != nil {
			log.WithError(err).Warn("console listener stopped")
		}
	}()

	log.WithField("nickname", cfg.Nickname).
		WithField("flare_addr", net.JoinHostPort(cfg.IP, portString(cfg.Port))).
		WithField("node_addr", net.JoinHostPort(cfg.IP, portString(config.NodePort))).
		Info("volcano up")

	<-ctx.Done()
	log.Info("shutdown signal received, draining")

	return nil
}

func serveUntilClosed(ctx context.Context, svc *transport.Service, log *logrus.Entry) {
	if err := svc.Serve(ctx); err != nil {
		log.WithError(err).WithField("service", svc.Name).Warn("service stopped with error")
	}
}

func portString(port uint16) string {
	return fmt.Sprintf("%d", port)
}
