package membership

import (
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/flare"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ops"
)

// rootMode and dhtMode are the permission bits Bootstrap gives the
// root directory and the hidden DHT profile directory, per spec.md
// §4.9 Bootstrap ("create root '/' ... create hidden '/.dht'").
const (
	rootMode = 0o777
	dhtMode  = 0o700
)

// DHTPath is the hidden directory every node's profile lives under,
// and whose owner is, by convention, the coordinated-reboot
// coordinator (spec.md §4.9, §6).
const DHTPath = "/.dht"

// Bootstrap initializes a brand-new, single-node network. server.Ring
// must already be a one-node ring owning the whole key space (see
// ring.NewBootstrapLava); Bootstrap only creates the on-disk root and
// the hidden DHT profile directory, per spec.md §4.9 Bootstrap.
func Bootstrap(server *ops.Server) error {
	if err := createDir(server, "/", rootMode); err != nil {
		return err
	}
	return createDir(server, DHTPath, dhtMode)
}

// createDir materializes path as an empty directory flare if it is not
// already on disk; a re-bootstrap of an existing hashpath is a no-op.
func createDir(server *ops.Server, path string, perm uint32) error {
	f, err := server.Cache.SearchOrCreate(path)
	if err != nil {
		return err
	}
	return server.Cache.WithLock(f, true, func() error {
		if server.Store.Exists(f) {
			return nil
		}
		f.Type = flare.TypeDir
		f.Stat.Mode = flare.TypeBits(flare.TypeDir) | perm
		return server.Store.Save(f, true)
	})
}
