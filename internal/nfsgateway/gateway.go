package nfsgateway

import (
	"context"

	"github.com/pkg/errors"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/catalog"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/flare"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ring"
)

// Handle is a file handle, the binary SHA-1 of a flare's path, exactly
// as mountproc_mnt_1_svc copies out of flare->binhash.
type Handle [20]byte

// Gateway is the seam an NFS mount daemon would call into. Mount
// resolves an exported path to a handle (the MNT procedure); Lookup
// resolves a previously issued handle back to its path (every
// subsequent NFS call carries a handle, not a path). Neither method
// does any RPC/XDR work — that marshaling layer is out of scope.
type Gateway interface {
	Mount(ctx context.Context, path string) (Handle, error)
	Lookup(ctx context.Context, handle Handle) (string, error)
}

// Local implements Gateway directly against one node's cache and
// catalog, the same state internal/ops.Server and internal/console
// already operate on. It does not forward to other owners: an NFS
// front end is expected to sit behind the same client-facing routing
// every other caller uses, or to be pointed at a coordinator that
// handles ownership itself.
type Local struct {
	Cache   *flare.Cache
	Catalog *catalog.Catalog
}

// Mount resolves path to its flare and returns the flare's binary hash
// as a handle, per mountproc_mnt_1_svc's NFS_OK path.
func (l *Local) Mount(ctx context.Context, path string) (Handle, error) {
	f, err := l.Cache.SearchOrCreate(path)
	if err != nil {
		return Handle{}, errors.Wrapf(err, "mount %s", path)
	}
	return Handle(f.BinHash), nil
}

// Lookup reverses a handle back to the path recorded for it in the
// catalog, per mountproc_mnt_1_svc's handle being the sole identifier
// every later NFS call would carry.
func (l *Local) Lookup(ctx context.Context, handle Handle) (string, error) {
	key, err := ring.Armour(handle[:])
	if err != nil {
		return "", errors.Wrap(err, "armour handle")
	}
	row, err := l.Catalog.GetFlareByHash(string(key))
	if err != nil {
		return "", errors.Wrapf(err, "lookup handle %x", handle)
	}
	return row.Path, nil
}
