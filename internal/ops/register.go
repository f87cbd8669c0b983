package ops

import (
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/transport"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/wire"
)

// Register installs every per-operation handler on d, matching the
// source's per-optype dispatch table (spec.md §9).
func (s *Server) Register(d *transport.Dispatcher) {
	d.Register(wire.OpGetattr, s.Getattr)
	d.Register(wire.OpReadlink, s.Readlink)
	d.Register(wire.OpMknod, s.Mknod)
	d.Register(wire.OpMkdir, s.Mkdir)
	d.Register(wire.OpUnlink, s.Unlink)
	d.Register(wire.OpRmdir, s.Rmdir)
	d.Register(wire.OpSymlink, s.Symlink)
	d.Register(wire.OpLink, s.Link)
	d.Register(wire.OpRename, s.Rename)
	d.Register(wire.OpChmod, s.Chmod)
	d.Register(wire.OpChown, s.Chown)
	d.Register(wire.OpTruncate, s.Truncate)
	d.Register(wire.OpUtime, s.Utime)
	d.Register(wire.OpOpen, s.Open)
	d.Register(wire.OpRead, s.Read)
	d.Register(wire.OpWrite, s.Write)
	d.Register(wire.OpStatfs, s.Statfs)
	d.Register(wire.OpOpendir, s.Opendir)
	d.Register(wire.OpReaddirExtended, s.ReaddirExtended)
	d.Register(wire.OpReleasedir, s.Releasedir)
	d.Register(wire.OpFsyncdir, s.Fsyncdir)
	d.Register(wire.OpAddFlareToParent, s.AddFlareToParent)
	d.Register(wire.OpRemoveFlareFromParent, s.RemoveFlareFromParent)
}
