package ops

import (
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/flare"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/wire"
)

// withFlare resolves path through the cache and runs fn under the
// flare's read or write lock, translating SearchOrCreate failures to
// EIO.
func (s *Server) withFlare(path string, write bool, fn func(f *flare.Flare) error) error {
	f, err := s.Cache.SearchOrCreate(path)
	if err != nil {
		return wrap(wire.EIO, err)
	}
	return s.Cache.WithLock(f, write, func() error { return fn(f) })
}

// toWireStat maps a flare's attributes onto the wire's fixed stat
// schema, per spec.md §4.6 getattr: "`.` entry type is inferred from
// flare.type" — the mode's type bits always reflect f.Type regardless
// of what was last persisted, so a client always sees a self-consistent
// mode.
func toWireStat(f *flare.Flare) wire.Stat {
	mode := (f.Stat.Mode &^ 0170000) | flare.TypeBits(f.Type)
	return wire.Stat{
		Nlink:   f.Stat.Nlink,
		Rdev:    f.Stat.Rdev,
		Size:    f.Stat.Size,
		Blksize: f.Stat.Blksize,
		Blocks:  f.Stat.Blocks,
		Atime:   uint64(f.Stat.Atime.Unix()),
		Ctime:   uint64(f.Stat.Ctime.Unix()),
		Mtime:   uint64(f.Stat.Mtime.Unix()),
		Mode:    mode,
		UID:     f.Stat.UID,
		GID:     f.Stat.GID,
	}
}

// decodePath reads the single-string body shared by getattr, readlink,
// unlink and rmdir.
func decodePath(body []byte) (path string, err error) {
	dec := wire.NewDecoder(body)
	path = dec.GetString()
	if dec.Err() != nil {
		return "", dec.Err()
	}
	return path, nil
}
