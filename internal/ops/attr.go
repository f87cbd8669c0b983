package ops

import (
	"context"
	"net"
	"time"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/flare"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/wire"
)

// Getattr implements spec.md §4.6 getattr: fill the stat image; ENOENT
// if the flare has no contents on disk yet.
func (s *Server) Getattr(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	path, err := decodePath(body)
	if err != nil {
		return -1, wire.EINVAL, nil
	}

	return s.dispatchRead(ctx, peer, header, body, path, func() (int32, wire.Errno, []byte) {
		var st wire.Stat
		opErr := s.withFlare(path, false, func(f *flare.Flare) error {
			if !s.Store.Exists(f) {
				return errno(wire.ENOENT)
			}
			if loadErr := s.Store.Load(f); loadErr != nil {
				return wrap(wire.EIO, loadErr)
			}
			st = toWireStat(f)
			return nil
		})
		result, errc := split(opErr)
		if errc != wire.EOK {
			return result, errc, nil
		}
		e := wire.NewEncoder()
		e.PutStat(st)
		return 0, wire.EOK, e.Bytes()
	})
}

// Readlink returns a symlink's target, which is stored as the flare's
// contents (spec.md §4.6 symlink: "stores the target as the file
// contents").
func (s *Server) Readlink(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	path, err := decodePath(body)
	if err != nil {
		return -1, wire.EINVAL, nil
	}

	return s.dispatchRead(ctx, peer, header, body, path, func() (int32, wire.Errno, []byte) {
		var target string
		opErr := s.withFlare(path, false, func(f *flare.Flare) error {
			if f.Type != flare.TypeSymlink {
				return errno(wire.EINVAL)
			}
			raw, readErr := readContents(s, f)
			if readErr != nil {
				return wrap(wire.EIO, readErr)
			}
			target = string(raw)
			return nil
		})
		result, errc := split(opErr)
		if errc != wire.EOK {
			return result, errc, nil
		}
		e := wire.NewEncoder()
		e.PutString(target)
		return 0, wire.EOK, e.Bytes()
	})
}

// Chmod implements spec.md §4.6 chmod: updates the mode bits, keeping
// the type bits from flare.type intact.
func (s *Server) Chmod(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	dec := wire.NewDecoder(body)
	path := dec.GetString()
	mode := dec.GetUint32()
	if dec.Err() != nil {
		return -1, wire.EINVAL, nil
	}

	return s.dispatch(ctx, peer, header, body, path, func() (int32, wire.Errno, []byte) {
		opErr := s.withFlare(path, true, func(f *flare.Flare) error {
			if header.UID != 0 && header.UID != f.Stat.UID {
				return errno(wire.EPERM)
			}
			f.Stat.Mode = (f.Stat.Mode &^ 0007777) | (mode & 0007777)
			if saveErr := s.Store.Save(f, false); saveErr != nil {
				return wrap(wire.EIO, saveErr)
			}
			return nil
		})
		return finishMutation(opErr)
	})
}

// Chown implements spec.md §4.6 chown: requires uid 0.
func (s *Server) Chown(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	dec := wire.NewDecoder(body)
	path := dec.GetString()
	uid := dec.GetUint32()
	gid := dec.GetUint32()
	if dec.Err() != nil {
		return -1, wire.EINVAL, nil
	}

	return s.dispatch(ctx, peer, header, body, path, func() (int32, wire.Errno, []byte) {
		if header.UID != 0 {
			return -1, wire.EPERM, nil
		}
		opErr := s.withFlare(path, true, func(f *flare.Flare) error {
			f.Stat.UID = uid
			f.Stat.GID = gid
			if saveErr := s.Store.Save(f, false); saveErr != nil {
				return wrap(wire.EIO, saveErr)
			}
			return nil
		})
		return finishMutation(opErr)
	})
}

// Truncate implements spec.md §4.6 truncate: resizes the flare's
// contents file.
func (s *Server) Truncate(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	dec := wire.NewDecoder(body)
	path := dec.GetString()
	size := dec.GetUint64()
	if dec.Err() != nil {
		return -1, wire.EINVAL, nil
	}

	return s.dispatch(ctx, peer, header, body, path, func() (int32, wire.Errno, []byte) {
		opErr := s.withFlare(path, true, func(f *flare.Flare) error {
			if !s.Store.Exists(f) {
				return errno(wire.ENOENT)
			}
			if loadErr := s.Store.Load(f); loadErr != nil {
				return wrap(wire.EIO, loadErr)
			}
			if f.Type == flare.TypeDir {
				return errno(wire.EISDIR)
			}
			if denied := flare.CheckPermission(f, header.UID, header.GID, flare.OpWrite, s.Groups); denied != 0 {
				return errno(wire.EACCES)
			}
			if truncErr := truncateContents(s, f, int64(size)); truncErr != nil {
				return wrap(wire.EIO, truncErr)
			}
			f.Stat.Size = size
			if saveErr := s.Store.Save(f, false); saveErr != nil {
				return wrap(wire.EIO, saveErr)
			}
			return nil
		})
		return finishMutation(opErr)
	})
}

// Utime implements spec.md §4.6 utime: sets access and modification
// times.
func (s *Server) Utime(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	dec := wire.NewDecoder(body)
	path := dec.GetString()
	atime := dec.GetUint64()
	mtime := dec.GetUint64()
	if dec.Err() != nil {
		return -1, wire.EINVAL, nil
	}

	return s.dispatch(ctx, peer, header, body, path, func() (int32, wire.Errno, []byte) {
		opErr := s.withFlare(path, true, func(f *flare.Flare) error {
			f.Stat.Atime = time.Unix(int64(atime), 0)
			f.Stat.Mtime = time.Unix(int64(mtime), 0)
			if saveErr := s.Store.Save(f, false); saveErr != nil {
				return wrap(wire.EIO, saveErr)
			}
			return nil
		})
		return finishMutation(opErr)
	})
}

// Statfs implements spec.md §4.6 statfs: returns the OS statfs of this
// node's hashpath directory. It is always answered locally — there is
// no "owner" for a whole-filesystem query.
func (s *Server) Statfs(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	st, err := s.Store.Statfs()
	if err != nil {
		return -1, wire.EIO, nil
	}
	e := wire.NewEncoder()
	e.PutUint64(uint64(st.Blocks))
	e.PutUint64(uint64(st.Bfree))
	e.PutUint64(uint64(st.Bavail))
	e.PutUint64(uint64(st.Files))
	e.PutUint64(uint64(st.Ffree))
	e.PutUint32(uint32(st.Bsize))
	return 0, wire.EOK, e.Bytes()
}

// finishMutation converts a withFlare result into the (result, errno,
// extra) triple every mutating handler returns.
func finishMutation(err error) (int32, wire.Errno, []byte) {
	result, errc := split(err)
	return result, errc, nil
}
