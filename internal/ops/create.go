package ops

import (
	"context"
	"net"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/direngine"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/flare"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/wire"
)

const sIFMT = 0170000

// typeFromMode infers a flare.Type from the POSIX mode type bits mknod
// was called with.
func typeFromMode(mode uint32) flare.Type {
	switch mode & sIFMT {
	case 0020000:
		return flare.TypeCharDev
	case 0060000:
		return flare.TypeBlockDev
	case 0010000:
		return flare.TypeFIFO
	case 0140000:
		return flare.TypeSocket
	default:
		return flare.TypeRegular
	}
}

// Mknod implements spec.md §4.6 mknod: rejects S_IFDIR (mkdir is the
// only way to create directories) and fans the new name out to the
// parent directory on success.
func (s *Server) Mknod(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	dec := wire.NewDecoder(body)
	path := dec.GetString()
	mode := dec.GetUint32()
	rdev := dec.GetUint64()
	if dec.Err() != nil {
		return -1, wire.EINVAL, nil
	}
	if mode&sIFMT == 0040000 {
		return -1, wire.EINVAL, nil
	}

	return s.dispatch(ctx, peer, header, body, path, func() (int32, wire.Errno, []byte) {
		opErr := s.withFlare(path, true, func(f *flare.Flare) error {
			if s.Store.Exists(f) {
				return errno(wire.EEXIST)
			}
			f.Type = typeFromMode(mode)
			f.Stat.Mode = mode
			f.Stat.UID = header.UID
			f.Stat.GID = header.GID
			f.Stat.Rdev = rdev
			f.Stat.Nlink = 1
			f.IsUpcasted = true
			if err := s.Store.Save(f, true); err != nil {
				return wrap(wire.EIO, err)
			}
			return nil
		})
		if opErr == nil {
			s.fanOutParent(ctx, header, flare.ParentPath(path), flare.BaseName(path), true)
		}
		return finishMutation(opErr)
	})
}

// Mkdir implements spec.md §4.6 mkdir: the only way to create
// directories, also fanned out to the parent on success.
func (s *Server) Mkdir(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	dec := wire.NewDecoder(body)
	path := dec.GetString()
	mode := dec.GetUint32()
	if dec.Err() != nil {
		return -1, wire.EINVAL, nil
	}

	return s.dispatch(ctx, peer, header, body, path, func() (int32, wire.Errno, []byte) {
		opErr := s.withFlare(path, true, func(f *flare.Flare) error {
			if s.Store.Exists(f) {
				return errno(wire.EEXIST)
			}
			f.Type = flare.TypeDir
			f.Stat.Mode = (mode &^ sIFMT) | 0040000
			f.Stat.UID = header.UID
			f.Stat.GID = header.GID
			f.Stat.Nlink = 2
			f.IsUpcasted = true
			if err := s.Store.Save(f, true); err != nil {
				return wrap(wire.EIO, err)
			}
			return nil
		})
		if opErr == nil {
			s.fanOutParent(ctx, header, flare.ParentPath(path), flare.BaseName(path), true)
		}
		return finishMutation(opErr)
	})
}

// symlinkOrLink is shared by Symlink and Link: spec.md §4.6 says "link
// is an alias for symlink" — both store target as the file's contents.
func (s *Server) symlinkOrLink(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	dec := wire.NewDecoder(body)
	path := dec.GetString()
	target := dec.GetString()
	if dec.Err() != nil {
		return -1, wire.EINVAL, nil
	}

	return s.dispatch(ctx, peer, header, body, path, func() (int32, wire.Errno, []byte) {
		opErr := s.withFlare(path, true, func(f *flare.Flare) error {
			if s.Store.Exists(f) {
				return errno(wire.EEXIST)
			}
			f.Type = flare.TypeSymlink
			f.Stat.Mode = 0120777
			f.Stat.UID = header.UID
			f.Stat.GID = header.GID
			f.Stat.Nlink = 1
			f.IsUpcasted = true
			if err := s.Store.Save(f, true); err != nil {
				return wrap(wire.EIO, err)
			}
			n, err := writeContentsAt(s, f, 0, []byte(target))
			if err != nil {
				return wrap(wire.EIO, err)
			}
			f.Stat.Size = uint64(n)
			return nil
		})
		if opErr == nil {
			s.fanOutParent(ctx, header, flare.ParentPath(path), flare.BaseName(path), true)
		}
		return finishMutation(opErr)
	})
}

func (s *Server) Symlink(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	return s.symlinkOrLink(ctx, peer, header, body)
}

func (s *Server) Link(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	return s.symlinkOrLink(ctx, peer, header, body)
}

// Unlink implements spec.md §4.6 unlink: refuses directories.
func (s *Server) Unlink(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	path, err := decodePath(body)
	if err != nil {
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
			if eraseErr := s.Store.Erase(f); eraseErr != nil {
				return wrap(wire.EIO, eraseErr)
			}
			s.Cache.Evict(f)
			return nil
		})
		if opErr == nil {
			s.fanOutParent(ctx, header, flare.ParentPath(path), flare.BaseName(path), false)
		}
		return finishMutation(opErr)
	})
}

// Rmdir implements spec.md §4.6 rmdir: refuses non-empty directories.
func (s *Server) Rmdir(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	path, err := decodePath(body)
	if err != nil {
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
			if f.Type != flare.TypeDir {
				return errno(wire.ENOTDIR)
			}
			raw, readErr := readContents(s, f)
			if readErr != nil {
				return wrap(wire.EIO, readErr)
			}
			if !direngine.NewBody(raw).IsEmpty() {
				return errno(wire.ENOTEMPTY)
			}
			if eraseErr := s.Store.Erase(f); eraseErr != nil {
				return wrap(wire.EIO, eraseErr)
			}
			s.Cache.Evict(f)
			return nil
		})
		if opErr == nil {
			s.fanOutParent(ctx, header, flare.ParentPath(path), flare.BaseName(path), false)
		}
		return finishMutation(opErr)
	})
}

// Rename always fails: spec.md §4.6 / SPEC_FULL.md §12 resolve the
// source's multi-node rename question by hard-wiring EXDEV, the same
// answer a POSIX filesystem gives for a cross-device rename.
func (s *Server) Rename(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	return -1, wire.EXDEV, nil
}
