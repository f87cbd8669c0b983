package ops

import (
	"context"
	"net"
	"time"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/flare"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/wire"
)

// Open implements spec.md §4.6 open: a permission check with no
// persistent file-descriptor state, since the wire protocol is
// connectionless UDP — each subsequent read/write carries its own path
// and offset.
func (s *Server) Open(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	dec := wire.NewDecoder(body)
	path := dec.GetString()
	flags := dec.GetUint32()
	if dec.Err() != nil {
		return -1, wire.EINVAL, nil
	}

	return s.dispatchRead(ctx, peer, header, body, path, func() (int32, wire.Errno, []byte) {
		opErr := s.withFlare(path, false, func(f *flare.Flare) error {
			if !s.Store.Exists(f) {
				return errno(wire.ENOENT)
			}
			if loadErr := s.Store.Load(f); loadErr != nil {
				return wrap(wire.EIO, loadErr)
			}
			want := flare.Operation(0)
			if flags&0x1 != 0 {
				want |= flare.OpWrite
			} else {
				want |= flare.OpRead
			}
			if denied := flare.CheckPermission(f, header.UID, header.GID, want, s.Groups); denied != 0 {
				return errno(wire.EACCES)
			}
			return nil
		})
		return finishMutation(opErr)
	})
}

// Read implements spec.md §4.6 read: an at-offset positional read
// capped at wire.ReadWriteChunkSize.
func (s *Server) Read(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	dec := wire.NewDecoder(body)
	path := dec.GetString()
	offset := dec.GetUint64()
	size := dec.GetUint32()
	if dec.Err() != nil {
		return -1, wire.EINVAL, nil
	}
	if size > wire.ReadWriteChunkSize {
		size = wire.ReadWriteChunkSize
	}

	return s.dispatchRead(ctx, peer, header, body, path, func() (int32, wire.Errno, []byte) {
		var n int
		buf := make([]byte, size)
		opErr := s.withFlare(path, false, func(f *flare.Flare) error {
			if !s.Store.Exists(f) {
				return errno(wire.ENOENT)
			}
			if loadErr := s.Store.Load(f); loadErr != nil {
				return wrap(wire.EIO, loadErr)
			}
			if f.Type == flare.TypeDir {
				return errno(wire.EINVAL)
			}
			if denied := flare.CheckPermission(f, header.UID, header.GID, flare.OpRead, s.Groups); denied != 0 {
				return errno(wire.EACCES)
			}
			var readErr error
			n, readErr = readContentsAt(s, f, int64(offset), buf)
			if readErr != nil {
				return wrap(wire.EIO, readErr)
			}
			return nil
		})
		result, errc := split(opErr)
		if errc != wire.EOK {
			return result, errc, nil
		}
		e := wire.NewEncoder()
		e.PutBytes(buf[:n])
		return int32(n), wire.EOK, e.Bytes()
	})
}

// Write implements spec.md §4.6 write: a positional write that touches
// mtime and upcasts an unknown-typed flare to a regular file.
func (s *Server) Write(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	dec := wire.NewDecoder(body)
	path := dec.GetString()
	offset := dec.GetUint64()
	data := dec.GetBytes()
	if dec.Err() != nil {
		return -1, wire.EINVAL, nil
	}
	if len(data) > wire.ReadWriteChunkSize {
		data = data[:wire.ReadWriteChunkSize]
	}

	return s.dispatch(ctx, peer, header, body, path, func() (int32, wire.Errno, []byte) {
		var written int
		opErr := s.withFlare(path, true, func(f *flare.Flare) error {
			firstTime := !s.Store.Exists(f)
			if f.Type == flare.TypeDir {
				return errno(wire.EISDIR)
			}
			if f.Type == flare.TypeUnknown {
				f.Type = flare.TypeRegular
				f.Stat.Mode = 0100644
				f.Stat.UID = header.UID
				f.Stat.GID = header.GID
				f.Stat.Nlink = 1
				f.IsUpcasted = true
			}
			if denied := flare.CheckPermission(f, header.UID, header.GID, flare.OpWrite, s.Groups); denied != 0 {
				return errno(wire.EACCES)
			}
			if saveErr := s.Store.Save(f, firstTime); saveErr != nil {
				return wrap(wire.EIO, saveErr)
			}
			n, writeErr := writeContentsAt(s, f, int64(offset), data)
			if writeErr != nil {
				return wrap(wire.EIO, writeErr)
			}
			written = n
			f.Stat.Mtime = time.Now()
			end := offset + uint64(n)
			if end > f.Stat.Size {
				f.Stat.Size = end
			}
			return nil
		})
		result, errc := split(opErr)
		if errc != wire.EOK {
			return result, errc, nil
		}
		return int32(written), wire.EOK, nil
	})
}
