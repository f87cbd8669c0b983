package ops

import (
	"context"
	"net"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/direngine"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/flare"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/wire"
)

// Opendir implements the server side of spec.md §4.7's remote case:
// given (path, offset) it returns a chunk of up to wire.DirChunkSize
// bytes of the directory's contents starting at offset, plus the
// directory's total size, matching the shape direngine.ChunkFetcher
// expects on the calling side.
func (s *Server) Opendir(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	dec := wire.NewDecoder(body)
	path := dec.GetString()
	offset := dec.GetUint32()
	if dec.Err() != nil {
		return -1, wire.EINVAL, nil
	}

	return s.dispatch(ctx, peer, header, body, path, func() (int32, wire.Errno, []byte) {
		var chunk []byte
		var total int
		opErr := s.withFlare(path, false, func(f *flare.Flare) error {
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
			total = len(raw)
			start := int(offset)
			if start > total {
				start = total
			}
			end := start + wire.DirChunkSize
			if end > total {
				end = total
			}
			chunk = raw[start:end]
			return nil
		})
		result, errc := split(opErr)
		if errc != wire.EOK {
			return result, errc, nil
		}
		e := wire.NewEncoder()
		e.PutBytes(chunk)
		e.PutUint32(uint32(total))
		return 0, wire.EOK, e.Bytes()
	})
}

// ReaddirExtended implements spec.md §4.7's extended readdir: one
// request carries (path, offset); the response carries up to 50
// entries with their stat images, the new offset, and an exhaustion
// flag.
func (s *Server) ReaddirExtended(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	dec := wire.NewDecoder(body)
	path := dec.GetString()
	offset := dec.GetUint32()
	if dec.Err() != nil {
		return -1, wire.EINVAL, nil
	}

	return s.dispatch(ctx, peer, header, body, path, func() (int32, wire.Errno, []byte) {
		var entries []direngine.ExtendedEntry
		var newOffset int
		var exhausted bool
		opErr := s.withFlare(path, false, func(f *flare.Flare) error {
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
			handle := direngine.Opendir(raw)
			handle.Seekdir(int(offset))
			entries, newOffset, exhausted = handle.ReaddirExtended(func(name string) []byte {
				return s.statForEntry(flare.Simplify(path + "/" + name))
			})
			return nil
		})
		result, errc := split(opErr)
		if errc != wire.EOK {
			return result, errc, nil
		}

		e := wire.NewEncoder()
		e.PutUint16(uint16(len(entries)))
		for _, ent := range entries {
			e.PutString(ent.Name)
			e.PutBytes(ent.StatPayload)
		}
		e.PutUint32(uint32(newOffset))
		if exhausted {
			e.PutUint8(1)
		} else {
			e.PutUint8(0)
		}
		return 0, wire.EOK, e.Bytes()
	})
}

// statForEntry encodes the wire stat image for one directory entry,
// swallowing lookup errors as a zeroed stat — a best-effort aid to the
// extended-readdir response, not a correctness-critical path (a client
// that needs an authoritative stat always has getattr).
func (s *Server) statForEntry(path string) []byte {
	f, err := s.Cache.SearchOrCreate(path)
	if err != nil {
		return nil
	}
	var payload []byte
	_ = s.Cache.WithLock(f, false, func() error {
		if s.Store.Exists(f) {
			_ = s.Store.Load(f)
		}
		e := wire.NewEncoder()
		e.PutStat(toWireStat(f))
		payload = e.Bytes()
		return nil
	})
	return payload
}

// Releasedir and Fsyncdir are no-ops: the wire protocol keeps no
// server-side open-directory state, so there is nothing to release or
// flush beyond what every write already persists.
func (s *Server) Releasedir(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	return 0, wire.EOK, nil
}

func (s *Server) Fsyncdir(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	return 0, wire.EOK, nil
}
