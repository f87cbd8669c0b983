package replication

import (
	"context"
	"net"
	"os"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/flare"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ops"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ring"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/wire"
)

// transmitChunkSize is the fixed chunk size transmit_key sends at a
// time, per spec.md §4.10 ("fixed chunks (32 KiB)").
const transmitChunkSize = 32 * 1024

// TransmitPath synchronously ships the whole object at path to target.
// It is transmitKey's exported form, used outside this package by
// membership's join-time keyspace streaming (spec.md §4.9
// finish_join_network), which needs the transfer to complete before
// installing the narrowed ring rather than queuing it for later.
func (q *Queue) TransmitPath(ctx context.Context, path string, target *ring.Volcano) error {
	return q.transmitKey(ctx, ops.ReplicaTask{Path: path, Target: target})
}

// transmitKey sends task's whole object to task.Target via repeated
// transmit_key requests, per spec.md §4.10: used for mknod, mkdir,
// symlink, chmod, chown, utime and write replicas.
func (q *Queue) transmitKey(ctx context.Context, task ops.ReplicaTask) error {
	f, err := q.server.Cache.SearchOrCreate(task.Path)
	if err != nil {
		return err
	}

	var mode, uid, gid uint32
	var size int64
	loadErr := q.server.Cache.WithLock(f, false, func() error {
		if q.server.Store.Exists(f) {
			if err := q.server.Store.Load(f); err != nil {
				return err
			}
		}
		mode = (f.Stat.Mode &^ 0170000) | flare.TypeBits(f.Type)
		uid = f.Stat.UID
		gid = f.Stat.GID
		size = int64(f.Stat.Size)
		return nil
	})
	if loadErr != nil {
		return loadErr
	}

	file, err := os.Open(f.Contents)
	if err != nil {
		return err
	}
	defer file.Close()

	buf := make([]byte, transmitChunkSize)
	offset := int64(0)
	for {
		n, readErr := file.ReadAt(buf, offset)
		if n > 0 {
			if sendErr := q.sendChunk(task.Target, task.Path, uint64(offset), mode, uid, gid, buf[:n]); sendErr != nil {
				return sendErr
			}
			offset += int64(n)
		}
		if readErr != nil || offset >= size {
			break
		}
	}
	if offset == 0 {
		// empty object: still announce it so the target creates an
		// empty flare with the right type/mode.
		return q.sendChunk(task.Target, task.Path, 0, mode, uid, gid, nil)
	}
	return nil
}

// sendChunk sends one transmit_key request and retries at the same
// offset until the target acknowledges advancement, per spec.md §4.10.
// transport.SendAndAwait already retries a single send up to
// RetryLimit times before giving up, so one outer call here is enough
// to satisfy "retry the same offset until acknowledged" for a live
// target; a permanently unreachable target surfaces as an error that
// the queue logs and drops, same as any other replica failure.
func (q *Queue) sendChunk(target *ring.Volcano, path string, offset uint64, mode, uid, gid uint32, chunk []byte) error {
	header := wire.RequestHeader{
		OpType:        wire.OpTransmitKey,
		TTL:           wire.TerminalTTL,
		TransactionID: q.server.Txids.Next(),
		UID:           uid,
		GID:           gid,
	}
	e := wire.NewEncoder()
	e.PutRequestHeader(header)
	payload := append(e.Bytes(), encodeTransmitKeyRequest(path, offset, mode, uid, gid, chunk)...)

	reply, err := q.server.Send(ops.NodeAddr(target), payload)
	if err != nil {
		return err
	}
	dec := wire.NewDecoder(reply)
	resp := dec.GetResponseHeader()
	if dec.Err() != nil {
		return dec.Err()
	}
	if resp.Errno != wire.EOK {
		return resp.Errno
	}
	return nil
}

// encodeTransmitKeyRequest builds the body for one transmit_key chunk:
// (path, offset, mode, uid, gid, chunk_size, chunk), per spec.md §4.10.
func encodeTransmitKeyRequest(path string, offset uint64, mode, uid, gid uint32, chunk []byte) []byte {
	e := wire.NewEncoder()
	e.PutString(path)
	e.PutUint64(offset)
	e.PutUint32(mode)
	e.PutUint32(uid)
	e.PutUint32(gid)
	e.PutBytes(chunk)
	return e.Bytes()
}

// TransmitKey is the server-side handler for transmit_key requests
// (spec.md §4.10): upcast the flare's type from the mode bits if
// needed, save it on first write (offset 0), pwrite the chunk at
// offset, and return the new offset as the result.
func (s handlerServer) TransmitKey(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	dec := wire.NewDecoder(body)
	path := dec.GetString()
	offset := dec.GetUint64()
	mode := dec.GetUint32()
	uid := dec.GetUint32()
	gid := dec.GetUint32()
	chunk := dec.GetBytes()
	if dec.Err() != nil {
		return -1, wire.EINVAL, nil
	}

	f, err := s.Server.Cache.SearchOrCreate(path)
	if err != nil {
		return -1, wire.EIO, nil
	}

	var newOffset uint64
	opErr := s.Server.Cache.WithLock(f, true, func() error {
		firstTime := !s.Server.Store.Exists(f)
		if f.Type == flare.TypeUnknown {
			f.Type = typeFromWireMode(mode)
			f.Stat.Mode = mode
			f.Stat.UID = uid
			f.Stat.GID = gid
			f.IsUpcasted = true
		}
		if firstTime {
			if err := s.Server.Store.Save(f, true); err != nil {
				return err
			}
		}
		file, err := os.OpenFile(f.Contents, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return err
		}
		defer file.Close()
		n, writeErr := file.WriteAt(chunk, int64(offset))
		if writeErr != nil {
			return writeErr
		}
		newOffset = offset + uint64(n)
		if newOffset > f.Stat.Size {
			f.Stat.Size = newOffset
		}
		return nil
	})
	if opErr != nil {
		return -1, wire.EIO, nil
	}
	return int32(newOffset), wire.EOK, nil
}

// typeFromWireMode mirrors internal/ops's mode-to-type inference for
// the receiving side of transmit_key.
func typeFromWireMode(mode uint32) flare.Type {
	switch mode & 0170000 {
	case 0040000:
		return flare.TypeDir
	case 0120000:
		return flare.TypeSymlink
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

// handlerServer wraps *ops.Server to host TransmitKey as a method
// without adding a transmit_key-specific dependency to package ops
// itself (transmit_key is a replication-layer primitive, not a POSIX
// operation).
type handlerServer struct {
	Server *ops.Server
}

// NewTransmitKeyHandler returns the transport.OpHandler for
// wire.OpTransmitKey, bound to server's cache and store.
func NewTransmitKeyHandler(server *ops.Server) func(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	h := handlerServer{Server: server}
	return h.TransmitKey
}
