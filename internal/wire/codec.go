package wire

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// MaxDatagramSize is the maximum UDP payload MAGMA will ever send or
// accept, per spec.md §6 (65507 is the theoretical IPv4 UDP max; MAGMA
// additionally uses it as its hard ceiling on one datagram).
const MaxDatagramSize = 65507

// ReadWriteChunkSize bounds a single read/write data chunk (spec.md §6).
const ReadWriteChunkSize = 32768

// DirChunkSize is the approximate size of one directory-read chunk
// (spec.md §4.7/§6, "~50 KiB").
const DirChunkSize = 50 * 1024

// Encoder serializes primitives, strings and the fixed structs onto an
// in-memory buffer in the wire's fixed big-endian format.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Bytes returns the accumulated datagram payload.
func (e *Encoder) Bytes() []byte { return e.buf.Bytes() }

func (e *Encoder) PutUint8(v uint8)   { e.buf.WriteByte(v) }
func (e *Encoder) PutUint16(v uint16) { _ = binary.Write(&e.buf, binary.BigEndian, v) }
func (e *Encoder) PutUint32(v uint32) { _ = binary.Write(&e.buf, binary.BigEndian, v) }
func (e *Encoder) PutUint64(v uint64) { _ = binary.Write(&e.buf, binary.BigEndian, v) }

// PutString writes a uint16 length prefix followed by the raw bytes of
// s, with no terminator.
func (e *Encoder) PutString(s string) {
	e.PutUint16(uint16(len(s)))
	e.buf.WriteString(s)
}

// PutBytes writes a uint16 length prefix followed by the raw bytes.
func (e *Encoder) PutBytes(b []byte) {
	e.PutUint16(uint16(len(b)))
	e.buf.Write(b)
}

func (e *Encoder) PutRequestHeader(h RequestHeader) {
	e.PutUint8(uint8(h.OpType))
	e.PutUint8(h.TTL)
	e.PutUint16(h.TransactionID)
	e.PutUint32(h.UID)
	e.PutUint32(h.GID)
}

func (e *Encoder) PutResponseHeader(h ResponseHeader) {
	e.PutUint16(uint16(h.Errno))
	e.PutUint32(uint32(h.Result))
	e.PutUint16(h.TransactionID)
}

func (e *Encoder) PutStat(s Stat) {
	e.PutUint64(s.Dev)
	e.PutUint64(s.Ino)
	e.PutUint64(s.Nlink)
	e.PutUint64(s.Rdev)
	e.PutUint64(s.Size)
	e.PutUint64(s.Blksize)
	e.PutUint64(s.Blocks)
	e.PutUint64(s.Atime)
	e.PutUint64(s.Ctime)
	e.PutUint64(s.Mtime)
	e.PutUint32(s.Mode)
	e.PutUint32(s.UID)
	e.PutUint32(s.GID)
}

// Decoder deserializes a datagram payload in lockstep with Encoder.
type Decoder struct {
	r   *bytes.Reader
	err error
}

// NewDecoder wraps buf for sequential decoding.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{r: bytes.NewReader(buf)}
}

// Err returns the first error encountered during decoding, if any. All
// Get* methods are no-ops once Err is non-nil, so callers may chain
// several calls and check Err once at the end.
func (d *Decoder) Err() error { return d.err }

func (d *Decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *Decoder) GetUint8() uint8 {
	if d.err != nil {
		return 0
	}
	b, err := d.r.ReadByte()
	if err != nil {
		d.fail(errors.Wrap(err, "decode uint8"))
		return 0
	}
	return b
}

func (d *Decoder) GetUint16() uint16 {
	if d.err != nil {
		return 0
	}
	var v uint16
	if err := binary.Read(d.r, binary.BigEndian, &v); err != nil {
		d.fail(errors.Wrap(err, "decode uint16"))
		return 0
	}
	return v
}

func (d *Decoder) GetUint32() uint32 {
	if d.err != nil {
		return 0
	}
	var v uint32
	if err := binary.Read(d.r, binary.BigEndian, &v); err != nil {
		d.fail(errors.Wrap(err, "decode uint32"))
		return 0
	}
	return v
}

func (d *Decoder) GetUint64() uint64 {
	if d.err != nil {
		return 0
	}
	var v uint64
	if err := binary.Read(d.r, binary.BigEndian, &v); err != nil {
		d.fail(errors.Wrap(err, "decode uint64"))
		return 0
	}
	return v
}

func (d *Decoder) GetString() string {
	n := d.GetUint16()
	if d.err != nil {
		return ""
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		d.fail(errors.Wrap(err, "decode string"))
		return ""
	}
	return string(buf)
}

func (d *Decoder) GetBytes() []byte {
	n := d.GetUint16()
	if d.err != nil {
		return nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		d.fail(errors.Wrap(err, "decode bytes"))
		return nil
	}
	return buf
}

func (d *Decoder) GetRequestHeader() RequestHeader {
	return RequestHeader{
		OpType:        OpType(d.GetUint8()),
		TTL:           d.GetUint8(),
		TransactionID: d.GetUint16(),
		UID:           d.GetUint32(),
		GID:           d.GetUint32(),
	}
}

func (d *Decoder) GetResponseHeader() ResponseHeader {
	return ResponseHeader{
		Errno:         Errno(d.GetUint16()),
		Result:        int32(d.GetUint32()),
		TransactionID: d.GetUint16(),
	}
}

func (d *Decoder) GetStat() Stat {
	return Stat{
		Dev:     d.GetUint64(),
		Ino:     d.GetUint64(),
		Nlink:   d.GetUint64(),
		Rdev:    d.GetUint64(),
		Size:    d.GetUint64(),
		Blksize: d.GetUint64(),
		Blocks:  d.GetUint64(),
		Atime:   d.GetUint64(),
		Ctime:   d.GetUint64(),
		Mtime:   d.GetUint64(),
		Mode:    d.GetUint32(),
		UID:     d.GetUint32(),
		GID:     d.GetUint32(),
	}
}

// Remaining returns the bytes not yet consumed.
func (d *Decoder) Remaining() []byte {
	rest := make([]byte, d.r.Len())
	_, _ = d.r.Read(rest)
	return rest
}
