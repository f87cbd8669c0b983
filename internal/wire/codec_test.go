package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestHeaderRoundtrip(t *testing.T) {
	h := RequestHeader{OpType: OpMknod, TTL: DefaultTTL, TransactionID: 42, UID: 1000, GID: 1000}
	e := NewEncoder()
	e.PutRequestHeader(h)
	e.PutString("/some/path")

	d := NewDecoder(e.Bytes())
	got := d.GetRequestHeader()
	path := d.GetString()
	require.NoError(t, d.Err())
	assert.Equal(t, h, got)
	assert.Equal(t, "/some/path", path)
}

func TestResponseHeaderRoundtrip(t *testing.T) {
	h := ResponseHeader{Errno: ENOENT, Result: -1, TransactionID: 7}
	e := NewEncoder()
	e.PutResponseHeader(h)

	d := NewDecoder(e.Bytes())
	got := d.GetResponseHeader()
	require.NoError(t, d.Err())
	assert.Equal(t, h, got)
}

func TestStatRoundtrip(t *testing.T) {
	s := Stat{Size: 1024, Mode: 0100644, UID: 501, GID: 20, Nlink: 1}
	e := NewEncoder()
	e.PutStat(s)

	d := NewDecoder(e.Bytes())
	got := d.GetStat()
	require.NoError(t, d.Err())
	assert.Equal(t, s, got)
}

func TestBytesRoundtrip(t *testing.T) {
	payload := []byte("hello world")
	e := NewEncoder()
	e.PutBytes(payload)
	e.PutUint32(99)

	d := NewDecoder(e.Bytes())
	got := d.GetBytes()
	tail := d.GetUint32()
	require.NoError(t, d.Err())
	assert.Equal(t, payload, got)
	assert.Equal(t, uint32(99), tail)
}

func TestDecoderTruncatedInputErrors(t *testing.T) {
	d := NewDecoder([]byte{0x01})
	_ = d.GetUint32()
	assert.Error(t, d.Err())
}

func TestMutatingOptypes(t *testing.T) {
	for _, op := range []OpType{OpMknod, OpMkdir, OpUnlink, OpRmdir, OpSymlink, OpChmod, OpChown, OpTruncate, OpUtime, OpWrite} {
		assert.True(t, op.Mutating(), op.String())
	}
	for _, op := range []OpType{OpGetattr, OpRead, OpReaddir, OpStatfs} {
		assert.False(t, op.Mutating(), op.String())
	}
}
