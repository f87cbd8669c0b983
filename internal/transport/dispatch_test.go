package transport

import (
	"context"
	"net"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/wire"
)

func TestDispatchDedup(t *testing.T) {
	var calls int32
	cache := NewResultCache(16)
	d := NewDispatcher(cache, logrus.NewEntry(logrus.New()))
	d.Register(wire.OpMknod, func(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
		atomic.AddInt32(&calls, 1)
		return 0, wire.EOK, nil
	})

	e := wire.NewEncoder()
	e.PutRequestHeader(wire.RequestHeader{OpType: wire.OpMknod, TTL: wire.DefaultTTL, TransactionID: 5, UID: 0, GID: 0})
	e.PutString("/a")
	peer := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 4000}

	resp1 := d.Handle(context.Background(), peer, e.Bytes())
	resp2 := d.Handle(context.Background(), peer, e.Bytes())

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, resp1, resp2)

	dec := wire.NewDecoder(resp2)
	h := dec.GetResponseHeader()
	require.NoError(t, dec.Err())
	assert.Equal(t, wire.EOK, h.Errno)
}

func TestDispatchUnknownOptype(t *testing.T) {
	cache := NewResultCache(16)
	d := NewDispatcher(cache, logrus.NewEntry(logrus.New()))

	e := wire.NewEncoder()
	e.PutRequestHeader(wire.RequestHeader{OpType: wire.OpType(250), TransactionID: 1})
	peer := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 4000}

	resp := d.Handle(context.Background(), peer, e.Bytes())
	dec := wire.NewDecoder(resp)
	h := dec.GetResponseHeader()
	require.NoError(t, dec.Err())
	assert.Equal(t, wire.EIO, h.Errno)
	assert.Equal(t, int32(-1), h.Result)
}
