package transport

import (
	"context"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/wire"
)

// OpHandler executes one decoded request body for a given optype and
// returns the result/errno to place in the response header, plus any
// extra payload bytes that follow the response header on the wire.
type OpHandler func(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (result int32, errno wire.Errno, extra []byte)

// Dispatcher decodes the common request header, looks up the per-optype
// handler in a fixed table, invokes it, and (for mutating optypes)
// consults/populates the bounded result cache for dedup — spec.md §4.6,
// §9 ("Dynamic op dispatch... tagged enum... explicit dispatch
// function; unknown optypes are a closed error").
type Dispatcher struct {
	handlers map[wire.OpType]OpHandler
	results  *ResultCache
	log      *logrus.Entry
}

// NewDispatcher returns an empty dispatch table backed by cache for
// mutating-op dedup.
func NewDispatcher(cache *ResultCache, log *logrus.Entry) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[wire.OpType]OpHandler),
		results:  cache,
		log:      log,
	}
}

// Register installs handler for op, matching the source's
// magma_register_callback(optype, callback).
func (d *Dispatcher) Register(op wire.OpType, handler OpHandler) {
	d.handlers[op] = handler
}

// Handle implements the Handler signature expected by Service: decode
// the header, dispatch, encode the response.
func (d *Dispatcher) Handle(ctx context.Context, peer *net.UDPAddr, payload []byte) []byte {
	dec := wire.NewDecoder(payload)
	header := dec.GetRequestHeader()
	if dec.Err() != nil {
		d.log.WithError(dec.Err()).Warn("malformed request header")
		return d.encodeResponse(wire.ResponseHeader{Errno: wire.EIO, Result: -1}, nil)
	}

	handler, ok := d.handlers[header.OpType]
	if !ok {
		d.log.WithField("optype", header.OpType).Warn("unknown optype, dropping")
		return d.encodeResponse(wire.ResponseHeader{Errno: wire.EIO, Result: -1, TransactionID: header.TransactionID}, nil)
	}

	body := dec.Remaining()

	key := ResultKey{PeerIP: peer.IP.String(), PeerPort: peer.Port, TxID: header.TransactionID}
	if header.OpType.Mutating() {
		if entry, hit := d.results.Lookup(key); hit {
			return d.encodeResponse(wire.ResponseHeader{
				Errno:         entry.Errno,
				Result:        entry.Result,
				TransactionID: header.TransactionID,
			}, nil)
		}
	}

	result, errno, extra := handler(ctx, peer, header, body)

	if header.OpType.Mutating() {
		d.results.Store(key, ResultEntry{Result: result, Errno: errno})
	}

	return d.encodeResponse(wire.ResponseHeader{
		Errno:         errno,
		Result:        result,
		TransactionID: header.TransactionID,
	}, extra)
}

func (d *Dispatcher) encodeResponse(h wire.ResponseHeader, extra []byte) []byte {
	e := wire.NewEncoder()
	e.PutResponseHeader(h)
	out := e.Bytes()
	if len(extra) > 0 {
		out = append(out, extra...)
	}
	return out
}
