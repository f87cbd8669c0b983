package membership

import (
	"context"
	"net"

	"github.com/pkg/errors"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ring"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/transport"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/wire"
)

// topologyPageSize bounds how many volcanoes transmit_topology answers
// with per request, per spec.md §4.9's "transmit_topology(offset) loop":
// a page comfortably fits one UDP datagram even for a large ring.
const topologyPageSize = 64

// TransmitTopology is the server-side handler for transmit_topology: it
// answers with up to topologyPageSize volcanoes starting at the
// requested offset, plus a flag telling the caller whether more remain.
func (h *Handlers) TransmitTopology(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	dec := wire.NewDecoder(body)
	offset := dec.GetUint32()
	if dec.Err() != nil {
		return -1, wire.EINVAL, nil
	}

	nodes := h.Server.Ring.All()
	start := int(offset)
	if start > len(nodes) {
		start = len(nodes)
	}
	end := start + topologyPageSize
	if end > len(nodes) {
		end = len(nodes)
	}
	page := nodes[start:end]

	e := wire.NewEncoder()
	e.PutUint16(uint16(len(page)))
	for _, v := range page {
		putVolcano(e, v)
	}
	more := uint8(0)
	if end < len(nodes) {
		more = 1
	}
	e.PutUint8(more)
	return int32(len(page)), wire.EOK, e.Bytes()
}

// FetchTopology pages through addr's transmit_topology responses and
// assembles them into a fresh ring, for a joining node building its
// view of an existing network. Coordinated reboot does not use it; it
// reads the stored topology from the catalog.
func FetchTopology(send func(addr string, request []byte) ([]byte, error), txids *transport.TransactionAllocator, addr string) (*ring.Lava, error) {
	lava := ring.NewLava()
	offset := uint32(0)
	for {
		header := wire.RequestHeader{OpType: wire.OpTransmitTopology, TTL: wire.TerminalTTL, TransactionID: txids.Next()}
		e := wire.NewEncoder()
		e.PutRequestHeader(header)
		e.PutUint32(offset)

		reply, err := send(addr, e.Bytes())
		if err != nil {
			return nil, errors.Wrapf(err, "transmit_topology offset %d", offset)
		}

		dec := wire.NewDecoder(reply)
		resp := dec.GetResponseHeader()
		if dec.Err() != nil {
			return nil, errors.Wrap(dec.Err(), "decode transmit_topology response header")
		}
		if resp.Errno != wire.EOK {
			return nil, errors.Wrapf(resp.Errno, "transmit_topology offset %d", offset)
		}

		count := dec.GetUint16()
		for i := uint16(0); i < count; i++ {
			lava.InsertSorted(getVolcano(dec))
		}
		more := dec.GetUint8()
		if dec.Err() != nil {
			return nil, errors.Wrap(dec.Err(), "decode transmit_topology page")
		}

		offset += uint32(count)
		if more == 0 || count == 0 {
			break
		}
	}
	return lava, nil
}
