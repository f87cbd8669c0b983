package transport

import (
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// RetryLimit and AgainLimit are the source's MAGMA_RETRY_LIMIT /
// MAGMA_AGAIN_LIMIT (original_source/libmagma/libmagma/protocol/
// protocol.h): the client sends up to RetryLimit times; after each send
// it polls up to AgainLimit cycles for a reply before resending.
const (
	RetryLimit = 9
	AgainLimit = 3
)

// pollCycle is the duration of one "again" poll cycle.
const pollCycle = 250 * time.Millisecond

// ErrWouldRetry is returned by SendAndAwait when both RetryLimit and
// AgainLimit are exhausted without a reply (spec.md §4.8/§7): a
// transient error, not a protocol error.
var ErrWouldRetry = errors.New("transport: would retry (no reply within limits)")

// socketCache is a mutex-guarded map of (addr) -> *net.UDPConn, created
// on first use and retained for reuse (spec.md §5 "Socket cache").
type socketCache struct {
	mu    sync.Mutex
	conns map[string]*net.UDPConn
}

var globalSockets = &socketCache{conns: make(map[string]*net.UDPConn)}

func (c *socketCache) get(addr string) (*net.UDPConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.conns[addr]; ok {
		return conn, nil
	}
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", addr)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	c.conns[addr] = conn
	return conn, nil
}

// SendAndAwait sends request to addr and waits for a reply, retrying up
// to RetryLimit times with AgainLimit poll cycles per attempt (spec.md
// §4.8 Send-and-await). It returns the reply payload, or ErrWouldRetry
// once both limits are exhausted.
func SendAndAwait(addr string, request []byte) ([]byte, error) {
	conn, err := globalSockets.get(addr)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 65535)
	for attempt := 0; attempt < RetryLimit; attempt++ {
		if _, err := conn.Write(request); err != nil {
			return nil, errors.Wrap(err, "send")
		}

		for cycle := 0; cycle < AgainLimit; cycle++ {
			_ = conn.SetReadDeadline(time.Now().Add(pollCycle))
			n, err := conn.Read(buf)
			if err == nil {
				out := make([]byte, n)
				copy(out, buf[:n])
				return out, nil
			}
			if ne, ok := err.(net.Error); !ok || !ne.Timeout() {
				return nil, errors.Wrap(err, "receive")
			}
		}
	}
	return nil, ErrWouldRetry
}
