package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/wire"
)

// Handler processes one decoded request and returns the datagram to
// send back to peer. It is invoked by a worker goroutine; it may block.
type Handler func(ctx context.Context, peer *net.UDPAddr, payload []byte) []byte

// socketReadTimeout bounds how long the receive loop blocks on one
// ReadFromUDP call, so that cancellation of Serve's context is
// noticed promptly (spec.md §4.8: "a short timeout on the socket").
const socketReadTimeout = 200 * time.Millisecond

// Service runs one UDP listener with a bounded worker pool, matching
// spec.md §4.8/§5: "a background receiver loop blocks with a short
// timeout... hands (socket, peer, buffer) to a thread pool."
type Service struct {
	Name    string
	conn    *net.UDPConn
	handler Handler
	log     *logrus.Entry

	workers int
	sem     chan struct{}
	wg      sync.WaitGroup
}

// NewService binds a UDP socket on addr and returns a Service ready to
// Serve. workers bounds the number of concurrently running handler
// invocations (the "thread pool" of spec.md §4.8).
func NewService(name, addr string, workers int, handler Handler, log *logrus.Entry) (*Service, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", addr)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", addr)
	}
	if workers <= 0 {
		workers = 32
	}
	return &Service{
		Name:    name,
		conn:    conn,
		handler: handler,
		log:     log.WithField("service", name),
		workers: workers,
		sem:     make(chan struct{}, workers),
	}, nil
}

// LocalAddr returns the bound local address, mainly for tests that bind
// to port 0.
func (s *Service) LocalAddr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// Serve runs the receive loop until ctx is cancelled or Close is
// called. It never returns an error on ordinary shutdown.
func (s *Service) Serve(ctx context.Context) error {
	buf := make([]byte, wire.MaxDatagramSize)
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return nil
		default:
		}

		_ = s.conn.SetReadDeadline(time.Now().Add(socketReadTimeout))
		n, peer, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			s.log.WithError(err).Warn("read error")
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])

		s.sem <- struct{}{}
		s.wg.Add(1)
		go func(peer *net.UDPAddr, payload []byte) {
			defer s.wg.Done()
			defer func() { <-s.sem }()
			s.handleOne(ctx, peer, payload)
		}(peer, payload)
	}
}

func (s *Service) handleOne(ctx context.Context, peer *net.UDPAddr, payload []byte) {
	resp := s.handler(ctx, peer, payload)
	if resp == nil {
		return
	}
	if _, err := s.conn.WriteToUDP(resp, peer); err != nil {
		s.log.WithError(err).WithField("peer", peer.String()).Warn("write error")
	}
}

// Close closes the underlying socket, unblocking Serve.
func (s *Service) Close() error {
	return s.conn.Close()
}
