package console

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/acl"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/catalog"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ops"
)

// Server accepts console connections and evaluates commands against
// one node's in-process state, bypassing the wire protocol entirely —
// an operator console is a local administrative tool, not a routed
// client request, mirroring the source's console sharing the daemon's
// address space rather than going through magma_pktqs_*.
type Server struct {
	Ops     *ops.Server
	Catalog *catalog.Catalog
	ACL     acl.Enforcer
	Log     *logrus.Entry

	// Shutdown, if set, is invoked by the "shutdown" command; the
	// caller decides what that means (fan out membership.Shutdown,
	// cancel a context, etc).
	Shutdown func()

	mu      sync.Mutex
	debug   map[string]bool
	ln      net.Listener
	wg      sync.WaitGroup
}

// ListenAndServe binds addr and serves console connections until ctx is
// canceled or Close is called.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.ln = ln

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			default:
				return err
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(conn)
		}()
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}

func (s *Server) serve(conn net.Conn) {
	defer conn.Close()
	sess := &session{srv: s, conn: conn, cwd: "/"}
	sess.writeLine(fmt.Sprintf("MAGMA console -- %s", s.Ops.SelfNickname))
	sess.prompt()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if !sess.dispatch(line) {
			return
		}
		sess.prompt()
	}
}

func (s *Server) isDebugOn(channel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debug[channel]
}

func (s *Server) setDebug(channel string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.debug == nil {
		s.debug = make(map[string]bool)
	}
	if on {
		s.debug[channel] = true
	} else {
		delete(s.debug, channel)
	}
}

func (s *Server) debugChannels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.debug))
	for ch := range s.debug {
		out = append(out, ch)
	}
	return out
}
