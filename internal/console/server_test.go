package console

import (
	"bufio"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/catalog"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/flare"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ops"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ring"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	cat, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	store, err := flare.NewStore(filepath.Join(dir, "hashpath"), cat)
	require.NoError(t, err)
	cache := flare.NewCache(store)

	lava := ring.NewBootstrapLava(&ring.Volcano{Nickname: "alpha", IPAddr: "127.0.0.1", Port: 9000, Alive: true, Bandwidth: 100})
	opsServer := ops.NewServer("alpha", lava, cache, store, nil, nil, logrus.NewEntry(logrus.New()))

	root, err := cache.SearchOrCreate("/")
	require.NoError(t, err)
	root.Type = flare.TypeDir
	root.IsUpcasted = true
	require.NoError(t, store.Save(root, true))

	return &Server{Ops: opsServer, Catalog: cat, Log: logrus.NewEntry(logrus.New())}
}

func dialConsole(t *testing.T, srv *Server) (net.Conn, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv.ln = ln

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		srv.serve(conn)
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	return conn, func() {
		conn.Close()
		ln.Close()
	}
}

func readUntilPrompt(t *testing.T, conn net.Conn, r *bufio.Reader) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	out, err := r.ReadString('>')
	require.NoError(t, err)
	return out
}

func TestPwd(t *testing.T) {
	srv := newTestServer(t)
	conn, closeAll := dialConsole(t, srv)
	defer closeAll()

	r := bufio.NewReader(conn)
	readUntilPrompt(t, conn, r)

	conn.Write([]byte("pwd\n"))
	out := readUntilPrompt(t, conn, r)
	assert.Contains(t, out, "/")
}

func TestUnknownCommand(t *testing.T) {
	srv := newTestServer(t)
	conn, closeAll := dialConsole(t, srv)
	defer closeAll()

	r := bufio.NewReader(conn)
	readUntilPrompt(t, conn, r)

	conn.Write([]byte("frobnicate\n"))
	out := readUntilPrompt(t, conn, r)
	assert.Contains(t, out, "unknown command")
}

func TestExitClosesSession(t *testing.T) {
	srv := newTestServer(t)
	conn, closeAll := dialConsole(t, srv)
	defer closeAll()

	r := bufio.NewReader(conn)
	readUntilPrompt(t, conn, r)

	conn.Write([]byte("exit\n"))
	line, _ := r.ReadString('\n')
	assert.Contains(t, line, "bye")
}

func TestDebugOnOffTracked(t *testing.T) {
	srv := newTestServer(t)
	conn, closeAll := dialConsole(t, srv)
	defer closeAll()

	r := bufio.NewReader(conn)
	readUntilPrompt(t, conn, r)

	conn.Write([]byte("debug on io\n"))
	readUntilPrompt(t, conn, r)
	assert.True(t, srv.isDebugOn("io"))

	conn.Write([]byte("debug off io\n"))
	readUntilPrompt(t, conn, r)
	assert.False(t, srv.isDebugOn("io"))
}

func TestShutdownInvokesCallback(t *testing.T) {
	srv := newTestServer(t)
	called := make(chan struct{}, 1)
	srv.Shutdown = func() { called <- struct{}{} }

	conn, closeAll := dialConsole(t, srv)
	defer closeAll()

	r := bufio.NewReader(conn)
	readUntilPrompt(t, conn, r)

	conn.Write([]byte("shutdown\n"))
	readUntilPrompt(t, conn, r)

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown callback was not invoked")
	}
}
