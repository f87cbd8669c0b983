package console

import (
	"fmt"
	"net"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/acl"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/direngine"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/flare"
)

// session holds one connection's working path, per spec.md §6
// "Commands operate from a per-session working path starting at /."
type session struct {
	srv  *Server
	conn net.Conn
	cwd  string
}

func (sess *session) writeLine(line string) {
	sess.conn.Write([]byte(line + "\n"))
}

func (sess *session) prompt() {
	sess.conn.Write([]byte(fmt.Sprintf("\nMAGMA [%s]:%s> ", sess.srv.Ops.SelfNickname, sess.cwd)))
}

// resolve joins arg to the session's working path, or returns cwd
// itself if arg is empty.
func (sess *session) resolve(arg string) string {
	if arg == "" {
		return sess.cwd
	}
	if strings.HasPrefix(arg, "/") {
		return flare.Simplify(arg)
	}
	return flare.Simplify(sess.cwd + "/" + arg)
}

// dispatch runs one command line and reports whether the session should
// continue (false after exit/quit).
func (sess *session) dispatch(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "ls":
		sess.cmdLs(args)
	case "cd":
		sess.cmdCd(args)
	case "pwd":
		sess.writeLine(sess.cwd)
	case "cat":
		sess.cmdCat(args)
	case "erase":
		sess.cmdErase(args)
	case "inspect":
		sess.cmdInspect(args)
	case "lava":
		sess.cmdLava()
	case "cache":
		sess.cmdCache(args)
	case "print":
		sess.cmdPrint(args)
	case "debug":
		sess.cmdDebug(args)
	case "shutdown":
		sess.writeLine("shutting down")
		if sess.srv.Shutdown != nil {
			sess.srv.Shutdown()
		}
	case "exit", "quit":
		sess.writeLine("bye")
		return false
	case "help":
		sess.cmdHelp()
	default:
		sess.writeLine(fmt.Sprintf("unknown command %q, try 'help'", cmd))
	}
	return true
}

func (sess *session) loadFlare(path string) (*flare.Flare, error) {
	return sess.srv.Ops.Cache.SearchOrCreate(path)
}

func (sess *session) cmdLs(args []string) {
	var arg string
	if len(args) > 0 {
		arg = args[0]
	}
	path := sess.resolve(arg)

	f, err := sess.loadFlare(path)
	if err != nil || !sess.srv.Ops.Store.Exists(f) {
		sess.writeLine(fmt.Sprintf("ls: %s: not found", path))
		return
	}
	if f.Type != flare.TypeDir {
		sess.writeLine(fmt.Sprintf("ls: %s: not a directory", path))
		return
	}

	raw, err := os.ReadFile(f.Contents)
	if err != nil {
		sess.writeLine(fmt.Sprintf("ls: %s: %v", path, err))
		return
	}
	for _, name := range direngine.NewBody(raw).Entries() {
		if name == "." || name == ".." {
			continue
		}
		sess.writeLine(name)
	}
}

func (sess *session) cmdCd(args []string) {
	if len(args) != 1 {
		sess.writeLine("usage: cd <path>")
		return
	}
	path := sess.resolve(args[0])
	f, err := sess.loadFlare(path)
	if err != nil || !sess.srv.Ops.Store.Exists(f) {
		sess.writeLine(fmt.Sprintf("cd: %s: not found", path))
		return
	}
	if f.Type != flare.TypeDir {
		sess.writeLine(fmt.Sprintf("cd: %s: not a directory", path))
		return
	}
	sess.cwd = path
}

func (sess *session) cmdCat(args []string) {
	if len(args) != 1 {
		sess.writeLine("usage: cat <path>")
		return
	}
	path := sess.resolve(args[0])
	f, err := sess.loadFlare(path)
	if err != nil || !sess.srv.Ops.Store.Exists(f) {
		sess.writeLine(fmt.Sprintf("cat: %s: not found", path))
		return
	}
	if f.Type != flare.TypeRegular {
		sess.writeLine(fmt.Sprintf("cat: %s: not a regular file", path))
		return
	}
	raw, err := os.ReadFile(f.Contents)
	if err != nil {
		sess.writeLine(fmt.Sprintf("cat: %s: %v", path, err))
		return
	}
	sess.conn.Write(raw)
}

func (sess *session) cmdErase(args []string) {
	if len(args) != 1 {
		sess.writeLine("usage: erase <path>")
		return
	}
	path := sess.resolve(args[0])
	f, err := sess.loadFlare(path)
	if err != nil || !sess.srv.Ops.Store.Exists(f) {
		sess.writeLine(fmt.Sprintf("erase: %s: not found", path))
		return
	}
	err = sess.srv.Ops.Cache.WithLock(f, true, func() error {
		return sess.srv.Ops.Store.Erase(f)
	})
	if err != nil {
		sess.writeLine(fmt.Sprintf("erase: %s: %v", path, err))
		return
	}
	sess.srv.Ops.Cache.Evict(f)
	sess.writeLine(fmt.Sprintf("erased %s", path))
}

func (sess *session) cmdInspect(args []string) {
	if len(args) != 1 {
		sess.writeLine("usage: inspect <path>")
		return
	}
	path := sess.resolve(args[0])
	f, err := sess.loadFlare(path)
	if err != nil || !sess.srv.Ops.Store.Exists(f) {
		sess.writeLine(fmt.Sprintf("inspect: %s: not found", path))
		return
	}
	sess.writeLine(fmt.Sprintf("path:   %s", f.Path))
	sess.writeLine(fmt.Sprintf("hash:   %s", f.Hash))
	sess.writeLine(fmt.Sprintf("type:   %c", f.Type))
	sess.writeLine(fmt.Sprintf("mode:   %o", f.Stat.Mode))
	sess.writeLine(fmt.Sprintf("uid:    %d", f.Stat.UID))
	sess.writeLine(fmt.Sprintf("gid:    %d", f.Stat.GID))
	sess.writeLine(fmt.Sprintf("size:   %d (%s)", f.Stat.Size, humanize.Bytes(f.Stat.Size)))
	sess.writeLine(fmt.Sprintf("nlink:  %d", f.Stat.Nlink))
}

func (sess *session) cmdLava() {
	for _, v := range sess.srv.Ops.Ring.All() {
		alive := "dead"
		if v.Alive {
			alive = "alive"
		}
		sess.writeLine(fmt.Sprintf("%s %s:%d [%s..%s] %s storage=%s free=%s bandwidth=%s",
			v.Nickname, v.IPAddr, v.Port, v.StartKey, v.StopKey, alive,
			humanize.Bytes(uint64(v.Storage)), humanize.Bytes(uint64(v.FreeStorage)), humanize.Bytes(uint64(v.Bandwidth))))
	}
}

func (sess *session) cmdCache(args []string) {
	if len(args) != 1 || args[0] != "load" {
		sess.writeLine("usage: cache load")
		return
	}
	sess.writeLine(fmt.Sprintf("cache holds %d flares", sess.srv.Ops.Cache.Len()))
}

func (sess *session) cmdPrint(args []string) {
	if len(args) != 1 {
		sess.writeLine("usage: print cache|acl|debug")
		return
	}
	switch args[0] {
	case "cache":
		sess.srv.Ops.Cache.Walk(func(f *flare.Flare) bool {
			sess.writeLine(fmt.Sprintf("%s %c %s", f.Hash, f.Type, f.Path))
			return true
		})
	case "acl":
		fe, ok := sess.srv.ACL.(*acl.FileEnforcer)
		if !ok {
			sess.writeLine("no file-backed ACL loaded")
			return
		}
		fe.Print(sess.writeLine)
	case "debug":
		channels := sess.srv.debugChannels()
		sort.Strings(channels)
		if len(channels) == 0 {
			sess.writeLine("no debug channels enabled")
			return
		}
		sess.writeLine(strings.Join(channels, ", "))
	default:
		sess.writeLine("usage: print cache|acl|debug")
	}
}

func (sess *session) cmdDebug(args []string) {
	if len(args) != 2 || (args[0] != "on" && args[0] != "off") {
		sess.writeLine("usage: debug on|off <chan>")
		return
	}
	sess.srv.setDebug(args[1], args[0] == "on")
	sess.writeLine(fmt.Sprintf("debug %s %s", args[1], args[0]))
}

func (sess *session) cmdHelp() {
	for _, line := range []string{
		"ls <path>", "cd <path>", "pwd", "cat <path>", "erase <path>",
		"inspect <path>", "lava", "cache load", "print cache", "print acl",
		"print debug", "debug on <chan>", "debug off <chan>", "shutdown",
		"exit", "quit", "help",
	} {
		sess.writeLine(line)
	}
}
