package acl

import "net"

// Operation is one of the three policy letters the source's ACL file
// rules carry: 'n' (nothing), 'r' (read), 'w' (write). Write implies
// read, mirroring magma_validate_connection's
// `(optype == policy) || (optype == 'r' && policy == 'w')` check.
type Operation byte

const (
	OpNone  Operation = 'n'
	OpRead  Operation = 'r'
	OpWrite Operation = 'w'
)

// Allows reports whether a rule carrying this Operation as its granted
// policy permits the requested operation.
func (granted Operation) Allows(requested Operation) bool {
	if requested == granted {
		return true
	}
	return requested == OpRead && granted == OpWrite
}

// Rule is one "ADDRESS PATH OPERATIONS" line under a share.
type Rule struct {
	Net   *net.IPNet
	Path  string
	Allow Operation
	Line  int
}

// Matches reports whether ip falls in the rule's netblock and path is
// at or below the rule's path.
func (r Rule) Matches(ip net.IP, path string) bool {
	if r.Net != nil && !r.Net.Contains(ip) {
		return false
	}
	return pathUnder(r.Path, path)
}

// pathUnder reports whether path is rulePath itself or a descendant of
// it, matching the source's recursive dirname-shortening fallback: a
// rule on "/" covers everything, a rule on "/users" covers
// "/users/alice" but not "/usersbogus".
func pathUnder(rulePath, path string) bool {
	if rulePath == "/" || rulePath == "" {
		return true
	}
	if path == rulePath {
		return true
	}
	return len(path) > len(rulePath) && path[:len(rulePath)] == rulePath && path[len(rulePath)] == '/'
}

// Share groups the rules exported under one share name.
type Share struct {
	Name  string
	Rules []Rule
}
