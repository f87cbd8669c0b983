// Package acl parses and evaluates the share/netblock access rules
// described in flare_system/magma_flare_types.h:
//
//	SHARE:
//	  ADDRESS PATH OPERATIONS
//
// A share groups a set of rules; each rule binds a netblock and a path
// prefix to one of "n" (nothing), "r" (read) or "w" (write, which
// implies read). The Enforcer interface is the single hook a caller
// uses to ask "is this peer allowed to do this"; the shipped AllowAll
// implementation matches the source's validate_connection, which has
// its real check permanently short-circuited to "always allow".
package acl
