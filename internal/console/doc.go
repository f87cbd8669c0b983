// Package console implements the line-oriented operator console of
// spec.md §6: a TCP listener accepting exactly the token set of
// commands there (ls, cd, pwd, cat, erase, inspect, lava, cache load,
// print cache, print acl, print debug, debug on/off <chan>, shutdown,
// exit, quit, help), evaluated against a per-connection working path
// starting at "/". Grounded on protocol/console/protocol_console.c's
// read-a-line/dispatch-a-line/reply loop.
package console
