// Package membership implements cluster formation and teardown:
// bootstrapping the very first node, the two-phase protocol a new node
// runs to join an existing ring, the coordinated-reboot handshake that
// re-forms the ring after every node restarts together, and the
// shutdown fan-out a departing node sends its peers (spec.md §4.9).
package membership
