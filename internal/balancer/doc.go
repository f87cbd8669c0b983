// Package balancer runs the periodic capacity-refresh loop of spec.md
// §4.11: every CHECK_LOAD_TIMEOUT, a node recounts the keys it hosts,
// re-measures its free disk space, pings its siblings for their own
// figures, and persists its own profile row. It computes a log-scaled
// load metric for display purposes only; no redistribution of keys
// happens here or anywhere else in this tree, matching
// flare_system/balance.c's commented-out redistribution branch.
package balancer
