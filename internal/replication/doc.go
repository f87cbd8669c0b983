// Package replication implements the asynchronous replica queue of
// spec.md §4.10: a single consumer goroutine that executes replica
// tasks handed off by internal/ops, either by transmitting the whole
// object (transmit_key) or by forwarding the original mutating request
// with a decremented TTL.
package replication
