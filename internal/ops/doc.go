// Package ops implements the per-operation POSIX handler layer: for each
// optype it decides whether the local node is the owner or redundant
// owner of the target path, performs the local flare action or forwards
// to the owner, and — for successful mutations — enqueues a replica
// task, per spec.md §4.6.
package ops
