// Package ring implements the MAGMA key space: 40-hex SHA-1 keys, the
// Volcano node record, the Lava ring that links volcanoes into a sorted
// cycle, and the Router that maps a path to its owning volcano.
//
// Architecture:
//
//	┌───────────────────────────────────────────────┐
//	│                     Lava                       │
//	│   first ──▶ V1 ──▶ V2 ──▶ V3 ──▶ … ──▶ Vn ──┐  │
//	│   ▲                                          │  │
//	│   └──────────────────────────────────────────┘  │
//	│   (sorted by start_key, wraps last.next=first)   │
//	└───────────────────────────────────────────────┘
//
// Each Volcano owns a closed interval [start_key, stop_key] of the
// 160-bit space; the union of all intervals in a live ring is the whole
// space with no gap and no overlap. Topology mutation (join, finish-join)
// is done by cloning the ring, mutating the clone, and installing it
// atomically under Lava's write lock, then discarding the old ring —
// never by mutating node pointers of the live ring in place.
//
// Concurrency: Lava.mu is an RWMutex. Routing holds the read side;
// membership operations hold the write side only for the atomic swap of
// the node list, not for the (possibly slow) network exchange that
// builds the replacement topology.
package ring
