// Package flare implements the MAGMA flare data model: the Flare
// record itself, its on-disk store (hashpath blob + catalog row),
// the in-memory ordered cache and per-flare lock table, and the
// permission check.
//
// Architecture:
//
//	search_or_create(path)
//	        │  lookup_mutex held only for map structural changes
//	        ▼
//	  ┌───────────────┐      ┌───────────────────────┐
//	  │ btree.BTree    │      │ per-flare RWMutex map  │
//	  │ binhash→*Flare │      │ binhash→*sync.RWMutex  │
//	  └───────────────┘      └───────────────────────┘
//	        │ miss                      │ held for the duration of
//	        ▼                           │ read/write on the flare's
//	  Store.Load(path)                  │ on-disk bytes + fields
//	        │
//	        ▼
//	  hashpath/<hex>  (blob)      catalog row (type, commit_*, uid, gid)
//
// Grounded on original_source/libmagma/libmagma/flare_system/
// magma_flare_types.h for the Flare record's field set, and on the
// teacher's shard.Shard/storage.Store split (internal/shard/shard.go,
// internal/storage/store.go) for the Go idiom of a storage abstraction
// wrapped by a stats-and-locking layer — here replaced with a durable,
// hashpath-backed store because spec.md requires on-disk persistence
// the teacher's MemoryStore never had.
package flare
