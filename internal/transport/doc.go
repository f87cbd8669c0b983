// Package transport implements MAGMA's UDP datagram transport: a
// receive loop feeding a bounded worker pool (Service), client-side
// send-and-await with retry (SendAndAwait), monotonic transaction ID
// allocation (TransactionAllocator), and the bounded operation-result
// dedup cache (ResultCache) that the Design Notes call for in place of
// the source's unbounded one.
//
// Concurrency model (spec.md §5): one receiver goroutine per UDP
// service port drains the socket and dispatches `(peer, buffer)` tasks
// to a worker pool; workers run the caller-supplied Handler to
// completion and return a single response datagram. None of this is
// cooperative — handlers may block on flare locks, the catalog, or
// outbound sends; cancellation is via context only at the transport's
// own boundary (the context passed to Service.Serve, or Service.Close),
// not mid-handler.
package transport
