// Package wire implements the MAGMA datagram codec: fixed-width
// big-endian primitives, length-prefixed strings, the fixed-schema stat
// image, and the request/response headers common to every optype.
//
// All integers are serialized big-endian at their natural width (8,
// 16, 32 or 64 bits). Strings are a uint16 length followed by that many
// raw bytes — no NUL terminator on the wire. This matches spec.md §4.8
// exactly; nothing here is negotiable per-host layout, which is the
// point of a fixed schema. The request header layout follows spec.md's
// explicit ordering (optype, ttl, transaction_id, uid, gid), not the
// original C struct's field order (type, transaction_id, ttl, uid, gid;
// see original_source/libmagma/libmagma/protocol/protocol_pkt.h) —
// spec.md is the normative source for this port.
package wire
