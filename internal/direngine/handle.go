package direngine

import "bytes"

// Handle is an open directory iteration cursor, per spec.md §4.7:
// carries the full content buffer, its length, and a byte offset.
type Handle struct {
	Content []byte
	Length  int
	Offset  int
}

// Opendir builds a local Handle from an already-loaded directory body
// (the "local case" of spec.md §4.7 opendir: take the read lock, load
// contents, release the lock, return a handle). Lock acquisition is the
// caller's responsibility (see flare.Cache.WithLock); this constructor
// is pure.
func Opendir(content []byte) *Handle {
	return &Handle{Content: content, Length: len(content), Offset: 0}
}

// Readdir returns the next non-empty NUL-terminated entry starting from
// handle.Offset, skipping any run of zero bytes, and advances Offset by
// the entry's length + 1. It returns ok=false once the buffer is
// exhausted (spec.md §4.7 readdir()).
func (h *Handle) Readdir() (name string, ok bool) {
	for h.Offset < h.Length && h.Content[h.Offset] == 0 {
		h.Offset++
	}
	if h.Offset >= h.Length {
		return "", false
	}
	end := bytes.IndexByte(h.Content[h.Offset:h.Length], 0)
	if end < 0 {
		return "", false
	}
	end += h.Offset
	name = string(h.Content[h.Offset:end])
	h.Offset = end + 1
	return name, true
}

// Telldir returns the current offset, for later Seekdir.
func (h *Handle) Telldir() int { return h.Offset }

// Seekdir repositions the cursor to a previously recorded offset.
func (h *Handle) Seekdir(offset int) { h.Offset = offset }

// Closedir releases the handle's buffer.
func (h *Handle) Closedir() { h.Content = nil }

// ExtendedEntry is one entry of an extended readdir response: a name
// plus its own stat image (spec.md §4.7 "Extended readdir").
type ExtendedEntry struct {
	Name string
	// StatPayload is left as an opaque byte slice here; callers in
	// internal/ops attach a wire.Stat by encoding it themselves, since
	// this package has no dependency on the wire codec.
	StatPayload []byte
}

// MaxExtendedEntriesPerResponse bounds one extended-readdir response,
// per spec.md §4.7 ("the response carries up to 50 entries").
const MaxExtendedEntriesPerResponse = 50

// ReaddirExtended drains up to MaxExtendedEntriesPerResponse entries
// from handle starting at its current offset, returning them, the new
// offset, and whether the directory is now exhausted.
func (h *Handle) ReaddirExtended(statFor func(name string) []byte) (entries []ExtendedEntry, newOffset int, exhausted bool) {
	for len(entries) < MaxExtendedEntriesPerResponse {
		name, ok := h.Readdir()
		if !ok {
			return entries, h.Offset, true
		}
		var payload []byte
		if statFor != nil {
			payload = statFor(name)
		}
		entries = append(entries, ExtendedEntry{Name: name, StatPayload: payload})
	}
	return entries, h.Offset, h.Offset >= h.Length
}
