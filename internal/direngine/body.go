package direngine

import "bytes"

// DotEntries is the directory body a freshly initialized directory
// starts with: "." and ".." each NUL-terminated (spec.md §3 Directory
// body).
var DotEntries = []byte(".\x00..\x00")

// Body wraps a directory flare's raw on-disk bytes and provides the
// append-only NUL-terminated entry operations of spec.md §4.7.
type Body struct {
	buf []byte
}

// NewBody wraps raw bytes (typically loaded from a directory flare's
// Contents file) for entry operations.
func NewBody(raw []byte) *Body {
	return &Body{buf: raw}
}

// Bytes returns the current raw buffer, e.g. for rewriting to disk.
func (b *Body) Bytes() []byte { return b.buf }

// Append adds name as a new NUL-terminated entry at the end of the
// buffer (spec.md §4.7 "the new name is appended").
func (b *Body) Append(name string) {
	b.buf = append(b.buf, []byte(name)...)
	b.buf = append(b.buf, 0)
}

// Remove zeroes the bytes of the first entry equal to name, in place,
// keeping the buffer's size stable (spec.md §3 Directory body
// "Removal zeroes the bytes of the removed entry in place"). It
// reports whether an entry was found and removed.
func (b *Body) Remove(name string) bool {
	target := append([]byte(name), 0)
	offset := 0
	for offset < len(b.buf) {
		end := bytes.IndexByte(b.buf[offset:], 0)
		if end < 0 {
			break
		}
		end += offset
		entryLen := end - offset
		if entryLen > 0 && bytes.Equal(b.buf[offset:end+1], target) {
			for i := offset; i <= end; i++ {
				b.buf[i] = 0
			}
			return true
		}
		offset = end + 1
	}
	return false
}

// Entries returns every currently non-zero entry, in storage order
// (insertion order modulo removals), per spec.md §3's readdir
// invariant: iteration skips runs of zero bytes.
func (b *Body) Entries() []string {
	var out []string
	offset := 0
	for offset < len(b.buf) {
		// skip any run of zero bytes
		for offset < len(b.buf) && b.buf[offset] == 0 {
			offset++
		}
		if offset >= len(b.buf) {
			break
		}
		end := bytes.IndexByte(b.buf[offset:], 0)
		if end < 0 {
			// unterminated trailing garbage; ignore per skip-zero-runs rule
			break
		}
		end += offset
		out = append(out, string(b.buf[offset:end]))
		offset = end + 1
	}
	return out
}

// IsEmpty reports whether the body has no entries beyond the initial
// "." and ".." prefix: any non-zero byte past that prefix means
// non-empty (spec.md §4.6 rmdir: "refuses non-empty directories").
func (b *Body) IsEmpty() bool {
	if len(b.buf) <= len(DotEntries) {
		return true
	}
	for _, c := range b.buf[len(DotEntries):] {
		if c != 0 {
			return false
		}
	}
	return true
}
