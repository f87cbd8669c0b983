package ring

import (
	"crypto/sha1"
	"encoding/hex"

	"github.com/pkg/errors"
)

// KeyLength is the number of hex digits in an armoured key (40 hex
// digits encode a 20-byte SHA-1 digest).
const KeyLength = 40

// MinKey and MaxKey are the ring endpoints.
const (
	MinKey Key = "0000000000000000000000000000000000000000"
	MaxKey Key = "ffffffffffffffffffffffffffffffffffffffff"
)

// Key is the 40-character lowercase hex encoding of a 20-byte SHA-1
// digest. Keys compare lexicographically, which matches numeric order
// because all keys share the same fixed width.
type Key string

// HashPath returns the key for a filesystem path: the lowercase hex
// SHA-1 digest of the path string.
func HashPath(path string) Key {
	sum := sha1.Sum([]byte(path))
	return Key(hex.EncodeToString(sum[:]))
}

// Armour encodes a 20-byte digest as a Key.
func Armour(b []byte) (Key, error) {
	if len(b) != sha1.Size {
		return "", errors.Errorf("armour: expected %d bytes, got %d", sha1.Size, len(b))
	}
	return Key(hex.EncodeToString(b)), nil
}

// Dearmour decodes a Key back to its raw 20-byte digest.
func Dearmour(k Key) ([]byte, error) {
	if len(k) != KeyLength {
		return nil, errors.Errorf("dearmour: key %q is not %d hex digits", k, KeyLength)
	}
	b, err := hex.DecodeString(string(k))
	if err != nil {
		return nil, errors.Wrap(err, "dearmour")
	}
	return b, nil
}

// Less reports whether k is strictly less than other, lexicographically
// (equivalently, numerically, since both are fixed-width hex).
func (k Key) Less(other Key) bool { return k < other }

// Compare returns -1, 0 or 1 as k is less than, equal to, or greater
// than other.
func (k Key) Compare(other Key) int {
	switch {
	case k < other:
		return -1
	case k > other:
		return 1
	default:
		return 0
	}
}

// Inc returns k+1 treating k as a base-16 counter with carry across the
// 0..9,a..f digit alphabet. It reports ok=false without wrapping value
// when k is already MaxKey.
func (k Key) Inc() (result Key, ok bool) {
	if k == MaxKey {
		return k, false
	}
	return Key(addOne([]byte(string(k)), +1)), true
}

// Dec returns k-1, symmetric to Inc. It reports ok=false when k is
// already MinKey.
func (k Key) Dec() (result Key, ok bool) {
	if k == MinKey {
		return k, false
	}
	return Key(addOne([]byte(string(k)), -1)), true
}

// addOne walks the hex digit string from the least significant digit,
// adding delta (+1 or -1) with carry/borrow across the whole alphabet.
func addOne(digits []byte, delta int) string {
	const alphabet = "0123456789abcdef"
	out := make([]byte, len(digits))
	copy(out, digits)

	carry := delta
	for i := len(out) - 1; i >= 0 && carry != 0; i-- {
		idx := indexOf(alphabet, out[i]) + carry
		if idx >= 16 {
			idx -= 16
			carry = 1
		} else if idx < 0 {
			idx += 16
			carry = -1
		} else {
			carry = 0
		}
		out[i] = alphabet[idx]
	}
	return string(out)
}

func indexOf(alphabet string, b byte) int {
	for i := 0; i < len(alphabet); i++ {
		if alphabet[i] == b {
			return i
		}
	}
	return -1
}
