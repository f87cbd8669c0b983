package flare

import (
	"os"
	"time"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ring"
)

// Type identifies a flare's POSIX object kind (spec.md §3 Flare).
type Type byte

const (
	TypeUnknown Type = 0
	TypeRegular Type = 'r'
	TypeDir     Type = 'd'
	TypeSymlink Type = 'l'
	TypeCharDev Type = 'c'
	TypeBlockDev Type = 'b'
	TypeFIFO    Type = 'p'
	TypeSocket  Type = 's'
)

// Stat mirrors the POSIX attributes a flare carries, independent of the
// wire schema (see internal/wire.Stat for the serialized form).
type Stat struct {
	Mode    uint32
	UID     uint32
	GID     uint32
	Size    uint64
	Nlink   uint64
	Rdev    uint64
	Blksize uint64
	Blocks  uint64
	Atime   time.Time
	Ctime   time.Time
	Mtime   time.Time
}

// Flare is one POSIX object, per spec.md §3.
type Flare struct {
	Path       string
	Type       Type
	BinHash    [20]byte
	Hash       ring.Key
	ParentPath string
	ParentHash ring.Key

	// Contents is the absolute on-disk path of this flare's blob: the
	// node's hashpath directory concatenated with Hash.
	Contents string

	Stat Stat

	// IsUpcasted reports whether Type has been determined from disk/
	// catalog state (spec.md §3 "is_upcasted flag").
	IsUpcasted bool

	// CommitPath, CommitTime, CommitURL record the immutable history
	// row set when the flare is first persisted.
	CommitPath string
	CommitTime time.Time
	CommitURL  string

	// LastAccess is the last time this record was looked up in the
	// cache.
	LastAccess time.Time
}

// NewUnupcasted returns a bare Flare for path with Contents computed
// but Type left TypeUnknown, ready for Store.Load to fill in.
func NewUnupcasted(path, hashpathDir string) *Flare {
	key := ring.HashPath(path)
	raw, _ := ring.Dearmour(key)
	var bin [20]byte
	copy(bin[:], raw)

	parent := ParentPath(path)
	parentKey := ring.HashPath(parent)

	return &Flare{
		Path:       path,
		Type:       TypeUnknown,
		BinHash:    bin,
		Hash:       key,
		ParentPath: parent,
		ParentHash: parentKey,
		Contents:   hashpathDir + string(os.PathSeparator) + string(key),
	}
}

// ModeMatchesType reports whether Stat.Mode's type bits agree with
// Type, the invariant spec.md §3 requires once a flare is upcasted.
func (f *Flare) ModeMatchesType() bool {
	want, ok := modeTypeBits[f.Type]
	if !ok {
		return true
	}
	const typeMask = 0170000
	return f.Stat.Mode&typeMask == want
}

// TypeBits returns the POSIX mode type bits for t, or 0 if t is
// TypeUnknown or unrecognized.
func TypeBits(t Type) uint32 {
	return modeTypeBits[t]
}

var modeTypeBits = map[Type]uint32{
	TypeRegular:  0100000,
	TypeDir:      0040000,
	TypeSymlink:  0120000,
	TypeCharDev:  0020000,
	TypeBlockDev: 0060000,
	TypeFIFO:     0010000,
	TypeSocket:   0140000,
}
