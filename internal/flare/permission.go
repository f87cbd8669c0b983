package flare

// Operation is a requested access bit, for use with CheckPermission.
type Operation uint8

const (
	OpRead Operation = 1 << iota
	OpWrite
	OpExec
)

// GroupLookup resolves the supplementary groups for a uid. Results
// should be cached per uid by the caller (spec.md §4.5: "Supplementary
// groups are cached per uid").
type GroupLookup func(uid uint32) (primaryGID uint32, supplementary []uint32)

// CheckPermission implements spec.md §4.5: returns a bitmask of the
// requested ops still NOT permitted (zero means fully allowed). Root
// (uid 0) is always allowed. This is the sole permission check — see
// SPEC_FULL.md §12 on the source's debug-stub shadow, which this port
// does not carry: this function is normative.
func CheckPermission(f *Flare, uid, gid uint32, ops Operation, groups GroupLookup) Operation {
	if uid == 0 {
		return 0
	}

	mode := f.Stat.Mode
	var denied Operation

	ownerBits := Operation((mode >> 6) & 0o7)
	groupBits := Operation((mode >> 3) & 0o7)
	otherBits := Operation(mode & 0o7)

	primaryGID, supplementary := uint32(0), []uint32(nil)
	if groups != nil {
		primaryGID, supplementary = groups(uid)
	} else {
		primaryGID = gid
	}

	inGroup := primaryGID == f.Stat.GID
	if !inGroup {
		for _, g := range supplementary {
			if g == f.Stat.GID {
				inGroup = true
				break
			}
		}
	}

	for _, bit := range []Operation{OpRead, OpWrite, OpExec} {
		if ops&bit == 0 {
			continue
		}
		allowed := (uid == f.Stat.UID && ownerBits&bit != 0) ||
			(inGroup && groupBits&bit != 0) ||
			(otherBits&bit != 0)
		if !allowed {
			denied |= bit
		}
	}
	return denied
}
