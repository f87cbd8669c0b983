package wire

// OpType identifies the operation requested of a server, per spec.md
// §2/§4.6 and the full enumeration in
// original_source/libmagma/libmagma/protocol/protocol_pkt.h. It is a
// single unsigned byte, deliberately (the original comment on
// magma_optype notes this avoids any endian conversion).
type OpType uint8

// FUSE-shaped POSIX operations.
const (
	OpGetattr OpType = iota + 1
	OpReadlink
	OpMknod
	OpMkdir
	OpUnlink
	OpRmdir
	OpSymlink
	OpRename
	OpLink
	OpChmod
	OpChown
	OpTruncate
	OpUtime
	OpOpen
	OpRead
	OpWrite
	OpStatfs
	OpFlush
	OpRelease
	OpFsync
	OpOpendir
	OpReaddir
	OpReleasedir
	OpFsyncdir
	OpReaddirExtended
	OpReaddirOffset
	OpAddFlareToParent
	OpRemoveFlareFromParent
)

// Node-to-node membership and replication operations.
const (
	OpJoin OpType = iota + 100
	OpFinishJoin
	OpTransmitTopology
	OpTransmitKey
	OpTransmitNode
	OpGetKey
	OpPutKey
	OpDropKey
	OpGetKeyContent
	OpNetworkBuilt
)

// Generic utility operations.
const (
	OpCloseConnection OpType = iota + 200
	OpShutdown
	OpHeartbeat
)

// mutating reports whether an optype's result is eligible for the
// op-result dedup cache per spec.md §4.6: mknod, mkdir, unlink, rmdir,
// symlink, chmod, chown, truncate, utime, write.
func (o OpType) Mutating() bool {
	switch o {
	case OpMknod, OpMkdir, OpUnlink, OpRmdir, OpSymlink,
		OpChmod, OpChown, OpTruncate, OpUtime, OpWrite:
		return true
	default:
		return false
	}
}

// String gives a readable name for logging; unknown values are reported
// as "unknown".
func (o OpType) String() string {
	if name, ok := opTypeNames[o]; ok {
		return name
	}
	return "unknown"
}

var opTypeNames = map[OpType]string{
	OpGetattr:               "GETATTR",
	OpReadlink:              "READLINK",
	OpMknod:                 "MKNOD",
	OpMkdir:                 "MKDIR",
	OpUnlink:                "UNLINK",
	OpRmdir:                 "RMDIR",
	OpSymlink:               "SYMLINK",
	OpRename:                "RENAME",
	OpLink:                  "LINK",
	OpChmod:                 "CHMOD",
	OpChown:                 "CHOWN",
	OpTruncate:              "TRUNCATE",
	OpUtime:                 "UTIME",
	OpOpen:                  "OPEN",
	OpRead:                  "READ",
	OpWrite:                 "WRITE",
	OpStatfs:                "STATFS",
	OpFlush:                 "FLUSH",
	OpRelease:               "RELEASE",
	OpFsync:                 "FSYNC",
	OpOpendir:               "OPENDIR",
	OpReaddir:               "READDIR",
	OpReleasedir:            "RELEASEDIR",
	OpFsyncdir:              "FSYNCDIR",
	OpReaddirExtended:       "READDIR_EXTENDED",
	OpReaddirOffset:         "READDIR_OFFSET",
	OpAddFlareToParent:      "ADD_FLARE_TO_PARENT",
	OpRemoveFlareFromParent: "REMOVE_FLARE_FROM_PARENT",
	OpJoin:                  "JOIN",
	OpFinishJoin:            "FINISH_JOIN",
	OpTransmitTopology:      "TRANSMIT_TOPOLOGY",
	OpTransmitKey:           "TRANSMIT_KEY",
	OpTransmitNode:          "TRANSMIT_NODE",
	OpGetKey:                "GET_KEY",
	OpPutKey:                "PUT_KEY",
	OpDropKey:               "DROP_KEY",
	OpGetKeyContent:         "GET_KEY_CONTENT",
	OpNetworkBuilt:          "NETWORK_BUILT",
	OpCloseConnection:       "CLOSECONNECTION",
	OpShutdown:              "SHUTDOWN",
	OpHeartbeat:             "HEARTBEAT",
}

// DefaultTTL is the hop budget a client request enters with.
const DefaultTTL = 2

// TerminalTTL is the hop budget used on a forwarded request, to prevent
// further forwarding.
const TerminalTTL = 1
