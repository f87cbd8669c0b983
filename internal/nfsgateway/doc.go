// Package nfsgateway specifies the mountd-style entry points an NFS
// front end would call into the core through: resolve a path to a file
// handle, and resolve a file handle back to the flare it names. It
// holds the Gateway interface and Local, an implementation backed by one
// node's flare cache and catalog. No RPC/XDR wire implementation lives
// here, matching mountproc_mnt_1_svc and mountproc_dump_1_svc in
// protocol_mount.c, which exist purely to hand a path off to
// magma_search_or_create and copy out its binhash.
package nfsgateway
