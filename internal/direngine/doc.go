// Package direngine implements the directory body encoding and the
// opendir/readdir/telldir/seekdir/closedir handle protocol of spec.md
// §4.7: an append-only sequence of NUL-terminated entry names, in-place
// zeroing on removal, and a chunked remote read for directories whose
// owner is not the local node.
package direngine
