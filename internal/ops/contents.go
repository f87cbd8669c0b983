package ops

import (
	"os"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/flare"
)

// readContents reads the whole of f's on-disk blob. Used for symlink
// targets and small directory reads; large file reads go through
// readContentsAt instead.
func readContents(s *Server, f *flare.Flare) ([]byte, error) {
	return os.ReadFile(f.Contents)
}

// readContentsAt reads up to len(buf) bytes from f's blob starting at
// offset, per spec.md §4.6 read: "at-offset positional read".
func readContentsAt(s *Server, f *flare.Flare, offset int64, buf []byte) (int, error) {
	file, err := os.Open(f.Contents)
	if err != nil {
		return 0, err
	}
	defer file.Close()
	n, err := file.ReadAt(buf, offset)
	if err != nil && n == 0 {
		return 0, err
	}
	return n, nil
}

// writeContentsAt writes data to f's blob at offset, creating the file
// if absent, per spec.md §4.6 write: "positional write".
func writeContentsAt(s *Server, f *flare.Flare, offset int64, data []byte) (int, error) {
	file, err := os.OpenFile(f.Contents, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return 0, err
	}
	defer file.Close()
	return file.WriteAt(data, offset)
}

// truncateContents resizes f's blob to size.
func truncateContents(s *Server, f *flare.Flare, size int64) error {
	return os.Truncate(f.Contents, size)
}
