package direngine

// RemoteChunk is one f_opendir response chunk: a slice of the
// directory's bytes starting at the requested offset, plus the
// directory's total size (spec.md §4.7 remote case).
type RemoteChunk struct {
	Data      []byte
	TotalSize int
}

// ChunkFetcher requests one f_opendir chunk at offset from the owning
// node. internal/ops supplies the real UDP-backed implementation; this
// package only assembles the chunks.
type ChunkFetcher func(path string, offset int) (RemoteChunk, error)

// AssembleRemote repeatedly calls fetch with increasing offsets until
// the accumulated bytes cover the reported total size, per spec.md
// §4.7: "repeatedly issue f_opendir(path, offset)... until received >=
// size; concatenate."
func AssembleRemote(path string, fetch ChunkFetcher) (*Handle, error) {
	var content []byte
	offset := 0
	for {
		chunk, err := fetch(path, offset)
		if err != nil {
			return nil, err
		}
		content = append(content, chunk.Data...)
		offset += len(chunk.Data)
		if offset >= chunk.TotalSize || len(chunk.Data) == 0 {
			break
		}
	}
	return Opendir(content), nil
}
