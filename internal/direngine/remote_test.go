package direngine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleRemoteConcatenatesChunks(t *testing.T) {
	full := buildBody(30)
	chunkSize := 40

	fetch := func(path string, offset int) (RemoteChunk, error) {
		end := offset + chunkSize
		if end > len(full) {
			end = len(full)
		}
		return RemoteChunk{Data: full[offset:end], TotalSize: len(full)}, nil
	}

	h, err := AssembleRemote("/some/dir", fetch)
	require.NoError(t, err)
	assert.Equal(t, full, h.Content)

	var names []string
	for {
		name, ok := h.Readdir()
		if !ok {
			break
		}
		names = append(names, name)
	}
	assert.Len(t, names, 32) // "." + ".." + 30 files
}

func TestAssembleRemotePropagatesFetchError(t *testing.T) {
	wantErr := errors.New("peer unreachable")
	fetch := func(path string, offset int) (RemoteChunk, error) {
		return RemoteChunk{}, wantErr
	}
	_, err := AssembleRemote("/some/dir", fetch)
	assert.ErrorIs(t, err, wantErr)
}

func TestAssembleRemoteStopsOnEmptyChunk(t *testing.T) {
	calls := 0
	fetch := func(path string, offset int) (RemoteChunk, error) {
		calls++
		return RemoteChunk{Data: nil, TotalSize: 1000}, nil
	}
	h, err := AssembleRemote("/some/dir", fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, h.Content)
}
