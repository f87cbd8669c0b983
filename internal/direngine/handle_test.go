package direngine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildBody(n int) []byte {
	b := NewBody(append([]byte(nil), DotEntries...))
	for i := 0; i < n; i++ {
		b.Append(fmt.Sprintf("f%d", i))
	}
	return b.Bytes()
}

func TestReaddirYieldsDotEntriesFirst(t *testing.T) {
	h := Opendir(buildBody(3))
	name, ok := h.Readdir()
	require.True(t, ok)
	assert.Equal(t, ".", name)
	name, ok = h.Readdir()
	require.True(t, ok)
	assert.Equal(t, "..", name)
}

func TestReaddirExhausted(t *testing.T) {
	h := Opendir(buildBody(0))
	for i := 0; i < 2; i++ {
		_, ok := h.Readdir()
		require.True(t, ok)
	}
	_, ok := h.Readdir()
	assert.False(t, ok)
}

func TestTelldirSeekdirRoundtrip(t *testing.T) {
	h := Opendir(buildBody(5))
	_, _ = h.Readdir()
	_, _ = h.Readdir()
	mark := h.Telldir()

	var afterMark []string
	for {
		name, ok := h.Readdir()
		if !ok {
			break
		}
		afterMark = append(afterMark, name)
	}

	h.Seekdir(mark)
	var replay []string
	for {
		name, ok := h.Readdir()
		if !ok {
			break
		}
		replay = append(replay, name)
	}

	assert.Equal(t, afterMark, replay)
}

func TestReaddirExtendedChunking(t *testing.T) {
	h := Opendir(buildBody(120))
	var all []string
	for {
		entries, _, exhausted := h.ReaddirExtended(nil)
		assert.LessOrEqual(t, len(entries), MaxExtendedEntriesPerResponse)
		for _, e := range entries {
			all = append(all, e.Name)
		}
		if exhausted {
			break
		}
	}
	// "." + ".." + 120 files
	assert.Len(t, all, 122)
}

func TestReaddirExtendedAttachesStat(t *testing.T) {
	h := Opendir(buildBody(2))
	entries, _, _ := h.ReaddirExtended(func(name string) []byte {
		return []byte(name + "-stat")
	})
	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.Equal(t, []byte(e.Name+"-stat"), e.StatPayload)
	}
}

func TestClosedirClearsContent(t *testing.T) {
	h := Opendir(buildBody(1))
	h.Closedir()
	assert.Nil(t, h.Content)
}
