package flare

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimplifyIdempotence(t *testing.T) {
	cases := []string{"/a/b/../c", "/a//b///c", "/./a/./b", "", "/", "/a/../../b"}
	for _, c := range cases {
		once := Simplify(c)
		twice := Simplify(once)
		assert.Equal(t, once, twice, "not idempotent for %q", c)
	}
}

func TestSimplifyValues(t *testing.T) {
	assert.Equal(t, "/", Simplify(""))
	assert.Equal(t, "/", Simplify("/"))
	assert.Equal(t, "/c", Simplify("/a/b/../../c"))
	assert.Equal(t, "/a/c", Simplify("/a//b/../c"))
	assert.Equal(t, "/a/b", Simplify("/./a/./b"))
}

func TestParentPath(t *testing.T) {
	assert.Equal(t, "/", ParentPath("/f"))
	assert.Equal(t, "/a", ParentPath("/a/b"))
	assert.Equal(t, "/", ParentPath("/"))
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "f", BaseName("/f"))
	assert.Equal(t, "b", BaseName("/a/b"))
	assert.Equal(t, "/", BaseName("/"))
}
