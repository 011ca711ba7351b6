package filesystem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Path
	}{
		{"/", Path{}},
		{"", Path{}},
		{"/a", Path{"a"}},
		{"/a/b/c", Path{"a", "b", "c"}},
		{"/a/b/", Path{"a", "b"}},
		{"//a///b", Path{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParsePath(tt.in))
		})
	}
}

func TestPath_Split(t *testing.T) {
	t.Parallel()

	dir, leaf := ParsePath("/a/b/c").Split()
	assert.Equal(t, Path{"a", "b"}, dir)
	assert.Equal(t, "c", leaf)

	dir, leaf = ParsePath("/a").Split()
	assert.True(t, dir.IsRoot())
	assert.Equal(t, "a", leaf)

	dir, leaf = ParsePath("/").Split()
	assert.True(t, dir.IsRoot())
	assert.Empty(t, leaf)
}

func TestPath_Leaf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/", ParsePath("/").Leaf())
	assert.Equal(t, "c", ParsePath("/a/b/c").Leaf())
}

func TestPath_HasPrefix(t *testing.T) {
	t.Parallel()

	p := ParsePath("/a/b/c")
	assert.True(t, p.HasPrefix(ParsePath("/")))
	assert.True(t, p.HasPrefix(ParsePath("/a/b")))
	assert.True(t, p.HasPrefix(p))
	assert.False(t, p.HasPrefix(ParsePath("/a/bc")))
	assert.False(t, p.HasPrefix(ParsePath("/a/b/c/d")))
	assert.False(t, ParsePath("/ab").HasPrefix(ParsePath("/a")), "must compare whole segments")
}

func TestPath_Equal(t *testing.T) {
	t.Parallel()

	assert.True(t, ParsePath("/a/b").Equal(ParsePath("/a/b/")))
	assert.False(t, ParsePath("/a/b").Equal(ParsePath("/a")))
	assert.True(t, ParsePath("/").Equal(Path{}))
}

func TestPath_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/", Path{}.String())
	assert.Equal(t, "/a/b", ParsePath("a//b/").String())
}

func TestSplitParent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, parent, leaf string
	}{
		{"/a/b/c", "/a/b", "c"},
		{"/a", "/", "a"},
		{"/", "/", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			parent, leaf := SplitParent(tt.in)
			assert.Equal(t, tt.parent, parent)
			assert.Equal(t, tt.leaf, leaf)
		})
	}
}

func TestValidName(t *testing.T) {
	t.Parallel()

	assert.True(t, validName("file.txt"))
	assert.True(t, validName("...")) // only . and .. are reserved
	assert.False(t, validName(""))
	assert.False(t, validName("."))
	assert.False(t, validName(".."))
	assert.False(t, validName("a/b"))
}
