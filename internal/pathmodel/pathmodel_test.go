package pathmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSidecar(t *testing.T) {
	assert.Equal(t, "/a/b/movie.txt", Sidecar("/a/b/movie.mp4", ".txt"))
	assert.Equal(t, "/a/b/movie.meta", Sidecar("/a/b/movie.mkv", ".meta"))
}

func TestParsePart(t *testing.T) {
	base, n, ext, ok := ParsePart("/x/show.part2.mp4")
	assert.True(t, ok)
	assert.Equal(t, "show", base)
	assert.Equal(t, 2, n)
	assert.Equal(t, "mp4", ext)

	// stem with no base before ".partN" does not match
	_, _, _, ok = ParsePart("/x/part2.mp4")
	assert.False(t, ok)

	// part0 is invalid, n must be >= 1
	_, _, _, ok = ParsePart("/x/show.part0.mp4")
	assert.False(t, ok)

	// unrecognized extension never matches
	_, _, _, ok = ParsePart("/x/show.part2.avi")
	assert.False(t, ok)

	// only the last ".partN." occurrence counts
	base, n, _, ok = ParsePart("/x/show.part1.part3.mkv")
	assert.True(t, ok)
	assert.Equal(t, "show.part1", base)
	assert.Equal(t, 3, n)
}

func TestFormatPartRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		base string
		n    int
		ext  string
	}{
		{"show", 1, "mp4"},
		{"my.movie", 12, "mkv"},
	} {
		name := FormatPart(tc.base, tc.n, tc.ext)
		base, n, ext, ok := ParsePart("/dir/" + name)
		assert.True(t, ok)
		assert.Equal(t, tc.base, base)
		assert.Equal(t, tc.n, n)
		assert.Equal(t, tc.ext, ext)
	}
}

func TestMasterPaths(t *testing.T) {
	video, txt, meta := MasterPaths("/x", "show", "mp4")
	assert.Equal(t, "/x/show.mp4", video)
	assert.Equal(t, "/x/show.txt", txt)
	assert.Equal(t, "/x/show.meta", meta)
}

func TestIsAllowedExtension(t *testing.T) {
	assert.True(t, IsAllowedExtension("mp4"))
	assert.True(t, IsAllowedExtension(".MKV"))
	assert.False(t, IsAllowedExtension("avi"))
}

func TestFindVideo(t *testing.T) {
	existing := map[string]bool{"/root/show.mkv": true}
	exists := func(p string) bool { return existing[p] }

	assert.Equal(t, "/root/show.mkv", FindVideo("/root", "show", exists))
	assert.Equal(t, "", FindVideo("/root", "missing", exists))
}
