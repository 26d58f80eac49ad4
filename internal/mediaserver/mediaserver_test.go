package mediaserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRangeSuffix(t *testing.T) {
	start, end, ok := parseRange("bytes=-500", 1000)
	assert.True(t, ok)
	assert.Equal(t, int64(500), start)
	assert.Equal(t, int64(999), end)
}

func TestParseRangeOpenEnded(t *testing.T) {
	start, end, ok := parseRange("bytes=900-", 1000)
	assert.True(t, ok)
	assert.Equal(t, int64(900), start)
	assert.Equal(t, int64(999), end)
}

func TestParseRangeExplicit(t *testing.T) {
	start, end, ok := parseRange("bytes=100-199", 1000)
	assert.True(t, ok)
	assert.Equal(t, int64(100), start)
	assert.Equal(t, int64(199), end)
}

func TestParseRangeClampsEndToSize(t *testing.T) {
	start, end, ok := parseRange("bytes=100-5000", 1000)
	assert.True(t, ok)
	assert.Equal(t, int64(100), start)
	assert.Equal(t, int64(999), end)
}

func TestParseRangeEmptyHeader(t *testing.T) {
	_, _, ok := parseRange("", 1000)
	assert.False(t, ok)
}

func TestParseRangeMultiRangeUnsupported(t *testing.T) {
	_, _, ok := parseRange("bytes=0-99,200-299", 1000)
	assert.False(t, ok)
}

func TestParseRangeUnsatisfiable(t *testing.T) {
	_, _, ok := parseRange("bytes=5000-", 1000)
	assert.False(t, ok)

	_, _, ok = parseRange("bytes=-0", 1000)
	assert.False(t, ok)
}

func TestParseRangeMalformed(t *testing.T) {
	_, _, ok := parseRange("not-a-range-header", 1000)
	assert.False(t, ok)

	_, _, ok = parseRange("bytes=abc-def", 1000)
	assert.False(t, ok)
}

func TestIsWithin(t *testing.T) {
	assert.True(t, isWithin("/root/videos", "/root/videos/show.mp4"))
	assert.True(t, isWithin("/root/videos", "/root/videos/sub/show.mp4"))
	assert.False(t, isWithin("/root/videos", "/root/other/show.mp4"))
	assert.False(t, isWithin("/root/videos", "/root/videos-evil/show.mp4"))
}
