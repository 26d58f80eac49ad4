package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMetaMissingFileReturnsEmptyMap(t *testing.T) {
	m, err := ReadMeta(filepath.Join(t.TempDir(), "missing.meta"))
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestWriteReadMetaRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "video.meta")
	in := map[string]string{"source": "subtitles", "length": "00:12:34"}

	require.NoError(t, WriteMeta(path, in))

	out, err := ReadMeta(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestReadMetaSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "video.meta")
	require.NoError(t, WriteMeta(path, map[string]string{"source": "whisper-base"}))

	// Append a malformed line directly, bypassing WriteMeta.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("no separator here\n: empty key\nprompt: hello there\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	m, err := ReadMeta(path)
	require.NoError(t, err)
	assert.Equal(t, "whisper-base", m["source"])
	assert.Equal(t, "hello there", m["prompt"])
	assert.Len(t, m, 2)
}

func TestUpdateFieldPreservesOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "video.meta")
	require.NoError(t, WriteMeta(path, map[string]string{"source": "subtitles"}))

	require.NoError(t, UpdateField(path, "length", "00:01:00"))

	m, err := ReadMeta(path)
	require.NoError(t, err)
	assert.Equal(t, "subtitles", m["source"])
	assert.Equal(t, "00:01:00", m["length"])
}

func TestGetField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "video.meta")
	require.NoError(t, WriteMeta(path, map[string]string{"source": "subtitles"}))

	v, ok, err := GetField(path, "source")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "subtitles", v)

	_, ok, err = GetField(path, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
