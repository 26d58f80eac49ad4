package stt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVttToTranscriptStripsHeaderAndPreamble(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.vtt")
	content := "WEBVTT\n\nNOTE some metadata\n\n00:00:00.000 --> 00:00:01.000\nhello\n\n00:00:01.000 --> 00:00:02.000\nworld\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	out, err := vttToTranscript(path)
	require.NoError(t, err)
	assert.Equal(t, "00:00:00.000 --> 00:00:01.000\nhello\n\n00:00:01.000 --> 00:00:02.000\nworld", out)
}

func TestVttToTranscriptNoCuesYieldsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.vtt")
	require.NoError(t, os.WriteFile(path, []byte("WEBVTT\n\nNOTE nothing here\n"), 0644))

	out, err := vttToTranscript(path)
	require.NoError(t, err)
	assert.Equal(t, "", out)
}
