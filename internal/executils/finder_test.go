package executils

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveBinaryUsesConfiguredPathWhenItExists(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0755))

	got, err := ResolveBinary(bin, "ffmpeg")
	require.NoError(t, err)
	assert.Equal(t, bin, got)
}

func TestResolveBinaryRejectsMissingAbsoluteConfiguredPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("absolute-path detection is POSIX-shaped in this test")
	}
	_, err := ResolveBinary("/definitely/not/a/real/path/ffmpeg", "ffmpeg")
	assert.Error(t, err)
}

func TestResolveBinaryFallsBackToPathLookup(t *testing.T) {
	// "sh" is expected to exist on PATH in the test environment.
	got, err := ResolveBinary("", "sh")
	if err != nil {
		t.Skip("sh not on PATH in this environment")
	}
	assert.NotEmpty(t, got)
}
