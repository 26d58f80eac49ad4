package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestSnapshotModelPrefersModelPath(t *testing.T) {
	s := Snapshot{Settings: Settings{ModelPath: "/models/ggml-base.bin", ModelName: "base"}}
	assert.Equal(t, "/models/ggml-base.bin", s.Model())
}

func TestSnapshotModelFallsBackToModelName(t *testing.T) {
	s := Snapshot{Settings: Settings{ModelName: "base"}}
	assert.Equal(t, "base", s.Model())
}

func TestWhisperAllowedDefaultsTrue(t *testing.T) {
	s := Snapshot{}
	assert.True(t, s.WhisperAllowed())

	s.AllowWhisper = boolPtr(false)
	assert.False(t, s.WhisperAllowed())
}

func TestSubtitlesAllowedDefaultsTrue(t *testing.T) {
	s := Snapshot{}
	assert.True(t, s.SubtitlesAllowed())
}

func TestValidateRejectsEmptyWatchDirectories(t *testing.T) {
	err := validate(Settings{})
	assert.Error(t, err)
}

func TestValidateRejectsNestedWatchDirectories(t *testing.T) {
	err := validate(Settings{
		WatchDirectories: []string{"/videos", "/videos/sub"},
		WhisperCLIPath:   "/bin/whisper", FFmpegPath: "/bin/ffmpeg", FFprobePath: "/bin/ffprobe",
		ModelName: "base",
	})
	assert.Error(t, err)
}

func TestValidateRequiresAModel(t *testing.T) {
	err := validate(Settings{
		WatchDirectories: []string{"/videos"},
		WhisperCLIPath:   "/bin/whisper", FFmpegPath: "/bin/ffmpeg", FFprobePath: "/bin/ffprobe",
	})
	assert.Error(t, err)
}

func TestValidateAcceptsWellFormedSettings(t *testing.T) {
	err := validate(Settings{
		WatchDirectories: []string{"/videos", "/other"},
		WhisperCLIPath:   "/bin/whisper", FFmpegPath: "/bin/ffmpeg", FFprobePath: "/bin/ffprobe",
		ModelName: "base",
	})
	assert.NoError(t, err)
}

func TestProviderReloadReadsJSONConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
		"watch_directories": ["` + filepath.Join(dir, "videos") + `"],
		"whispercli_path": "/bin/whisper",
		"ffmpeg_path": "/bin/ffmpeg",
		"ffprobe_path": "/bin/ffprobe",
		"model_name": "base"
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	p, err := NewProvider(path)
	require.NoError(t, err)

	snap := p.Snapshot()
	assert.Equal(t, "base", snap.ModelName)
	assert.Equal(t, "127.0.0.1:8080", snap.ListenAddr) // default applied
	assert.True(t, snap.WhisperAllowed())
}
