package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/adrg/xdg"
	"github.com/jinzhu/copier"
	"github.com/spf13/viper"
)

// Settings is the on-disk shape of ~/.atciconfig. It is plain JSON, no
// extension, read with viper so that future fields can be added without
// breaking older config files.
type Settings struct {
	WatchDirectories []string `json:"watch_directories" mapstructure:"watch_directories"`

	WhisperCLIPath string `json:"whispercli_path" mapstructure:"whispercli_path"`
	FFmpegPath     string `json:"ffmpeg_path" mapstructure:"ffmpeg_path"`
	FFprobePath    string `json:"ffprobe_path" mapstructure:"ffprobe_path"`

	ModelPath string `json:"model_path" mapstructure:"model_path"`
	ModelName string `json:"model_name" mapstructure:"model_name"`

	Password string `json:"password" mapstructure:"password"`

	AllowWhisper   *bool `json:"allow_whisper" mapstructure:"allow_whisper"`
	AllowSubtitles *bool `json:"allow_subtitles" mapstructure:"allow_subtitles"`

	ProcessingSuccessCommand string `json:"processing_success_command" mapstructure:"processing_success_command"`
	ProcessingFailureCommand string `json:"processing_failure_command" mapstructure:"processing_failure_command"`

	StreamChunkSize int `json:"stream_chunk_size" mapstructure:"stream_chunk_size"`

	ListenAddr string `json:"listen_addr" mapstructure:"listen_addr"`
}

// Snapshot is a validated, deep-copied, read-only view of Settings handed
// out to the rest of the program. Model() resolves the model_path/model_name
// precedence once so callers never have to repeat that decision.
type Snapshot struct {
	Settings
}

// Model returns the whisper model identifier to load, applying the rule
// that an explicit model_path always wins over model_name.
func (s Snapshot) Model() string {
	if s.ModelPath != "" {
		return s.ModelPath
	}
	return s.ModelName
}

func (s Snapshot) WhisperAllowed() bool {
	return s.AllowWhisper == nil || *s.AllowWhisper
}

func (s Snapshot) SubtitlesAllowed() bool {
	return s.AllowSubtitles == nil || *s.AllowSubtitles
}

func DefaultConfigPath() (string, error) {
	if xdg.Home == "" {
		return "", fmt.Errorf("resolve home directory")
	}
	return filepath.Join(xdg.Home, ".atciconfig"), nil
}

// Provider loads, validates, and caches a Settings snapshot, protecting
// concurrent readers (discovery, processor, HTTP API) with a RWMutex.
// Reload re-reads the file from disk and swaps the snapshot atomically.
type Provider struct {
	mu       sync.RWMutex
	path     string
	snapshot Snapshot
}

func NewProvider(path string) (*Provider, error) {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return nil, err
		}
	}
	p := &Provider{path: path}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) Reload() error {
	v := viper.New()
	v.SetConfigFile(p.path)
	v.SetConfigType("json")

	v.SetDefault("allow_whisper", true)
	v.SetDefault("allow_subtitles", true)
	v.SetDefault("stream_chunk_size", 60)
	v.SetDefault("listen_addr", "127.0.0.1:8080")

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", p.path, err)
	}

	var raw Settings
	if err := v.Unmarshal(&raw); err != nil {
		return fmt.Errorf("decode config %s: %w", p.path, err)
	}

	if err := validate(raw); err != nil {
		return fmt.Errorf("invalid config %s: %w", p.path, err)
	}

	var snap Snapshot
	if err := copier.Copy(&snap.Settings, &raw); err != nil {
		return fmt.Errorf("snapshot config: %w", err)
	}

	p.mu.Lock()
	p.snapshot = snap
	p.mu.Unlock()
	return nil
}

func (p *Provider) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}

func validate(s Settings) error {
	if len(s.WatchDirectories) == 0 {
		return fmt.Errorf("watch_directories must contain at least one directory")
	}
	cleaned := make([]string, len(s.WatchDirectories))
	for i, d := range s.WatchDirectories {
		if d == "" {
			return fmt.Errorf("watch_directories contains an empty entry")
		}
		cleaned[i] = filepath.Clean(d)
	}
	for i := range cleaned {
		for j := range cleaned {
			if i == j {
				continue
			}
			if isSubPath(cleaned[i], cleaned[j]) {
				return fmt.Errorf("watch directory %q is nested inside %q", cleaned[i], cleaned[j])
			}
		}
	}
	if s.WhisperCLIPath == "" {
		return fmt.Errorf("whispercli_path is required")
	}
	if s.FFmpegPath == "" {
		return fmt.Errorf("ffmpeg_path is required")
	}
	if s.FFprobePath == "" {
		return fmt.Errorf("ffprobe_path is required")
	}
	if s.ModelPath == "" && s.ModelName == "" {
		return fmt.Errorf("one of model_path or model_name is required")
	}
	return nil
}

// isSubPath reports whether child lies strictly inside parent.
func isSubPath(child, parent string) bool {
	if child == parent {
		return false
	}
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
