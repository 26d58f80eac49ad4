// Package media wraps the ffmpeg/ffprobe subprocess calls used to probe,
// extract, and concatenate video and audio.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/rs/zerolog"

	"github.com/tassa-yoniso-manasi-karoto/atci/internal/executils"
)

// probeRetryPolicy tolerates ffprobe transiently failing against a video
// that a writer (e.g. an in-progress download) still has open; it never
// retries past context cancellation.
func probeRetryPolicy() failsafe.Policy[[]byte] {
	return retrypolicy.Builder[[]byte]().
		HandleIf(func(_ []byte, err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}).
		AbortOnErrors(context.Canceled).
		WithMaxAttempts(3).
		ReturnLastFailure().
		WithBackoffFactor(200*time.Millisecond, 2*time.Second, 2.0).
		Build()
}

// Tool bundles the resolved ffmpeg/ffprobe binaries a component needs to
// shell out to, each call cancellable through the passed context.
type Tool struct {
	FFmpegPath  string
	FFprobePath string
	Log         zerolog.Logger
}

func NewTool(ffmpegPath, ffprobePath string, log zerolog.Logger) *Tool {
	return &Tool{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath, Log: log}
}

func (t *Tool) run(ctx context.Context, binary string, args ...string) (stdout, stderr string, err error) {
	cmd := executils.CommandContext(ctx, binary, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()
	return outBuf.String(), errBuf.String(), err
}

// --- ffprobe stream probing ---

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	Index      int               `json:"index"`
	CodecType  string            `json:"codec_type"`
	CodecName  string            `json:"codec_name"`
	Tags       map[string]string `json:"tags"`
	Disposition map[string]int   `json:"disposition"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

// Streams lists every stream in the container, as reported by
// `ffprobe -show_streams -show_format -of json`.
func (t *Tool) Streams(ctx context.Context, path string) ([]ffprobeStream, error) {
	out, err := failsafe.Get(func() ([]byte, error) {
		stdout, _, runErr := t.run(ctx, t.FFprobePath,
			"-v", "error",
			"-show_streams",
			"-show_format",
			"-of", "json",
			path,
		)
		if runErr != nil {
			return nil, runErr
		}
		return []byte(stdout), nil
	}, probeRetryPolicy())
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("parse ffprobe output for %s: %w", path, err)
	}
	return parsed.Streams, nil
}

// HasAudioStream reports whether the file contains at least one audio stream.
func (t *Tool) HasAudioStream(ctx context.Context, path string) (bool, error) {
	streams, err := t.Streams(ctx, path)
	if err != nil {
		return false, err
	}
	for _, s := range streams {
		if s.CodecType == "audio" {
			return true, nil
		}
	}
	return false, nil
}

// FirstSubtitleStreamIndex returns the ffmpeg stream index of the first
// embedded subtitle track, or -1 if none exists.
func (t *Tool) FirstSubtitleStreamIndex(ctx context.Context, path string) (int, error) {
	streams, err := t.Streams(ctx, path)
	if err != nil {
		return -1, err
	}
	for _, s := range streams {
		if s.CodecType == "subtitle" {
			return s.Index, nil
		}
	}
	return -1, nil
}

// --- duration parsing ---

// ProbeDuration returns the container duration in seconds via ffprobe's
// machine-readable format output.
func (t *Tool) ProbeDuration(ctx context.Context, path string) (float64, error) {
	out, _, err := t.run(ctx, t.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration %s: %w", path, err)
	}
	val, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", out, err)
	}
	return val, nil
}

// DurationFromStderr runs ffmpeg against a null muxer and parses the
// "Duration: HH:MM:SS.ff" line ffmpeg prints on stderr. ffmpeg always
// exits non-zero for "-f null -" with no explicit input trimming; that
// exit status is expected and ignored.
func (t *Tool) DurationFromStderr(ctx context.Context, path string) (float64, error) {
	_, stderr, _ := t.run(ctx, t.FFmpegPath, "-i", path, "-hide_banner", "-f", "null", "-")

	idx := strings.Index(stderr, "Duration: ")
	if idx == -1 {
		return 0, fmt.Errorf("duration not found in ffmpeg output for %s", path)
	}
	start := idx + len("Duration: ")
	end := strings.Index(stderr[start:], ",")
	if end == -1 {
		return 0, fmt.Errorf("malformed duration line for %s", path)
	}
	raw := stderr[start : start+end]

	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("unexpected duration format %q", raw)
	}
	hours, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, fmt.Errorf("parse hours: %w", err)
	}
	minutes, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, fmt.Errorf("parse minutes: %w", err)
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, fmt.Errorf("parse seconds: %w", err)
	}
	return hours*3600 + minutes*60 + seconds, nil
}

// --- extraction ---

// ExtractMonoAudio16k produces a 16kHz mono WAV suitable for whisper.cpp.
func (t *Tool) ExtractMonoAudio16k(ctx context.Context, inputPath, outputPath string) error {
	_, stderr, err := t.run(ctx, t.FFmpegPath,
		"-y", "-loglevel", "error",
		"-i", inputPath,
		"-vn", "-ac", "1", "-ar", "16000",
		"-acodec", "pcm_s16le",
		outputPath,
	)
	if err != nil {
		return fmt.Errorf("extract mono audio from %s: %w: %s", inputPath, err, stderr)
	}
	return nil
}

// ExtractSubtitle dumps embedded subtitle stream index into an SRT file.
func (t *Tool) ExtractSubtitle(ctx context.Context, inputPath string, streamIndex int, outputSRT string) error {
	_, stderr, err := t.run(ctx, t.FFmpegPath,
		"-y", "-loglevel", "error",
		"-i", inputPath,
		"-map", fmt.Sprintf("0:%d", streamIndex),
		outputSRT,
	)
	if err != nil {
		return fmt.Errorf("extract subtitle from %s: %w: %s", inputPath, err, stderr)
	}
	return nil
}

// ExtractClip copies everything from start to the end of inputPath into a
// new file without re-encoding, resetting timestamps to start at zero. Used for
// partial reprocessing (§4.10).
func (t *Tool) ExtractClip(ctx context.Context, inputPath string, startSeconds float64, outputPath string) error {
	_, stderr, err := t.run(ctx, t.FFmpegPath,
		"-y", "-loglevel", "error",
		"-ss", strconv.FormatFloat(startSeconds, 'f', 3, 64),
		"-i", inputPath,
		"-avoid_negative_ts", "make_zero",
		"-c", "copy",
		outputPath,
	)
	if err != nil {
		return fmt.Errorf("extract clip from %s: %w: %s", inputPath, err, stderr)
	}
	return nil
}

// --- concatenation ---

// WriteConcatFile writes the ffmpeg concat-demuxer file listing the given
// video paths in order.
func WriteConcatFile(videoPaths []string) (string, error) {
	f, err := os.CreateTemp("", "atci_concat_*.txt")
	if err != nil {
		return "", fmt.Errorf("create concat list: %w", err)
	}
	defer f.Close()
	for _, p := range videoPaths {
		escaped := strings.ReplaceAll(p, "'", "'\\''")
		if _, err := fmt.Fprintf(f, "file '%s'\n", escaped); err != nil {
			return "", fmt.Errorf("write concat list: %w", err)
		}
	}
	return f.Name(), nil
}

// ConcatStreamCopy concatenates the videos listed in concatFile into
// outputPath without re-encoding.
func (t *Tool) ConcatStreamCopy(ctx context.Context, concatFile, outputPath string) error {
	_, stderr, err := t.run(ctx, t.FFmpegPath,
		"-y", "-loglevel", "error",
		"-f", "concat", "-safe", "0",
		"-i", concatFile,
		"-c", "copy",
		outputPath,
	)
	if err != nil {
		return fmt.Errorf("concat to %s: %w: %s", outputPath, err, stderr)
	}
	return nil
}

// Concat is a convenience wrapper combining WriteConcatFile and
// ConcatStreamCopy, cleaning up the temporary list file afterward.
func (t *Tool) Concat(ctx context.Context, videoPaths []string, outputPath string) error {
	listFile, err := WriteConcatFile(videoPaths)
	if err != nil {
		return err
	}
	defer os.Remove(listFile)
	return t.ConcatStreamCopy(ctx, listFile, outputPath)
}

// Version returns the ffmpeg binary's self-reported version string.
func (t *Tool) Version(ctx context.Context) (string, error) {
	cmd := executils.CommandContext(ctx, t.FFmpegPath, "-version")
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("ffmpeg -version: %w: %s", err, exitErr.Stderr)
		}
		return "", fmt.Errorf("ffmpeg -version: %w", err)
	}
	line := strings.SplitN(string(out), "\n", 2)[0]
	return strings.TrimSpace(line), nil
}
