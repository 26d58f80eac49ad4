// Package stt drives the external speech-to-text CLI (C8): it extracts a
// mono 16 kHz audio track, invokes the local whisper.cpp-style CLI in
// WebVTT output mode, and normalizes its output into this system's
// transcript grammar.
package stt

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tassa-yoniso-manasi-karoto/atci/internal/executils"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/logging"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/media"
)

// Result carries the normalized transcript text and the model-id to
// record as `source` in the .meta file.
type Result struct {
	Transcript string
	ModelID    string
}

// Run executes the full C8 pipeline against videoPath. prompt, if
// non-empty, is passed through as the STT biasing prompt (§4.2's `prompt`
// meta key).
func Run(ctx context.Context, tool *media.Tool, whisperCLIPath, model, prompt, videoPath string) (Result, error) {
	hasAudio, err := tool.HasAudioStream(ctx, videoPath)
	if err != nil {
		return Result{}, logging.NewError(logging.KindToolFailure, "probe audio streams", err)
	}
	if !hasAudio {
		return Result{}, logging.NewError(logging.KindNoAudio, "video has no audio stream", nil)
	}

	tempWav, err := os.CreateTemp("", "atci_stt_*.wav")
	if err != nil {
		return Result{}, logging.NewError(logging.KindIOFailure, "create temp audio file", err)
	}
	tempWavPath := tempWav.Name()
	tempWav.Close()
	defer os.Remove(tempWavPath)

	if err := tool.ExtractMonoAudio16k(ctx, videoPath, tempWavPath); err != nil {
		return Result{}, logging.NewError(logging.KindToolFailure, "extract mono audio", err)
	}

	vttPath := tempWavPath + ".vtt"
	defer os.Remove(vttPath)

	args := []string{
		"-m", model,
		"-f", tempWavPath,
		"--no-prints",
		"--max-context", "0",
		"-ovtt",
	}
	if prompt != "" {
		args = append(args, "--prompt", prompt)
	}

	cmd := executils.CommandContext(ctx, whisperCLIPath, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Result{}, logging.NewError(logging.KindCancelled, "stt cancelled", ctx.Err())
		}
		return Result{}, logging.NewError(logging.KindToolFailure, "whispercli failed", fmt.Errorf("%w: %s", err, stderr.String()))
	}

	transcript, err := vttToTranscript(vttPath)
	if err != nil {
		return Result{}, logging.NewError(logging.KindToolFailure, "parse whispercli vtt output", err)
	}

	return Result{
		Transcript: transcript,
		ModelID:    strings.TrimSuffix(filepath.Base(model), filepath.Ext(model)),
	}, nil
}

// vttToTranscript strips the WEBVTT header and any file-scope metadata
// lines (the NOTE/STYLE/blank preamble up to the first cue), leaving
// blocks already in "HH:MM:SS.mmm --> HH:MM:SS.mmm" + text form.
func vttToTranscript(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open vtt output: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines []string
	seenCue := false
	for scanner.Scan() {
		line := scanner.Text()
		if !seenCue {
			if strings.Contains(line, "-->") {
				seenCue = true
			} else {
				continue
			}
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan vtt output: %w", err)
	}

	text := strings.Join(lines, "\n")
	return strings.TrimRight(text, "\n"), nil
}
