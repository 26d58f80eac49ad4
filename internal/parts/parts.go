// Package parts implements the multi-part assembly subsystem (C9):
// detecting part files, enforcing ascending processing order, stitching
// timestamps, and maintaining the merged master video and transcript.
package parts

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tassa-yoniso-manasi-karoto/atci/internal/logging"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/media"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/pathmodel"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/store"
)

// VideoResult is what the caller's regular-video processing step (§4.7
// then §4.8) hands back for a single part, in isolation from any master.
type VideoResult struct {
	Transcript string // part-local transcript, timestamps starting at 0
	Source     string // "subtitles" or the STT model-id
}

// ProcessVideoFunc processes partPath as if it were an ordinary video and
// returns its own, unshifted transcript. The assembler calls back into
// it rather than importing the subtitle/stt packages directly, to avoid
// a dependency cycle with the processor that owns that orchestration.
type ProcessVideoFunc func(ctx context.Context, partPath string) (VideoResult, error)

// Outcome reports what a single Process call accomplished, so the caller
// (the processor loop) knows whether to enqueue the next part.
type Outcome struct {
	Placeholder    bool
	NextPartExists bool
	NextPartPath   string
	Source         string
}

type Assembler struct {
	Tool      *media.Tool
	PartStore *store.PartStore
}

func New(tool *media.Tool, partStore *store.PartStore) *Assembler {
	return &Assembler{Tool: tool, PartStore: partStore}
}

// Process runs the full §4.6 algorithm for the part file at partPath.
func (a *Assembler) Process(ctx context.Context, partPath string, processVideo ProcessVideoFunc) (Outcome, error) {
	base, n, ext, ok := pathmodel.ParsePart(partPath)
	if !ok {
		return Outcome{}, logging.NewError(logging.KindIOFailure, "not a valid part path", nil).WithContext("path", partPath)
	}
	dir := filepath.Dir(partPath)
	masterVideo, masterTxt, masterMeta := pathmodel.MasterPaths(dir, base, ext)

	allPrior, missing, err := a.PartStore.AllPriorProcessed(base, n)
	if err != nil {
		return Outcome{}, logging.NewError(logging.KindIOFailure, "check prior part records", err)
	}
	if !allPrior {
		if err := appendPlaceholder(masterTxt, n, missing); err != nil {
			return Outcome{}, logging.NewError(logging.KindIOFailure, "write placeholder", err)
		}
		return Outcome{Placeholder: true}, logging.NewError(logging.KindPartOutOfOrder, fmt.Sprintf("part %d missing predecessors %v", n, missing), nil)
	}

	result, err := processVideo(ctx, partPath)
	if err != nil {
		return Outcome{}, err
	}

	offset := 0.0
	masterExists := fileExists(masterVideo)
	if masterExists {
		offset, err = a.Tool.ProbeDuration(ctx, masterVideo)
		if err != nil {
			return Outcome{}, logging.NewError(logging.KindToolFailure, "probe master video duration", err)
		}
	}

	shifted := shiftTimestamps(result.Transcript, offset)

	if err := appendMasterTranscript(masterTxt, n, shifted); err != nil {
		return Outcome{}, logging.NewError(logging.KindIOFailure, "append master transcript", err)
	}

	var concatErr error
	if masterExists {
		tmpOut, err := os.CreateTemp(dir, ".atci_master_*."+ext)
		if err != nil {
			return Outcome{}, logging.NewError(logging.KindIOFailure, "create temp master video", err)
		}
		tmpOutPath := tmpOut.Name()
		tmpOut.Close()
		os.Remove(tmpOutPath) // ffmpeg must create it itself

		concatErr = a.Tool.Concat(ctx, []string{masterVideo, partPath}, tmpOutPath)
		if concatErr == nil {
			concatErr = os.Rename(tmpOutPath, masterVideo)
		} else {
			os.Remove(tmpOutPath)
		}
	} else {
		concatErr = copyFile(partPath, masterVideo)
	}

	if concatErr != nil {
		if err := appendConcatFailureHeader(masterTxt, n, base, concatErr); err != nil {
			return Outcome{}, logging.NewError(logging.KindIOFailure, "append concat failure header", err)
		}
	}

	if err := a.PartStore.Record(store.PartRecord{
		BaseName:         base,
		PartNumber:       n,
		SourcePath:       partPath,
		ProcessedAt:      time.Now(),
		TranscriptLength: len(strings.Split(strings.TrimSpace(shifted), "\n")),
	}); err != nil {
		return Outcome{}, logging.NewError(logging.KindIOFailure, "record part", err)
	}

	if concatErr == nil {
		if err := store.UpdateField(masterMeta, "source", result.Source); err != nil {
			// meta write failure is non-fatal for the transcript itself (§4.2)
			_ = err
		}
		if err := os.Remove(partPath); err != nil && !os.IsNotExist(err) {
			return Outcome{}, logging.NewError(logging.KindIOFailure, "delete processed part source", err)
		}
	}

	nextPath := partFilePath(dir, base, n+1, ext)
	nextExists := fileExists(nextPath)

	if concatErr != nil {
		return Outcome{Source: result.Source}, logging.NewError(logging.KindConcatFailure, "master video concat failed", concatErr)
	}

	return Outcome{NextPartExists: nextExists, NextPartPath: nextPath, Source: result.Source}, nil
}

func partFilePath(dir, base string, n int, ext string) string {
	return filepath.Join(dir, pathmodel.FormatPart(base, n, ext))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source %s: %w", src, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".atci_copy_*")
	if err != nil {
		return fmt.Errorf("create temp copy: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.ReadFrom(in); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("copy %s to temp: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp copy: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp copy into place: %w", err)
	}
	return nil
}

func appendPlaceholder(masterTxt string, n int, missing []int) error {
	csv := make([]string, len(missing))
	for i, m := range missing {
		csv[i] = strconv.Itoa(m)
	}
	line := fmt.Sprintf(">>> Part %d of video, missing part(s): %s <<< Processing paused until missing parts are available.", n, strings.Join(csv, ", "))

	existing, err := os.ReadFile(masterTxt)
	if err == nil && strings.Contains(string(existing), line) {
		return nil // already recorded this exact placeholder; re-discovery must not duplicate it
	}
	return appendBlock(masterTxt, line)
}

func appendConcatFailureHeader(masterTxt string, n int, base string, cause error) error {
	line := fmt.Sprintf(">>> Part %d FAILED: %s <<< %v", n, base, cause)
	return appendBlock(masterTxt, line)
}

func appendMasterTranscript(masterTxt string, n int, shifted string) error {
	header := fmt.Sprintf(">>> Part %d <<<", n)
	block := header
	if strings.TrimSpace(shifted) != "" {
		block = header + "\n" + shifted
	}
	return appendBlock(masterTxt, block)
}

// appendBlock appends block to masterTxt, preceded by a blank line if the
// file already has content.
func appendBlock(masterTxt, block string) error {
	existing, err := os.ReadFile(masterTxt)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read master transcript: %w", err)
	}

	var out strings.Builder
	if len(existing) > 0 {
		out.Write(existing)
		if !strings.HasSuffix(string(existing), "\n") {
			out.WriteString("\n")
		}
		out.WriteString("\n")
	}
	out.WriteString(block)
	out.WriteString("\n")

	dir := filepath.Dir(masterTxt)
	tmp, err := os.CreateTemp(dir, ".atci_txt_*.tmp")
	if err != nil {
		return fmt.Errorf("create temp transcript: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(out.String()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp transcript: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp transcript: %w", err)
	}
	if err := os.Rename(tmpPath, masterTxt); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp transcript into place: %w", err)
	}
	return nil
}

var timestampLineRe = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})\.(\d{3}) --> (\d{2}):(\d{2}):(\d{2})\.(\d{3})$`)

// shiftTimestamps adds offsetSeconds to every timestamp line in a
// transcript, leaving text lines untouched.
func shiftTimestamps(transcript string, offsetSeconds float64) string {
	if strings.TrimSpace(transcript) == "" {
		return transcript
	}
	scanner := bufio.NewScanner(strings.NewReader(transcript))
	var out []string
	for scanner.Scan() {
		line := scanner.Text()
		if m := timestampLineRe.FindStringSubmatch(line); m != nil {
			start := parseHMS(m[1], m[2], m[3], m[4]) + offsetSeconds
			end := parseHMS(m[5], m[6], m[7], m[8]) + offsetSeconds
			out = append(out, fmt.Sprintf("%s --> %s", formatHMS(start), formatHMS(end)))
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func parseHMS(h, m, s, ms string) float64 {
	hh, _ := strconv.Atoi(h)
	mm, _ := strconv.Atoi(m)
	ss, _ := strconv.Atoi(s)
	msms, _ := strconv.Atoi(ms)
	return float64(hh)*3600 + float64(mm)*60 + float64(ss) + float64(msms)/1000
}

func formatHMS(totalSeconds float64) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	totalMs := int64(totalSeconds*1000 + 0.5)
	ms := totalMs % 1000
	totalSecondsInt := totalMs / 1000
	s := totalSecondsInt % 60
	totalMinutes := totalSecondsInt / 60
	m := totalMinutes % 60
	h := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}
