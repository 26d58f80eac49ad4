// Package processor implements the processor loop (C6): it consumes the
// queue's current slot once per tick, drives the job end-to-end through
// the subtitle extractor, STT driver, and parts assembler, and clears the
// slot on completion regardless of outcome.
package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tassa-yoniso-manasi-karoto/atci/internal/cancel"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/config"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/executils"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/logging"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/media"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/metrics"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/parts"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/pathmodel"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/queue"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/store"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/stt"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/subtitle"
)

const Interval = 2 * time.Second

const hookWait = 5 * time.Second

type Loop struct {
	Config    *config.Provider
	Queue     *queue.Queue
	Tool      *media.Tool
	PartStore *store.PartStore
	Index     *store.Index
	CancelMgr *cancel.Manager
	Log       zerolog.Logger

	assembler *parts.Assembler
}

func New(cfg *config.Provider, q *queue.Queue, tool *media.Tool, partStore *store.PartStore, idx *store.Index, cm *cancel.Manager, log zerolog.Logger) *Loop {
	return &Loop{
		Config: cfg, Queue: q, Tool: tool, PartStore: partStore, Index: idx, CancelMgr: cm, Log: log,
		assembler: parts.New(tool, partStore),
	}
}

func (l *Loop) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.Tick()
		}
	}
}

// Tick runs at most one job synchronously to completion.
func (l *Loop) Tick() {
	job, ok, err := l.Queue.PeekCurrent()
	if err != nil {
		l.Log.Error().Err(err).Msg("peek current failed")
		return
	}
	if !ok {
		return
	}

	metrics.Processing.Set(1)
	token := l.CancelMgr.Begin()
	defer l.CancelMgr.End(token)

	jobErr := l.run(token.Context(), job)
	switch {
	case jobErr == nil:
		l.runHook(l.Config.Snapshot().ProcessingSuccessCommand, job.Path)
		metrics.JobsProcessedTotal.WithLabelValues(string(job.ProcessType), "success").Inc()
	case isCleanStop(jobErr) || token.Cancelled():
		// Cancellation (§5): no partial outputs remain, and this is not
		// surfaced to the user as a failure — neither hook fires.
		l.Log.Debug().Str("path", job.Path).Msg("job cancelled")
		metrics.JobsProcessedTotal.WithLabelValues(string(job.ProcessType), "cancelled").Inc()
	default:
		l.runHook(l.Config.Snapshot().ProcessingFailureCommand, job.Path)
		l.Log.Error().Err(jobErr).Str("path", job.Path).Msg("job failed")
		metrics.JobsProcessedTotal.WithLabelValues(string(job.ProcessType), "failure").Inc()
	}
	metrics.Processing.Set(0)

	if err := l.Queue.ClearCurrent(); err != nil {
		l.Log.Error().Err(err).Msg("clear current failed")
	}

	if pending, err := l.Queue.Pending(); err == nil {
		metrics.QueueDepth.Set(float64(len(pending)))
	}

	if err := l.rebuildIndex(); err != nil {
		l.Log.Warn().Err(err).Msg("video index rebuild failed (non-fatal)")
	}
}

// isCleanStop reports whether err is a cancellation per §7's Disposition
// table, as opposed to a genuine job failure.
func isCleanStop(err error) bool {
	var pe *logging.ProcessingError
	if errors.As(err, &pe) {
		return pe.Kind.Disposition() == logging.CleanStop
	}
	return false
}

// rebuildIndex walks every watch directory and replaces the video_info
// table wholesale, so a disagreement between disk and cache never
// survives more than one job (§3).
func (l *Loop) rebuildIndex() error {
	snap := l.Config.Snapshot()
	var rows []store.VideoInfo
	for _, root := range snap.WatchDirectories {
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
			if !pathmodel.IsAllowedExtension(ext) {
				return nil
			}
			if _, _, _, ok := pathmodel.ParsePart(path); ok {
				return nil // part files are transient, not indexed
			}

			row := store.VideoInfo{
				LogicalName:  strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
				AbsolutePath: path,
				Ctime:        info.ModTime(),
			}

			txtPath := pathmodel.Sidecar(path, ".txt")
			if txtInfo, err := os.Stat(txtPath); err == nil {
				row.TranscriptPresent = true
				row.TranscriptMtime = txtInfo.ModTime()
				if content, err := os.ReadFile(txtPath); err == nil {
					row.TranscriptLineCount = len(strings.Split(strings.TrimRight(string(content), "\n"), "\n"))
				}
			}

			metaPath := pathmodel.Sidecar(path, ".meta")
			if meta, err := store.ReadMeta(metaPath); err == nil {
				row.Length = meta["length"]
				row.Source = meta["source"]
			}

			rows = append(rows, row)
			return nil
		})
		if err != nil {
			return fmt.Errorf("walk watch directory %s: %w", root, err)
		}
	}
	if err := l.Index.Rebuild(rows); err != nil {
		return err
	}
	metrics.IndexSize.Set(float64(len(rows)))
	l.Log.Debug().Str("count", humanize.Comma(int64(len(rows)))).Msg("video index rebuilt")
	return nil
}

func (l *Loop) run(ctx context.Context, job queue.Job) error {
	switch job.ProcessType {
	case queue.ProcessLength:
		return l.captureLength(ctx, job.Path)
	case queue.ProcessPartial:
		return l.partialReprocess(ctx, job.Path, job.Time)
	default:
		return l.processAll(ctx, job.Path)
	}
}

func (l *Loop) processAll(ctx context.Context, videoPath string) error {
	if base, _, ext, ok := pathmodel.ParsePart(videoPath); ok {
		outcome, err := l.assembler.Process(ctx, videoPath, l.processVideo)
		if err != nil {
			return err
		}
		if outcome.NextPartExists {
			if enqErr := l.Queue.Enqueue(queue.Job{ProcessType: queue.ProcessAll, Path: outcome.NextPartPath}); enqErr != nil {
				l.Log.Warn().Err(enqErr).Msg("enqueue next part failed")
			}
		}
		masterVideo, _, _ := pathmodel.MasterPaths(filepath.Dir(videoPath), base, ext)
		return l.captureLength(ctx, masterVideo)
	}

	result, err := l.processVideo(ctx, videoPath)
	if err != nil {
		return err
	}

	txtPath := pathmodel.Sidecar(videoPath, ".txt")
	if err := writeAtomic(txtPath, result.Transcript); err != nil {
		return logging.NewError(logging.KindIOFailure, "write transcript", err)
	}

	metaPath := pathmodel.Sidecar(videoPath, ".meta")
	if err := store.UpdateField(metaPath, "source", result.Source); err != nil {
		l.Log.Warn().Err(err).Msg("meta write failed (non-fatal)")
	}

	return l.captureLength(ctx, videoPath)
}

// processVideo runs §4.7 then §4.8 against a single video file (used both
// directly and as the parts assembler's per-part callback).
func (l *Loop) processVideo(ctx context.Context, videoPath string) (parts.VideoResult, error) {
	snap := l.Config.Snapshot()

	if snap.SubtitlesAllowed() {
		idx, err := subtitle.Probe(ctx, l.Tool, videoPath)
		if err != nil {
			return parts.VideoResult{}, logging.NewError(logging.KindToolFailure, "probe subtitle streams", err)
		}
		if idx >= 0 {
			text, err := subtitle.ExtractAndConvert(ctx, l.Tool, videoPath, idx)
			if err != nil {
				return parts.VideoResult{}, err
			}
			return parts.VideoResult{Transcript: text, Source: "subtitles"}, nil
		}
	}

	if !snap.WhisperAllowed() {
		return parts.VideoResult{}, logging.NewError(logging.KindTranscriptDisabled, "whisper disabled and no subtitle track", nil)
	}

	metaPath := pathmodel.Sidecar(videoPath, ".meta")
	prompt, _, _ := store.GetField(metaPath, "prompt")

	result, err := stt.Run(ctx, l.Tool, snap.WhisperCLIPath, snap.Model(), prompt, videoPath)
	if err != nil {
		return parts.VideoResult{}, err
	}
	return parts.VideoResult{Transcript: result.Transcript, Source: result.ModelID}, nil
}

func (l *Loop) captureLength(ctx context.Context, videoPath string) error {
	seconds, err := l.Tool.DurationFromStderr(ctx, videoPath)
	if err != nil {
		return logging.NewError(logging.KindToolFailure, "capture length", err)
	}
	metaPath := pathmodel.Sidecar(videoPath, ".meta")
	if err := store.UpdateField(metaPath, "length", formatHMS(seconds)); err != nil {
		l.Log.Warn().Err(err).Msg("length meta write failed (non-fatal)")
	}
	return nil
}

func formatHMS(totalSeconds float64) string {
	total := int64(totalSeconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func writeAtomic(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".atci_txt_*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// runHook spawns command with videoPath piped to stdin, waiting at most
// hookWait before abandoning the wait (not the process); failures are
// logged only, never fatal (§4.5 steps 5-6).
func (l *Loop) runHook(command, videoPath string) {
	if command == "" {
		return
	}
	cmd := executils.NewCommand("sh", "-c", command)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		l.Log.Warn().Err(err).Msg("hook stdin pipe failed")
		return
	}
	if err := cmd.Start(); err != nil {
		l.Log.Warn().Err(err).Str("command", command).Msg("hook spawn failed")
		return
	}
	go func() {
		io.WriteString(stdin, videoPath)
		stdin.Close()
	}()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			l.Log.Warn().Err(err).Str("command", command).Msg("hook exited non-zero")
		}
	case <-time.After(hookWait):
		l.Log.Debug().Str("command", command).Msg("hook still running past bounded wait; not awaiting further")
	}
}

func (l *Loop) partialReprocess(ctx context.Context, videoPath, timeSpec string) error {
	seconds, err := parseTimeSpec(timeSpec)
	if err != nil {
		return logging.NewError(logging.KindIOFailure, "parse partial reprocess time", err)
	}

	txtPath := pathmodel.Sidecar(videoPath, ".txt")
	original, err := os.ReadFile(txtPath)
	if err != nil && !os.IsNotExist(err) {
		return logging.NewError(logging.KindIOFailure, "read existing transcript", err)
	}

	truncated := truncateBefore(string(original), timeSpec)

	tmpClipPath := filepath.Join(os.TempDir(), "atci_partial_"+uuid.NewString()+filepath.Ext(videoPath))
	defer os.Remove(tmpClipPath)

	if err := l.Tool.ExtractClip(ctx, videoPath, seconds, tmpClipPath); err != nil {
		return logging.NewError(logging.KindToolFailure, "extract partial clip", err)
	}

	result, err := l.processVideo(ctx, tmpClipPath)
	if err != nil {
		return err
	}

	shifted := shiftTranscriptTimestamps(result.Transcript, seconds)

	final := truncated
	if strings.TrimSpace(final) != "" && strings.TrimSpace(shifted) != "" {
		final = strings.TrimRight(final, "\n") + "\n\n" + shifted
	} else {
		final += shifted
	}

	if err := writeAtomic(txtPath, final); err != nil {
		return logging.NewError(logging.KindIOFailure, "write partial transcript", err)
	}
	return nil
}

func parseTimeSpec(spec string) (float64, error) {
	if seconds, err := strconv.ParseFloat(spec, 64); err == nil {
		return seconds, nil
	}
	segments := strings.Split(spec, ":")
	var h, m int
	var s float64
	var err error
	switch len(segments) {
	case 2:
		if m, err = strconv.Atoi(segments[0]); err != nil {
			return 0, fmt.Errorf("parse minutes: %w", err)
		}
		if s, err = strconv.ParseFloat(segments[1], 64); err != nil {
			return 0, fmt.Errorf("parse seconds: %w", err)
		}
	case 3:
		if h, err = strconv.Atoi(segments[0]); err != nil {
			return 0, fmt.Errorf("parse hours: %w", err)
		}
		if m, err = strconv.Atoi(segments[1]); err != nil {
			return 0, fmt.Errorf("parse minutes: %w", err)
		}
		if s, err = strconv.ParseFloat(segments[2], 64); err != nil {
			return 0, fmt.Errorf("parse seconds: %w", err)
		}
	default:
		return 0, fmt.Errorf("unrecognized time spec %q", spec)
	}
	return float64(h)*3600 + float64(m)*60 + s, nil
}

// truncateBefore drops everything from the first block whose timestamp
// line contains the literal t onward. If t matches nothing (greater than
// any timestamp present), the transcript is returned unchanged — a no-op
// truncation per §8's boundary behavior.
func truncateBefore(transcript, t string) string {
	if transcript == "" {
		return ""
	}
	blocks := strings.Split(transcript, "\n\n")
	for i, b := range blocks {
		lines := strings.SplitN(b, "\n", 2)
		if len(lines) == 0 {
			continue
		}
		if strings.Contains(lines[0], t) {
			kept := blocks[:i]
			out := strings.Join(kept, "\n\n")
			if out != "" {
				out += "\n\n"
			}
			return out
		}
	}
	return transcript
}

var partialTimestampLineRe = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})\.(\d{3}) --> (\d{2}):(\d{2}):(\d{2})\.(\d{3})$`)

// shiftTranscriptTimestamps adds offsetSeconds to every timestamp line in
// transcript, leaving all other lines untouched (used for the partial
// reprocess stitch, §4.10).
func shiftTranscriptTimestamps(transcript string, offsetSeconds float64) string {
	if strings.TrimSpace(transcript) == "" {
		return transcript
	}
	lines := strings.Split(transcript, "\n")
	for i, line := range lines {
		m := partialTimestampLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		start := parseHMSms(m[1], m[2], m[3], m[4]) + offsetSeconds
		end := parseHMSms(m[5], m[6], m[7], m[8]) + offsetSeconds
		lines[i] = fmt.Sprintf("%s --> %s", formatHMSms(start), formatHMSms(end))
	}
	return strings.Join(lines, "\n")
}

func parseHMSms(h, m, s, ms string) float64 {
	hh, _ := strconv.Atoi(h)
	mm, _ := strconv.Atoi(m)
	ss, _ := strconv.Atoi(s)
	msms, _ := strconv.Atoi(ms)
	return float64(hh)*3600 + float64(mm)*60 + float64(ss) + float64(msms)/1000
}

func formatHMSms(totalSeconds float64) string {
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
