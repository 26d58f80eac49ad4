// Package subtitle implements the subtitle extractor (C7): probing for an
// embedded text subtitle stream, extracting it to SRT, and converting it
// to this system's plain transcript grammar.
package subtitle

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/asticode/go-astisub"

	"github.com/tassa-yoniso-manasi-karoto/atci/internal/media"
)

// Probe returns the ffmpeg stream index of the first text subtitle
// stream in videoPath, or -1 if none exists.
func Probe(ctx context.Context, tool *media.Tool, videoPath string) (int, error) {
	return tool.FirstSubtitleStreamIndex(ctx, videoPath)
}

// ExtractAndConvert extracts the subtitle stream at streamIndex from
// videoPath and converts it into transcript text, per §4.7's block
// grammar: timestamps with periods instead of commas, multi-line text
// joined with single spaces, blocks separated by blank lines.
//
// Returns ("", nil) — an empty transcript, not an error — if the SRT
// parses but yields zero valid blocks (SubtitleUnparsable is not an error
// to the user per §7).
func ExtractAndConvert(ctx context.Context, tool *media.Tool, videoPath string, streamIndex int) (string, error) {
	tmp, err := os.CreateTemp("", "atci_sub_*.srt")
	if err != nil {
		return "", fmt.Errorf("create temp srt: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := tool.ExtractSubtitle(ctx, videoPath, streamIndex, tmpPath); err != nil {
		return "", err
	}

	subs, err := astisub.OpenFile(tmpPath)
	if err != nil {
		// Unparsable SRT is not fatal: caller records an empty
		// transcript with source: subtitles.
		return "", nil
	}

	var blocks []string
	for _, item := range subs.Items {
		if len(item.Lines) == 0 {
			continue
		}
		var textParts []string
		for _, line := range item.Lines {
			var lineParts []string
			for _, li := range line.Items {
				if li.Text != "" {
					lineParts = append(lineParts, li.Text)
				}
			}
			if joined := strings.TrimSpace(strings.Join(lineParts, " ")); joined != "" {
				textParts = append(textParts, joined)
			}
		}
		text := strings.TrimSpace(strings.Join(textParts, " "))
		if text == "" {
			continue
		}
		stamp := fmt.Sprintf("%s --> %s", formatTimestamp(item.StartAt), formatTimestamp(item.EndAt))
		blocks = append(blocks, stamp+"\n"+text)
	}

	return strings.Join(blocks, "\n\n"), nil
}

func formatTimestamp(d time.Duration) string {
	total := d.Milliseconds()
	ms := total % 1000
	totalSeconds := total / 1000
	s := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	m := totalMinutes % 60
	h := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}
