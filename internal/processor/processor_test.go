package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tassa-yoniso-manasi-karoto/atci/internal/logging"
)

func TestParseTimeSpecAcceptsPlainSeconds(t *testing.T) {
	v, err := parseTimeSpec("125.5")
	assert.NoError(t, err)
	assert.Equal(t, 125.5, v)
}

func TestParseTimeSpecAcceptsMMSS(t *testing.T) {
	v, err := parseTimeSpec("02:05")
	assert.NoError(t, err)
	assert.Equal(t, 125.0, v)
}

func TestParseTimeSpecAcceptsHHMMSS(t *testing.T) {
	v, err := parseTimeSpec("01:02:05")
	assert.NoError(t, err)
	assert.Equal(t, float64(3600+120+5), v)
}

func TestParseTimeSpecRejectsGarbage(t *testing.T) {
	_, err := parseTimeSpec("not-a-time")
	assert.Error(t, err)
}

func TestTruncateBeforeDropsFromMatchOnward(t *testing.T) {
	transcript := "00:00:00.000 --> 00:00:01.000\nfirst\n\n00:00:05.000 --> 00:00:06.000\nsecond\n\n00:00:10.000 --> 00:00:11.000\nthird"
	out := truncateBefore(transcript, "00:00:05.000")
	assert.Equal(t, "00:00:00.000 --> 00:00:01.000\nfirst\n\n", out)
}

func TestTruncateBeforeNoMatchIsNoop(t *testing.T) {
	transcript := "00:00:00.000 --> 00:00:01.000\nfirst"
	out := truncateBefore(transcript, "99:00:00.000")
	assert.Equal(t, transcript, out)
}

func TestTruncateBeforeEmptyTranscript(t *testing.T) {
	assert.Equal(t, "", truncateBefore("", "00:00:01.000"))
}

func TestShiftTranscriptTimestamps(t *testing.T) {
	in := "00:00:00.000 --> 00:00:01.000\ntext line"
	out := shiftTranscriptTimestamps(in, 30)
	assert.Equal(t, "00:00:30.000 --> 00:00:31.000\ntext line", out)
}

func TestShiftTranscriptTimestampsPreservesFirstBlock(t *testing.T) {
	// processVideo's two callees (stt.vttToTranscript, subtitle.ExtractAndConvert)
	// both already return cue-first text with no leading header line, so the
	// first block here must survive the shift untouched aside from its timestamps.
	in := "00:00:00.000 --> 00:00:01.000\nhello\n\n00:00:01.000 --> 00:00:02.000\nworld"
	out := shiftTranscriptTimestamps(in, 5)
	assert.Equal(t, "00:00:05.000 --> 00:00:06.000\nhello\n\n00:00:06.000 --> 00:00:07.000\nworld", out)
}

func TestFormatHMS(t *testing.T) {
	assert.Equal(t, "01:02:03", formatHMS(3723))
}

func TestIsCleanStopDetectsCancellation(t *testing.T) {
	err := logging.NewError(logging.KindCancelled, "stt cancelled", context.Canceled)
	assert.True(t, isCleanStop(err))
}

func TestIsCleanStopFalseForOrdinaryFailure(t *testing.T) {
	err := logging.NewError(logging.KindToolFailure, "ffprobe failed", errors.New("exit 1"))
	assert.False(t, isCleanStop(err))
}

func TestIsCleanStopFalseForNonProcessingError(t *testing.T) {
	assert.False(t, isCleanStop(errors.New("plain error")))
	assert.False(t, isCleanStop(nil))
}
