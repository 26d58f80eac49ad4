// Package logging sets up the process-wide zerolog logger and defines the
// ProcessingError taxonomy used to classify job failures (§7 of the
// behavior this system implements).
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a console-writer zerolog.Logger, mirroring output to an
// optional extra writer (e.g. a per-job buffer for diagnostics).
func New(level zerolog.Level, extra io.Writer) zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	var out io.Writer = console
	if extra != nil {
		out = io.MultiWriter(console, extra)
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// ErrorKind names the taxonomy of §7 without reifying a type per kind.
type ErrorKind string

const (
	KindConfigMissing       ErrorKind = "ConfigMissing"
	KindToolFailure         ErrorKind = "ToolFailure"
	KindNoAudio             ErrorKind = "NoAudio"
	KindSubtitleUnparsable  ErrorKind = "SubtitleUnparsable"
	KindPartOutOfOrder      ErrorKind = "PartOutOfOrder"
	KindConcatFailure       ErrorKind = "ConcatFailure"
	KindIOFailure           ErrorKind = "IOFailure"
	KindCancelled           ErrorKind = "Cancelled"
	KindTranscriptDisabled  ErrorKind = "TranscriptionDisabled"
)

// Disposition says how the processor should react to an error of a given
// kind, mirroring the teacher's ErrorBehavior enum.
type Disposition int

const (
	// FailJob ends the current job and counts it as a failure.
	FailJob Disposition = iota
	// LogOnly records the error but lets the job continue.
	LogOnly
	// CleanStop is a cooperative-cancellation stop: no partial output,
	// job simply ends without being treated as a failure.
	CleanStop
)

func (k ErrorKind) Disposition() Disposition {
	switch k {
	case KindCancelled:
		return CleanStop
	default:
		return FailJob
	}
}

// ProcessingError wraps an underlying error with the taxonomy kind and
// free-form context fields, so both logs and HTTP responses can branch on
// Kind without string-matching messages.
type ProcessingError struct {
	Kind    ErrorKind
	Message string
	Err     error
	Context map[string]interface{}
}

func (e *ProcessingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

func NewError(kind ErrorKind, message string, err error) *ProcessingError {
	return &ProcessingError{Kind: kind, Message: message, Err: err}
}

func (e *ProcessingError) WithContext(key string, value interface{}) *ProcessingError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}
