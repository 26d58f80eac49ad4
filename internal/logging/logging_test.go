package logging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispositionCancelledIsCleanStop(t *testing.T) {
	assert.Equal(t, CleanStop, KindCancelled.Disposition())
}

func TestDispositionOtherKindsFailJob(t *testing.T) {
	for _, k := range []ErrorKind{
		KindConfigMissing, KindToolFailure, KindNoAudio, KindSubtitleUnparsable,
		KindPartOutOfOrder, KindConcatFailure, KindIOFailure, KindTranscriptDisabled,
	} {
		assert.Equal(t, FailJob, k.Disposition(), "kind %s should fail the job", k)
	}
}

func TestProcessingErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	pe := NewError(KindToolFailure, "probe failed", cause)
	assert.ErrorIs(t, pe, cause)
	assert.Contains(t, pe.Error(), "boom")
	assert.Contains(t, pe.Error(), "probe failed")
}

func TestProcessingErrorWithContext(t *testing.T) {
	pe := NewError(KindIOFailure, "write failed", nil).WithContext("path", "/x/a.mp4")
	assert.Equal(t, "/x/a.mp4", pe.Context["path"])
}
