package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllPriorProcessedTrivialForFirstPart(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "atci.db"))
	require.NoError(t, err)
	defer db.Close()

	s := NewPartStore(db)
	ok, missing, err := s.AllPriorProcessed("show", 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, missing)
}

func TestAllPriorProcessedReportsMissing(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "atci.db"))
	require.NoError(t, err)
	defer db.Close()

	s := NewPartStore(db)
	require.NoError(t, s.Record(PartRecord{BaseName: "show", PartNumber: 1, SourcePath: "/x/show.part1.mp4", ProcessedAt: time.Now()}))

	ok, missing, err := s.AllPriorProcessed("show", 3)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []int{2}, missing)
}

func TestAllPriorProcessedTrueOnceComplete(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "atci.db"))
	require.NoError(t, err)
	defer db.Close()

	s := NewPartStore(db)
	require.NoError(t, s.Record(PartRecord{BaseName: "show", PartNumber: 1, SourcePath: "/x/show.part1.mp4", ProcessedAt: time.Now()}))
	require.NoError(t, s.Record(PartRecord{BaseName: "show", PartNumber: 2, SourcePath: "/x/show.part2.mp4", ProcessedAt: time.Now()}))

	ok, missing, err := s.AllPriorProcessed("show", 3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, missing)
}

func TestRecordIsIdempotentPerPart(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "atci.db"))
	require.NoError(t, err)
	defer db.Close()

	s := NewPartStore(db)
	rec := PartRecord{BaseName: "show", PartNumber: 1, SourcePath: "/x/show.part1.mp4", ProcessedAt: time.Now(), TranscriptLength: 3}
	require.NoError(t, s.Record(rec))
	rec.TranscriptLength = 7
	require.NoError(t, s.Record(rec))

	count, err := s.Count("show")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	exists, err := s.Exists("show", 1)
	require.NoError(t, err)
	assert.True(t, exists)
}
