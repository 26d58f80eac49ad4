package store

import (
	"database/sql"
	"fmt"
	"time"
)

// PartRecord tracks one processed VideoPart (§3), unique by (base, N) and
// by source_path. The set of recorded parts for a base is a monotone
// predicate: once processed, a part is never un-recorded.
type PartRecord struct {
	BaseName         string
	PartNumber       int
	SourcePath       string
	ProcessedAt      time.Time
	TranscriptLength int
}

type PartStore struct {
	db *sql.DB
}

func NewPartStore(db *sql.DB) *PartStore {
	return &PartStore{db: db}
}

// AllPriorProcessed reports whether every part 1..n-1 of base has been
// recorded, per invariant I4, along with the part numbers still missing.
// n == 1 is trivially satisfiable.
func (s *PartStore) AllPriorProcessed(base string, n int) (bool, []int, error) {
	if n <= 1 {
		return true, nil, nil
	}
	rows, err := s.db.Query(`SELECT part_number FROM video_parts WHERE base_name = ? AND part_number < ?`, base, n)
	if err != nil {
		return false, nil, fmt.Errorf("query prior parts: %w", err)
	}
	defer rows.Close()

	present := make(map[int]bool)
	for rows.Next() {
		var num int
		if err := rows.Scan(&num); err != nil {
			return false, nil, fmt.Errorf("scan part number: %w", err)
		}
		present[num] = true
	}
	if err := rows.Err(); err != nil {
		return false, nil, err
	}

	var missing []int
	for k := 1; k < n; k++ {
		if !present[k] {
			missing = append(missing, k)
		}
	}
	return len(missing) == 0, missing, nil
}

func (s *PartStore) Record(r PartRecord) error {
	_, err := s.db.Exec(`INSERT INTO video_parts (base_name, part_number, source_path, processed_at, transcript_length)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(base_name, part_number) DO UPDATE SET
			source_path=excluded.source_path,
			processed_at=excluded.processed_at,
			transcript_length=excluded.transcript_length`,
		r.BaseName, r.PartNumber, r.SourcePath, r.ProcessedAt.Unix(), r.TranscriptLength)
	if err != nil {
		return fmt.Errorf("record part %s #%d: %w", r.BaseName, r.PartNumber, err)
	}
	return nil
}

func (s *PartStore) Count(base string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM video_parts WHERE base_name = ?`, base).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count parts %s: %w", base, err)
	}
	return n, nil
}

// Exists reports whether a specific part number of base has already been
// recorded as processed.
func (s *PartStore) Exists(base string, n int) (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM video_parts WHERE base_name = ? AND part_number = ?`, base, n).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check part %s #%d: %w", base, n, err)
	}
	return count > 0, nil
}
