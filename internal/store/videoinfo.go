package store

import (
	"database/sql"
	"fmt"
	"time"
)

// VideoInfo is a cache row mirroring the per-video on-disk truth (§3). On
// disagreement with disk, disk wins; Index is rebuilt wholesale after
// every job rather than patched incrementally, to keep that invariant
// trivially true.
type VideoInfo struct {
	LogicalName          string
	AbsolutePath         string
	Ctime                time.Time
	TranscriptPresent    bool
	TranscriptLineCount  int
	TranscriptMtime      time.Time
	Length               string
	Source               string
}

// Index is the in-process mirror of the video_info table.
type Index struct {
	db *sql.DB
}

func NewIndex(db *sql.DB) *Index {
	return &Index{db: db}
}

// Rebuild replaces the entire video_info table with rows, inside one
// transaction, so readers never observe a half-rebuilt index.
func (idx *Index) Rebuild(rows []VideoInfo) error {
	tx, err := idx.db.Begin()
	if err != nil {
		return fmt.Errorf("begin rebuild: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM video_info"); err != nil {
		return fmt.Errorf("clear video_info: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO video_info
		(logical_name, absolute_path, ctime, transcript_present, transcript_line_count, transcript_mtime, length, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		present := 0
		if r.TranscriptPresent {
			present = 1
		}
		if _, err := stmt.Exec(r.LogicalName, r.AbsolutePath, r.Ctime.Unix(), present,
			r.TranscriptLineCount, r.TranscriptMtime.Unix(), r.Length, r.Source); err != nil {
			return fmt.Errorf("insert video_info row %s: %w", r.LogicalName, err)
		}
	}
	return tx.Commit()
}

func (idx *Index) Get(logicalName string) (VideoInfo, bool, error) {
	row := idx.db.QueryRow(`SELECT logical_name, absolute_path, ctime, transcript_present,
		transcript_line_count, transcript_mtime, length, source
		FROM video_info WHERE logical_name = ?`, logicalName)

	var r VideoInfo
	var ctime, mtime int64
	var present int
	if err := row.Scan(&r.LogicalName, &r.AbsolutePath, &ctime, &present,
		&r.TranscriptLineCount, &mtime, &r.Length, &r.Source); err != nil {
		if err == sql.ErrNoRows {
			return VideoInfo{}, false, nil
		}
		return VideoInfo{}, false, fmt.Errorf("get video_info %s: %w", logicalName, err)
	}
	r.Ctime = time.Unix(ctime, 0)
	r.TranscriptMtime = time.Unix(mtime, 0)
	r.TranscriptPresent = present != 0
	return r, true, nil
}

func (idx *Index) All() ([]VideoInfo, error) {
	rows, err := idx.db.Query(`SELECT logical_name, absolute_path, ctime, transcript_present,
		transcript_line_count, transcript_mtime, length, source FROM video_info ORDER BY logical_name`)
	if err != nil {
		return nil, fmt.Errorf("list video_info: %w", err)
	}
	defer rows.Close()

	var out []VideoInfo
	for rows.Next() {
		var r VideoInfo
		var ctime, mtime int64
		var present int
		if err := rows.Scan(&r.LogicalName, &r.AbsolutePath, &ctime, &present,
			&r.TranscriptLineCount, &mtime, &r.Length, &r.Source); err != nil {
			return nil, fmt.Errorf("scan video_info: %w", err)
		}
		r.Ctime = time.Unix(ctime, 0)
		r.TranscriptMtime = time.Unix(mtime, 0)
		r.TranscriptPresent = present != 0
		out = append(out, r)
	}
	return out, rows.Err()
}
