// Package queue implements the disk-backed pending sequence plus
// single-slot "currently processing" job (C4). Writer separation is
// enforced by convention, not locking: only the discovery loop calls
// PromoteHead, and ClearCurrent is called by the processor loop and by
// the cancel-current HTTP handler (§4.3).
package queue

import (
	"database/sql"
	"fmt"
)

type ProcessType string

const (
	ProcessAll     ProcessType = "all"
	ProcessLength  ProcessType = "length"
	ProcessPartial ProcessType = "partial"
)

// Job mirrors the spec's (process_type, {path, time?}) tuple.
type Job struct {
	ProcessType ProcessType
	Path        string
	Time        string // only meaningful for ProcessPartial
}

func (j Job) equals(o Job) bool {
	return j.ProcessType == o.ProcessType && j.Path == o.Path && j.Time == o.Time
}

type Queue struct {
	db *sql.DB
}

func New(db *sql.DB) *Queue {
	return &Queue{db: db}
}

// Enqueue appends job to pending unless it already equals the current job
// or an existing pending entry (invariant I2). The insert and the
// existence checks run in one transaction so a concurrent reader never
// observes a half-added job.
func (q *Queue) Enqueue(job Job) error {
	tx, err := q.db.Begin()
	if err != nil {
		return fmt.Errorf("begin enqueue: %w", err)
	}
	defer tx.Rollback()

	if cur, ok, err := queryCurrent(tx); err != nil {
		return err
	} else if ok && cur.equals(job) {
		return tx.Commit()
	}

	pending, err := queryPending(tx)
	if err != nil {
		return err
	}
	for _, p := range pending {
		if p.equals(job) {
			return tx.Commit()
		}
	}

	var nextSeq int
	if err := tx.QueryRow(`SELECT COALESCE(MAX(seq), -1) + 1 FROM queue`).Scan(&nextSeq); err != nil {
		return fmt.Errorf("next queue seq: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO queue (seq, process_type, path, job_time) VALUES (?, ?, ?, ?)`,
		nextSeq, string(job.ProcessType), job.Path, job.Time); err != nil {
		return fmt.Errorf("insert queue row: %w", err)
	}
	return tx.Commit()
}

func (q *Queue) PeekCurrent() (Job, bool, error) {
	return queryCurrent(q.db)
}

func (q *Queue) Pending() ([]Job, error) {
	return queryPending(q.db)
}

// PromoteHead atomically moves pending[0] into current, but only if
// current is empty. Returns (job, true) if a promotion happened.
func (q *Queue) PromoteHead() (Job, bool, error) {
	tx, err := q.db.Begin()
	if err != nil {
		return Job{}, false, fmt.Errorf("begin promote: %w", err)
	}
	defer tx.Rollback()

	if _, ok, err := queryCurrent(tx); err != nil {
		return Job{}, false, err
	} else if ok {
		return Job{}, false, tx.Commit()
	}

	var id, seq int
	var processType, path, jobTime string
	row := tx.QueryRow(`SELECT id, seq, process_type, path, job_time FROM queue ORDER BY seq ASC LIMIT 1`)
	if err := row.Scan(&id, &seq, &processType, &path, &jobTime); err != nil {
		if err == sql.ErrNoRows {
			return Job{}, false, tx.Commit()
		}
		return Job{}, false, fmt.Errorf("select head: %w", err)
	}

	if _, err := tx.Exec(`INSERT INTO currently_processing (id, process_type, path, job_time) VALUES (1, ?, ?, ?)`,
		processType, path, jobTime); err != nil {
		return Job{}, false, fmt.Errorf("set current: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM queue WHERE id = ?`, id); err != nil {
		return Job{}, false, fmt.Errorf("pop head: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Job{}, false, fmt.Errorf("commit promote: %w", err)
	}
	return Job{ProcessType: ProcessType(processType), Path: path, Time: jobTime}, true, nil
}

// ClearCurrent empties the current slot. Precondition: current is set.
func (q *Queue) ClearCurrent() error {
	_, err := q.db.Exec(`DELETE FROM currently_processing WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("clear current: %w", err)
	}
	return nil
}

// Remove deletes job from pending, erroring if it is not present.
func (q *Queue) Remove(job Job) error {
	res, err := q.db.Exec(`DELETE FROM queue WHERE process_type = ? AND path = ? AND job_time = ?`,
		string(job.ProcessType), job.Path, job.Time)
	if err != nil {
		return fmt.Errorf("remove job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove job rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("job not present in pending queue")
	}
	return nil
}

// Reorder replaces pending with newSequence, a permutation of its current
// contents. It rejects the call (returning an error, pending untouched)
// if the multiset of jobs differs.
func (q *Queue) Reorder(newSequence []Job) error {
	tx, err := q.db.Begin()
	if err != nil {
		return fmt.Errorf("begin reorder: %w", err)
	}
	defer tx.Rollback()

	current, err := queryPending(tx)
	if err != nil {
		return err
	}
	if !samePermutation(current, newSequence) {
		return fmt.Errorf("reorder: new sequence is not a permutation of the existing pending set")
	}

	if _, err := tx.Exec(`DELETE FROM queue`); err != nil {
		return fmt.Errorf("clear queue for reorder: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO queue (seq, process_type, path, job_time) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare reorder insert: %w", err)
	}
	defer stmt.Close()
	for i, j := range newSequence {
		if _, err := stmt.Exec(i, string(j.ProcessType), j.Path, j.Time); err != nil {
			return fmt.Errorf("reorder insert: %w", err)
		}
	}
	return tx.Commit()
}

func samePermutation(a, b []Job) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
	for _, ja := range a {
		found := false
		for i, jb := range b {
			if !used[i] && ja.equals(jb) {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func queryCurrent(q interface {
	QueryRow(query string, args ...interface{}) *sql.Row
}) (Job, bool, error) {
	var processType, path, jobTime string
	row := q.QueryRow(`SELECT process_type, path, job_time FROM currently_processing WHERE id = 1`)
	if err := row.Scan(&processType, &path, &jobTime); err != nil {
		if err == sql.ErrNoRows {
			return Job{}, false, nil
		}
		return Job{}, false, fmt.Errorf("query current: %w", err)
	}
	return Job{ProcessType: ProcessType(processType), Path: path, Time: jobTime}, true, nil
}

func queryPending(q interface {
	Query(query string, args ...interface{}) (*sql.Rows, error)
}) ([]Job, error) {
	rows, err := q.Query(`SELECT process_type, path, job_time FROM queue ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		var processType, path, jobTime string
		if err := rows.Scan(&processType, &path, &jobTime); err != nil {
			return nil, fmt.Errorf("scan pending: %w", err)
		}
		out = append(out, Job{ProcessType: ProcessType(processType), Path: path, Time: jobTime})
	}
	return out, rows.Err()
}
