package store

import (
	"database/sql"
	"time"
)

// FetchRun records one attempt to refresh a dataset, for auditing.
type FetchRun struct {
	ID            int64
	StartedAt     time.Time
	FinishedAt    sql.NullTime
	Source        string // "abs", "seifa-csv"
	Release       sql.NullString
	RecordsStored sql.NullInt64
	Success       bool
	ErrorMessage  sql.NullString
}

// StartFetchRun creates a new fetch run record and returns it.
func (s *Store) StartFetchRun(source string) (*FetchRun, error) {
	run := &FetchRun{
		StartedAt: time.Now().UTC(),
		Source:    source,
	}

	result, err := s.db.Exec(`
		INSERT INTO fetch_runs (started_at, source, success)
		VALUES (?, ?, FALSE)
	`, run.StartedAt, run.Source)
	if err != nil {
		return nil, err
	}

	run.ID, err = result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return run, nil
}

// CompleteFetchRun records the outcome of run. A nil err marks it
// successful.
func (s *Store) CompleteFetchRun(run *FetchRun, release string, stored int, err error) error {
	if run == nil {
		return nil
	}

	run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	run.Release = sql.NullString{String: release, Valid: release != ""}
	run.RecordsStored = sql.NullInt64{Int64: int64(stored), Valid: true}
	run.Success = err == nil
	if err != nil {
		run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
	}

	_, execErr := s.db.Exec(`
		UPDATE fetch_runs SET
			finished_at = ?,
			release = ?,
			records_stored = ?,
			success = ?,
			error_message = ?
		WHERE id = ?
	`, run.FinishedAt, run.Release, run.RecordsStored, run.Success, run.ErrorMessage, run.ID)
	return execErr
}

// GetRecentFetchErrors returns recent failed fetch runs, newest first.
func (s *Store) GetRecentFetchErrors(limit int) ([]FetchRun, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, source, release, records_stored, success, error_message
		FROM fetch_runs
		WHERE success = FALSE
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []FetchRun
	for rows.Next() {
		var r FetchRun
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Source, &r.Release,
			&r.RecordsStored, &r.Success, &r.ErrorMessage); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
