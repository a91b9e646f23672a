package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lox/ausdex/internal/models"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens (creating if needed) the SQLite database at path and applies
// migrations.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	s := New(db)
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

// ReplaceCPI swaps the stored CPI table for the observations of one
// release.
func (s *Store) ReplaceCPI(release string, obs []models.CPIObservation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM cpi_observations`); err != nil {
		return fmt.Errorf("clear cpi: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO cpi_observations (location, quarter_date, value, release)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(location, quarter_date) DO UPDATE SET
			value = excluded.value,
			release = excluded.release
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range obs {
		if _, err := stmt.Exec(o.Location, o.QuarterDate.Format(dateLayout), o.Value, release); err != nil {
			return fmt.Errorf("insert %s %s: %w", o.Location, o.QuarterDate.Format(dateLayout), err)
		}
	}
	return tx.Commit()
}

// CPIObservations returns every stored observation ordered by location and
// date.
func (s *Store) CPIObservations() ([]models.CPIObservation, error) {
	rows, err := s.db.Query(`
		SELECT location, SUBSTR(quarter_date, 1, 10), value
		FROM cpi_observations
		ORDER BY location, quarter_date
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var obs []models.CPIObservation
	for rows.Next() {
		var o models.CPIObservation
		var dateStr string
		if err := rows.Scan(&o.Location, &dateStr, &o.Value); err != nil {
			return nil, err
		}
		o.QuarterDate, err = time.Parse(dateLayout, dateStr)
		if err != nil {
			return nil, fmt.Errorf("parse quarter date %q: %w", dateStr, err)
		}
		obs = append(obs, o)
	}
	return obs, rows.Err()
}

// CPIRelease returns the release the stored CPI table came from, or "" if
// none has been loaded.
func (s *Store) CPIRelease() (string, error) {
	var release sql.NullString
	err := s.db.QueryRow(`SELECT MAX(release) FROM cpi_observations`).Scan(&release)
	if err != nil {
		return "", err
	}
	return release.String, nil
}

// LatestCPIDate is the most recent quarter stored, zero if empty.
func (s *Store) LatestCPIDate() (time.Time, error) {
	var dateStr sql.NullString
	err := s.db.QueryRow(`SELECT MAX(SUBSTR(quarter_date, 1, 10)) FROM cpi_observations`).Scan(&dateStr)
	if err != nil {
		return time.Time{}, err
	}
	if !dateStr.Valid {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, dateStr.String)
}

// UpsertSeifaRecords inserts or replaces suburb rows, returning how many
// were written.
func (s *Store) UpsertSeifaRecords(records []models.SeifaRecord) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO seifa_scores (suburb, year, ier_score, irsd_score, ieo_score, irsad_score, rirsa_score, uirsa_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(suburb, year) DO UPDATE SET
			ier_score = excluded.ier_score,
			irsd_score = excluded.irsd_score,
			ieo_score = excluded.ieo_score,
			irsad_score = excluded.irsad_score,
			rirsa_score = excluded.rirsa_score,
			uirsa_score = excluded.uirsa_score
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	n := 0
	for _, r := range records {
		if _, err := stmt.Exec(r.Suburb, r.Year, r.IER, r.IRSD, r.IEO, r.IRSAD, r.RIRSA, r.UIRSA); err != nil {
			return 0, fmt.Errorf("insert %s %g: %w", r.Suburb, r.Year, err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// SeifaRecords returns the whole suburb table, so a Store can back a
// seifa.Dataset.
func (s *Store) SeifaRecords(ctx context.Context) ([]models.SeifaRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT suburb, year, ier_score, irsd_score, ieo_score, irsad_score, rirsa_score, uirsa_score
		FROM seifa_scores
		ORDER BY suburb, year
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.SeifaRecord
	for rows.Next() {
		var r models.SeifaRecord
		if err := rows.Scan(&r.Suburb, &r.Year, &r.IER, &r.IRSD, &r.IEO, &r.IRSAD, &r.RIRSA, &r.UIRSA); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// SeifaSuburbCount is the number of distinct suburbs stored.
func (s *Store) SeifaSuburbCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(DISTINCT suburb) FROM seifa_scores`).Scan(&n)
	return n, err
}
