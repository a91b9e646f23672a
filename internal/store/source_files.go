package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/lox/ausdex/internal/models"
)

// ArchiveSourceFile stores a gzip-compressed copy of a downloaded file.
// A payload already archived under the same hash is skipped.
func (s *Store) ArchiveSourceFile(ctx context.Context, f models.SourceFile, payload []byte) error {
	_, err := s.StoreSourceFile(ctx, f, payload)
	return err
}

// StoreSourceFile archives payload and returns its row ID, or 0 if the
// payload was a duplicate.
func (s *Store) StoreSourceFile(ctx context.Context, f models.SourceFile, payload []byte) (int64, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return 0, fmt.Errorf("compress payload: %w", err)
	}
	if err := gz.Close(); err != nil {
		return 0, fmt.Errorf("close gzip: %w", err)
	}

	hash := sha256.Sum256(payload)
	hashHex := hex.EncodeToString(hash[:])
	if f.PayloadHash != "" && f.PayloadHash != hashHex {
		return 0, fmt.Errorf("payload hash mismatch for %s", f.Name)
	}
	if f.FetchedAt.IsZero() {
		f.FetchedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO source_files (fetched_at, source, name, url, size_bytes, payload_compressed, payload_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(payload_hash) DO NOTHING
	`, f.FetchedAt.UTC(), f.Source, f.Name, f.URL, int64(len(payload)), buf.Bytes(), hashHex)
	if err != nil {
		return 0, fmt.Errorf("insert source file: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil || n == 0 {
		return 0, err
	}
	return result.LastInsertId()
}

// GetSourceFilePayload retrieves and decompresses an archived file.
func (s *Store) GetSourceFilePayload(id int64) ([]byte, error) {
	var compressed []byte
	err := s.db.QueryRow(`SELECT payload_compressed FROM source_files WHERE id = ?`, id).
		Scan(&compressed)
	if err != nil {
		return nil, err
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("create gzip reader: %w", err)
	}
	defer gz.Close()

	return io.ReadAll(gz)
}

// GetSourceFileByHash returns the archived file with the given payload
// hash, or nil if there is none.
func (s *Store) GetSourceFileByHash(hash string) (*models.SourceFile, error) {
	row := s.db.QueryRow(`
		SELECT id, fetched_at, source, name, url, size_bytes, payload_hash
		FROM source_files WHERE payload_hash = ?
	`, hash)

	var f models.SourceFile
	var url sql.NullString
	err := row.Scan(&f.ID, &f.FetchedAt, &f.Source, &f.Name, &url, &f.SizeBytes, &f.PayloadHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	f.URL = url.String
	return &f, nil
}

// SourceFileStats contains storage statistics for the archive.
type SourceFileStats struct {
	TotalCount      int
	TotalSizeBytes  int64
	StoredBytes     int64
	OldestFetchedAt time.Time
	NewestFetchedAt time.Time
	CountBySource   map[string]int
}

func (s *Store) GetSourceFileStats() (*SourceFileStats, error) {
	stats := &SourceFileStats{
		CountBySource: make(map[string]int),
	}

	row := s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(size_bytes), 0), COALESCE(SUM(LENGTH(payload_compressed)), 0)
		FROM source_files
	`)
	if err := row.Scan(&stats.TotalCount, &stats.TotalSizeBytes, &stats.StoredBytes); err != nil {
		return nil, err
	}
	if stats.TotalCount == 0 {
		return stats, nil
	}

	// Aggregates lose the column type, so read the bounds as plain rows.
	if err := s.db.QueryRow(`SELECT fetched_at FROM source_files ORDER BY fetched_at ASC LIMIT 1`).
		Scan(&stats.OldestFetchedAt); err != nil {
		return nil, err
	}
	if err := s.db.QueryRow(`SELECT fetched_at FROM source_files ORDER BY fetched_at DESC LIMIT 1`).
		Scan(&stats.NewestFetchedAt); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT source, COUNT(*) FROM source_files GROUP BY source`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return nil, err
		}
		stats.CountBySource[source] = count
	}

	return stats, rows.Err()
}

// CleanupOldSourceFiles deletes archived files older than retentionDays.
// Returns the number of deleted records.
func (s *Store) CleanupOldSourceFiles(retentionDays int) (int64, error) {
	result, err := s.db.Exec(`
		DELETE FROM source_files
		WHERE fetched_at < DATE('now', '-' || ? || ' days')
	`, retentionDays)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
