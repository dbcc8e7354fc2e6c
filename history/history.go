// Package history stores Transfer Records so a torrent hash is processed at
// most once.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	// Import the SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

// Record is one processed torrent.
type Record struct {
	Hash      string
	Name      string
	Scenario  string
	Source    string
	Target    string
	CreatedAt time.Time
}

// ErrNotFound is returned by Delete when no record matches.
var ErrNotFound = errors.New("history record not found")

// Store persists records in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS transfer_history (
		hash TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		scenario TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		target TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Has reports whether hash was already processed.
func (s *Store) Has(ctx context.Context, hash string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM transfer_history WHERE hash = ?`, normalize(hash)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query history: %w", err)
	}
	return true, nil
}

// Record appends a record. An existing record for the same hash is kept.
func (s *Store) Record(ctx context.Context, r Record) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO transfer_history (hash, name, scenario, source, target, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		normalize(r.Hash), r.Name, r.Scenario, r.Source, r.Target, r.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// List returns the newest records first. A limit <= 0 returns all records.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	query := `SELECT hash, name, scenario, source, target, created_at FROM transfer_history ORDER BY created_at DESC, hash`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var created string
		if err := rows.Scan(&r.Hash, &r.Name, &r.Scenario, &r.Source, &r.Target, &created); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, created)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Count returns the number of records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transfer_history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return n, nil
}

// Delete forgets a single hash so it will be processed again.
func (s *Store) Delete(ctx context.Context, hash string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transfer_history WHERE hash = ?`, normalize(hash))
	if err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear removes every record and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transfer_history`)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return res.RowsAffected()
}

func normalize(hash string) string {
	return strings.ToLower(strings.TrimSpace(hash))
}
