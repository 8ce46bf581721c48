// Package storage keeps the history of exported conversations in SQLite.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Record is one export attempt that reached the download manager.
type Record struct {
	ID         string    `json:"id"`
	DownloadID int       `json:"download_id"`
	Title      string    `json:"title"`
	Filename   string    `json:"filename"`
	Path       string    `json:"path"`
	State      string    `json:"state"`
	Messages   int       `json:"messages"`
	Checksum   string    `json:"checksum"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
}

// Storage manages the history database.
type Storage struct {
	db *sql.DB
}

// NewStorage creates or opens the database at dbPath.
func NewStorage(dbPath string) (*Storage, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS exports (
			id TEXT PRIMARY KEY,
			download_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			filename TEXT NOT NULL,
			path TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL,
			messages INTEGER NOT NULL DEFAULT 0,
			checksum TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_exports_created_at ON exports(created_at)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// StoreRecord inserts or replaces a record. The ID is the key.
func (s *Storage) StoreRecord(r *Record) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO exports
		(id, download_id, title, filename, path, state, messages, checksum, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.DownloadID, r.Title, r.Filename, r.Path, r.State, r.Messages, r.Checksum, r.Source, r.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to store record: %w", err)
	}
	return nil
}

const selectColumns = `SELECT id, download_id, title, filename, path, state, messages, checksum, source, created_at FROM exports`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var r Record
	if err := row.Scan(&r.ID, &r.DownloadID, &r.Title, &r.Filename, &r.Path, &r.State, &r.Messages, &r.Checksum, &r.Source, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRecord retrieves a record by its ID.
func (s *Storage) GetRecord(id string) (*Record, error) {
	r, err := scanRecord(s.db.QueryRow(selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return r, nil
}

// ListRecords returns up to limit records, newest first. A limit <= 0 returns all.
func (s *Storage) ListRecords(limit int) ([]*Record, error) {
	query := selectColumns + ` ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// DeleteRecord deletes a record by its ID.
func (s *Storage) DeleteRecord(id string) error {
	res, err := s.db.Exec(`DELETE FROM exports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Clean deletes every record.
func (s *Storage) Clean() error {
	if _, err := s.db.Exec(`DELETE FROM exports`); err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}
	return nil
}
