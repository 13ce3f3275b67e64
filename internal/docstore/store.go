// Package docstore persists small named JSON documents in SQLite.
// Every save replaces the whole document in one statement, so a reader
// never observes a partially written body. Callers own the mapping
// between a document and its Go representation and do full
// read-modify-write cycles.
package docstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store holds named documents in a single SQLite database file.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at dbPath.
func Open(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			name TEXT PRIMARY KEY,
			body BLOB NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create documents table: %w", err)
	}

	return &Store{db: db}, nil
}

// Load returns the last saved body of the named document, or nil if the
// document has never been saved. A missing document is not an error.
func (s *Store) Load(ctx context.Context, name string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT body FROM documents WHERE name = ?",
		name,
	).Scan(&body)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load document %q: %w", name, err)
	}
	return body, nil
}

// Save durably replaces the named document with body. The upsert runs as
// a single statement, so either the new body lands in full or the prior
// one stays intact.
func (s *Store) Save(ctx context.Context, name string, body []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (name, body)
		VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET
			body = excluded.body
	`, name, body)

	if err != nil {
		return fmt.Errorf("save document %q: %w", name, err)
	}
	return nil
}

// Close releases database resources
func (s *Store) Close() error {
	return s.db.Close()
}
