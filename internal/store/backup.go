package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteBackupStore is the local durable backup: a key-value table keyed by
// session ID, written only when the aggregate submission write fails. A
// separate recovery flow reads it back.
type SQLiteBackupStore struct {
	db *sql.DB
}

// OpenSQLiteBackup opens (creating if needed) the backup database at path.
func OpenSQLiteBackup(path string) (*SQLiteBackupStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open backup db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS submission_backups (
		session_id TEXT PRIMARY KEY,
		payload    BLOB NOT NULL,
		saved_at   TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init backup schema: %w", err)
	}

	return &SQLiteBackupStore{db: db}, nil
}

// Write stores (or replaces) the backup payload for a session.
func (s *SQLiteBackupStore) Write(ctx context.Context, sessionID uuid.UUID, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO submission_backups (session_id, payload, saved_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (session_id) DO UPDATE
		 SET payload = excluded.payload, saved_at = excluded.saved_at`,
		sessionID.String(), payload, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	return nil
}

// Read returns the backup payload for a session, sql.ErrNoRows if absent.
func (s *SQLiteBackupStore) Read(ctx context.Context, sessionID uuid.UUID) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM submission_backups WHERE session_id = ?`,
		sessionID.String(),
	).Scan(&payload)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// Close closes the underlying database.
func (s *SQLiteBackupStore) Close() error {
	return s.db.Close()
}
