package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Register the sqlite3 database/sql driver.
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	thread_id  TEXT PRIMARY KEY,
	step       INTEGER NOT NULL,
	data       BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

// SQLiteSaver stores checkpoints in a SQLite database file.
type SQLiteSaver struct {
	db *sql.DB
}

// NewSQLiteSaver opens (or creates) the database at dsn and bootstraps the
// checkpoints table. Use ":memory:" for a throwaway database.
func NewSQLiteSaver(ctx context.Context, dsn string) (*SQLiteSaver, error) {
	if dsn == "" {
		dsn = "checkpoints.db"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create checkpoints table: %w", err)
	}

	return &SQLiteSaver{db: db}, nil
}

// Get loads the checkpoint of threadID.
func (s *SQLiteSaver) Get(ctx context.Context, threadID string) (*Checkpoint, error) {
	var data []byte

	err := s.db.QueryRowContext(ctx, `SELECT data FROM checkpoints WHERE thread_id = ?`, threadID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoint: %w", err)
	}

	return decode(data)
}

// Put upserts cp.
func (s *SQLiteSaver) Put(ctx context.Context, cp *Checkpoint) error {
	data, err := encode(cp)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (thread_id, step, data, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET step = excluded.step, data = excluded.data, updated_at = excluded.updated_at`,
		cp.ThreadID, cp.Step, data, cp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	return nil
}

// Delete removes the checkpoint of threadID.
func (s *SQLiteSaver) Delete(ctx context.Context, threadID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	return nil
}

// List returns all thread ids in sorted order.
func (s *SQLiteSaver) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT thread_id FROM checkpoints ORDER BY thread_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var ids []string

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Close closes the database.
func (s *SQLiteSaver) Close() error { return s.db.Close() }
