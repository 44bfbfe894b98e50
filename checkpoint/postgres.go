package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	thread_id  TEXT PRIMARY KEY,
	step       INTEGER NOT NULL,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// PostgresSaver stores checkpoints in a JSONB column.
type PostgresSaver struct {
	pool *pgxpool.Pool
}

// NewPostgresSaver connects to dsn and bootstraps the checkpoints table.
func NewPostgresSaver(ctx context.Context, dsn string) (*PostgresSaver, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create checkpoints table: %w", err)
	}

	return &PostgresSaver{pool: pool}, nil
}

// Get loads the checkpoint of threadID.
func (s *PostgresSaver) Get(ctx context.Context, threadID string) (*Checkpoint, error) {
	var data []byte

	err := s.pool.QueryRow(ctx, `SELECT data FROM checkpoints WHERE thread_id = $1`, threadID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoint: %w", err)
	}

	return decode(data)
}

// Put upserts cp.
func (s *PostgresSaver) Put(ctx context.Context, cp *Checkpoint) error {
	data, err := encode(cp)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO checkpoints (thread_id, step, data, updated_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (thread_id) DO UPDATE SET step = EXCLUDED.step, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		cp.ThreadID, cp.Step, data, cp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	return nil
}

// Delete removes the checkpoint of threadID.
func (s *PostgresSaver) Delete(ctx context.Context, threadID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM checkpoints WHERE thread_id = $1`, threadID); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	return nil
}

// List returns all thread ids in sorted order.
func (s *PostgresSaver) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT thread_id FROM checkpoints ORDER BY thread_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	return ids, nil
}

// Close closes the pool.
func (s *PostgresSaver) Close() error {
	s.pool.Close()
	return nil
}
