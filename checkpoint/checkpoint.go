// Package checkpoint persists agent conversation state per thread.
//
// A Saver stores the latest Checkpoint of each thread. Agents load the
// checkpoint before a run and write it back afterwards, so a second call on
// the same thread sees the earlier messages while other threads stay
// isolated.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentcookbook/config"
	"github.com/hupe1980/agentcookbook/core"
)

// ErrNotFound is returned when no checkpoint exists for a thread.
var ErrNotFound = errors.New("checkpoint not found")

// Checkpoint is the persisted state of one thread.
type Checkpoint struct {
	ThreadID  string      `json:"thread_id"`
	State     *core.State `json:"state"`
	Step      int         `json:"step"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Saver stores checkpoints keyed by thread id. Implementations must be safe
// for concurrent use.
type Saver interface {
	Get(ctx context.Context, threadID string) (*Checkpoint, error)
	Put(ctx context.Context, cp *Checkpoint) error
	Delete(ctx context.Context, threadID string) error
	List(ctx context.Context) ([]string, error)
}

// Open creates the saver selected by cfg.Driver.
func Open(ctx context.Context, cfg config.CheckpointConfig) (Saver, error) {
	switch cfg.Driver {
	case "", config.DriverMemory:
		return NewMemorySaver(), nil
	case config.DriverSQLite:
		return NewSQLiteSaver(ctx, cfg.DSN)
	case config.DriverRedis:
		return NewRedisSaver(ctx, cfg.DSN, func(o *RedisOptions) {
			o.Prefix = cfg.Prefix
			o.TTL = cfg.TTL
		})
	case config.DriverPostgres:
		return NewPostgresSaver(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown checkpoint driver %q", cfg.Driver)
	}
}

// Close releases the resources held by s when it owns any.
func Close(s Saver) error {
	if c, ok := s.(interface{ Close() error }); ok {
		return c.Close()
	}

	return nil
}

// ErrMissingThreadID is returned by Put for a checkpoint without thread id.
var ErrMissingThreadID = errors.New("checkpoint: thread id is required")

func prepare(cp *Checkpoint) error {
	if cp == nil || cp.ThreadID == "" {
		return ErrMissingThreadID
	}

	if cp.State == nil {
		cp.State = core.NewState(nil)
	}

	cp.UpdatedAt = time.Now().UTC()

	return nil
}

func encode(cp *Checkpoint) ([]byte, error) {
	if err := prepare(cp); err != nil {
		return nil, err
	}

	b, err := json.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	return b, nil
}

func decode(data []byte) (*Checkpoint, error) {
	cp := &Checkpoint{}
	if err := json.Unmarshal(data, cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}

	if cp.State == nil {
		cp.State = core.NewState(nil)
	}

	return cp, nil
}
