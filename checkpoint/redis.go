package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures a RedisSaver.
type RedisOptions struct {
	// Prefix namespaces keys as "<prefix>:checkpoint:<thread>".
	Prefix string
	// TTL expires idle threads; zero keeps them forever.
	TTL time.Duration
}

// RedisSaver stores each checkpoint as a JSON string value.
type RedisSaver struct {
	client *redis.Client
	opts   RedisOptions
}

// NewRedisSaver connects to the redis URL in dsn (redis://host:port/db) and
// pings the server.
func NewRedisSaver(ctx context.Context, dsn string, optFns ...func(o *RedisOptions)) (*RedisSaver, error) {
	if dsn == "" {
		dsn = "redis://localhost:6379/0"
	}

	redisOpts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisSaverFromClient(client, optFns...), nil
}

// NewRedisSaverFromClient wraps an existing client.
func NewRedisSaverFromClient(client *redis.Client, optFns ...func(o *RedisOptions)) *RedisSaver {
	opts := RedisOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &RedisSaver{client: client, opts: opts}
}

func (s *RedisSaver) key(threadID string) string {
	if s.opts.Prefix == "" {
		return "checkpoint:" + threadID
	}

	return s.opts.Prefix + ":checkpoint:" + threadID
}

// Get loads the checkpoint of threadID.
func (s *RedisSaver) Get(ctx context.Context, threadID string) (*Checkpoint, error) {
	data, err := s.client.Get(ctx, s.key(threadID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	return decode(data)
}

// Put stores cp and refreshes its TTL.
func (s *RedisSaver) Put(ctx context.Context, cp *Checkpoint) error {
	data, err := encode(cp)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.key(cp.ThreadID), data, s.opts.TTL).Err(); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	return nil
}

// Delete removes the checkpoint of threadID.
func (s *RedisSaver) Delete(ctx context.Context, threadID string) error {
	return s.client.Del(ctx, s.key(threadID)).Err()
}

// List scans the key space for stored threads.
func (s *RedisSaver) List(ctx context.Context) ([]string, error) {
	prefix := s.key("")

	var (
		cursor uint64
		ids    []string
	)

	for {
		keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkpoints: %w", err)
		}

		for _, k := range keys {
			ids = append(ids, strings.TrimPrefix(k, prefix))
		}

		if next == 0 {
			break
		}

		cursor = next
	}

	return uniqueSorted(ids), nil
}

// uniqueSorted sorts ids and drops duplicates. SCAN may return a key more
// than once.
func uniqueSorted(ids []string) []string {
	slices.Sort(ids)
	return slices.Compact(ids)
}

// Close closes the client.
func (s *RedisSaver) Close() error { return s.client.Close() }
