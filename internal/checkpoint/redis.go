package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for the Redis checkpoint backend.
type RedisConfig struct {
	// Addr is the Redis server address (e.g., "redis.namespace.svc:6379").
	Addr string

	// Password is the optional password for Redis authentication.
	Password string

	// DB is the Redis database number (default: 0).
	DB int
}

// RedisStore persists checkpoints in Redis so that multiple pushbox
// instances behind a load balancer share the same cursor state.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a checkpoint store backed by the given Redis server.
func NewRedisStore(cfg RedisConfig) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

// NewRedisStoreWithClient creates a checkpoint store using an existing client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get returns the stored cursor for the server, or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, server string) (string, error) {
	cursor, err := s.client.Get(ctx, Key(server)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read checkpoint for %s: %w", server, err)
	}
	return cursor, nil
}

// Put records the cursor for the server. Checkpoints have no TTL; they are
// only ever superseded, never expired.
func (s *RedisStore) Put(ctx context.Context, server, cursor string) error {
	if err := s.client.Set(ctx, Key(server), cursor, 0).Err(); err != nil {
		return fmt.Errorf("failed to write checkpoint for %s: %w", server, err)
	}
	return nil
}

// Close releases the underlying Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping verifies connectivity to the Redis server. Used by readiness checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
