// Package dedup provides an idempotency guard for inbound events. Providers
// may redeliver the same external event; claiming a key here ensures only
// one delivery creates an event record.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix      = "relay:dedup:"
	connectTimeout = 5 * time.Second
)

// Guard claims deduplication keys with a TTL.
type Guard interface {
	// Claim returns true when this caller is the first to claim the key
	// within the TTL window.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Close() error
}

// RedisGuard implements Guard on a shared redis instance so the guard holds
// across engine processes.
type RedisGuard struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisGuard connects to redis and verifies the connection.
func NewRedisGuard(ctx context.Context, addr, password string, db int, logger *slog.Logger) (*RedisGuard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	err := client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", addr, "db", db)

	return &RedisGuard{client: client, logger: logger.With("module", "dedup")}, nil
}

// Claim atomically sets the key if absent. SET NX makes concurrent claims of
// the same key resolve to exactly one winner.
func (g *RedisGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	claimed, err := g.client.SetNX(ctx, keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim dedup key: %w", err)
	}

	return claimed, nil
}

func (g *RedisGuard) Close() error {
	return g.client.Close()
}

// NoopGuard accepts every claim. Used when no redis address is configured.
type NoopGuard struct{}

func (NoopGuard) Claim(_ context.Context, _ string, _ time.Duration) (bool, error) {
	return true, nil
}

func (NoopGuard) Close() error { return nil }
