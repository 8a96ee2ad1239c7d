// Package idempotency provides a Redis-backed dedupe.Store so resubmitted
// record ids are recognized across restarts and replicas.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/dedupe"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "scores:record:"
	defaultTTL       = 24 * time.Hour
	connectTimeout   = 5 * time.Second
)

// RedisStore implements dedupe.Store on Redis. Entries expire after the TTL.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	written atomic.Int64
}

var _ dedupe.Store = (*RedisStore)(nil)

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return newRedisStore(client, cfg), nil
}

func newRedisStore(client *redis.Client, cfg Config) *RedisStore {
	s := &RedisStore{client: client, prefix: cfg.Prefix, ttl: cfg.TTL}
	if s.prefix == "" {
		s.prefix = defaultKeyPrefix
	}
	if s.ttl <= 0 {
		s.ttl = defaultTTL
	}
	return s
}

// Lookup returns the tx hash stored for recordID.
func (s *RedisStore) Lookup(ctx context.Context, recordID string) (string, bool, error) {
	tx, err := s.client.Get(ctx, s.key(recordID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return tx, true, nil
}

// Remember stores recordID -> txHash unless recordID is already present.
func (s *RedisStore) Remember(ctx context.Context, recordID, txHash string) error {
	ok, err := s.client.SetNX(ctx, s.key(recordID), txHash, s.ttl).Result()
	if err != nil {
		return err
	}
	if ok {
		metrics.UpdateIdempotencyEntries(s.written.Add(1))
	}
	return nil
}

// Size returns the number of entries this process wrote. Redis owns expiry,
// so the number is an upper bound of what is still stored.
func (s *RedisStore) Size() int64 {
	return s.written.Load()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(recordID string) string {
	return s.prefix + recordID
}
