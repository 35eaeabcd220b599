package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cobranza/backend/internal/domain/shared"
)

// RedisIdempotencyStore implements IdempotencyStore using Redis.
// Suitable for distributed deployments where multiple instances need to
// share submission state.
type RedisIdempotencyStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisIdempotencyStore creates a new Redis-based idempotency store
func NewRedisIdempotencyStore(cfg RedisConfig) (*RedisIdempotencyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: "payment:submitted:",
	}, nil
}

// NewRedisIdempotencyStoreWithClient creates a store with an existing Redis client.
// This is useful for testing or when sharing a client across components.
func NewRedisIdempotencyStoreWithClient(client *redis.Client, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = "payment:submitted:"
	}
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// MarkSubmitted marks a payment as submitted with a TTL.
// Returns true if the payment was newly marked, false if it was already submitted.
// Uses SETNX so that concurrent submissions of the same payment ID race
// atomically and exactly one wins.
func (s *RedisIdempotencyStore) MarkSubmitted(ctx context.Context, paymentID string, ttl time.Duration) (bool, error) {
	key := s.keyPrefix + paymentID

	result, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark payment as submitted: %w", err)
	}

	return result, nil
}

// IsSubmitted checks if a payment has already been submitted
func (s *RedisIdempotencyStore) IsSubmitted(ctx context.Context, paymentID string) (bool, error) {
	key := s.keyPrefix + paymentID

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check if payment is submitted: %w", err)
	}

	return exists > 0, nil
}

// Release removes a submission mark so the payment ID can be marked again
func (s *RedisIdempotencyStore) Release(ctx context.Context, paymentID string) error {
	key := s.keyPrefix + paymentID

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to release submission mark: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}

// Ensure RedisIdempotencyStore implements IdempotencyStore
var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)
