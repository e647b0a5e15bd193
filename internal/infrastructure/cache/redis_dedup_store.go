package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	appsync "github.com/erp/connector/internal/application/sync"
	"github.com/erp/connector/internal/domain/syncqueue"
)

// defaultDedupTTL bounds how long a queued record key is remembered. A key
// older than this may be queued again; processing the same record twice is
// tolerated, so expiry costs duplicate work at worst.
const defaultDedupTTL = 7 * 24 * time.Hour

// RedisDedupStore implements RecordDedupStore using Redis. Suitable for
// deployments where several connector processes ingest for the same
// instances and need to share dedup state.
type RedisDedupStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration // zero keeps the default
}

// NewRedisDedupStore creates a new Redis-based dedup store
func NewRedisDedupStore(cfg RedisConfig) (*RedisDedupStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}
	return &RedisDedupStore{
		client:    client,
		keyPrefix: "sync:dedup:",
		ttl:       ttl,
	}, nil
}

// NewRedisDedupStoreWithClient creates a store with an existing Redis client.
// Useful for testing or when sharing a client across components.
func NewRedisDedupStoreWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisDedupStore {
	if keyPrefix == "" {
		keyPrefix = "sync:dedup:"
	}
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}
	return &RedisDedupStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

// key scopes a record key to one (instance, collection) pair
func (s *RedisDedupStore) key(instance *syncqueue.Instance, collection syncqueue.Collection, recordKey string) string {
	return fmt.Sprintf("%s%s:%s:%s", s.keyPrefix, instance.ID, collection, recordKey)
}

// Seen returns true if the record key was already queued for the pair
func (s *RedisDedupStore) Seen(ctx context.Context, instance *syncqueue.Instance, collection syncqueue.Collection, recordKey string) (bool, error) {
	exists, err := s.client.Exists(ctx, s.key(instance, collection, recordKey)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check record key: %w", err)
	}
	return exists > 0, nil
}

// Mark remembers a queued record key with the store's TTL
func (s *RedisDedupStore) Mark(ctx context.Context, instance *syncqueue.Instance, collection syncqueue.Collection, recordKey string) error {
	if err := s.client.Set(ctx, s.key(instance, collection, recordKey), "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark record key: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisDedupStore) Close() error {
	return s.client.Close()
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (s *RedisDedupStore) GetClient() *redis.Client {
	return s.client
}

// Ensure RedisDedupStore implements RecordDedupStore
var _ appsync.RecordDedupStore = (*RedisDedupStore)(nil)
