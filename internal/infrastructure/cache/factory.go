package cache

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	appsync "github.com/erp/connector/internal/application/sync"
	"github.com/erp/connector/internal/infrastructure/config"
)

// DedupStoreFactory creates record dedup stores based on configuration
type DedupStoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	ttl                   time.Duration
}

// DedupStoreFactoryOption is a functional option for configuring the factory
type DedupStoreFactoryOption func(*DedupStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) DedupStoreFactoryOption {
	return func(f *DedupStoreFactory) {
		f.logger = logger
	}
}

// WithTTL overrides how long queued record keys are remembered. Zero or
// negative keeps the store default.
func WithTTL(ttl time.Duration) DedupStoreFactoryOption {
	return func(f *DedupStoreFactory) {
		f.ttl = ttl
	}
}

// WithInMemoryFallback controls whether to fall back to an in-memory store
// when Redis is unavailable. Default is true (allow fallback).
func WithInMemoryFallback(allow bool) DedupStoreFactoryOption {
	return func(f *DedupStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewDedupStoreFactory creates a new factory
func NewDedupStoreFactory(cfg config.RedisConfig, opts ...DedupStoreFactoryOption) *DedupStoreFactory {
	f := &DedupStoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisStore creates a Redis-based dedup store
func (f *DedupStoreFactory) CreateRedisStore() (appsync.RecordDedupStore, error) {
	store, err := NewRedisDedupStore(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
		TTL:      f.ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis dedup store: %w", err)
	}
	return store, nil
}

// CreateInMemoryStore creates an in-memory dedup store.
// WARNING: in-memory stores do not share state across process instances,
// which can lead to duplicate queue lines in distributed deployments.
func (f *DedupStoreFactory) CreateInMemoryStore() appsync.RecordDedupStore {
	return NewInMemoryDedupStore(f.ttl)
}

// CreateStore tries Redis first and falls back to the in-memory store when
// Redis is unavailable and fallback is allowed
func (f *DedupStoreFactory) CreateStore() (appsync.RecordDedupStore, error) {
	store, err := f.CreateRedisStore()
	if err == nil {
		f.logger.Info("using Redis dedup store",
			zap.String("host", f.redisConfig.Host),
			zap.Int("port", f.redisConfig.Port))
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, err
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory dedup store",
		zap.Error(err))
	return f.CreateInMemoryStore(), nil
}
