package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
// The main consumer is the risk-scoring path, which caches computed
// RiskScoreResults per customer until new data arrives for that customer.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetRiskScore retrieves a cached risk-scoring result for a customer.
	GetRiskScore(ctx context.Context, customerID string) (*RiskScoreResult, error)

	// SetRiskScore caches a risk-scoring result for a customer.
	SetRiskScore(ctx context.Context, customerID string, result *RiskScoreResult, ttl time.Duration) error

	// InvalidateRiskScore drops the cached result for a customer.
	// Called when new transactions or alerts are ingested for them.
	InvalidateRiskScore(ctx context.Context, customerID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string `yaml:"type"`

	// Local LRU cache settings (Community tier)
	LocalMaxSize int           `yaml:"localMaxSize"`
	LocalTTL     time.Duration `yaml:"localTtl"`

	// Redis settings (Pro tier)
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDb"`

	// Two-phase settings
	EnableTwoPhase bool `yaml:"enableTwoPhase"` // If true, check local first, then Redis
}
