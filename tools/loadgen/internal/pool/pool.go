package pool

import (
	"context"
	"errors"
	"time"
)

// Errors returned by parameter pools.
var (
	// ErrPoolClosed is returned when an operation is attempted on a closed pool.
	ErrPoolClosed = errors.New("parameter pool is closed")
)

// Stats describes the state of a parameter pool: how many harvested values
// it holds per semantic type and how the generator's lookups have fared.
type Stats struct {
	TotalValues  int64
	ValuesByType map[SemanticType]int64

	HitCount      int64
	MissCount     int64
	EvictionCount int64
	ExpiredCount  int64
	AddCount      int64

	Uptime time.Duration
}

// ParameterPool stores values harvested from the receivables API, currency
// and method codes mostly, and hands them back to workers building preview
// requests.
type ParameterPool interface {
	// Add stores a value under its semantic type. When the pool is at
	// capacity for that type the oldest value is evicted first; the count
	// of evicted values is returned.
	Add(ctx context.Context, value *ParameterValue) (evicted int, err error)

	// Get returns the oldest live value for the semantic type, or nil
	// when none is available.
	Get(ctx context.Context, semanticType SemanticType) (*ParameterValue, error)

	// GetRandom returns a random live value for the semantic type, or nil
	// when none is available.
	GetRandom(ctx context.Context, semanticType SemanticType) (*ParameterValue, error)

	// Count returns the number of stored values for the semantic type,
	// expired values included.
	Count(ctx context.Context, semanticType SemanticType) (int, error)

	// Cleanup drops expired values and returns how many were removed.
	Cleanup(ctx context.Context) (int, error)

	// Stats returns a snapshot of the pool's counters.
	Stats(ctx context.Context) (Stats, error)

	// Types returns the semantic types that currently hold values.
	Types(ctx context.Context) ([]SemanticType, error)

	// Close releases resources held by the pool.
	Close() error
}

// PoolConfig holds configuration options for parameter pools.
type PoolConfig struct {
	// DefaultTTL bounds how long a harvested value stays usable
	// (0 means no expiration).
	DefaultTTL time.Duration

	// MaxValuesPerType caps the stored values per semantic type
	// (0 means unlimited). The oldest value is evicted when full.
	MaxValuesPerType int

	// CleanupInterval is how often expired values are swept
	// (0 disables the sweep).
	CleanupInterval time.Duration
}

// DefaultPoolConfig returns the configuration the load generator runs with.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		DefaultTTL:       5 * time.Minute,
		MaxValuesPerType: 1000,
		CleanupInterval:  1 * time.Minute,
	}
}
