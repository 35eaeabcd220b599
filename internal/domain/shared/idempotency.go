package shared

import (
	"context"
	"time"
)

// IdempotencyStore stores submitted payment IDs so the same payment is never
// registered against the ledger twice
type IdempotencyStore interface {
	// MarkSubmitted marks a payment as submitted with a TTL
	// Returns true if the payment was newly marked, false if it was already submitted
	MarkSubmitted(ctx context.Context, paymentID string, ttl time.Duration) (bool, error)

	// IsSubmitted checks if a payment has already been submitted
	IsSubmitted(ctx context.Context, paymentID string) (bool, error)

	// Release removes a submission mark so the same payment ID can be
	// submitted again after a failed registration
	Release(ctx context.Context, paymentID string) error

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is the time-to-live for submitted payment IDs
	TTL time.Duration

	// Enabled determines whether idempotency checking is enabled
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
