package port

import (
	"context"

	"github.com/rl1809/mall-cart/internal/core/domain"
)

// MutationCache remembers batch results by client mutation id so a retried request
// replays the first answer instead of mutating twice.
type MutationCache interface {
	// Load returns false while the key is unknown or still claimed by a running call.
	Load(ctx context.Context, key string) (*domain.StoredMutation, bool, error)

	// Claim marks the key as in flight, returns false if already claimed or stored.
	// A claim that is neither stored nor released expires on its own.
	Claim(ctx context.Context, key string) (bool, error)

	// Store replaces the claim with the final result.
	Store(ctx context.Context, key string, entry domain.StoredMutation) error

	// Release drops a claim that never produced a result.
	Release(ctx context.Context, key string) error
}
