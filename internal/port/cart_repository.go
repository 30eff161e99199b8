package port

import (
	"context"

	"github.com/rl1809/mall-cart/internal/core/domain"
)

type CartRepository interface {
	// GetOrCreate returns the live cart for (tenant, customer, slug), creating it when
	// absent. Concurrent callers converge on a single cart.
	GetOrCreate(ctx context.Context, tenantID, customerID, slug string) (bool, *domain.Cart, error)

	// FindByID returns nil when the cart does not exist under the given owner.
	FindByID(ctx context.Context, tenantID, customerID, id string) (*domain.Cart, error)

	FindBySlug(ctx context.Context, tenantID, customerID, slug string) (*domain.Cart, error)

	ListCarts(ctx context.Context, tenantID, customerID string) ([]domain.Cart, error)

	// ListLines returns the live lines of a cart ordered by last update.
	ListLines(ctx context.Context, cartID string) ([]domain.CartLine, error)

	// WithinTx runs fn in one transaction holding the cart's row lock. Any error
	// returned by fn rolls back every write made through the LineStore.
	WithinTx(ctx context.Context, cartID string, fn func(ctx context.Context, lines LineStore) error) error

	// DeleteCart tombstones the cart together with its lines.
	DeleteCart(ctx context.Context, tenantID, customerID, id string) error
}

// LineStore is the transaction-bound view of a cart's lines.
type LineStore interface {
	// FindLine returns nil when no live line exists for (cart, variant).
	FindLine(ctx context.Context, cartID, variantID string) (*domain.CartLine, error)

	// CreateLine returns domain.ErrConflict when a live line for the variant exists.
	CreateLine(ctx context.Context, line domain.CartLine) error

	UpdateLineQuantity(ctx context.Context, lineID string, quantity int) error

	DeleteLine(ctx context.Context, lineID string) error
}
