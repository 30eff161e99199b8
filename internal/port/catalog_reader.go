package port

import (
	"context"
	"time"

	"github.com/rl1809/mall-cart/internal/core/domain"
)

type CatalogReader interface {
	// GetPublishedVariant returns nil unless the variant and its product are
	// published at now.
	GetPublishedVariant(ctx context.Context, id string, now time.Time) (*domain.Variant, error)

	CountVariantsForProduct(ctx context.Context, productID string) (int, error)

	// GetVariants loads variants regardless of publication, keyed by id.
	GetVariants(ctx context.Context, ids []string) (map[string]domain.Variant, error)
}

type ShipmentReader interface {
	// GetVisibleShipment returns nil unless the shipment belongs to the tenant and is
	// visible at now.
	GetVisibleShipment(ctx context.Context, tenantID, id string, now time.Time) (*domain.Shipment, error)
}
