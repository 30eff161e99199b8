package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rl1809/mall-cart/internal/core/domain"
)

const variantQuery = `
	SELECT v.id, v.product_id, v.is_primary, v.is_published, v.published_at,
	       v.price, v.price_sale, v.currency,
	       p.id, p.organization_id, p.is_published, p.published_at
	FROM mall_product_variant v
	JOIN mall_product_product p ON p.id = v.product_id AND p.deleted_at IS NULL
	WHERE v.deleted_at IS NULL`

func scanVariant(row rowScanner) (*domain.Variant, error) {
	var (
		v                      domain.Variant
		variantPub, productPub sql.NullTime
	)
	err := row.Scan(
		&v.ID, &v.ProductID, &v.IsPrimary, &v.IsPublished, &variantPub,
		&v.Price, &v.PriceSale, &v.Currency,
		&v.Product.ID, &v.Product.TenantID, &v.Product.IsPublished, &productPub,
	)
	if err != nil {
		return nil, err
	}
	v.PublishedAt = nullTimePtr(variantPub)
	v.Product.PublishedAt = nullTimePtr(productPub)
	return &v, nil
}

func (m *MySQLAdapter) GetPublishedVariant(ctx context.Context, id string, now time.Time) (*domain.Variant, error) {
	v, err := scanVariant(m.db.QueryRowContext(ctx, variantQuery+` AND v.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query variant: %w", err)
	}
	if !v.IsVisible(now) {
		return nil, nil
	}
	return v, nil
}

func (m *MySQLAdapter) CountVariantsForProduct(ctx context.Context, productID string) (int, error) {
	var n int
	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM mall_product_variant WHERE product_id = ? AND deleted_at IS NULL`,
		productID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count variants: %w", err)
	}
	return n, nil
}

func (m *MySQLAdapter) GetVariants(ctx context.Context, ids []string) (map[string]domain.Variant, error) {
	variants := make(map[string]domain.Variant, len(ids))
	if len(ids) == 0 {
		return variants, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	rows, err := m.db.QueryContext(ctx, variantQuery+` AND v.id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		variants[v.ID] = *v
	}
	return variants, rows.Err()
}

func (m *MySQLAdapter) GetVisibleShipment(ctx context.Context, tenantID, id string, now time.Time) (*domain.Shipment, error) {
	var (
		s           domain.Shipment
		publishedAt sql.NullTime
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, organization_id, is_published, published_at, price, currency
		FROM mall_shipment_shipment
		WHERE id = ? AND organization_id = ? AND deleted_at IS NULL`,
		id, tenantID,
	).Scan(&s.ID, &s.TenantID, &s.IsPublished, &publishedAt, &s.Price, &s.Currency)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query shipment: %w", err)
	}

	s.PublishedAt = nullTimePtr(publishedAt)
	if !s.IsVisible(now) {
		return nil, nil
	}
	return &s, nil
}
