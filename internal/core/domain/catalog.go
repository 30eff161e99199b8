package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string
	TenantID    string
	IsPublished bool
	PublishedAt *time.Time
}

type Variant struct {
	ID          string
	ProductID   string
	IsPrimary   bool
	IsPublished bool
	PublishedAt *time.Time
	Price       decimal.NullDecimal
	PriceSale   decimal.NullDecimal
	Currency    string
	Product     Product
}

type Shipment struct {
	ID          string
	TenantID    string
	IsPublished bool
	PublishedAt *time.Time
	Price       decimal.Decimal
	Currency    string
}

// published reports whether the publish flag is set and the publish date, if any,
// is not in the future.
func published(isPublished bool, publishedAt *time.Time, now time.Time) bool {
	if !isPublished {
		return false
	}
	return publishedAt == nil || !publishedAt.After(now)
}

func (p Product) IsVisible(now time.Time) bool {
	return published(p.IsPublished, p.PublishedAt, now)
}

// IsVisible requires both the variant and its product to be published.
func (v Variant) IsVisible(now time.Time) bool {
	return published(v.IsPublished, v.PublishedAt, now) && v.Product.IsVisible(now)
}

func (s Shipment) IsVisible(now time.Time) bool {
	return published(s.IsPublished, s.PublishedAt, now)
}

// IsProtected reports whether the variant is the primary SKU of a product that
// has alternates. Protected variants cannot be put into a cart directly.
func (v Variant) IsProtected(variantCount int) bool {
	return v.IsPrimary && variantCount > 1
}
