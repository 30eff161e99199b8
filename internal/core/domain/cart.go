package domain

import (
	"strings"
	"time"
)

const DefaultCartSlug = "default"

// Scope identifies the caller a cart operation runs for.
type Scope struct {
	TenantID   string
	CustomerID string
}

func (s Scope) IsAnonymous() bool {
	return strings.TrimSpace(s.TenantID) == "" || strings.TrimSpace(s.CustomerID) == ""
}

type Cart struct {
	ID         string
	TenantID   string
	CustomerID string
	Slug       string
	SortKey    *int
	DeletedAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type CartLine struct {
	ID        string
	CartID    string
	VariantID string
	Quantity  int
	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NormalizeSlug(slug string) string {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return DefaultCartSlug
	}
	return slug
}
