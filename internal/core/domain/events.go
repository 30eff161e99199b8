package domain

import "time"

const (
	TopicCartCreated      = "cart.created"
	TopicCartDeleted      = "cart.deleted"
	TopicCartLinesCreated = "cart.lines.created"
	TopicCartLinesUpdated = "cart.lines.updated"
	TopicCartLinesDeleted = "cart.lines.deleted"
)

type CartCreatedEvent struct {
	CartID     string    `json:"cart_id"`
	TenantID   string    `json:"tenant_id"`
	CustomerID string    `json:"customer_id"`
	Slug       string    `json:"slug"`
	Timestamp  time.Time `json:"timestamp"`
}

type CartDeletedEvent struct {
	CartID     string    `json:"cart_id"`
	TenantID   string    `json:"tenant_id"`
	CustomerID string    `json:"customer_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// CartLinesChangedEvent carries the variant keys a batch actually changed.
type CartLinesChangedEvent struct {
	CartID     string    `json:"cart_id"`
	TenantID   string    `json:"tenant_id"`
	CustomerID string    `json:"customer_id"`
	VariantIDs []string  `json:"variant_ids"`
	Timestamp  time.Time `json:"timestamp"`
}
