package port

import (
	"context"

	"github.com/rl1809/mall-cart/internal/core/domain"
)

type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, event any) error
}

// BatchObserver receives the report of every batch that committed.
type BatchObserver interface {
	ObserveBatch(operation string, report domain.WarningReport)
}
