package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rl1809/mall-cart/internal/core/domain"
)

// lineTx stages the writes of one transaction. Nothing is visible to other
// readers until commit.
type lineTx struct {
	store  *Store
	cartID string
	staged map[string]domain.CartLine
	added  []string
}

func (s *Store) begin(cartID string) *lineTx {
	s.mu.RLock()
	defer s.mu.RUnlock()

	staged := make(map[string]domain.CartLine)
	for id, l := range s.lines {
		if l.CartID == cartID {
			staged[id] = l
		}
	}
	return &lineTx{store: s, cartID: cartID, staged: staged}
}

func (s *Store) commit(tx *lineTx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, l := range tx.staged {
		s.lines[id] = l
	}
	s.lineOrder = append(s.lineOrder, tx.added...)
}

func (tx *lineTx) FindLine(ctx context.Context, cartID, variantID string) (*domain.CartLine, error) {
	for _, l := range tx.staged {
		if l.CartID == cartID && l.VariantID == variantID && l.DeletedAt == nil {
			found := l
			return &found, nil
		}
	}
	return nil, nil
}

func (tx *lineTx) CreateLine(ctx context.Context, line domain.CartLine) error {
	if line.CartID != tx.cartID {
		return fmt.Errorf("line belongs to cart %s, transaction holds %s", line.CartID, tx.cartID)
	}
	if existing, _ := tx.FindLine(ctx, line.CartID, line.VariantID); existing != nil {
		return fmt.Errorf("%w: variant %s already in cart %s", domain.ErrConflict, line.VariantID, line.CartID)
	}

	now := tx.store.now()
	if line.ID == "" {
		line.ID = uuid.NewString()
	}
	line.CreatedAt = now
	line.UpdatedAt = now
	tx.staged[line.ID] = line
	tx.added = append(tx.added, line.ID)
	return nil
}

func (tx *lineTx) UpdateLineQuantity(ctx context.Context, lineID string, quantity int) error {
	l, ok := tx.staged[lineID]
	if !ok || l.DeletedAt != nil {
		return fmt.Errorf("%w: line %s", domain.ErrNotFound, lineID)
	}
	l.Quantity = quantity
	l.UpdatedAt = tx.store.now()
	tx.staged[lineID] = l
	return nil
}

func (tx *lineTx) DeleteLine(ctx context.Context, lineID string) error {
	l, ok := tx.staged[lineID]
	if !ok || l.DeletedAt != nil {
		return fmt.Errorf("%w: line %s", domain.ErrNotFound, lineID)
	}
	now := tx.store.now()
	l.DeletedAt = &now
	l.UpdatedAt = now
	tx.staged[lineID] = l
	return nil
}
