// Package memory keeps carts and a catalog snapshot in process memory. It backs
// local runs without MySQL and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/mall-cart/internal/core/domain"
	"github.com/rl1809/mall-cart/internal/port"
)

type Store struct {
	// txMu serializes transactions and cart deletion, like a row lock on every cart.
	txMu sync.Mutex
	mu   sync.RWMutex

	carts     map[string]domain.Cart
	lines     map[string]domain.CartLine
	lineOrder []string

	products  map[string]domain.Product
	variants  map[string]domain.Variant
	shipments map[string]domain.Shipment

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		carts:     make(map[string]domain.Cart),
		lines:     make(map[string]domain.CartLine),
		products:  make(map[string]domain.Product),
		variants:  make(map[string]domain.Variant),
		shipments: make(map[string]domain.Shipment),
		now:       time.Now,
	}
}

var (
	_ port.CartRepository = (*Store)(nil)
	_ port.CatalogReader  = (*Store)(nil)
	_ port.ShipmentReader = (*Store)(nil)
)

func (s *Store) GetOrCreate(ctx context.Context, tenantID, customerID, slug string) (bool, *domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c := s.findCartLocked(tenantID, customerID, func(c domain.Cart) bool { return c.Slug == slug }); c != nil {
		return false, c, nil
	}

	now := s.now()
	cart := domain.Cart{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		CustomerID: customerID,
		Slug:       slug,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.carts[cart.ID] = cart
	return true, &cart, nil
}

func (s *Store) FindByID(ctx context.Context, tenantID, customerID, id string) (*domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.findCartLocked(tenantID, customerID, func(c domain.Cart) bool { return c.ID == id }), nil
}

func (s *Store) FindBySlug(ctx context.Context, tenantID, customerID, slug string) (*domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.findCartLocked(tenantID, customerID, func(c domain.Cart) bool { return c.Slug == slug }), nil
}

func (s *Store) findCartLocked(tenantID, customerID string, match func(domain.Cart) bool) *domain.Cart {
	for _, c := range s.carts {
		if c.DeletedAt == nil && c.TenantID == tenantID && c.CustomerID == customerID && match(c) {
			found := c
			return &found
		}
	}
	return nil
}

func (s *Store) ListCarts(ctx context.Context, tenantID, customerID string) ([]domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var carts []domain.Cart
	for _, c := range s.carts {
		if c.DeletedAt == nil && c.TenantID == tenantID && c.CustomerID == customerID {
			carts = append(carts, c)
		}
	}
	sort.Slice(carts, func(i, j int) bool {
		a, b := carts[i].SortKey, carts[j].SortKey
		switch {
		case a != nil && b != nil && *a != *b:
			return *a < *b
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return carts[i].CreatedAt.Before(carts[j].CreatedAt)
	})
	return carts, nil
}

func (s *Store) ListLines(ctx context.Context, cartID string) ([]domain.CartLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var lines []domain.CartLine
	for _, id := range s.lineOrder {
		l := s.lines[id]
		if l.CartID == cartID && l.DeletedAt == nil {
			lines = append(lines, l)
		}
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].UpdatedAt.Before(lines[j].UpdatedAt) })
	return lines, nil
}

func (s *Store) WithinTx(ctx context.Context, cartID string, fn func(ctx context.Context, lines port.LineStore) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	c, ok := s.carts[cartID]
	s.mu.RUnlock()
	if !ok || c.DeletedAt != nil {
		return domain.ErrNotFound
	}

	tx := s.begin(cartID)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

func (s *Store) DeleteCart(ctx context.Context, tenantID, customerID, id string) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findCartLocked(tenantID, customerID, func(c domain.Cart) bool { return c.ID == id })
	if c == nil {
		return domain.ErrNotFound
	}

	now := s.now()
	c.DeletedAt = &now
	c.UpdatedAt = now
	s.carts[c.ID] = *c
	for lid, l := range s.lines {
		if l.CartID == c.ID && l.DeletedAt == nil {
			l.DeletedAt = &now
			l.UpdatedAt = now
			s.lines[lid] = l
		}
	}
	return nil
}
