package memory

import (
	"context"
	"time"

	"github.com/rl1809/mall-cart/internal/core/domain"
)

// PutProduct and the other Put methods seed the catalog snapshot. Variants pick up
// the product stored under their ProductID when read.
func (s *Store) PutProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *Store) PutVariant(v domain.Variant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variants[v.ID] = v
}

func (s *Store) PutShipment(sh domain.Shipment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shipments[sh.ID] = sh
}

func (s *Store) variantLocked(id string) (domain.Variant, bool) {
	v, ok := s.variants[id]
	if !ok {
		return domain.Variant{}, false
	}
	if p, ok := s.products[v.ProductID]; ok {
		v.Product = p
	}
	return v, true
}

func (s *Store) GetPublishedVariant(ctx context.Context, id string, now time.Time) (*domain.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.variantLocked(id)
	if !ok || !v.IsVisible(now) {
		return nil, nil
	}
	return &v, nil
}

func (s *Store) CountVariantsForProduct(ctx context.Context, productID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, v := range s.variants {
		if v.ProductID == productID {
			n++
		}
	}
	return n, nil
}

func (s *Store) GetVariants(ctx context.Context, ids []string) (map[string]domain.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.Variant, len(ids))
	for _, id := range ids {
		if v, ok := s.variantLocked(id); ok {
			out[id] = v
		}
	}
	return out, nil
}

func (s *Store) GetVisibleShipment(ctx context.Context, tenantID, id string, now time.Time) (*domain.Shipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sh, ok := s.shipments[id]
	if !ok || sh.TenantID != tenantID || !sh.IsVisible(now) {
		return nil, nil
	}
	return &sh, nil
}
