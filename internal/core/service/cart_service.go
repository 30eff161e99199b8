package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rl1809/mall-cart/internal/core/domain"
	"github.com/rl1809/mall-cart/internal/port"
)

// CartService provisions carts and resolves them under the caller's scope.
type CartService struct {
	carts port.CartRepository
	codec port.IdentityCodec
	opts  options
}

func NewCartService(carts port.CartRepository, codec port.IdentityCodec, opts ...Option) *CartService {
	return &CartService{
		carts: carts,
		codec: codec,
		opts:  buildOptions(opts),
	}
}

// CreateCart returns the caller's cart for slug, creating it on first access.
// created is false when the cart already existed.
func (s *CartService) CreateCart(ctx context.Context, scope domain.Scope, slug string) (bool, *domain.Cart, error) {
	if scope.IsAnonymous() {
		return false, nil, domain.ErrUnauthorized
	}
	slug = domain.NormalizeSlug(slug)

	created, cart, err := s.carts.GetOrCreate(ctx, scope.TenantID, scope.CustomerID, slug)
	if err != nil {
		return false, nil, fmt.Errorf("%w: get or create cart: %w", domain.ErrStorage, err)
	}

	if created {
		s.opts.log.Info("cart created",
			slog.String("cart_id", cart.ID), slog.String("tenant_id", cart.TenantID), slog.String("slug", slug))
		s.publish(ctx, domain.TopicCartCreated, cart.ID, domain.CartCreatedEvent{
			CartID:     cart.ID,
			TenantID:   cart.TenantID,
			CustomerID: cart.CustomerID,
			Slug:       cart.Slug,
			Timestamp:  s.opts.now(),
		})
	}
	return created, cart, nil
}

func (s *CartService) GetCart(ctx context.Context, scope domain.Scope, cartID string) (*domain.Cart, error) {
	if scope.IsAnonymous() {
		return nil, domain.ErrUnauthorized
	}
	key, err := decodeKey(s.codec, cartID, port.TypeCart)
	if err != nil {
		return nil, fmt.Errorf("cart id: %w", err)
	}

	cart, err := s.carts.FindByID(ctx, scope.TenantID, scope.CustomerID, key)
	if err != nil {
		return nil, fmt.Errorf("%w: find cart: %w", domain.ErrStorage, err)
	}
	if cart == nil {
		return nil, fmt.Errorf("%w: can not find this cart", domain.ErrNotFound)
	}
	return cart, nil
}

func (s *CartService) GetCartBySlug(ctx context.Context, scope domain.Scope, slug string) (*domain.Cart, error) {
	if scope.IsAnonymous() {
		return nil, domain.ErrUnauthorized
	}

	cart, err := s.carts.FindBySlug(ctx, scope.TenantID, scope.CustomerID, domain.NormalizeSlug(slug))
	if err != nil {
		return nil, fmt.Errorf("%w: find cart: %w", domain.ErrStorage, err)
	}
	if cart == nil {
		return nil, fmt.Errorf("%w: can not find this cart", domain.ErrNotFound)
	}
	return cart, nil
}

func (s *CartService) ListCarts(ctx context.Context, scope domain.Scope) ([]domain.Cart, error) {
	if scope.IsAnonymous() {
		return nil, domain.ErrUnauthorized
	}

	carts, err := s.carts.ListCarts(ctx, scope.TenantID, scope.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list carts: %w", domain.ErrStorage, err)
	}
	return carts, nil
}

// DeleteCart tombstones the cart and every line in it.
func (s *CartService) DeleteCart(ctx context.Context, scope domain.Scope, cartID string) error {
	cart, err := s.GetCart(ctx, scope, cartID)
	if err != nil {
		return err
	}

	if err := s.carts.DeleteCart(ctx, scope.TenantID, scope.CustomerID, cart.ID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: can not find this cart", domain.ErrNotFound)
		}
		return fmt.Errorf("%w: delete cart: %w", domain.ErrStorage, err)
	}

	s.publish(ctx, domain.TopicCartDeleted, cart.ID, domain.CartDeletedEvent{
		CartID:     cart.ID,
		TenantID:   cart.TenantID,
		CustomerID: cart.CustomerID,
		Timestamp:  s.opts.now(),
	})
	return nil
}

// CartToken encodes a cart key for clients.
func (s *CartService) CartToken(cart domain.Cart) string {
	return s.codec.Encode(port.TypeCart, cart.ID)
}

func (s *CartService) publish(ctx context.Context, topic, key string, event any) {
	if s.opts.events == nil {
		return
	}
	if err := s.opts.events.Publish(ctx, topic, key, event); err != nil {
		s.opts.log.Warn("publish cart event failed", slog.String("topic", topic), slog.Any("err", err))
	}
}
