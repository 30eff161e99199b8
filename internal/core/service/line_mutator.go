package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rl1809/mall-cart/internal/core/domain"
	"github.com/rl1809/mall-cart/internal/port"
)

const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

var (
	ErrDuplicateRequest = errors.New("duplicate request in progress")
	ErrMutationIDReused = errors.New("client mutation id was used for a different request")
)

type BatchInput struct {
	CartID           string
	VariantIDs       []string
	Quantities       []int
	ClientMutationID string
}

type batchItem struct {
	token    string
	quantity int
}

type batchCommand struct {
	operation        string
	cartKey          string
	items            []batchItem
	clientMutationID string
	fingerprint      string
}

// batchTx is what a single item sees while the batch transaction is open.
type batchTx struct {
	cartID string
	lines  port.LineStore
	now    time.Time
}

type itemFunc func(ctx context.Context, tx batchTx, item batchItem) (domain.Outcome, string, error)

// LineMutator applies batch create/update/delete requests to the lines of a cart.
// Items are classified one by one; a bad item lands in the warning report instead
// of failing the batch.
type LineMutator struct {
	carts   port.CartRepository
	catalog port.CatalogReader
	codec   port.IdentityCodec
	opts    options
}

func NewLineMutator(carts port.CartRepository, catalog port.CatalogReader, codec port.IdentityCodec, opts ...Option) *LineMutator {
	return &LineMutator{
		carts:   carts,
		catalog: catalog,
		codec:   codec,
		opts:    buildOptions(opts),
	}
}

func (m *LineMutator) CreateBatch(ctx context.Context, scope domain.Scope, in BatchInput) (*domain.BatchResult, error) {
	return m.run(ctx, scope, OperationCreate, in, m.createItem)
}

func (m *LineMutator) UpdateBatch(ctx context.Context, scope domain.Scope, in BatchInput) (*domain.BatchResult, error) {
	return m.run(ctx, scope, OperationUpdate, in, m.updateItem)
}

func (m *LineMutator) DeleteBatch(ctx context.Context, scope domain.Scope, in BatchInput) (*domain.BatchResult, error) {
	in.Quantities = nil
	return m.run(ctx, scope, OperationDelete, in, m.deleteItem)
}

func (m *LineMutator) prepare(scope domain.Scope, operation string, in BatchInput) (batchCommand, error) {
	if scope.IsAnonymous() {
		return batchCommand{}, domain.ErrUnauthorized
	}

	cartKey, err := decodeKey(m.codec, in.CartID, port.TypeCart)
	if err != nil {
		return batchCommand{}, fmt.Errorf("cart id: %w", err)
	}

	if len(in.VariantIDs) == 0 {
		return batchCommand{}, fmt.Errorf("%w: variant id list should not be empty", domain.ErrInvalidArgument)
	}
	withQuantities := operation != OperationDelete
	if withQuantities && len(in.VariantIDs) != len(in.Quantities) {
		return batchCommand{}, fmt.Errorf("%w: variant id list and quantity list must be the same length", domain.ErrInvalidArgument)
	}

	items := make([]batchItem, len(in.VariantIDs))
	for i, token := range in.VariantIDs {
		items[i].token = strings.TrimSpace(token)
		if withQuantities {
			items[i].quantity = in.Quantities[i]
		}
	}

	return batchCommand{
		operation:        operation,
		cartKey:          cartKey,
		items:            items,
		clientMutationID: strings.TrimSpace(in.ClientMutationID),
		fingerprint:      fingerprint(operation, items),
	}, nil
}

// fingerprint digests the normalized items of a batch in input order.
func fingerprint(operation string, items []batchItem) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n", operation)
	for _, item := range items {
		fmt.Fprintf(h, "%q:%d\n", item.token, item.quantity)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (m *LineMutator) run(ctx context.Context, scope domain.Scope, operation string, in BatchInput, apply itemFunc) (*domain.BatchResult, error) {
	cmd, err := m.prepare(scope, operation, in)
	if err != nil {
		return nil, err
	}

	cart, err := m.carts.FindByID(ctx, scope.TenantID, scope.CustomerID, cmd.cartKey)
	if err != nil {
		return nil, fmt.Errorf("%w: find cart: %w", domain.ErrStorage, err)
	}
	if cart == nil {
		return nil, fmt.Errorf("%w: can not find this cart", domain.ErrNotFound)
	}

	replayKey := m.replayKey(scope, cmd)
	if replayKey != "" {
		cached, claimed, err := m.claim(ctx, replayKey, cmd.fingerprint)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			return cached, nil
		}
		if !claimed {
			replayKey = ""
		}
	}

	report := domain.NewWarningReport()
	var changed []string
	now := m.opts.now()

	err = m.carts.WithinTx(ctx, cart.ID, func(ctx context.Context, lines port.LineStore) error {
		tx := batchTx{cartID: cart.ID, lines: lines, now: now}
		for _, item := range cmd.items {
			outcome, variantKey, err := apply(ctx, tx, item)
			if err != nil {
				if !errors.Is(err, domain.ErrStorage) {
					err = fmt.Errorf("%w: %w", domain.ErrStorage, err)
				}
				return err
			}
			report.Add(outcome, item.token)
			if outcome == domain.OutcomeDone {
				changed = append(changed, variantKey)
			}
		}
		return nil
	})
	if err != nil {
		m.release(replayKey)
		// item failures carry ErrStorage; a bare ErrNotFound is the cart lock miss
		if !errors.Is(err, domain.ErrStorage) && errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: can not find this cart", domain.ErrNotFound)
		}
		if !errors.Is(err, domain.ErrStorage) {
			err = fmt.Errorf("%w: %s batch: %w", domain.ErrStorage, operation, err)
		}
		m.opts.log.Error("cart line batch rolled back",
			slog.String("op", operation), slog.String("cart_id", cart.ID), slog.Any("err", err))
		return nil, err
	}

	result := &domain.BatchResult{
		Success:          true,
		Warnings:         report,
		Cart:             *cart,
		ClientMutationID: cmd.clientMutationID,
	}

	m.opts.log.Debug("cart line batch committed",
		slog.String("op", operation),
		slog.String("cart_id", cart.ID),
		slog.Int("items", len(cmd.items)),
		slog.Int("done", len(report.Done)))

	if m.opts.observer != nil {
		m.opts.observer.ObserveBatch(operation, report)
	}
	m.publish(ctx, scope, operation, cart.ID, changed, now)
	m.remember(ctx, replayKey, cmd.fingerprint, *result)

	return result, nil
}

func (m *LineMutator) createItem(ctx context.Context, tx batchTx, item batchItem) (domain.Outcome, string, error) {
	if item.quantity <= 0 {
		return domain.OutcomeError, "", nil
	}
	variantKey, err := decodeKey(m.codec, item.token, port.TypeVariant)
	if err != nil {
		return domain.OutcomeError, "", nil
	}

	variant, err := m.catalog.GetPublishedVariant(ctx, variantKey, tx.now)
	if err != nil {
		return "", "", fmt.Errorf("%w: load variant %s: %w", domain.ErrStorage, variantKey, err)
	}
	if variant == nil {
		return domain.OutcomeNotFound, variantKey, nil
	}

	protected, err := m.isProtected(ctx, *variant)
	if err != nil {
		return "", "", err
	}
	if protected {
		return domain.OutcomeInProtected, variantKey, nil
	}

	existing, err := tx.lines.FindLine(ctx, tx.cartID, variantKey)
	if err != nil {
		return "", "", fmt.Errorf("%w: find line: %w", domain.ErrStorage, err)
	}
	if existing != nil {
		return domain.OutcomeInUse, variantKey, nil
	}

	err = tx.lines.CreateLine(ctx, domain.CartLine{
		CartID:    tx.cartID,
		VariantID: variantKey,
		Quantity:  item.quantity,
	})
	if errors.Is(err, domain.ErrConflict) {
		return domain.OutcomeError, variantKey, nil
	}
	if err != nil {
		return "", "", fmt.Errorf("%w: create line: %w", domain.ErrStorage, err)
	}
	return domain.OutcomeDone, variantKey, nil
}

// updateItem reports an unpublished variant as error rather than not_found, unlike
// createItem. The asymmetry is kept as observed until product confirms it.
func (m *LineMutator) updateItem(ctx context.Context, tx batchTx, item batchItem) (domain.Outcome, string, error) {
	if item.quantity <= 0 {
		return domain.OutcomeError, "", nil
	}
	variantKey, err := decodeKey(m.codec, item.token, port.TypeVariant)
	if err != nil {
		return domain.OutcomeError, "", nil
	}

	variant, err := m.catalog.GetPublishedVariant(ctx, variantKey, tx.now)
	if err != nil {
		return "", "", fmt.Errorf("%w: load variant %s: %w", domain.ErrStorage, variantKey, err)
	}
	if variant == nil {
		return domain.OutcomeError, variantKey, nil
	}

	line, err := tx.lines.FindLine(ctx, tx.cartID, variantKey)
	if err != nil {
		return "", "", fmt.Errorf("%w: find line: %w", domain.ErrStorage, err)
	}
	if line == nil {
		return domain.OutcomeNotFound, variantKey, nil
	}

	protected, err := m.isProtected(ctx, *variant)
	if err != nil {
		return "", "", err
	}
	if protected {
		if err := tx.lines.DeleteLine(ctx, line.ID); err != nil {
			return "", "", fmt.Errorf("%w: delete protected line: %w", domain.ErrStorage, err)
		}
		return domain.OutcomeError, variantKey, nil
	}

	if err := tx.lines.UpdateLineQuantity(ctx, line.ID, item.quantity); err != nil {
		return "", "", fmt.Errorf("%w: update line: %w", domain.ErrStorage, err)
	}
	return domain.OutcomeDone, variantKey, nil
}

func (m *LineMutator) deleteItem(ctx context.Context, tx batchTx, item batchItem) (domain.Outcome, string, error) {
	variantKey, err := decodeKey(m.codec, item.token, port.TypeVariant)
	if err != nil {
		return domain.OutcomeError, "", nil
	}

	line, err := tx.lines.FindLine(ctx, tx.cartID, variantKey)
	if err != nil {
		return "", "", fmt.Errorf("%w: find line: %w", domain.ErrStorage, err)
	}
	if line == nil {
		return domain.OutcomeNotFound, variantKey, nil
	}

	if err := tx.lines.DeleteLine(ctx, line.ID); err != nil {
		return "", "", fmt.Errorf("%w: delete line: %w", domain.ErrStorage, err)
	}
	return domain.OutcomeDone, variantKey, nil
}

func (m *LineMutator) isProtected(ctx context.Context, v domain.Variant) (bool, error) {
	if !v.IsPrimary {
		return false, nil
	}
	n, err := m.catalog.CountVariantsForProduct(ctx, v.ProductID)
	if err != nil {
		return false, fmt.Errorf("%w: count variants of product %s: %w", domain.ErrStorage, v.ProductID, err)
	}
	return v.IsProtected(n), nil
}

func (m *LineMutator) replayKey(scope domain.Scope, cmd batchCommand) string {
	if m.opts.replay == nil || cmd.clientMutationID == "" {
		return ""
	}
	return fmt.Sprintf("cartline:%s:%s:%s:%s:%s",
		cmd.operation, scope.TenantID, scope.CustomerID, cmd.cartKey, cmd.clientMutationID)
}

// claim returns a cached result for a replayed mutation, or reports whether this
// call now owns the key. A stored result for other items is a conflict. Cache
// outages degrade to running without replay.
func (m *LineMutator) claim(ctx context.Context, key, fingerprint string) (*domain.BatchResult, bool, error) {
	cached, ok, err := m.opts.replay.Load(ctx, key)
	if err != nil {
		m.opts.log.Warn("mutation cache load failed", slog.String("key", key), slog.Any("err", err))
		return nil, false, nil
	}
	if ok {
		if cached.Fingerprint != fingerprint {
			return nil, false, fmt.Errorf("%w: %w", domain.ErrConflict, ErrMutationIDReused)
		}
		return &cached.Result, false, nil
	}

	claimed, err := m.opts.replay.Claim(ctx, key)
	if err != nil {
		m.opts.log.Warn("mutation cache claim failed", slog.String("key", key), slog.Any("err", err))
		return nil, false, nil
	}
	if !claimed {
		return nil, false, fmt.Errorf("%w: %w", domain.ErrConflict, ErrDuplicateRequest)
	}
	return nil, true, nil
}

func (m *LineMutator) release(key string) {
	if key == "" {
		return
	}
	// the request context may already be done when the batch failed
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.opts.replay.Release(ctx, key); err != nil {
		m.opts.log.Warn("mutation cache release failed", slog.String("key", key), slog.Any("err", err))
	}
}

// remember stores the committed result. When that fails the claim is dropped so a
// retry runs again and classifies against the committed lines.
func (m *LineMutator) remember(ctx context.Context, key, fingerprint string, result domain.BatchResult) {
	if key == "" {
		return
	}
	err := m.opts.replay.Store(ctx, key, domain.StoredMutation{Fingerprint: fingerprint, Result: result})
	if err != nil {
		m.opts.log.Warn("mutation cache store failed", slog.String("key", key), slog.Any("err", err))
		m.release(key)
	}
}

func (m *LineMutator) publish(ctx context.Context, scope domain.Scope, operation, cartID string, variantIDs []string, now time.Time) {
	if m.opts.events == nil || len(variantIDs) == 0 {
		return
	}

	topic := domain.TopicCartLinesCreated
	switch operation {
	case OperationUpdate:
		topic = domain.TopicCartLinesUpdated
	case OperationDelete:
		topic = domain.TopicCartLinesDeleted
	}

	event := domain.CartLinesChangedEvent{
		CartID:     cartID,
		TenantID:   scope.TenantID,
		CustomerID: scope.CustomerID,
		VariantIDs: variantIDs,
		Timestamp:  now,
	}
	if err := m.opts.events.Publish(ctx, topic, cartID, event); err != nil {
		m.opts.log.Warn("publish cart event failed", slog.String("topic", topic), slog.Any("err", err))
	}
}
