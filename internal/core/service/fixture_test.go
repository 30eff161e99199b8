package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/mall-cart/internal/adapter/relayid"
	"github.com/rl1809/mall-cart/internal/adapter/storage/memory"
	"github.com/rl1809/mall-cart/internal/core/domain"
	"github.com/rl1809/mall-cart/internal/port"
)

const (
	tenantID       = "9b0d3c1e-0000-4000-8000-000000000001"
	customerID     = "customer-1"
	otherCustomer  = "customer-2"
	otherTenantID  = "9b0d3c1e-0000-4000-8000-000000000002"
	testCurrency   = "TWD"
	productSingle  = "10000000-0000-4000-8000-000000000001"
	productMulti   = "10000000-0000-4000-8000-000000000002"
	productHidden  = "10000000-0000-4000-8000-000000000003"
	variantSingle  = "20000000-0000-4000-8000-000000000001" // primary, sole variant
	variantMain    = "20000000-0000-4000-8000-000000000002" // primary of productMulti
	variantAlt     = "20000000-0000-4000-8000-000000000003"
	variantDraft   = "20000000-0000-4000-8000-000000000004" // unpublished
	variantLater   = "20000000-0000-4000-8000-000000000005" // publishes tomorrow
	variantOrphan  = "20000000-0000-4000-8000-000000000006" // product unpublished
	variantNoSale  = "20000000-0000-4000-8000-000000000007"
	variantMissing = "20000000-0000-4000-8000-0000000000ff"
	shipmentID     = "30000000-0000-4000-8000-000000000001"
	shipmentHidden = "30000000-0000-4000-8000-000000000002"
)

var (
	fixedNow  = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	testScope = domain.Scope{TenantID: tenantID, CustomerID: customerID}
)

func price(v string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(v))
}

func seedCatalog(store *memory.Store) {
	yesterday := fixedNow.AddDate(0, 0, -1)
	tomorrow := fixedNow.AddDate(0, 0, 1)

	store.PutProduct(domain.Product{ID: productSingle, TenantID: tenantID, IsPublished: true})
	store.PutProduct(domain.Product{ID: productMulti, TenantID: tenantID, IsPublished: true, PublishedAt: &yesterday})
	store.PutProduct(domain.Product{ID: productHidden, TenantID: tenantID, IsPublished: false})

	store.PutVariant(domain.Variant{ID: variantSingle, ProductID: productSingle, IsPrimary: true, IsPublished: true,
		Price: price("100"), PriceSale: price("80"), Currency: "USD"})
	store.PutVariant(domain.Variant{ID: variantMain, ProductID: productMulti, IsPrimary: true, IsPublished: true,
		Price: price("50"), PriceSale: price("45"), Currency: "USD"})
	store.PutVariant(domain.Variant{ID: variantAlt, ProductID: productMulti, IsPublished: true,
		Price: price("50"), PriceSale: price("40"), Currency: "USD"})
	store.PutVariant(domain.Variant{ID: variantDraft, ProductID: productMulti, IsPublished: false,
		Price: price("50"), PriceSale: price("40"), Currency: "USD"})
	store.PutVariant(domain.Variant{ID: variantLater, ProductID: productMulti, IsPublished: true, PublishedAt: &tomorrow,
		Price: price("50"), PriceSale: price("40"), Currency: "USD"})
	store.PutVariant(domain.Variant{ID: variantOrphan, ProductID: productHidden, IsPublished: true,
		Price: price("10"), PriceSale: price("9"), Currency: "USD"})
	store.PutVariant(domain.Variant{ID: variantNoSale, ProductID: productMulti, IsPublished: true,
		Price: price("30"), Currency: "USD"})

	store.PutShipment(domain.Shipment{ID: shipmentID, TenantID: tenantID, IsPublished: true,
		Price: decimal.RequireFromString("60"), Currency: "TWD"})
	store.PutShipment(domain.Shipment{ID: shipmentHidden, TenantID: tenantID, IsPublished: false,
		Price: decimal.RequireFromString("10"), Currency: "TWD"})
}

type fixture struct {
	store   *memory.Store
	codec   relayid.Codec
	carts   *CartService
	mutator *LineMutator
	costs   *CostAggregator
	cart    *domain.Cart
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	store := memory.NewStore()
	seedCatalog(store)
	return newFixtureWithRepo(t, store, store, opts...)
}

func newFixtureWithRepo(t *testing.T, store *memory.Store, repo port.CartRepository, opts ...Option) *fixture {
	t.Helper()

	codec := relayid.NewCodec()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)

	f := &fixture{
		store:   store,
		codec:   codec,
		carts:   NewCartService(repo, codec, opts...),
		mutator: NewLineMutator(repo, store, codec, opts...),
		costs:   NewCostAggregator(repo, store, store, codec, testCurrency, opts...),
	}

	_, cart, err := f.carts.CreateCart(context.Background(), testScope, "")
	if err != nil {
		t.Fatalf("create cart: %v", err)
	}
	f.cart = cart
	return f
}

func (f *fixture) cartToken() string {
	return f.codec.Encode(port.TypeCart, f.cart.ID)
}

func (f *fixture) variant(id string) string {
	return f.codec.Encode(port.TypeVariant, id)
}

func (f *fixture) create(t *testing.T, ids []string, qty []int) *domain.BatchResult {
	t.Helper()
	tokens := make([]string, len(ids))
	for i, id := range ids {
		tokens[i] = f.variant(id)
	}
	res, err := f.mutator.CreateBatch(context.Background(), testScope, BatchInput{
		CartID: f.cartToken(), VariantIDs: tokens, Quantities: qty,
	})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	return res
}

func (f *fixture) lines(t *testing.T) []domain.CartLine {
	t.Helper()
	lines, err := f.store.ListLines(context.Background(), f.cart.ID)
	if err != nil {
		t.Fatalf("list lines: %v", err)
	}
	return lines
}

func assertBucket(t *testing.T, report domain.WarningReport, outcome domain.Outcome, want ...string) {
	t.Helper()
	got := report.Bucket(outcome)
	if len(got) != len(want) {
		t.Fatalf("bucket %s: expected %v, got %v", outcome, want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bucket %s[%d]: expected %s, got %s", outcome, i, want[i], got[i])
		}
	}
}

// Mock EventPublisher
type mockPublisher struct {
	mu     sync.Mutex
	topics []string
	events []any
	err    error
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, key string, event any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topics = append(m.topics, topic)
	m.events = append(m.events, event)
	return m.err
}

// Mock BatchObserver
type mockObserver struct {
	mu      sync.Mutex
	reports map[string][]domain.WarningReport
}

func (m *mockObserver) ObserveBatch(operation string, report domain.WarningReport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reports == nil {
		m.reports = make(map[string][]domain.WarningReport)
	}
	m.reports[operation] = append(m.reports[operation], report)
}

// Mock MutationCache
type mockMutationCache struct {
	mu       sync.Mutex
	claimed  map[string]bool
	stored   map[string]domain.StoredMutation
	storeErr error
}

func newMockMutationCache() *mockMutationCache {
	return &mockMutationCache{
		claimed: make(map[string]bool),
		stored:  make(map[string]domain.StoredMutation),
	}
}

func (m *mockMutationCache) Load(ctx context.Context, key string) (*domain.StoredMutation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.stored[key]
	if !ok {
		return nil, false, nil
	}
	return &res, true, nil
}

func (m *mockMutationCache) Claim(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimed[key] {
		return false, nil
	}
	m.claimed[key] = true
	return true, nil
}

func (m *mockMutationCache) Store(ctx context.Context, key string, entry domain.StoredMutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storeErr != nil {
		return m.storeErr
	}
	m.stored[key] = entry
	return nil
}

func (m *mockMutationCache) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claimed, key)
	return nil
}

// faultyRepo injects failures into the line writes of a transaction.
type faultyRepo struct {
	*memory.Store
	failCreateAt int
	createErr    error
	updateErr    error
}

func (r *faultyRepo) WithinTx(ctx context.Context, cartID string, fn func(ctx context.Context, lines port.LineStore) error) error {
	return r.Store.WithinTx(ctx, cartID, func(ctx context.Context, lines port.LineStore) error {
		return fn(ctx, &faultyLines{LineStore: lines, failAt: r.failCreateAt, err: r.createErr, updateErr: r.updateErr})
	})
}

type faultyLines struct {
	port.LineStore
	calls     int
	failAt    int
	err       error
	updateErr error
}

func (l *faultyLines) UpdateLineQuantity(ctx context.Context, lineID string, quantity int) error {
	if l.updateErr != nil {
		return l.updateErr
	}
	return l.LineStore.UpdateLineQuantity(ctx, lineID, quantity)
}

func (l *faultyLines) CreateLine(ctx context.Context, line domain.CartLine) error {
	l.calls++
	if l.calls == l.failAt {
		return l.err
	}
	return l.LineStore.CreateLine(ctx, line)
}
