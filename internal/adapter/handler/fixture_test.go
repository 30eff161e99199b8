package handler

import (
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rl1809/mall-cart/internal/adapter/relayid"
	"github.com/rl1809/mall-cart/internal/adapter/storage/memory"
	"github.com/rl1809/mall-cart/internal/core/domain"
	"github.com/rl1809/mall-cart/internal/core/service"
	"github.com/rl1809/mall-cart/internal/port"
)

const (
	tenantID      = "9b0d3c1e-0000-4000-8000-000000000001"
	customerID    = "customer-1"
	productSingle = "10000000-0000-4000-8000-000000000001"
	productMulti  = "10000000-0000-4000-8000-000000000002"
	variantSingle = "20000000-0000-4000-8000-000000000001"
	variantMain   = "20000000-0000-4000-8000-000000000002"
	variantAlt    = "20000000-0000-4000-8000-000000000003"
	shipmentID    = "30000000-0000-4000-8000-000000000001"
)

func newServices(t *testing.T) (Services, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	price := func(v string) decimal.NullDecimal { return decimal.NewNullDecimal(decimal.RequireFromString(v)) }

	store.PutProduct(domain.Product{ID: productSingle, TenantID: tenantID, IsPublished: true})
	store.PutProduct(domain.Product{ID: productMulti, TenantID: tenantID, IsPublished: true})
	store.PutVariant(domain.Variant{ID: variantSingle, ProductID: productSingle, IsPrimary: true, IsPublished: true,
		Price: price("100"), PriceSale: price("80"), Currency: "USD"})
	store.PutVariant(domain.Variant{ID: variantMain, ProductID: productMulti, IsPrimary: true, IsPublished: true,
		Price: price("50"), PriceSale: price("45"), Currency: "USD"})
	store.PutVariant(domain.Variant{ID: variantAlt, ProductID: productMulti, IsPublished: true,
		Price: price("50"), PriceSale: price("40"), Currency: "USD"})
	store.PutShipment(domain.Shipment{ID: shipmentID, TenantID: tenantID, IsPublished: true,
		Price: decimal.RequireFromString("60"), Currency: "TWD"})

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	codec := relayid.NewCodec()
	return Services{
		Carts: service.NewCartService(store, codec, service.WithLogger(log)),
		Lines: service.NewLineMutator(store, store, codec, service.WithLogger(log)),
		Costs: service.NewCostAggregator(store, store, store, codec, "TWD", service.WithLogger(log)),
		Codec: codec,
		Log:   log,
	}, store
}

var testCodec = relayid.NewCodec()

func variantToken(id string) string { return testCodec.Encode(port.TypeVariant, id) }

func shipmentToken(id string) string { return testCodec.Encode(port.TypeShipment, id) }

func cartToken(id string) string { return testCodec.Encode(port.TypeCart, id) }
