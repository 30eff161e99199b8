package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rl1809/mall-cart/internal/core/domain"
	"github.com/rl1809/mall-cart/internal/port"
)

// CostAggregator prices a cart against the current catalog. Lines whose variant or
// product is no longer visible stay in the cart but are left out of every total.
type CostAggregator struct {
	carts           port.CartRepository
	catalog         port.CatalogReader
	shipments       port.ShipmentReader
	codec           port.IdentityCodec
	defaultCurrency string
	opts            options
}

func NewCostAggregator(
	carts port.CartRepository,
	catalog port.CatalogReader,
	shipments port.ShipmentReader,
	codec port.IdentityCodec,
	defaultCurrency string,
	opts ...Option,
) *CostAggregator {
	return &CostAggregator{
		carts:           carts,
		catalog:         catalog,
		shipments:       shipments,
		codec:           codec,
		defaultCurrency: defaultCurrency,
		opts:            buildOptions(opts),
	}
}

type pricedLine struct {
	line    domain.CartLine
	variant domain.Variant
	visible bool
}

func (a *CostAggregator) pricedLines(ctx context.Context, cart domain.Cart) ([]pricedLine, error) {
	lines, err := a.carts.ListLines(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: list lines: %w", domain.ErrStorage, err)
	}
	if len(lines) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.VariantID)
	}
	variants, err := a.catalog.GetVariants(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: load variants: %w", domain.ErrStorage, err)
	}

	now := a.opts.now()
	priced := make([]pricedLine, 0, len(lines))
	for _, l := range lines {
		v, ok := variants[l.VariantID]
		priced = append(priced, pricedLine{
			line:    l,
			variant: v,
			visible: ok && v.IsVisible(now),
		})
	}
	return priced, nil
}

func finalAmount(lines []pricedLine) decimal.Decimal {
	total := decimal.Zero
	for _, pl := range lines {
		if pl.visible {
			total = total.Add(domain.LineAmount(pl.variant.PriceSale, pl.line.Quantity))
		}
	}
	return total
}

func visibleQuantity(lines []pricedLine) int {
	n := 0
	for _, pl := range lines {
		if pl.visible {
			n += pl.line.Quantity
		}
	}
	return n
}

// GetFinalCost sums sale price times quantity over visible lines, in the default
// currency regardless of the variants' own currency.
func (a *CostAggregator) GetFinalCost(ctx context.Context, cart domain.Cart) (domain.Money, error) {
	lines, err := a.pricedLines(ctx, cart)
	if err != nil {
		return domain.Money{}, err
	}
	return domain.NewMoney(finalAmount(lines), a.defaultCurrency), nil
}

func (a *CostAggregator) GetQuantity(ctx context.Context, cart domain.Cart) (int, error) {
	lines, err := a.pricedLines(ctx, cart)
	if err != nil {
		return 0, err
	}
	return visibleQuantity(lines), nil
}

// GetShipmentCost resolves an optional shipment token within the cart's tenant.
// A nil token costs nothing; a token that cannot be resolved yields ok=false.
func (a *CostAggregator) GetShipmentCost(ctx context.Context, cart domain.Cart, shipmentID *string) (bool, domain.Money, error) {
	if shipmentID == nil {
		return true, domain.ZeroMoney(""), nil
	}

	key, err := decodeKey(a.codec, *shipmentID, port.TypeShipment)
	if err != nil {
		return false, domain.ZeroMoney(""), nil
	}

	shipment, err := a.shipments.GetVisibleShipment(ctx, cart.TenantID, key, a.opts.now())
	if err != nil {
		return false, domain.Money{}, fmt.Errorf("%w: load shipment: %w", domain.ErrStorage, err)
	}
	if shipment == nil {
		return false, domain.ZeroMoney(""), nil
	}
	return true, domain.NewMoney(shipment.Price, shipment.Currency), nil
}

func (a *CostAggregator) GetTotalCost(ctx context.Context, cart domain.Cart, shipmentID *string) (bool, domain.Money, error) {
	ok, shipping, err := a.GetShipmentCost(ctx, cart, shipmentID)
	if err != nil || !ok {
		return false, domain.ZeroMoney(""), err
	}

	final, err := a.GetFinalCost(ctx, cart)
	if err != nil {
		return false, domain.Money{}, err
	}
	return true, domain.NewMoney(final.Amount.Add(shipping.Amount), a.defaultCurrency), nil
}

// Summary computes every cart-level figure from a single read of the lines.
func (a *CostAggregator) Summary(ctx context.Context, cart domain.Cart, shipmentID *string) (domain.CartSummary, error) {
	ok, shipping, err := a.GetShipmentCost(ctx, cart, shipmentID)
	if err != nil {
		return domain.CartSummary{}, err
	}
	if !ok {
		return domain.CartSummary{}, fmt.Errorf("%w: can not find this shipment", domain.ErrNotFound)
	}

	lines, err := a.pricedLines(ctx, cart)
	if err != nil {
		return domain.CartSummary{}, err
	}

	final := finalAmount(lines)
	return domain.CartSummary{
		CostFinal:    domain.NewMoney(final, a.defaultCurrency),
		CostShipment: shipping,
		CostTotal:    domain.NewMoney(final.Add(shipping.Amount), a.defaultCurrency),
		Quantity:     visibleQuantity(lines),
	}, nil
}

// LineViews projects every live line with its status and per-line costs. Costs use
// the variant's own currency; unit prices are only exposed for NORMAL lines.
func (a *CostAggregator) LineViews(ctx context.Context, cart domain.Cart) ([]domain.LineView, error) {
	lines, err := a.pricedLines(ctx, cart)
	if err != nil {
		return nil, err
	}

	views := make([]domain.LineView, 0, len(lines))
	for _, pl := range lines {
		v := pl.variant
		qty := pl.line.Quantity
		sale := domain.NewMoney(domain.LineAmount(v.PriceSale, qty), v.Currency)

		view := domain.LineView{
			Line:      pl.line,
			VariantID: a.codec.Encode(port.TypeVariant, pl.line.VariantID),
			Status:    domain.LineStatusTakenOff,
			Cost:      domain.NewMoney(domain.LineAmount(v.Price, qty), v.Currency),
			CostFinal: sale,
			CostSale:  sale,
		}
		if pl.visible {
			view.Status = domain.LineStatusNormal
			view.VariantPrice = unitPrice(v.Price, v.Currency)
			view.VariantPriceSale = unitPrice(v.PriceSale, v.Currency)
			view.VariantPriceFinal = unitPrice(v.PriceSale, v.Currency)
		}
		views = append(views, view)
	}
	return views, nil
}

func unitPrice(price decimal.NullDecimal, currency string) *domain.Money {
	if !price.Valid {
		return nil
	}
	m := domain.NewMoney(price.Decimal, currency)
	return &m
}
