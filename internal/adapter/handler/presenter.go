package handler

import (
	"errors"
	"net/http"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/rl1809/mall-cart/internal/core/domain"
	"github.com/rl1809/mall-cart/internal/core/service"
	"github.com/rl1809/mall-cart/internal/port"
)

const (
	headerTenantID   = "X-Tenant-ID"
	headerCustomerID = "X-Customer-ID"
)

type CreateCartRequest struct {
	Slug string `json:"slug"`
}

type DeleteCartRequest struct {
	CartID string `json:"cart_id"`
}

type GetCartRequest struct {
	CartID     string  `json:"cart_id" form:"cart_id"`
	Slug       string  `json:"slug" form:"slug"`
	ShipmentID *string `json:"shipment_id" form:"shipment_id"`
}

type LinesRequest struct {
	CartID           string   `json:"cart_id"`
	VariantIDs       []string `json:"variant_ids"`
	Quantities       []int    `json:"quantities"`
	ClientMutationID string   `json:"client_mutation_id"`
}

func (r LinesRequest) input() service.BatchInput {
	return service.BatchInput{
		CartID:           r.CartID,
		VariantIDs:       r.VariantIDs,
		Quantities:       r.Quantities,
		ClientMutationID: r.ClientMutationID,
	}
}

type CartResponse struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	SortKey   *int      `json:"sort_key,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateCartResponse struct {
	Created bool         `json:"created"`
	Cart    CartResponse `json:"cart"`
}

type ListCartsResponse struct {
	Carts []CartResponse `json:"carts"`
}

type LineResponse struct {
	ID                string        `json:"id"`
	VariantID         string        `json:"variant_id"`
	Quantity          int           `json:"quantity"`
	Status            string        `json:"status"`
	Cost              domain.Money  `json:"cost"`
	CostFinal         domain.Money  `json:"cost_final"`
	CostSale          domain.Money  `json:"cost_sale"`
	VariantPrice      *domain.Money `json:"variant_price"`
	VariantPriceSale  *domain.Money `json:"variant_price_sale"`
	VariantPriceFinal *domain.Money `json:"variant_price_final"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

type CartDetailResponse struct {
	Cart         CartResponse   `json:"cart"`
	Lines        []LineResponse `json:"lines"`
	Quantity     int            `json:"quantity"`
	CostFinal    domain.Money   `json:"cost_final"`
	CostShipment domain.Money   `json:"cost_shipment"`
	CostTotal    domain.Money   `json:"cost_total"`
}

type BatchResponse struct {
	Success          bool                 `json:"success"`
	Warnings         domain.WarningReport `json:"warnings"`
	Cart             CartResponse         `json:"cart"`
	ClientMutationID string               `json:"client_mutation_id,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// presenter turns domain values into transport responses with encoded ids.
type presenter struct {
	codec port.IdentityCodec
}

func (p presenter) cart(c domain.Cart) CartResponse {
	return CartResponse{
		ID:        p.codec.Encode(port.TypeCart, c.ID),
		Slug:      c.Slug,
		SortKey:   c.SortKey,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func (p presenter) carts(carts []domain.Cart) ListCartsResponse {
	resp := ListCartsResponse{Carts: make([]CartResponse, 0, len(carts))}
	for _, c := range carts {
		resp.Carts = append(resp.Carts, p.cart(c))
	}
	return resp
}

func (p presenter) batch(res *domain.BatchResult) BatchResponse {
	return BatchResponse{
		Success:          res.Success,
		Warnings:         res.Warnings,
		Cart:             p.cart(res.Cart),
		ClientMutationID: res.ClientMutationID,
	}
}

func (p presenter) detail(cart domain.Cart, views []domain.LineView, summary domain.CartSummary) CartDetailResponse {
	resp := CartDetailResponse{
		Cart:         p.cart(cart),
		Lines:        make([]LineResponse, 0, len(views)),
		Quantity:     summary.Quantity,
		CostFinal:    summary.CostFinal,
		CostShipment: summary.CostShipment,
		CostTotal:    summary.CostTotal,
	}
	for _, v := range views {
		resp.Lines = append(resp.Lines, LineResponse{
			ID:                p.codec.Encode(port.TypeCartLine, v.Line.ID),
			VariantID:         v.VariantID,
			Quantity:          v.Line.Quantity,
			Status:            string(v.Status),
			Cost:              v.Cost,
			CostFinal:         v.CostFinal,
			CostSale:          v.CostSale,
			VariantPrice:      v.VariantPrice,
			VariantPriceSale:  v.VariantPriceSale,
			VariantPriceFinal: v.VariantPriceFinal,
			UpdatedAt:         v.Line.UpdatedAt,
		})
	}
	return resp
}

// httpStatus maps a service error to a status code and a client-safe message.
func httpStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrStorage):
		return http.StatusInternalServerError, "internal error"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, domain.ErrUnauthorized.Error()
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrDecode):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func grpcCode(err error) codes.Code {
	switch {
	case errors.Is(err, domain.ErrStorage):
		return codes.Internal
	case errors.Is(err, domain.ErrUnauthorized):
		return codes.Unauthenticated
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrDecode):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, domain.ErrConflict):
		return codes.AlreadyExists
	default:
		return codes.Internal
	}
}
