package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rl1809/mall-cart/internal/core/domain"
	"github.com/rl1809/mall-cart/internal/core/service"
	"github.com/rl1809/mall-cart/internal/port"
)

// Services bundles what both transports call into.
type Services struct {
	Carts *service.CartService
	Lines *service.LineMutator
	Costs *service.CostAggregator
	Codec port.IdentityCodec
	Log   *slog.Logger
}

type HTTPHandler struct {
	svc Services
	out presenter
}

func NewHTTPHandler(svc Services) *HTTPHandler {
	if svc.Log == nil {
		svc.Log = slog.Default()
	}
	return &HTTPHandler{svc: svc, out: presenter{codec: svc.Codec}}
}

func (h *HTTPHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/carts", h.ListCarts)
	r.GET("/cart", h.GetCart)
	r.POST("/cart/create", h.CreateCart)
	r.POST("/cart/delete", h.DeleteCart)
	r.POST("/cart/lines/create", h.CreateLines)
	r.POST("/cart/lines/update", h.UpdateLines)
	r.POST("/cart/lines/delete", h.DeleteLines)
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func scopeFromHeaders(c *gin.Context) domain.Scope {
	return domain.Scope{
		TenantID:   strings.TrimSpace(c.GetHeader(headerTenantID)),
		CustomerID: strings.TrimSpace(c.GetHeader(headerCustomerID)),
	}
}

func (h *HTTPHandler) writeError(c *gin.Context, err error) {
	status, message := httpStatus(err)
	if status == http.StatusInternalServerError {
		h.svc.Log.Error("request failed", slog.String("path", c.FullPath()), slog.Any("err", err))
	}
	c.JSON(status, ErrorResponse{Success: false, Message: message})
}

func (h *HTTPHandler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Message: "invalid request body"})
		return false
	}
	return true
}

func (h *HTTPHandler) CreateCart(c *gin.Context) {
	var req CreateCartRequest
	if c.Request.ContentLength != 0 && !h.bind(c, &req) {
		return
	}

	created, cart, err := h.svc.Carts.CreateCart(c.Request.Context(), scopeFromHeaders(c), req.Slug)
	if err != nil {
		h.writeError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, CreateCartResponse{Created: created, Cart: h.out.cart(*cart)})
}

func (h *HTTPHandler) ListCarts(c *gin.Context) {
	carts, err := h.svc.Carts.ListCarts(c.Request.Context(), scopeFromHeaders(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.out.carts(carts))
}

func (h *HTTPHandler) GetCart(c *gin.Context) {
	var req GetCartRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Message: "invalid query"})
		return
	}

	resp, err := h.svc.cartDetail(c.Request.Context(), scopeFromHeaders(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *HTTPHandler) DeleteCart(c *gin.Context) {
	var req DeleteCartRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.svc.Carts.DeleteCart(c.Request.Context(), scopeFromHeaders(c), req.CartID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type batchFunc func(ctx context.Context, scope domain.Scope, in service.BatchInput) (*domain.BatchResult, error)

func (h *HTTPHandler) lines(c *gin.Context, fn batchFunc) {
	var req LinesRequest
	if !h.bind(c, &req) {
		return
	}

	res, err := fn(c.Request.Context(), scopeFromHeaders(c), req.input())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.out.batch(res))
}

func (h *HTTPHandler) CreateLines(c *gin.Context) { h.lines(c, h.svc.Lines.CreateBatch) }

func (h *HTTPHandler) UpdateLines(c *gin.Context) { h.lines(c, h.svc.Lines.UpdateBatch) }

func (h *HTTPHandler) DeleteLines(c *gin.Context) { h.lines(c, h.svc.Lines.DeleteBatch) }

// cartDetail resolves a cart by id, or by slug when no id is given, and prices it.
func (s Services) cartDetail(ctx context.Context, scope domain.Scope, req GetCartRequest) (CartDetailResponse, error) {
	var (
		cart *domain.Cart
		err  error
	)
	if strings.TrimSpace(req.CartID) != "" {
		cart, err = s.Carts.GetCart(ctx, scope, req.CartID)
	} else {
		cart, err = s.Carts.GetCartBySlug(ctx, scope, req.Slug)
	}
	if err != nil {
		return CartDetailResponse{}, err
	}

	shipmentID := req.ShipmentID
	if shipmentID != nil && strings.TrimSpace(*shipmentID) == "" {
		shipmentID = nil
	}
	summary, err := s.Costs.Summary(ctx, *cart, shipmentID)
	if err != nil {
		return CartDetailResponse{}, err
	}
	views, err := s.Costs.LineViews(ctx, *cart)
	if err != nil {
		return CartDetailResponse{}, err
	}
	return presenter{codec: s.Codec}.detail(*cart, views, summary), nil
}
