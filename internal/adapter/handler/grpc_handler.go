package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rl1809/mall-cart/internal/core/domain"
)

const CartServiceName = "mall.cart.v1.CartService"

// CartServiceServer is the gRPC surface of the cart service. Messages are
// google.protobuf.Struct objects with the same fields as the HTTP JSON bodies.
type CartServiceServer interface {
	CreateCart(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetCart(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ListCarts(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	DeleteCart(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	CreateLines(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	UpdateLines(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	DeleteLines(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(srv CartServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func methodDesc(name string, fn unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv.(CartServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + CartServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(srv.(CartServiceServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

var cartServiceDesc = grpc.ServiceDesc{
	ServiceName: CartServiceName,
	HandlerType: (*CartServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		methodDesc("CreateCart", CartServiceServer.CreateCart),
		methodDesc("GetCart", CartServiceServer.GetCart),
		methodDesc("ListCarts", CartServiceServer.ListCarts),
		methodDesc("DeleteCart", CartServiceServer.DeleteCart),
		methodDesc("CreateLines", CartServiceServer.CreateLines),
		methodDesc("UpdateLines", CartServiceServer.UpdateLines),
		methodDesc("DeleteLines", CartServiceServer.DeleteLines),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mall/cart/v1/cart.proto",
}

// RegisterCartServiceServer registers the cart service and marks it serving on
// the standard health service.
func RegisterCartServiceServer(s *grpc.Server, srv CartServiceServer) *health.Server {
	s.RegisterService(&cartServiceDesc, srv)

	hs := health.NewServer()
	hs.SetServingStatus(CartServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return hs
}

type GRPCHandler struct {
	svc Services
	out presenter
}

func NewGRPCHandler(svc Services) *GRPCHandler {
	if svc.Log == nil {
		svc.Log = slog.Default()
	}
	return &GRPCHandler{svc: svc, out: presenter{codec: svc.Codec}}
}

var _ CartServiceServer = (*GRPCHandler)(nil)

func scopeFromMetadata(ctx context.Context) domain.Scope {
	md, _ := metadata.FromIncomingContext(ctx)
	first := func(key string) string {
		if v := md.Get(key); len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}
	return domain.Scope{
		TenantID:   first(strings.ToLower(headerTenantID)),
		CustomerID: first(strings.ToLower(headerCustomerID)),
	}
}

func decodeStruct(in *structpb.Struct, dst any) error {
	data, err := protojson.Marshal(in)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	return nil
}

func encodeStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return out, nil
}

func (h *GRPCHandler) toStatus(method string, err error) error {
	code := grpcCode(err)
	if code == codes.Internal {
		h.svc.Log.Error("rpc failed", slog.String("method", method), slog.Any("err", err))
		return status.Error(code, "internal error")
	}
	return status.Error(code, err.Error())
}

func (h *GRPCHandler) reply(method string, v any, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, h.toStatus(method, err)
	}
	out, err := encodeStruct(v)
	if err != nil {
		return nil, h.toStatus(method, err)
	}
	return out, nil
}

func (h *GRPCHandler) CreateCart(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req CreateCartRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}

	created, cart, err := h.svc.Carts.CreateCart(ctx, scopeFromMetadata(ctx), req.Slug)
	if err != nil {
		return h.reply("CreateCart", nil, err)
	}
	return h.reply("CreateCart", CreateCartResponse{Created: created, Cart: h.out.cart(*cart)}, nil)
}

func (h *GRPCHandler) GetCart(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req GetCartRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}

	resp, err := h.svc.cartDetail(ctx, scopeFromMetadata(ctx), req)
	return h.reply("GetCart", resp, err)
}

func (h *GRPCHandler) ListCarts(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	carts, err := h.svc.Carts.ListCarts(ctx, scopeFromMetadata(ctx))
	if err != nil {
		return h.reply("ListCarts", nil, err)
	}
	return h.reply("ListCarts", h.out.carts(carts), nil)
}

func (h *GRPCHandler) DeleteCart(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req DeleteCartRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}

	err := h.svc.Carts.DeleteCart(ctx, scopeFromMetadata(ctx), req.CartID)
	return h.reply("DeleteCart", map[string]bool{"success": true}, err)
}

func (h *GRPCHandler) lines(ctx context.Context, method string, in *structpb.Struct, fn batchFunc) (*structpb.Struct, error) {
	var req LinesRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}

	res, err := fn(ctx, scopeFromMetadata(ctx), req.input())
	if err != nil {
		return h.reply(method, nil, err)
	}
	return h.reply(method, h.out.batch(res), nil)
}

func (h *GRPCHandler) CreateLines(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return h.lines(ctx, "CreateLines", in, h.svc.Lines.CreateBatch)
}

func (h *GRPCHandler) UpdateLines(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return h.lines(ctx, "UpdateLines", in, h.svc.Lines.UpdateBatch)
}

func (h *GRPCHandler) DeleteLines(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return h.lines(ctx, "DeleteLines", in, h.svc.Lines.DeleteBatch)
}
