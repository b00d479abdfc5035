package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "forecast.v1.Exchange"

// ExchangeServer is the server API for forecast.v1.Exchange.
type ExchangeServer interface {
	CreateMarket(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PlaceBuyOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PlaceSellOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MarketBuy(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MarketSell(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BuyBundle(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SellBundle(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResolveMarket(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetMarketInfo(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListMarkets(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetBalance(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPosition(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetUserOrders(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetLeaderboard(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryFunc func(ExchangeServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ExchangeServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(ExchangeServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ExchangeServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateMarket", ExchangeServer.CreateMarket),
		unary("PlaceBuyOrder", ExchangeServer.PlaceBuyOrder),
		unary("PlaceSellOrder", ExchangeServer.PlaceSellOrder),
		unary("MarketBuy", ExchangeServer.MarketBuy),
		unary("MarketSell", ExchangeServer.MarketSell),
		unary("BuyBundle", ExchangeServer.BuyBundle),
		unary("SellBundle", ExchangeServer.SellBundle),
		unary("CancelOrder", ExchangeServer.CancelOrder),
		unary("ResolveMarket", ExchangeServer.ResolveMarket),
		unary("GetMarketInfo", ExchangeServer.GetMarketInfo),
		unary("ListMarkets", ExchangeServer.ListMarkets),
		unary("GetBalance", ExchangeServer.GetBalance),
		unary("GetPosition", ExchangeServer.GetPosition),
		unary("GetUserOrders", ExchangeServer.GetUserOrders),
		unary("GetLeaderboard", ExchangeServer.GetLeaderboard),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "forecast/v1/exchange.proto",
}

func RegisterExchangeServer(s grpc.ServiceRegistrar, srv ExchangeServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls forecast.v1.Exchange methods by name.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Call(ctx context.Context, method string, req map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
