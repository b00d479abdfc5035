package grpcserver

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"forecast/domain/errs"
	"forecast/service"
)

// Server adapts Exchange to gRPC.
type Server struct {
	svc *service.Exchange
	log *zap.Logger
}

var _ ExchangeServer = (*Server)(nil)

func NewServer(svc *service.Exchange, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{svc: svc, log: log}
}

func (s *Server) reply(method string, out map[string]any, err error) (*structpb.Struct, error) {
	if err != nil {
		s.log.Debug("rpc rejected", zap.String("method", method), zap.Error(err))
		return nil, toStatus(err)
	}
	resp, err := structpb.NewStruct(out)
	if err != nil {
		s.log.Error("rpc encode", zap.String("method", method), zap.Error(err))
		return nil, toStatus(err)
	}
	return resp, nil
}

// -------------------- Commands --------------------

func (s *Server) CreateMarket(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := argsOf(in)
	id, err := a.required("marketId")
	if err != nil {
		return s.reply("CreateMarket", nil, err)
	}
	m, err := s.svc.CreateMarket(ctx, id, a.str("description"), a.outcomes("outcomes"))
	if err != nil {
		return s.reply("CreateMarket", nil, err)
	}
	info, err := s.svc.MarketInfo(m.ID, 0)
	if err != nil {
		return s.reply("CreateMarket", nil, err)
	}
	return s.reply("CreateMarket", marketMap(*info), nil)
}

func (s *Server) PlaceBuyOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.placeLimit(ctx, "PlaceBuyOrder", in, s.svc.PlaceBuyOrder)
}

func (s *Server) PlaceSellOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.placeLimit(ctx, "PlaceSellOrder", in, s.svc.PlaceSellOrder)
}

type limitFunc func(ctx context.Context, user, marketID, outcomeID string, price decimal.Decimal, qty int64) (*service.OrderResult, error)

func (s *Server) placeLimit(ctx context.Context, method string, in *structpb.Struct, place limitFunc) (*structpb.Struct, error) {
	a := argsOf(in)
	price, err := a.price("price")
	if err != nil {
		return s.reply(method, nil, err)
	}
	qty, err := a.qty("qty")
	if err != nil {
		return s.reply(method, nil, err)
	}
	res, err := place(ctx, a.str("userId"), a.str("marketId"), a.str("outcomeId"), price, qty)
	if err != nil {
		return s.reply(method, nil, err)
	}
	return s.reply(method, map[string]any{
		"order":   orderMap(res.Order),
		"matches": matchesList(res.Matches),
		"filled":  res.Filled,
		"resting": res.Resting(),
	}, nil)
}

func (s *Server) MarketBuy(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.marketOrder(ctx, "MarketBuy", in, s.svc.MarketBuy)
}

func (s *Server) MarketSell(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.marketOrder(ctx, "MarketSell", in, s.svc.MarketSell)
}

type marketFunc func(ctx context.Context, user, marketID, outcomeID string, qty int64) (*service.FillResult, error)

func (s *Server) marketOrder(ctx context.Context, method string, in *structpb.Struct, run marketFunc) (*structpb.Struct, error) {
	a := argsOf(in)
	qty, err := a.qty("qty")
	if err != nil {
		return s.reply(method, nil, err)
	}
	res, err := run(ctx, a.str("userId"), a.str("marketId"), a.str("outcomeId"), qty)
	if err != nil {
		return s.reply(method, nil, err)
	}
	return s.reply(method, map[string]any{
		"matches": matchesList(res.Matches),
		"filled":  res.Filled,
		"total":   money(res.Total),
	}, nil)
}

func (s *Server) BuyBundle(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.bundle(ctx, "BuyBundle", in, s.svc.BuyBundle)
}

func (s *Server) SellBundle(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.bundle(ctx, "SellBundle", in, s.svc.SellBundle)
}

type bundleFunc func(ctx context.Context, user, marketID string, qty int64) (*service.BundleResult, error)

func (s *Server) bundle(ctx context.Context, method string, in *structpb.Struct, run bundleFunc) (*structpb.Struct, error) {
	a := argsOf(in)
	qty, err := a.qty("qty")
	if err != nil {
		return s.reply(method, nil, err)
	}
	res, err := run(ctx, a.str("userId"), a.str("marketId"), qty)
	if err != nil {
		return s.reply(method, nil, err)
	}
	return s.reply(method, map[string]any{
		"qty":    res.Qty,
		"amount": money(res.Amount),
	}, nil)
}

func (s *Server) CancelOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := argsOf(in)
	id, err := a.orderID("orderId")
	if err != nil {
		return s.reply("CancelOrder", nil, err)
	}
	o, err := s.svc.CancelOrder(ctx, a.str("userId"), a.str("marketId"), a.str("outcomeId"), id)
	if err != nil {
		return s.reply("CancelOrder", nil, err)
	}
	return s.reply("CancelOrder", map[string]any{"order": orderMap(o)}, nil)
}

func (s *Server) ResolveMarket(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := argsOf(in)
	res, err := s.svc.ResolveMarket(ctx, a.str("marketId"), a.str("winningOutcome"))
	if err != nil {
		return s.reply("ResolveMarket", nil, err)
	}
	payouts := make(map[string]any, len(res.Payouts))
	for u, p := range res.Payouts {
		payouts[u] = money(p)
	}
	s.log.Info("market resolved over rpc", zap.String("market", res.MarketID), zap.String("winner", res.Winner))
	return s.reply("ResolveMarket", map[string]any{
		"marketId":       res.MarketID,
		"winningOutcome": res.Winner,
		"payouts":        payouts,
		"refundedOrders": res.RefundedOrders,
	}, nil)
}

// -------------------- Queries --------------------

// maxDepth caps the orders per side a GetMarketInfo reply carries.
const maxDepth = 500

func (s *Server) GetMarketInfo(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := argsOf(in)
	depth := 0
	if _, ok := a["depth"]; ok {
		n, err := a.qty("depth")
		if err != nil {
			return s.reply("GetMarketInfo", nil, err)
		}
		if n < 0 {
			return s.reply("GetMarketInfo", nil, errs.New(errs.InvalidInput, "depth must not be negative"))
		}
		depth = int(min(n, maxDepth))
	}
	info, err := s.svc.MarketInfo(a.str("marketId"), depth)
	if err != nil {
		return s.reply("GetMarketInfo", nil, err)
	}
	return s.reply("GetMarketInfo", marketMap(*info), nil)
}

func (s *Server) ListMarkets(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	list := s.svc.ListMarkets()
	out := make([]any, 0, len(list))
	for _, m := range list {
		out = append(out, marketMap(m))
	}
	return s.reply("ListMarkets", map[string]any{"markets": out}, nil)
}

func (s *Server) GetBalance(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := argsOf(in)
	user, err := a.required("userId")
	if err != nil {
		return s.reply("GetBalance", nil, err)
	}
	return s.reply("GetBalance", map[string]any{
		"userId":  user,
		"balance": money(s.svc.Balance(user)),
	}, nil)
}

// GetPosition returns one outcome's shares when outcomeId is given,
// otherwise the whole market.
func (s *Server) GetPosition(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := argsOf(in)
	user, market, outcome := a.str("userId"), a.str("marketId"), a.str("outcomeId")
	if outcome != "" {
		return s.reply("GetPosition", map[string]any{
			"outcomeId": outcome,
			"shares":    s.svc.Position(user, market, outcome),
		}, nil)
	}
	positions := make(map[string]any)
	for o, n := range s.svc.Positions(user, market) {
		positions[o] = n
	}
	return s.reply("GetPosition", map[string]any{"positions": positions}, nil)
}

func (s *Server) GetUserOrders(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := argsOf(in)
	orders, err := s.svc.UserOrders(a.str("userId"), a.str("marketId"))
	if err != nil {
		return s.reply("GetUserOrders", nil, err)
	}
	out := make([]any, 0, len(orders))
	for _, o := range orders {
		m := orderMap(o.Order)
		m["outcomeId"] = o.OutcomeID
		m["outcomeName"] = o.OutcomeName
		out = append(out, m)
	}
	return s.reply("GetUserOrders", map[string]any{"orders": out}, nil)
}

func (s *Server) GetLeaderboard(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	board, err := s.svc.Leaderboard(argsOf(in).str("marketId"))
	if err != nil {
		return s.reply("GetLeaderboard", nil, err)
	}
	out := make([]any, 0, len(board))
	for _, row := range board {
		out = append(out, map[string]any{
			"rank":    row.Rank,
			"userId":  row.UserID,
			"balance": money(row.Balance),
			"profit":  money(row.Profit),
		})
	}
	return s.reply("GetLeaderboard", map[string]any{"entries": out}, nil)
}
