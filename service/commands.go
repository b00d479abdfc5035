package service

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"forecast/domain/errs"
	"forecast/domain/ledger"
	"forecast/domain/market"
	"forecast/domain/orderbook"
	"forecast/jobs/broadcaster"
	entrywal "forecast/infra/wal/entry"
)

// OrderResult describes a limit order after matching. Order.Qty is what
// is left resting; zero means the order filled completely.
type OrderResult struct {
	Order   orderbook.Order
	Matches []orderbook.Match
	Filled  int64
}

func (r *OrderResult) Resting() bool { return r.Order.Qty > 0 }

// FillResult describes a market order. Total is the cost of a buy or the
// proceeds of a sell.
type FillResult struct {
	Matches []orderbook.Match
	Filled  int64
	Total   decimal.Decimal
}

type BundleResult struct {
	Qty    int64
	Amount decimal.Decimal
}

type Resolution struct {
	MarketID       string
	Winner         string
	Payouts        map[string]decimal.Decimal
	RefundedOrders int
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

func (e *Exchange) CreateMarket(ctx context.Context, id, description string, outcomes []market.OutcomeSpec) (*market.Market, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stamp()

	m, err := e.createMarket(id, description, outcomes)
	e.metrics.Command("create_market", err)
	return m, err
}

func (e *Exchange) PlaceBuyOrder(ctx context.Context, user, marketID, outcomeID string, price decimal.Decimal, qty int64) (*OrderResult, error) {
	return e.placeLimitLocked(ctx, orderbook.Buy, user, marketID, outcomeID, price, qty)
}

func (e *Exchange) PlaceSellOrder(ctx context.Context, user, marketID, outcomeID string, price decimal.Decimal, qty int64) (*OrderResult, error) {
	return e.placeLimitLocked(ctx, orderbook.Sell, user, marketID, outcomeID, price, qty)
}

func (e *Exchange) MarketBuy(ctx context.Context, user, marketID, outcomeID string, qty int64) (*FillResult, error) {
	return e.marketOrderLocked(ctx, orderbook.Buy, user, marketID, outcomeID, qty)
}

func (e *Exchange) MarketSell(ctx context.Context, user, marketID, outcomeID string, qty int64) (*FillResult, error) {
	return e.marketOrderLocked(ctx, orderbook.Sell, user, marketID, outcomeID, qty)
}

func (e *Exchange) BuyBundle(ctx context.Context, user, marketID string, qty int64) (*BundleResult, error) {
	return e.bundleLocked(ctx, orderbook.Buy, user, marketID, qty)
}

func (e *Exchange) SellBundle(ctx context.Context, user, marketID string, qty int64) (*BundleResult, error) {
	return e.bundleLocked(ctx, orderbook.Sell, user, marketID, qty)
}

func (e *Exchange) CancelOrder(ctx context.Context, user, marketID, outcomeID string, orderID uint64) (orderbook.Order, error) {
	if err := ctx.Err(); err != nil {
		return orderbook.Order{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stamp()

	o, err := e.cancelOrder(user, marketID, outcomeID, orderID)
	e.metrics.Command("cancel", err)
	return o, err
}

func (e *Exchange) ResolveMarket(ctx context.Context, marketID, winner string) (*Resolution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stamp()

	r, err := e.resolveMarket(marketID, winner)
	e.metrics.Command("resolve", err)
	return r, err
}

func (e *Exchange) placeLimitLocked(ctx context.Context, side orderbook.Side, user, marketID, outcomeID string, price decimal.Decimal, qty int64) (*OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stamp()

	r, err := e.placeLimit(side, user, marketID, outcomeID, price, qty)
	e.metrics.Command("place_"+side.String(), err)
	return r, err
}

func (e *Exchange) marketOrderLocked(ctx context.Context, side orderbook.Side, user, marketID, outcomeID string, qty int64) (*FillResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stamp()

	r, err := e.marketOrder(side, user, marketID, outcomeID, qty)
	e.metrics.Command("market_"+side.String(), err)
	return r, err
}

func (e *Exchange) bundleLocked(ctx context.Context, side orderbook.Side, user, marketID string, qty int64) (*BundleResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stamp()

	r, err := e.bundle(side, user, marketID, qty)
	e.metrics.Command("bundle_"+side.String(), err)
	return r, err
}

//
// ──────────────────────────────────────────────────────────
// Implementations (caller holds e.mu)
// ──────────────────────────────────────────────────────────
//

func (e *Exchange) createMarket(id, description string, outcomes []market.OutcomeSpec) (*market.Market, error) {
	m, err := e.markets.Create(id, description, e.now(), outcomes, e.bookOptions()...)
	if err != nil {
		return nil, err
	}

	specs := make([]any, 0, len(outcomes))
	for _, o := range m.Outcomes() {
		specs = append(specs, map[string]any{"id": o.ID, "name": o.Name})
	}
	e.record(entrywal.RecordCreateMarket, map[string]any{
		"market":      id,
		"description": description,
		"outcomes":    specs,
	})
	e.emit(broadcaster.Event{Type: broadcaster.EventMarketCreated, MarketID: id})
	e.log.Info("market created", zap.String("market", id), zap.Int("outcomes", len(specs)))
	return m, nil
}

// tradable resolves market and outcome for a trading call: NotFound,
// then MarketResolved, then NotFound for the outcome.
func (e *Exchange) tradable(user, marketID, outcomeID string) (*market.Market, *market.Outcome, error) {
	if user == "" {
		return nil, nil, errs.New(errs.InvalidInput, "user id is required")
	}
	m, err := e.markets.Get(marketID)
	if err != nil {
		return nil, nil, err
	}
	if err := m.CheckActive(); err != nil {
		return nil, nil, err
	}
	o, err := m.Outcome(outcomeID)
	if err != nil {
		return nil, nil, err
	}
	return m, o, nil
}

func (e *Exchange) placeLimit(side orderbook.Side, user, marketID, outcomeID string, price decimal.Decimal, qty int64) (*OrderResult, error) {
	m, out, err := e.tradable(user, marketID, outcomeID)
	if err != nil {
		return nil, err
	}
	if err := orderbook.ValidatePrice(price); err != nil {
		return nil, err
	}
	if err := orderbook.ValidateQty(qty); err != nil {
		return nil, err
	}

	// Escrow before the order can reach the book.
	var order orderbook.Order
	if side == orderbook.Buy {
		escrow := price.Mul(decimal.NewFromInt(qty))
		if err := e.ledger.HoldCash(user, escrow); err != nil {
			return nil, err
		}
		if order, err = out.Book.AddBid(price, qty, user); err != nil {
			e.ledger.Credit(user, escrow)
			return nil, err
		}
	} else {
		if err := e.ledger.HoldShares(user, m.ID, out.ID, qty); err != nil {
			return nil, err
		}
		if order, err = out.Book.AddAsk(price, qty, user); err != nil {
			e.ledger.CreditShares(user, m.ID, out.ID, qty)
			return nil, err
		}
	}

	// The book had no cross before this insert, so every match involves
	// the new order.
	matches := out.Book.MatchOrders()
	var filled int64
	for _, mt := range matches {
		e.settle(m.ID, out.ID, mt)
		filled += mt.Qty
	}
	order.Qty = qty - filled

	e.record(entrywal.RecordLimitOrder, map[string]any{
		"user":    user,
		"market":  m.ID,
		"outcome": out.ID,
		"side":    side.String(),
		"price":   price.String(),
		"qty":     qty,
	})
	e.emit(broadcaster.Event{
		Type:      broadcaster.EventOrderPlaced,
		MarketID:  m.ID,
		OutcomeID: out.ID,
		UserID:    user,
		OrderID:   order.ID,
		Side:      side.String(),
		Price:     price.StringFixed(2),
		Qty:       qty,
	})
	e.log.Debug("limit order",
		zap.String("user", user),
		zap.String("market", m.ID),
		zap.String("outcome", out.ID),
		zap.Stringer("side", side),
		zap.String("price", price.StringFixed(2)),
		zap.Int64("qty", qty),
		zap.Int64("filled", filled))

	return &OrderResult{Order: order, Matches: matches, Filled: filled}, nil
}

func (e *Exchange) marketOrder(side orderbook.Side, user, marketID, outcomeID string, qty int64) (*FillResult, error) {
	m, out, err := e.tradable(user, marketID, outcomeID)
	if err != nil {
		return nil, err
	}
	if err := orderbook.ValidateQty(qty); err != nil {
		return nil, err
	}

	// Check then act: a shortfall is rejected before anything moves.
	var (
		fillable int64
		total    decimal.Decimal
	)
	if side == orderbook.Buy {
		fillable, total = out.Book.PreviewMarketBuy(qty)
	} else {
		fillable, total = out.Book.PreviewMarketSell(qty)
	}
	if fillable < qty {
		return nil, errs.PartialFill(qty, fillable)
	}

	var matches []orderbook.Match
	if side == orderbook.Buy {
		if err := e.ledger.HoldCash(user, total); err != nil {
			return nil, err
		}
		matches, _ = out.Book.MarketBuy(qty, user)
	} else {
		if err := e.ledger.HoldShares(user, m.ID, out.ID, qty); err != nil {
			return nil, err
		}
		matches, _ = out.Book.MarketSell(qty, user)
	}
	for _, mt := range matches {
		e.settle(m.ID, out.ID, mt)
	}

	e.record(entrywal.RecordMarketOrder, map[string]any{
		"user":    user,
		"market":  m.ID,
		"outcome": out.ID,
		"side":    side.String(),
		"qty":     qty,
	})
	e.log.Debug("market order",
		zap.String("user", user),
		zap.String("market", m.ID),
		zap.String("outcome", out.ID),
		zap.Stringer("side", side),
		zap.Int64("qty", qty),
		zap.String("total", total.StringFixed(2)))

	return &FillResult{Matches: matches, Filled: qty, Total: ledger.Round(total)}, nil
}

func (e *Exchange) bundle(side orderbook.Side, user, marketID string, qty int64) (*BundleResult, error) {
	if user == "" {
		return nil, errs.New(errs.InvalidInput, "user id is required")
	}
	m, err := e.markets.Get(marketID)
	if err != nil {
		return nil, err
	}
	if err := m.CheckActive(); err != nil {
		return nil, err
	}
	if err := orderbook.ValidateQty(qty); err != nil {
		return nil, err
	}

	amount := BundlePrice.Mul(decimal.NewFromInt(qty))
	ids := m.OutcomeIDs()

	if side == orderbook.Buy {
		if err := e.ledger.HoldCash(user, amount); err != nil {
			return nil, err
		}
		for _, oid := range ids {
			e.ledger.CreditShares(user, m.ID, oid, qty)
		}
	} else {
		if err := e.ledger.HoldBundle(user, m.ID, ids, qty); err != nil {
			return nil, err
		}
		e.ledger.Credit(user, amount)
	}

	e.record(entrywal.RecordBundle, map[string]any{
		"user":   user,
		"market": m.ID,
		"side":   side.String(),
		"qty":    qty,
	})
	typ := broadcaster.EventBundleBought
	if side == orderbook.Sell {
		typ = broadcaster.EventBundleSold
	}
	e.emit(broadcaster.Event{Type: typ, MarketID: m.ID, UserID: user, Qty: qty, Price: BundlePrice.StringFixed(2)})
	e.log.Debug("bundle",
		zap.String("user", user),
		zap.String("market", m.ID),
		zap.Stringer("side", side),
		zap.Int64("qty", qty))

	return &BundleResult{Qty: qty, Amount: ledger.Round(amount)}, nil
}

func (e *Exchange) cancelOrder(user, marketID, outcomeID string, orderID uint64) (orderbook.Order, error) {
	m, out, err := e.tradable(user, marketID, outcomeID)
	if err != nil {
		return orderbook.Order{}, err
	}
	o, err := out.Book.CancelOrder(orderID, user)
	if err != nil {
		return orderbook.Order{}, err
	}
	e.release(m.ID, out.ID, o)

	e.record(entrywal.RecordCancel, map[string]any{
		"user":     user,
		"market":   m.ID,
		"outcome":  out.ID,
		"order_id": strconv.FormatUint(orderID, 10),
	})
	e.emit(broadcaster.Event{
		Type:      broadcaster.EventOrderCancelled,
		MarketID:  m.ID,
		OutcomeID: out.ID,
		UserID:    user,
		OrderID:   o.ID,
		Side:      o.Side.String(),
		Price:     o.Price.StringFixed(2),
		Qty:       o.Qty,
	})
	e.log.Debug("order cancelled",
		zap.String("user", user),
		zap.String("market", m.ID),
		zap.Uint64("order", orderID))
	return o, nil
}

func (e *Exchange) resolveMarket(marketID, winner string) (*Resolution, error) {
	m, err := e.markets.Get(marketID)
	if err != nil {
		return nil, err
	}
	if m.Resolved {
		return nil, errs.New(errs.AlreadyResolved, "market %s already resolved", marketID)
	}
	if _, err := m.Outcome(winner); err != nil {
		return nil, err
	}

	res := &Resolution{MarketID: m.ID, Winner: winner, Payouts: map[string]decimal.Decimal{}}

	// Unwind every resting order before the market closes.
	for _, out := range m.Outcomes() {
		for _, o := range out.Book.Clear() {
			e.release(m.ID, out.ID, o)
			res.RefundedOrders++
		}
	}
	if err := m.Resolve(winner); err != nil {
		return nil, err
	}

	for _, user := range e.ledger.Holders(m.ID, winner) {
		shares := e.ledger.Position(user, m.ID, winner)
		if shares <= 0 {
			continue
		}
		payout := BundlePrice.Mul(decimal.NewFromInt(shares))
		e.ledger.Credit(user, payout)
		res.Payouts[user] = payout
	}
	e.ledger.ClearMarket(m.ID)

	e.record(entrywal.RecordResolve, map[string]any{
		"market": m.ID,
		"winner": winner,
	})
	e.emit(broadcaster.Event{Type: broadcaster.EventMarketResolved, MarketID: m.ID, Winner: winner})
	e.log.Info("market resolved",
		zap.String("market", m.ID),
		zap.String("winner", winner),
		zap.Int("payouts", len(res.Payouts)),
		zap.Int("refunded_orders", res.RefundedOrders))
	return res, nil
}

// settle applies one match to the ledger and publishes it.
func (e *Exchange) settle(marketID, outcomeID string, mt orderbook.Match) {
	e.ledger.SettleMatch(marketID, outcomeID, mt)
	e.metrics.Match(mt.Qty, mt.Notional().InexactFloat64())
	e.emit(broadcaster.Event{
		Type:      broadcaster.EventTrade,
		MarketID:  marketID,
		OutcomeID: outcomeID,
		Buyer:     mt.Buyer,
		Seller:    mt.Seller,
		Price:     mt.Price.StringFixed(2),
		Qty:       mt.Qty,
	})
}

// release returns whatever o still holds in escrow to its owner.
func (e *Exchange) release(marketID, outcomeID string, o orderbook.Order) {
	if o.Side == orderbook.Buy {
		e.ledger.Credit(o.UserID, o.Escrow())
		return
	}
	e.ledger.CreditShares(o.UserID, marketID, outcomeID, o.Qty)
}
