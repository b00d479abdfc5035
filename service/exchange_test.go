package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forecast/domain/errs"
	"forecast/domain/market"
)

var ctx = context.Background()

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// tickClock advances one second per reading so creation times are distinct.
func tickClock() func() time.Time {
	t := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newExchange(t *testing.T, opts ...Option) *Exchange {
	t.Helper()
	return NewExchange(append([]Option{WithClock(tickClock())}, opts...)...)
}

func binary(t *testing.T, e *Exchange, id string) {
	t.Helper()
	_, err := e.CreateMarket(ctx, id, "Will it rain tomorrow?", []market.OutcomeSpec{{Name: "Yes"}, {Name: "No"}})
	require.NoError(t, err)
}

func assertBalance(t *testing.T, e *Exchange, user, want string) {
	t.Helper()
	got := e.Balance(user)
	assert.True(t, got.Equal(d(want)), "%s balance: want %s, got %s", user, want, got)
}

func requireKind(t *testing.T, err error, k errs.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, k, errs.KindOf(err), "got %v", err)
}

func TestCreateMarket(t *testing.T) {
	e := newExchange(t)
	binary(t, e, "rain")

	info, err := e.MarketInfo("rain", 0)
	require.NoError(t, err)
	require.Len(t, info.Outcomes, 2)
	assert.Equal(t, "0", info.Outcomes[0].ID)
	assert.Equal(t, "Yes", info.Outcomes[0].Name)
	assert.False(t, info.Resolved)
	assert.True(t, info.BundlePrice.Equal(d("1")))

	_, err = e.CreateMarket(ctx, "rain", "again", []market.OutcomeSpec{{Name: "x"}})
	requireKind(t, err, errs.MarketAlreadyExists)
	_, err = e.CreateMarket(ctx, "empty", "no outcomes", nil)
	requireKind(t, err, errs.InvalidInput)

	_, err = e.MarketInfo("snow", 0)
	requireKind(t, err, errs.NotFound)
}

func TestEighteenOutcomeBundle(t *testing.T) {
	e := newExchange(t)
	specs := make([]market.OutcomeSpec, 18)
	for i := range specs {
		specs[i] = market.OutcomeSpec{Name: "team " + strconv.Itoa(i)}
	}
	_, err := e.CreateMarket(ctx, "league", "Who wins the league?", specs)
	require.NoError(t, err)

	res, err := e.BuyBundle(ctx, "alice", "league", 50)
	require.NoError(t, err)
	assert.True(t, res.Amount.Equal(d("50")))
	assertBalance(t, e, "alice", "950")

	pos := e.Positions("alice", "league")
	require.Len(t, pos, 18)
	for i := 0; i < 18; i++ {
		assert.Equal(t, int64(50), pos[strconv.Itoa(i)])
	}
}

func TestRestingAskKeepsItsPrice(t *testing.T) {
	e := newExchange(t)
	binary(t, e, "rain")
	_, err := e.BuyBundle(ctx, "alice", "rain", 10)
	require.NoError(t, err)

	ask, err := e.PlaceSellOrder(ctx, "alice", "rain", "0", d("0.35"), 10)
	require.NoError(t, err)
	assert.True(t, ask.Resting())
	assert.Equal(t, int64(0), e.Position("alice", "rain", "0"), "shares escrowed")

	bid, err := e.PlaceBuyOrder(ctx, "bob", "rain", "0", d("0.40"), 5)
	require.NoError(t, err)
	require.Len(t, bid.Matches, 1)
	m := bid.Matches[0]
	assert.Equal(t, int64(5), m.Qty)
	assert.True(t, m.Price.Equal(d("0.35")))
	assert.Equal(t, "bob", m.Buyer)
	assert.Equal(t, "alice", m.Seller)
	assert.False(t, bid.Resting())
	assert.Equal(t, int64(5), bid.Filled)

	// bob escrowed 2.00 and got 0.25 of price improvement back
	assertBalance(t, e, "bob", "998.25")
	assertBalance(t, e, "alice", "991.75")
	assert.Equal(t, int64(5), e.Position("bob", "rain", "0"))

	info, err := e.MarketInfo("rain", 5)
	require.NoError(t, err)
	asks := info.Outcomes[0].Depth.Asks
	require.Len(t, asks, 1)
	assert.Equal(t, int64(5), asks[0].Qty)
	assert.True(t, info.Outcomes[0].Depth.LastPrice.Equal(d("0.35")))
	assert.Equal(t, int64(5), info.Outcomes[0].Depth.Volume)
}

func TestPriceImprovementRefund(t *testing.T) {
	e := newExchange(t)
	binary(t, e, "rain")
	_, err := e.BuyBundle(ctx, "alice", "rain", 10)
	require.NoError(t, err)
	_, err = e.PlaceSellOrder(ctx, "alice", "rain", "0", d("0.40"), 10)
	require.NoError(t, err)

	res, err := e.PlaceBuyOrder(ctx, "bob", "rain", "0", d("0.45"), 10)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.True(t, res.Matches[0].Price.Equal(d("0.40")))
	assertBalance(t, e, "bob", "996")
}

func TestRestingBidKeepsItsPrice(t *testing.T) {
	e := newExchange(t)
	binary(t, e, "rain")
	_, err := e.PlaceBuyOrder(ctx, "bob", "rain", "0", d("0.50"), 4)
	require.NoError(t, err)
	_, err = e.BuyBundle(ctx, "alice", "rain", 4)
	require.NoError(t, err)

	res, err := e.PlaceSellOrder(ctx, "alice", "rain", "0", d("0.45"), 4)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.True(t, res.Matches[0].Price.Equal(d("0.50")), "seller gets the resting bid price")
	assertBalance(t, e, "alice", "998")
	assertBalance(t, e, "bob", "998")
	assert.Equal(t, int64(4), e.Position("bob", "rain", "0"))
}

func TestCancelRefundsEscrow(t *testing.T) {
	e := newExchange(t)
	binary(t, e, "rain")

	res, err := e.PlaceBuyOrder(ctx, "carol", "rain", "1", d("0.25"), 10)
	require.NoError(t, err)
	assertBalance(t, e, "carol", "997.50")

	o, err := e.CancelOrder(ctx, "carol", "rain", "1", res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), o.Qty)
	assertBalance(t, e, "carol", "1000")

	orders, err := e.UserOrders("carol", "rain")
	require.NoError(t, err)
	assert.Empty(t, orders)

	_, err = e.CancelOrder(ctx, "carol", "rain", "1", res.Order.ID)
	requireKind(t, err, errs.NotFound)

	next, err := e.PlaceBuyOrder(ctx, "carol", "rain", "1", d("0.25"), 1)
	require.NoError(t, err)
	assert.Greater(t, next.Order.ID, res.Order.ID, "ids are never reused")
}

func TestCancelSellReturnsShares(t *testing.T) {
	e := newExchange(t)
	binary(t, e, "rain")
	_, err := e.BuyBundle(ctx, "alice", "rain", 6)
	require.NoError(t, err)
	res, err := e.PlaceSellOrder(ctx, "alice", "rain", "1", d("0.70"), 6)
	require.NoError(t, err)
	_, err = e.PlaceBuyOrder(ctx, "bob", "rain", "1", d("0.70"), 2)
	require.NoError(t, err)

	_, err = e.CancelOrder(ctx, "bob", "rain", "1", res.Order.ID)
	requireKind(t, err, errs.NotFound)

	o, err := e.CancelOrder(ctx, "alice", "rain", "1", res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), o.Qty)
	assert.Equal(t, int64(4), e.Position("alice", "rain", "1"))
}

func TestBundleRoundTripHasNoDrift(t *testing.T) {
	e := newExchange(t)
	binary(t, e, "rain")
	for i := 0; i < 100; i++ {
		_, err := e.BuyBundle(ctx, "dave", "rain", 7)
		require.NoError(t, err)
		_, err = e.SellBundle(ctx, "dave", "rain", 7)
		require.NoError(t, err)
	}
	assertBalance(t, e, "dave", "1000")
	assert.Equal(t, int64(0), e.Position("dave", "rain", "0"))
}

func TestSellBundleIsAllOrNothing(t *testing.T) {
	e := newExchange(t)
	binary(t, e, "rain")
	_, err := e.BuyBundle(ctx, "alice", "rain", 5)
	require.NoError(t, err)
	_, err = e.PlaceSellOrder(ctx, "alice", "rain", "0", d("0.50"), 3)
	require.NoError(t, err)

	_, err = e.SellBundle(ctx, "alice", "rain", 5)
	requireKind(t, err, errs.InsufficientPosition)
	assert.Equal(t, int64(2), e.Position("alice", "rain", "0"))
	assert.Equal(t, int64(5), e.Position("alice", "rain", "1"))
	assertBalance(t, e, "alice", "995")

	_, err = e.BuyBundle(ctx, "alice", "rain", 996)
	requireKind(t, err, errs.InsufficientFunds)
	_, err = e.BuyBundle(ctx, "alice", "rain", 0)
	requireKind(t, err, errs.InvalidInput)
}

func TestInsufficientFundsLeavesNoTrace(t *testing.T) {
	e := newExchange(t)
	binary(t, e, "rain")

	_, err := e.PlaceBuyOrder(ctx, "erin", "rain", "0", d("0.50"), 3000)
	requireKind(t, err, errs.InsufficientFunds)
	var ee *errs.Error
	require.ErrorAs(t, err, &ee)
	assert.True(t, ee.Needed.Equal(d("1500")))
	assert.True(t, ee.Available.Equal(d("1000")))

	assertBalance(t, e, "erin", "1000")
	info, err := e.MarketInfo("rain", 5)
	require.NoError(t, err)
	assert.Empty(t, info.Outcomes[0].Depth.Bids)

	_, err = e.PlaceSellOrder(ctx, "erin", "rain", "0", d("0.50"), 1)
	requireKind(t, err, errs.InsufficientPosition)
}

func TestValidation(t *testing.T) {
	e := newExchange(t)
	binary(t, e, "rain")

	for _, p := range []string{"0", "1", "-0.10", "1.20", "0.555"} {
		_, err := e.PlaceBuyOrder(ctx, "u", "rain", "0", d(p), 1)
		requireKind(t, err, errs.InvalidInput)
	}
	_, err := e.PlaceBuyOrder(ctx, "u", "rain", "0", d("0.50"), 0)
	requireKind(t, err, errs.InvalidInput)
	_, err = e.PlaceBuyOrder(ctx, "", "rain", "0", d("0.50"), 1)
	requireKind(t, err, errs.InvalidInput)
	_, err = e.PlaceBuyOrder(ctx, "u", "snow", "0", d("0.50"), 1)
	requireKind(t, err, errs.NotFound)
	_, err = e.PlaceBuyOrder(ctx, "u", "rain", "7", d("0.50"), 1)
	requireKind(t, err, errs.NotFound)
	_, err = e.MarketBuy(ctx, "u", "rain", "0", -1)
	requireKind(t, err, errs.InvalidInput)
	assertBalance(t, e, "u", "1000")
}

func TestMarketBuySweepsAtRestingPrices(t *testing.T) {
	e := newExchange(t)
	binary(t, e, "rain")
	_, err := e.BuyBundle(ctx, "alice", "rain", 5)
	require.NoError(t, err)
	_, err = e.PlaceSellOrder(ctx, "alice", "rain", "0", d("0.45"), 2)
	require.NoError(t, err)
	_, err = e.PlaceSellOrder(ctx, "alice", "rain", "0", d("0.40"), 3)
	require.NoError(t, err)

	res, err := e.MarketBuy(ctx, "bob", "rain", "0", 4)
	require.NoError(t, err)
	require.Len(t, res.Matches, 2)
	assert.True(t, res.Matches[0].Price.Equal(d("0.40")))
	assert.Equal(t, int64(3), res.Matches[0].Qty)
	assert.True(t, res.Matches[1].Price.Equal(d("0.45")))
	assert.Equal(t, int64(1), res.Matches[1].Qty)
	assert.True(t, res.Total.Equal(d("1.65")))

	assertBalance(t, e, "bob", "998.35")
	assertBalance(t, e, "alice", "996.65")
	assert.Equal(t, int64(4), e.Position("bob", "rain", "0"))
}

func TestMarketOrderShortfallIsRejected(t *testing.T) {
	e := newExchange(t)
	binary(t, e, "rain")
	_, err := e.BuyBundle(ctx, "alice", "rain", 5)
	require.NoError(t, err)
	_, err = e.PlaceSellOrder(ctx, "alice", "rain", "0", d("0.40"), 5)
	require.NoError(t, err)

	_, err = e.MarketBuy(ctx, "bob", "rain", "0", 8)
	requireKind(t, err, errs.PartialFillRejected)
	var ee *errs.Error
	require.ErrorAs(t, err, &ee)
	assert.True(t, ee.Needed.Equal(d("8")))
	assert.True(t, ee.Available.Equal(d("5")))

	assertBalance(t, e, "bob", "1000")
	info, err := e.MarketInfo("rain", 5)
	require.NoError(t, err)
	require.Len(t, info.Outcomes[0].Depth.Asks, 1)
	assert.Equal(t, int64(5), info.Outcomes[0].Depth.Asks[0].Qty)
	assert.Nil(t, info.Outcomes[0].Depth.LastPrice)

	_, err = e.MarketSell(ctx, "alice", "rain", "1", 1)
	requireKind(t, err, errs.PartialFillRejected)
	assert.Equal(t, int64(5), e.Position("alice", "rain", "1"))
}

func TestMarketBuyNeedsFunds(t *testing.T) {
	e := newExchange(t, WithStartingBalance(d("2")))
	binary(t, e, "rain")
	_, err := e.BuyBundle(ctx, "alice", "rain", 2)
	require.NoError(t, err)
	_, err = e.PlaceSellOrder(ctx, "alice", "rain", "0", d("0.90"), 2)
	require.NoError(t, err)
	_, err = e.PlaceBuyOrder(ctx, "bob", "rain", "1", d("0.50"), 2)
	require.NoError(t, err)

	_, err = e.MarketBuy(ctx, "bob", "rain", "0", 2)
	requireKind(t, err, errs.InsufficientFunds)
	assertBalance(t, e, "bob", "1")
}

func TestMarketSellFillsRestingBids(t *testing.T) {
	e := newExchange(t)
	binary(t, e, "rain")
	_, err := e.PlaceBuyOrder(ctx, "bob", "rain", "1", d("0.30"), 5)
	require.NoError(t, err)
	_, err = e.BuyBundle(ctx, "alice", "rain", 5)
	require.NoError(t, err)

	res, err := e.MarketSell(ctx, "alice", "rain", "1", 5)
	require.NoError(t, err)
	assert.True(t, res.Total.Equal(d("1.50")))
	assertBalance(t, e, "alice", "996.50")
	assertBalance(t, e, "bob", "998.50")
	assert.Equal(t, int64(5), e.Position("bob", "rain", "1"))
	assert.Equal(t, int64(0), e.Position("alice", "rain", "1"))

	_, err = e.MarketSell(ctx, "alice", "rain", "0", 1)
	requireKind(t, err, errs.PartialFillRejected)
}

func TestSelfTradeIsAllowed(t *testing.T) {
	e := newExchange(t)
	binary(t, e, "rain")
	_, err := e.BuyBundle(ctx, "alice", "rain", 3)
	require.NoError(t, err)
	_, err = e.PlaceSellOrder(ctx, "alice", "rain", "0", d("0.60"), 3)
	require.NoError(t, err)

	res, err := e.PlaceBuyOrder(ctx, "alice", "rain", "0", d("0.60"), 3)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "alice", res.Matches[0].Buyer)
	assert.Equal(t, "alice", res.Matches[0].Seller)
	assertBalance(t, e, "alice", "997")
	assert.Equal(t, int64(3), e.Position("alice", "rain", "0"))
}

func TestResolveMarket(t *testing.T) {
	e := newExchange(t)
	binary(t, e, "rain")

	_, err := e.BuyBundle(ctx, "alice", "rain", 10)
	require.NoError(t, err)
	_, err = e.PlaceSellOrder(ctx, "alice", "rain", "1", d("0.60"), 4)
	require.NoError(t, err)
	_, err = e.PlaceBuyOrder(ctx, "bob", "rain", "0", d("0.30"), 3)
	require.NoError(t, err)
	_, err = e.PlaceBuyOrder(ctx, "carol", "rain", "1", d("0.60"), 2)
	require.NoError(t, err)

	assertBalance(t, e, "alice", "991.20")
	assertBalance(t, e, "bob", "999.10")
	assertBalance(t, e, "carol", "998.80")

	res, err := e.ResolveMarket(ctx, "rain", "0")
	require.NoError(t, err)
	assert.Equal(t, 2, res.RefundedOrders)
	require.Len(t, res.Payouts, 1)
	assert.True(t, res.Payouts["alice"].Equal(d("10")))

	assertBalance(t, e, "alice", "1001.20")
	assertBalance(t, e, "bob", "1000")
	assertBalance(t, e, "carol", "998.80")
	for _, u := range []string{"alice", "bob", "carol"} {
		assert.Empty(t, e.Positions(u, "rain"), u)
	}

	info, err := e.MarketInfo("rain", 5)
	require.NoError(t, err)
	assert.True(t, info.Resolved)
	assert.Equal(t, "0", info.Winner)
	for _, o := range info.Outcomes {
		assert.Empty(t, o.Depth.Bids)
		assert.Empty(t, o.Depth.Asks)
	}

	_, err = e.ResolveMarket(ctx, "rain", "1")
	requireKind(t, err, errs.AlreadyResolved)
	_, err = e.PlaceBuyOrder(ctx, "bob", "rain", "0", d("0.10"), 1)
	requireKind(t, err, errs.MarketResolved)
	_, err = e.BuyBundle(ctx, "bob", "rain", 1)
	requireKind(t, err, errs.MarketResolved)
	_, err = e.MarketBuy(ctx, "bob", "rain", "0", 1)
	requireKind(t, err, errs.MarketResolved)
	_, err = e.CancelOrder(ctx, "bob", "rain", "0", 1)
	requireKind(t, err, errs.MarketResolved)
}

func TestResolveValidation(t *testing.T) {
	e := newExchange(t)
	binary(t, e, "rain")
	_, err := e.ResolveMarket(ctx, "snow", "0")
	requireKind(t, err, errs.NotFound)
	_, err = e.ResolveMarket(ctx, "rain", "maybe")
	requireKind(t, err, errs.NotFound)

	info, err := e.MarketInfo("rain", 0)
	require.NoError(t, err)
	assert.False(t, info.Resolved)
}

// Cash plus bid escrow plus one dollar per outstanding bundle equals the
// money every user started with.
func TestCashIsConserved(t *testing.T) {
	e := newExchange(t)
	binary(t, e, "rain")
	users := []string{"u1", "u2", "u3", "u4"}

	steps := []func() error{
		func() error { _, err := e.BuyBundle(ctx, "u1", "rain", 20); return err },
		func() error { _, err := e.PlaceSellOrder(ctx, "u1", "rain", "0", d("0.55"), 8); return err },
		func() error { _, err := e.PlaceSellOrder(ctx, "u1", "rain", "1", d("0.48"), 6); return err },
		func() error { _, err := e.PlaceBuyOrder(ctx, "u2", "rain", "0", d("0.60"), 5); return err },
		func() error { _, err := e.PlaceBuyOrder(ctx, "u3", "rain", "1", d("0.37"), 9); return err },
		func() error { _, err := e.MarketBuy(ctx, "u4", "rain", "1", 4); return err },
		func() error { _, err := e.BuyBundle(ctx, "u3", "rain", 3); return err },
		func() error { _, err := e.MarketSell(ctx, "u3", "rain", "1", 3); return err },
		func() error { _, err := e.PlaceBuyOrder(ctx, "u4", "rain", "0", d("0.13"), 7); return err },
		func() error { _, err := e.SellBundle(ctx, "u1", "rain", 2); return err },
	}

	check := func() {
		t.Helper()
		cash := decimal.Zero
		for _, u := range users {
			cash = cash.Add(e.Balance(u))
		}
		var sharesOfZero int64
		for _, u := range users {
			sharesOfZero += e.Position(u, "rain", "0")
		}
		info, err := e.MarketInfo("rain", 100)
		require.NoError(t, err)
		for _, lvl := range info.Outcomes[0].Depth.Asks {
			sharesOfZero += lvl.Qty
		}
		for _, o := range info.Outcomes {
			for _, lvl := range o.Depth.Bids {
				cash = cash.Add(lvl.Price.Mul(decimal.NewFromInt(lvl.Qty)))
			}
		}
		total := cash.Add(decimal.NewFromInt(sharesOfZero))
		assert.True(t, total.Equal(d("4000")), "total %s", total)
	}

	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		check()
	}
}

func TestUserOrdersNewestFirst(t *testing.T) {
	e := newExchange(t)
	binary(t, e, "rain")
	first, err := e.PlaceBuyOrder(ctx, "bob", "rain", "0", d("0.10"), 1)
	require.NoError(t, err)
	second, err := e.PlaceBuyOrder(ctx, "bob", "rain", "1", d("0.20"), 2)
	require.NoError(t, err)
	_, err = e.PlaceBuyOrder(ctx, "carol", "rain", "1", d("0.20"), 2)
	require.NoError(t, err)

	orders, err := e.UserOrders("bob", "rain")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.Order.ID, orders[0].ID)
	assert.Equal(t, "1", orders[0].OutcomeID)
	assert.Equal(t, "No", orders[0].OutcomeName)
	assert.Equal(t, first.Order.ID, orders[1].ID)

	_, err = e.UserOrders("bob", "snow")
	requireKind(t, err, errs.NotFound)
}

func TestLeaderboard(t *testing.T) {
	e := newExchange(t)
	binary(t, e, "rain")
	binary(t, e, "snow")

	_, err := e.BuyBundle(ctx, "alice", "rain", 10)
	require.NoError(t, err)
	_, err = e.ResolveMarket(ctx, "rain", "0")
	require.NoError(t, err)
	_, err = e.PlaceBuyOrder(ctx, "bob", "snow", "0", d("0.50"), 10)
	require.NoError(t, err)
	_, err = e.BuyBundle(ctx, "carol", "snow", 1)
	require.NoError(t, err)
	_, err = e.BuyBundle(ctx, "dave", "snow", 1)
	require.NoError(t, err)

	board, err := e.Leaderboard("")
	require.NoError(t, err)
	require.Len(t, board, 4)
	assert.Equal(t, "alice", board[0].UserID)
	assert.Equal(t, 1, board[0].Rank)
	assert.True(t, board[0].Profit.Equal(d("0")))
	assert.Equal(t, "carol", board[1].UserID, "ties break by user id")
	assert.Equal(t, "dave", board[2].UserID)
	assert.Equal(t, "bob", board[3].UserID)
	assert.True(t, board[3].Profit.Equal(d("-5")))

	board, err = e.Leaderboard("snow")
	require.NoError(t, err)
	var ids []string
	for _, row := range board {
		ids = append(ids, row.UserID)
	}
	assert.Equal(t, []string{"carol", "dave", "bob"}, ids)

	_, err = e.Leaderboard("hail")
	requireKind(t, err, errs.NotFound)
}

func TestListMarkets(t *testing.T) {
	e := newExchange(t)
	binary(t, e, "rain")
	binary(t, e, "snow")
	list := e.ListMarkets()
	require.Len(t, list, 2)
	assert.Equal(t, "rain", list[0].ID)
	assert.Equal(t, "snow", list[1].ID)
	assert.Empty(t, list[0].Outcomes[0].Depth.Bids)
}

func TestTotalBestPrices(t *testing.T) {
	e := newExchange(t)
	binary(t, e, "rain")
	_, err := e.PlaceBuyOrder(ctx, "bob", "rain", "0", d("0.40"), 1)
	require.NoError(t, err)
	_, err = e.PlaceBuyOrder(ctx, "bob", "rain", "1", d("0.55"), 1)
	require.NoError(t, err)
	_, err = e.BuyBundle(ctx, "alice", "rain", 1)
	require.NoError(t, err)
	_, err = e.PlaceSellOrder(ctx, "alice", "rain", "0", d("0.45"), 1)
	require.NoError(t, err)

	info, err := e.MarketInfo("rain", 0)
	require.NoError(t, err)
	assert.True(t, info.TotalBestBids.Equal(d("0.95")))
	assert.True(t, info.TotalBestAsks.Equal(d("0.45")))
	assert.True(t, info.Outcomes[0].BestBid.Equal(d("0.40")))
	assert.Nil(t, info.Outcomes[1].BestAsk)
}

func TestCancelledContext(t *testing.T) {
	e := newExchange(t)
	c, cancel := context.WithCancel(ctx)
	cancel()
	_, err := e.CreateMarket(c, "rain", "", []market.OutcomeSpec{{Name: "Yes"}})
	assert.ErrorIs(t, err, context.Canceled)
}
