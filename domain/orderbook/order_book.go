package orderbook

import (
	"time"

	"github.com/shopspring/decimal"

	"forecast/domain/errs"
)

var (
	one  = decimal.NewFromInt(1)
	tick = decimal.New(1, -2)
)

// ValidatePrice accepts prices strictly inside (0, 1) on the $0.01 grid.
func ValidatePrice(p decimal.Decimal) error {
	if !p.IsPositive() || !p.LessThan(one) {
		return errs.New(errs.InvalidInput, "price %s must be between 0 and 1 (exclusive)", p.String())
	}
	if !p.Mod(tick).IsZero() {
		return errs.New(errs.InvalidInput, "price %s must be a whole number of cents", p.String())
	}
	return nil
}

func ValidateQty(q int64) error {
	if q <= 0 {
		return errs.New(errs.InvalidInput, "quantity %d must be a positive integer", q)
	}
	return nil
}

type Option func(*OrderBook)

func WithClock(now func() time.Time) Option {
	return func(b *OrderBook) { b.now = now }
}

// OrderBook is single-writer and deterministic given its clock.
type OrderBook struct {
	Outcome string

	bids  *RBTree
	asks  *RBTree
	index map[uint64]*Order

	nextID    uint64
	lastPrice decimal.Decimal
	hasLast   bool
	volume    int64

	now func() time.Time
}

func NewOrderBook(outcome string, opts ...Option) *OrderBook {
	b := &OrderBook{
		Outcome: outcome,
		bids:    NewRBTree(),
		asks:    NewRBTree(),
		index:   make(map[uint64]*Order),
		nextID:  1,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

func (b *OrderBook) AddBid(price decimal.Decimal, qty int64, user string) (Order, error) {
	return b.add(Buy, price, qty, user)
}

func (b *OrderBook) AddAsk(price decimal.Decimal, qty int64, user string) (Order, error) {
	return b.add(Sell, price, qty, user)
}

func (b *OrderBook) add(side Side, price decimal.Decimal, qty int64, user string) (Order, error) {
	if err := ValidatePrice(price); err != nil {
		return Order{}, err
	}
	if err := ValidateQty(qty); err != nil {
		return Order{}, err
	}

	o := &Order{
		ID:      b.nextID,
		Side:    side,
		Price:   price,
		Qty:     qty,
		UserID:  user,
		Created: b.now(),
	}
	b.nextID++
	b.enqueue(o)
	return o.detached(), nil
}

// MatchOrders crosses the book until best bid < best ask or a side is
// empty. Each trade executes at the price of the older of the two
// orders, so an aggressive newcomer gets price improvement.
func (b *OrderBook) MatchOrders() []Match {
	var matches []Match
	for {
		bidLvl := b.bids.MaxLevel()
		askLvl := b.asks.MinLevel()
		if bidLvl == nil || askLvl == nil || bidLvl.Price.LessThan(askLvl.Price) {
			return matches
		}

		bid := bidLvl.Head()
		ask := askLvl.Head()
		qty := min(bid.Qty, ask.Qty)

		price := ask.Price
		if bid.ID < ask.ID {
			price = bid.Price
		}

		matches = append(matches, Match{
			Buyer:      bid.UserID,
			Seller:     ask.UserID,
			Price:      price,
			Qty:        qty,
			BuyerLimit: bid.Price,
			Time:       b.now(),
		})
		b.recordTrade(price, qty)

		b.fillHead(b.bids, bidLvl, qty)
		b.fillHead(b.asks, askLvl, qty)
	}
}

// MarketBuy sweeps the asks from the best price outward. The caller
// gets one Match per consumed resting order and the unfilled remainder.
func (b *OrderBook) MarketBuy(qty int64, user string) ([]Match, int64) {
	return b.sweep(b.asks, b.asks.MinLevel, qty, func(head *Order, fill int64) Match {
		return Match{
			Buyer:      user,
			Seller:     head.UserID,
			Price:      head.Price,
			Qty:        fill,
			BuyerLimit: head.Price,
			Time:       b.now(),
		}
	})
}

// MarketSell sweeps the bids from the best price outward.
func (b *OrderBook) MarketSell(qty int64, user string) ([]Match, int64) {
	return b.sweep(b.bids, b.bids.MaxLevel, qty, func(head *Order, fill int64) Match {
		return Match{
			Buyer:      head.UserID,
			Seller:     user,
			Price:      head.Price,
			Qty:        fill,
			BuyerLimit: head.Price,
			Time:       b.now(),
		}
	})
}

func (b *OrderBook) sweep(
	tree *RBTree,
	best func() *PriceLevel,
	qty int64,
	mk func(head *Order, fill int64) Match,
) ([]Match, int64) {
	var filled []Match
	remaining := qty
	for remaining > 0 {
		lvl := best()
		if lvl == nil {
			break
		}
		head := lvl.Head()
		fill := min(remaining, head.Qty)

		filled = append(filled, mk(head, fill))
		b.recordTrade(head.Price, fill)

		remaining -= fill
		b.fillHead(tree, lvl, fill)
	}
	return filled, remaining
}

// PreviewMarketBuy reports how much of qty the asks could fill and
// what it would cost, without touching the book.
func (b *OrderBook) PreviewMarketBuy(qty int64) (int64, decimal.Decimal) {
	return preview(b.asks.ForEachAscending, qty)
}

// PreviewMarketSell reports fillable quantity and proceeds against the bids.
func (b *OrderBook) PreviewMarketSell(qty int64) (int64, decimal.Decimal) {
	return preview(b.bids.ForEachDescending, qty)
}

func preview(walk func(func(*PriceLevel) bool), qty int64) (int64, decimal.Decimal) {
	var fillable int64
	total := decimal.Zero
	walk(func(lvl *PriceLevel) bool {
		take := min(qty-fillable, lvl.TotalQty)
		fillable += take
		total = total.Add(lvl.Price.Mul(decimal.NewFromInt(take)))
		return fillable < qty
	})
	return fillable, total
}

// CancelOrder removes the order if it exists and belongs to user.
func (b *OrderBook) CancelOrder(id uint64, user string) (Order, error) {
	o, ok := b.index[id]
	if !ok || o.UserID != user {
		return Order{}, errs.New(errs.NotFound, "order %d not found or not owned by user", id)
	}
	tree := b.treeFor(o.Side)
	lvl := tree.FindLevel(o.Price)
	lvl.Unlink(o)
	if lvl.Empty() {
		tree.DeleteLevel(lvl.Price)
	}
	delete(b.index, id)
	return o.detached(), nil
}

// Clear drains every resting order, bids first. Order ids keep
// counting from where they were.
func (b *OrderBook) Clear() []Order {
	out := b.Orders()
	b.bids.Clear()
	b.asks.Clear()
	b.index = make(map[uint64]*Order)
	return out
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

func (b *OrderBook) BestBid() (decimal.Decimal, bool) {
	if lvl := b.bids.MaxLevel(); lvl != nil {
		return lvl.Price, true
	}
	return decimal.Zero, false
}

func (b *OrderBook) BestAsk() (decimal.Decimal, bool) {
	if lvl := b.asks.MinLevel(); lvl != nil {
		return lvl.Price, true
	}
	return decimal.Zero, false
}

func (b *OrderBook) LastPrice() (decimal.Decimal, bool) {
	return b.lastPrice, b.hasLast
}

func (b *OrderBook) Volume() int64 { return b.volume }

func (b *OrderBook) NextOrderID() uint64 { return b.nextID }

// Level is one row of a depth view.
type Level struct {
	Price decimal.Decimal
	Qty   int64
}

// Depth is a read-only projection for display.
type Depth struct {
	Bids      []Level
	Asks      []Level
	LastPrice *decimal.Decimal
	Volume    int64
}

// Depth returns up to n resting orders per side, best first.
func (b *OrderBook) Depth(n int) Depth {
	d := Depth{Volume: b.volume}
	if b.hasLast {
		p := b.lastPrice
		d.LastPrice = &p
	}
	d.Bids = topN(b.bids.ForEachDescending, n)
	d.Asks = topN(b.asks.ForEachAscending, n)
	return d
}

func topN(walk func(func(*PriceLevel) bool), n int) []Level {
	out := []Level{}
	if n <= 0 {
		return out
	}
	walk(func(lvl *PriceLevel) bool {
		return lvl.Each(func(o *Order) bool {
			out = append(out, Level{Price: o.Price, Qty: o.Qty})
			return len(out) < n
		})
	})
	return out
}

// Orders lists resting orders in priority order: bids best to worst,
// then asks best to worst.
func (b *OrderBook) Orders() []Order {
	out := make([]Order, 0, len(b.index))
	collect := func(lvl *PriceLevel) bool {
		lvl.Each(func(o *Order) bool {
			out = append(out, o.detached())
			return true
		})
		return true
	}
	b.bids.ForEachDescending(collect)
	b.asks.ForEachAscending(collect)
	return out
}

func (b *OrderBook) UserOrders(user string) []Order {
	var out []Order
	for _, o := range b.Orders() {
		if o.UserID == user {
			out = append(out, o)
		}
	}
	return out
}

//
// ──────────────────────────────────────────────────────────
// Restore
// ──────────────────────────────────────────────────────────
//

// Restore appends a previously persisted order at the tail of its
// level. Orders must be restored in priority order.
func (b *OrderBook) Restore(o Order) error {
	if err := ValidatePrice(o.Price); err != nil {
		return err
	}
	if err := ValidateQty(o.Qty); err != nil {
		return err
	}
	if _, dup := b.index[o.ID]; dup || o.ID == 0 {
		return errs.New(errs.InvalidInput, "duplicate or zero order id %d", o.ID)
	}
	c := o
	b.enqueue(&c)
	b.SetNextOrderID(o.ID + 1)
	return nil
}

// SetNextOrderID raises the id high-water mark; it never lowers it.
func (b *OrderBook) SetNextOrderID(id uint64) {
	if id > b.nextID {
		b.nextID = id
	}
}

func (b *OrderBook) SetLastTrade(price *decimal.Decimal, volume int64) {
	if price != nil {
		b.lastPrice = *price
		b.hasLast = true
	}
	b.volume = volume
}

//
// ──────────────────────────────────────────────────────────
// internals
// ──────────────────────────────────────────────────────────
//

func (b *OrderBook) treeFor(s Side) *RBTree {
	if s == Buy {
		return b.bids
	}
	return b.asks
}

func (b *OrderBook) enqueue(o *Order) {
	b.treeFor(o.Side).UpsertLevel(o.Price).Enqueue(o)
	b.index[o.ID] = o
}

func (b *OrderBook) fillHead(tree *RBTree, lvl *PriceLevel, qty int64) {
	head := lvl.Head()
	if head.Qty == qty {
		delete(b.index, head.ID)
	}
	lvl.Fill(qty)
	if lvl.Empty() {
		tree.DeleteLevel(lvl.Price)
	}
}

func (b *OrderBook) recordTrade(price decimal.Decimal, qty int64) {
	b.lastPrice = price
	b.hasLast = true
	b.volume += qty
}
