package orderbook

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

// Order is a resting limit order. Qty is the remaining quantity and
// shrinks on partial fills; ID never changes.
type Order struct {
	ID      uint64
	Side    Side
	Price   decimal.Decimal
	Qty     int64
	UserID  string
	Created time.Time

	next *Order
	prev *Order
}

// Escrow is the cash a buy order still holds.
func (o Order) Escrow() decimal.Decimal {
	return o.Price.Mul(decimal.NewFromInt(o.Qty))
}

// detached returns a copy safe to hand outside the book.
func (o *Order) detached() Order {
	c := *o
	c.next = nil
	c.prev = nil
	return c
}

// Match is one execution between a buyer and a seller.
// BuyerLimit is the buyer's limit price, which drives the
// price-improvement refund when it exceeds Price.
type Match struct {
	Buyer      string
	Seller     string
	Price      decimal.Decimal
	Qty        int64
	BuyerLimit decimal.Decimal
	Time       time.Time
}

// Notional is Price x Qty.
func (m Match) Notional() decimal.Decimal {
	return m.Price.Mul(decimal.NewFromInt(m.Qty))
}

// Improvement is the refund owed to the buyer, zero if none.
func (m Match) Improvement() decimal.Decimal {
	diff := m.BuyerLimit.Sub(m.Price)
	if !diff.IsPositive() {
		return decimal.Zero
	}
	return diff.Mul(decimal.NewFromInt(m.Qty))
}
