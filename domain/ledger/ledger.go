package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"forecast/domain/errs"
	"forecast/domain/orderbook"
)

var StartingBalance = decimal.NewFromInt(1000)

// Round applies the cent rounding discipline used for every cash movement.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

type Ledger struct {
	start     decimal.Decimal
	balances  map[string]decimal.Decimal
	positions map[string]map[string]map[string]int64 // user -> market -> outcome -> shares
}

func New() *Ledger {
	return NewWithStart(StartingBalance)
}

func NewWithStart(start decimal.Decimal) *Ledger {
	return &Ledger{
		start:     Round(start),
		balances:  make(map[string]decimal.Decimal),
		positions: make(map[string]map[string]map[string]int64),
	}
}

func (l *Ledger) Start() decimal.Decimal { return l.start }

// Touch creates the account if this is the first time user is seen.
func (l *Ledger) Touch(user string) {
	if _, ok := l.balances[user]; !ok {
		l.balances[user] = l.start
		l.positions[user] = make(map[string]map[string]int64)
	}
}

func (l *Ledger) Known(user string) bool {
	_, ok := l.balances[user]
	return ok
}

// Balance is rounded to cents and never negative. Unknown users read
// as the starting balance they would be created with.
func (l *Ledger) Balance(user string) decimal.Decimal {
	b, ok := l.balances[user]
	if !ok {
		return l.start
	}
	b = Round(b)
	if b.IsNegative() {
		return decimal.Zero
	}
	return b
}

func (l *Ledger) Position(user, market, outcome string) int64 {
	return l.positions[user][market][outcome]
}

// Positions copies the user's per-outcome shares in market.
func (l *Ledger) Positions(user, market string) map[string]int64 {
	out := make(map[string]int64)
	for o, n := range l.positions[user][market] {
		out[o] = n
	}
	return out
}

// HasPosition reports whether user has any entry in market.
func (l *Ledger) HasPosition(user, market string) bool {
	for _, n := range l.positions[user][market] {
		if n != 0 {
			return true
		}
	}
	return false
}

//
// ──────────────────────────────────────────────────────────
// Cash
// ──────────────────────────────────────────────────────────
//

// CheckCash fails with InsufficientFunds if user cannot cover amount.
func (l *Ledger) CheckCash(user string, amount decimal.Decimal) error {
	have := l.Balance(user)
	if have.LessThan(Round(amount)) {
		return errs.Funds(Round(amount), have)
	}
	return nil
}

// HoldCash deducts amount or fails without side effects.
func (l *Ledger) HoldCash(user string, amount decimal.Decimal) error {
	if err := l.CheckCash(user, amount); err != nil {
		return err
	}
	l.Touch(user)
	l.balances[user] = Round(l.balances[user].Sub(amount))
	return nil
}

func (l *Ledger) Credit(user string, amount decimal.Decimal) {
	l.Touch(user)
	l.balances[user] = Round(l.balances[user].Add(amount))
}

//
// ──────────────────────────────────────────────────────────
// Shares
// ──────────────────────────────────────────────────────────
//

func (l *Ledger) CheckShares(user, market, outcome string, qty int64) error {
	have := l.Position(user, market, outcome)
	if have < qty {
		return errs.Position(outcome, qty, have)
	}
	return nil
}

// HoldShares decrements the position or fails without side effects.
func (l *Ledger) HoldShares(user, market, outcome string, qty int64) error {
	if err := l.CheckShares(user, market, outcome, qty); err != nil {
		return err
	}
	l.book(user, market)[outcome] -= qty
	return nil
}

// HoldBundle takes qty shares of every listed outcome, or none of them.
func (l *Ledger) HoldBundle(user, market string, outcomes []string, qty int64) error {
	for _, oid := range outcomes {
		if err := l.CheckShares(user, market, oid, qty); err != nil {
			return err
		}
	}
	mp := l.book(user, market)
	for _, oid := range outcomes {
		mp[oid] -= qty
	}
	return nil
}

func (l *Ledger) CreditShares(user, market, outcome string, qty int64) {
	l.book(user, market)[outcome] += qty
}

func (l *Ledger) book(user, market string) map[string]int64 {
	l.Touch(user)
	mp, ok := l.positions[user][market]
	if !ok {
		mp = make(map[string]int64)
		l.positions[user][market] = mp
	}
	return mp
}

//
// ──────────────────────────────────────────────────────────
// Settlement
// ──────────────────────────────────────────────────────────
//

// SettleMatch applies one execution. The seller's shares and the
// buyer's cash were escrowed before the order reached the book.
func (l *Ledger) SettleMatch(market, outcome string, m orderbook.Match) {
	l.Credit(m.Seller, m.Notional())
	if refund := m.Improvement(); refund.IsPositive() {
		l.Credit(m.Buyer, refund)
	}
	l.CreditShares(m.Buyer, market, outcome, m.Qty)
}

// ClearMarket drops every user's positions in market.
func (l *Ledger) ClearMarket(market string) {
	for _, mp := range l.positions {
		delete(mp, market)
	}
}

// Holders lists users with a non-zero position in outcome, sorted.
func (l *Ledger) Holders(market, outcome string) []string {
	var out []string
	for u, mp := range l.positions {
		if mp[market][outcome] != 0 {
			out = append(out, u)
		}
	}
	sort.Strings(out)
	return out
}

func (l *Ledger) Users() []string {
	out := make([]string, 0, len(l.balances))
	for u := range l.balances {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

//
// ──────────────────────────────────────────────────────────
// Snapshot
// ──────────────────────────────────────────────────────────
//

func (l *Ledger) Balances() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(l.balances))
	for u, b := range l.balances {
		out[u] = b
	}
	return out
}

func (l *Ledger) AllPositions() map[string]map[string]map[string]int64 {
	out := make(map[string]map[string]map[string]int64, len(l.positions))
	for u, markets := range l.positions {
		um := make(map[string]map[string]int64, len(markets))
		for m, outcomes := range markets {
			om := make(map[string]int64, len(outcomes))
			for o, n := range outcomes {
				om[o] = n
			}
			um[m] = om
		}
		out[u] = um
	}
	return out
}

// Restore replaces all accounts. Users present only in positions get
// the starting balance.
func (l *Ledger) Restore(balances map[string]decimal.Decimal, positions map[string]map[string]map[string]int64) {
	l.balances = make(map[string]decimal.Decimal, len(balances))
	l.positions = make(map[string]map[string]map[string]int64, len(balances))
	for u, b := range balances {
		l.balances[u] = Round(b)
		l.positions[u] = make(map[string]map[string]int64)
	}
	for u, markets := range positions {
		for m, outcomes := range markets {
			for o, n := range outcomes {
				l.book(u, m)[o] = n
			}
		}
	}
}
