package service

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"forecast/domain/ledger"
	"forecast/domain/market"
	"forecast/domain/orderbook"
)

type OutcomeInfo struct {
	ID      string
	Name    string
	Depth   orderbook.Depth
	BestBid *decimal.Decimal
	BestAsk *decimal.Decimal
}

// MarketInfo is a read-only view of one market. TotalBestBids and
// TotalBestAsks sum the top of book across outcomes; against BundlePrice
// they show whether buying or selling bundles is profitable.
type MarketInfo struct {
	ID            string
	Description   string
	Created       time.Time
	Outcomes      []OutcomeInfo
	TotalBestBids decimal.Decimal
	TotalBestAsks decimal.Decimal
	BundlePrice   decimal.Decimal
	Resolved      bool
	Winner        string
}

type UserOrder struct {
	orderbook.Order
	OutcomeID   string
	OutcomeName string
}

type LeaderboardEntry struct {
	Rank    int
	UserID  string
	Balance decimal.Decimal
	Profit  decimal.Decimal
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

// MarketInfo shows up to depth orders per side; depth <= 0 uses the
// configured default.
func (e *Exchange) MarketInfo(marketID string, depth int) (*MarketInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	m, err := e.markets.Get(marketID)
	if err != nil {
		return nil, err
	}
	if depth <= 0 {
		depth = e.depth
	}
	info := marketInfo(m, depth)
	return &info, nil
}

// ListMarkets returns every market oldest first, without depth.
func (e *Exchange) ListMarkets() []MarketInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	list := e.markets.List()
	out := make([]MarketInfo, 0, len(list))
	for _, m := range list {
		out = append(out, marketInfo(m, 0))
	}
	return out
}

func marketInfo(m *market.Market, depth int) MarketInfo {
	info := MarketInfo{
		ID:            m.ID,
		Description:   m.Description,
		Created:       m.Created,
		TotalBestBids: decimal.Zero,
		TotalBestAsks: decimal.Zero,
		BundlePrice:   BundlePrice,
		Resolved:      m.Resolved,
		Winner:        m.Winner,
	}
	for _, o := range m.Outcomes() {
		oi := OutcomeInfo{ID: o.ID, Name: o.Name, Depth: o.Book.Depth(depth)}
		if p, ok := o.Book.BestBid(); ok {
			oi.BestBid = &p
			info.TotalBestBids = info.TotalBestBids.Add(p)
		}
		if p, ok := o.Book.BestAsk(); ok {
			oi.BestAsk = &p
			info.TotalBestAsks = info.TotalBestAsks.Add(p)
		}
		info.Outcomes = append(info.Outcomes, oi)
	}
	return info
}

func (e *Exchange) Balance(user string) decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.Balance(user)
}

func (e *Exchange) Position(user, marketID, outcomeID string) int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.Position(user, marketID, outcomeID)
}

func (e *Exchange) Positions(user, marketID string) map[string]int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.Positions(user, marketID)
}

// UserOrders lists the user's resting orders in a market, newest first.
func (e *Exchange) UserOrders(user, marketID string) ([]UserOrder, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	m, err := e.markets.Get(marketID)
	if err != nil {
		return nil, err
	}
	var out []UserOrder
	for _, o := range m.Outcomes() {
		for _, ord := range o.Book.UserOrders(user) {
			out = append(out, UserOrder{Order: ord, OutcomeID: o.ID, OutcomeName: o.Name})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.After(out[j].Created)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Leaderboard ranks users by balance, richest first. With a market id
// only users holding shares or resting orders there are listed.
func (e *Exchange) Leaderboard(marketID string) ([]LeaderboardEntry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	users := e.ledger.Users()
	if marketID != "" {
		m, err := e.markets.Get(marketID)
		if err != nil {
			return nil, err
		}
		users = e.participants(m, users)
	}

	out := make([]LeaderboardEntry, 0, len(users))
	for _, u := range users {
		bal := e.ledger.Balance(u)
		out = append(out, LeaderboardEntry{
			UserID:  u,
			Balance: bal,
			Profit:  ledger.Round(bal.Sub(e.ledger.Start())),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Balance.Cmp(out[j].Balance); c != 0 {
			return c > 0
		}
		return out[i].UserID < out[j].UserID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

func (e *Exchange) participants(m *market.Market, users []string) []string {
	active := make(map[string]bool)
	for _, o := range m.Outcomes() {
		for _, ord := range o.Book.Orders() {
			active[ord.UserID] = true
		}
	}
	var out []string
	for _, u := range users {
		if active[u] || e.ledger.HasPosition(u, m.ID) {
			out = append(out, u)
		}
	}
	return out
}
