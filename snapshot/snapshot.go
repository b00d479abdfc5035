package snapshot

import (
	"time"

	"github.com/shopspring/decimal"
)

type Document struct {
	Markets       map[string]MarketDoc                   `json:"markets"`
	UserBalances  map[string]decimal.Decimal             `json:"userBalances"`
	UserPositions map[string]map[string]map[string]int64 `json:"userPositions"`
	BundlePrice   decimal.Decimal                        `json:"bundlePrice"`
	Seq           uint64                                 `json:"seq"`
	Created       time.Time                              `json:"created"`
}

type MarketDoc struct {
	ID             string                `json:"id"`
	Description    string                `json:"description"`
	Created        time.Time             `json:"created"`
	Resolved       bool                  `json:"resolved"`
	WinningOutcome string                `json:"winningOutcome,omitempty"`
	OutcomeOrder   []string              `json:"outcomeOrder"`
	Outcomes       map[string]OutcomeDoc `json:"outcomes"`
}

type OutcomeDoc struct {
	Name      string  `json:"name"`
	OrderBook BookDoc `json:"orderBook"`
}

type BookDoc struct {
	Bids        []OrderDoc       `json:"bids"`
	Asks        []OrderDoc       `json:"asks"`
	LastPrice   *decimal.Decimal `json:"lastPrice"`
	Volume      int64            `json:"volume"`
	NextOrderID uint64           `json:"nextOrderId"`
}

type OrderDoc struct {
	ID        uint64          `json:"id"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	UserID    string          `json:"userId"`
	Timestamp time.Time       `json:"timestamp"`
}

// Empty is the document of a fresh exchange.
func Empty() *Document {
	return &Document{
		Markets:       map[string]MarketDoc{},
		UserBalances:  map[string]decimal.Decimal{},
		UserPositions: map[string]map[string]map[string]int64{},
		BundlePrice:   decimal.NewFromInt(1),
	}
}

// normalize fills maps a hand-edited or older file may omit.
func (d *Document) normalize() {
	if d.Markets == nil {
		d.Markets = map[string]MarketDoc{}
	}
	if d.UserBalances == nil {
		d.UserBalances = map[string]decimal.Decimal{}
	}
	if d.UserPositions == nil {
		d.UserPositions = map[string]map[string]map[string]int64{}
	}
	if d.BundlePrice.IsZero() {
		d.BundlePrice = decimal.NewFromInt(1)
	}
	for id, m := range d.Markets {
		if len(m.OutcomeOrder) == len(m.Outcomes) {
			continue
		}
		m.OutcomeOrder = m.OutcomeOrder[:0]
		for oid := range m.Outcomes {
			m.OutcomeOrder = append(m.OutcomeOrder, oid)
		}
		sortOutcomeIDs(m.OutcomeOrder)
		d.Markets[id] = m
	}
}
