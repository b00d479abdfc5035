package broadcaster

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventMarketCreated  EventType = "market_created"
	EventOrderPlaced    EventType = "order_placed"
	EventOrderCancelled EventType = "order_cancelled"
	EventTrade          EventType = "trade"
	EventBundleBought   EventType = "bundle_bought"
	EventBundleSold     EventType = "bundle_sold"
	EventMarketResolved EventType = "market_resolved"
)

// EventVersion is bumped when Event changes shape incompatibly.
const EventVersion = 1

// Event is the outbox payload. Monetary values travel as decimal strings.
type Event struct {
	V         int       `json:"v"`
	Type      EventType `json:"type"`
	Seq       uint64    `json:"seq"`
	Time      time.Time `json:"time"`
	MarketID  string    `json:"marketId"`
	OutcomeID string    `json:"outcomeId,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	OrderID   uint64    `json:"orderId,omitempty"`
	Side      string    `json:"side,omitempty"`
	Buyer     string    `json:"buyer,omitempty"`
	Seller    string    `json:"seller,omitempty"`
	Price     string    `json:"price,omitempty"`
	Qty       int64     `json:"qty,omitempty"`
	Winner    string    `json:"winner,omitempty"`
}

func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func UnmarshalEvent(b []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(b, &e)
	return e, err
}
