package market

import (
	"sort"
	"strconv"
	"time"

	"forecast/domain/errs"
	"forecast/domain/orderbook"
)

type Outcome struct {
	ID   string
	Name string
	Book *orderbook.OrderBook
}

// OutcomeSpec describes an outcome at creation. An empty ID becomes the
// outcome's index and an empty Name falls back to the ID.
type OutcomeSpec struct {
	ID   string
	Name string
}

type Market struct {
	ID          string
	Description string
	Created     time.Time
	Resolved    bool
	Winner      string

	order    []string
	outcomes map[string]*Outcome
}

func (m *Market) Outcome(id string) (*Outcome, error) {
	o, ok := m.outcomes[id]
	if !ok {
		return nil, errs.New(errs.NotFound, "outcome %s not found in market %s", id, m.ID)
	}
	return o, nil
}

// Outcomes returns outcomes in creation order.
func (m *Market) Outcomes() []*Outcome {
	out := make([]*Outcome, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.outcomes[id])
	}
	return out
}

func (m *Market) OutcomeIDs() []string {
	return append([]string(nil), m.order...)
}

// CheckActive fails with MarketResolved once the market is terminal.
func (m *Market) CheckActive() error {
	if m.Resolved {
		return errs.New(errs.MarketResolved, "market %s is resolved", m.ID)
	}
	return nil
}

// Resolve flips the market to its terminal state. Books must already be
// drained by the caller.
func (m *Market) Resolve(winner string) error {
	if m.Resolved {
		return errs.New(errs.AlreadyResolved, "market %s already resolved", m.ID)
	}
	if _, err := m.Outcome(winner); err != nil {
		return err
	}
	m.Resolved = true
	m.Winner = winner
	return nil
}

// New builds a market without registering it.
func New(id, description string, created time.Time, specs []OutcomeSpec, opts ...orderbook.Option) (*Market, error) {
	if id == "" {
		return nil, errs.New(errs.InvalidInput, "market id is required")
	}
	if len(specs) == 0 {
		return nil, errs.New(errs.InvalidInput, "market %s needs at least one outcome", id)
	}

	m := &Market{
		ID:          id,
		Description: description,
		Created:     created,
		outcomes:    make(map[string]*Outcome, len(specs)),
	}
	for i, s := range specs {
		oid := s.ID
		if oid == "" {
			oid = strconv.Itoa(i)
		}
		name := s.Name
		if name == "" {
			name = oid
		}
		if _, dup := m.outcomes[oid]; dup {
			return nil, errs.New(errs.InvalidInput, "duplicate outcome %s in market %s", oid, id)
		}
		m.outcomes[oid] = &Outcome{ID: oid, Name: name, Book: orderbook.NewOrderBook(oid, opts...)}
		m.order = append(m.order, oid)
	}
	return m, nil
}

// Registry is the set of known markets. Not safe for concurrent use;
// the exchange serialises access.
type Registry struct {
	markets map[string]*Market
}

func NewRegistry() *Registry {
	return &Registry{markets: make(map[string]*Market)}
}

func (r *Registry) Create(id, description string, created time.Time, specs []OutcomeSpec, opts ...orderbook.Option) (*Market, error) {
	if _, ok := r.markets[id]; ok {
		return nil, errs.New(errs.MarketAlreadyExists, "market %s already exists", id)
	}
	m, err := New(id, description, created, specs, opts...)
	if err != nil {
		return nil, err
	}
	r.markets[id] = m
	return m, nil
}

// Put registers a restored market, replacing any existing entry.
func (r *Registry) Put(m *Market) {
	r.markets[m.ID] = m
}

func (r *Registry) Get(id string) (*Market, error) {
	m, ok := r.markets[id]
	if !ok {
		return nil, errs.New(errs.NotFound, "market %s not found", id)
	}
	return m, nil
}

// List returns markets oldest first, ties broken by id.
func (r *Registry) List() []*Market {
	out := make([]*Market, 0, len(r.markets))
	for _, m := range r.markets {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.Before(out[j].Created)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *Registry) Len() int { return len(r.markets) }
