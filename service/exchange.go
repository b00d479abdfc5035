package service

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"forecast/domain/ledger"
	"forecast/domain/market"
	"forecast/domain/orderbook"
	"forecast/infra/metrics"
	"forecast/infra/sequence"
	"forecast/infra/wal"
	entrywal "forecast/infra/wal/entry"
)

// BundlePrice is the fixed price of one share of every outcome.
var BundlePrice = decimal.NewFromInt(1)

const defaultDepth = 5

// Journal is the durable command log. *entry.WAL implements it.
type Journal interface {
	Append(*entrywal.Record) error
	TruncateBefore(seq uint64) error
}

// Outbox stores settlement events for the broadcaster. *exit.ExitWAL
// implements it.
type Outbox interface {
	PutNew(seq uint64, payload []byte) error
}

/*
Exchange serialises every mutation behind one lock, so each command is
validated, escrowed, matched and settled before the next starts.
Queries share the read lock and return copies.
*/
type Exchange struct {
	mu sync.RWMutex
	// snapMu keeps snapshot export, write and journal truncation in one
	// piece, so a later snapshot can never be overwritten by an earlier one.
	snapMu sync.Mutex

	markets *market.Registry
	ledger  *ledger.Ledger

	log     *zap.Logger
	metrics *metrics.Metrics
	clock   func() time.Time
	depth   int

	journal  Journal
	seq      *sequence.Sequencer
	codec    wal.Serializer
	outbox   Outbox
	eventSeq *sequence.Sequencer

	// at is the time of the command in flight; every timestamp a
	// command produces reads it, so replay reproduces them exactly.
	at        time.Time
	replaying bool
}

type Option func(*Exchange)

func WithLogger(l *zap.Logger) Option {
	return func(e *Exchange) { e.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(e *Exchange) { e.clock = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Exchange) { e.metrics = m }
}

// WithJournal appends every accepted command to j, numbered by seq.
func WithJournal(j Journal, seq *sequence.Sequencer) Option {
	return func(e *Exchange) {
		e.journal = j
		e.seq = seq
	}
}

// WithOutbox records trades, cancellations and resolutions in o.
func WithOutbox(o Outbox, seq *sequence.Sequencer) Option {
	return func(e *Exchange) {
		e.outbox = o
		e.eventSeq = seq
	}
}

func WithStartingBalance(d decimal.Decimal) Option {
	return func(e *Exchange) { e.ledger = ledger.NewWithStart(d) }
}

// WithDepth sets how many orders per side MarketInfo shows by default.
func WithDepth(n int) Option {
	return func(e *Exchange) {
		if n > 0 {
			e.depth = n
		}
	}
}

// NewExchange wires all dependencies.
// No globals.
func NewExchange(opts ...Option) *Exchange {
	e := &Exchange{
		markets: market.NewRegistry(),
		ledger:  ledger.New(),
		log:     zap.NewNop(),
		clock:   time.Now,
		depth:   defaultDepth,
		codec:   wal.ProtoSerializer{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.journal != nil && e.seq == nil {
		e.seq = sequence.New(0)
	}
	if e.outbox != nil && e.eventSeq == nil {
		e.eventSeq = sequence.New(0)
	}
	return e
}

func (e *Exchange) now() time.Time { return e.at }

func (e *Exchange) stamp() { e.at = e.clock() }

func (e *Exchange) bookOptions() []orderbook.Option {
	return []orderbook.Option{orderbook.WithClock(e.now)}
}

// JournalSeq is the sequence of the last journalled command.
func (e *Exchange) JournalSeq() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.seq == nil {
		return 0
	}
	return e.seq.Current()
}

func (e *Exchange) restingOrders() int {
	n := 0
	for _, m := range e.markets.List() {
		for _, o := range m.Outcomes() {
			n += len(o.Book.Orders())
		}
	}
	return n
}
