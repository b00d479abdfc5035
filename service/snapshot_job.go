package service

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"forecast/domain/ledger"
	"forecast/domain/market"
	"forecast/domain/orderbook"
	"forecast/snapshot"
)

// Export copies the whole exchange into a snapshot document. Seq is the
// journal position the document reflects.
func (e *Exchange) Export() *snapshot.Document {
	e.mu.RLock()
	defer e.mu.RUnlock()

	doc := snapshot.Empty()
	doc.Created = e.clock()
	doc.BundlePrice = BundlePrice
	if e.seq != nil {
		doc.Seq = e.seq.Current()
	}

	for _, m := range e.markets.List() {
		md := snapshot.MarketDoc{
			ID:             m.ID,
			Description:    m.Description,
			Created:        m.Created,
			Resolved:       m.Resolved,
			WinningOutcome: m.Winner,
			OutcomeOrder:   m.OutcomeIDs(),
			Outcomes:       make(map[string]snapshot.OutcomeDoc),
		}
		for _, o := range m.Outcomes() {
			md.Outcomes[o.ID] = snapshot.OutcomeDoc{Name: o.Name, OrderBook: exportBook(o.Book)}
		}
		doc.Markets[m.ID] = md
	}

	doc.UserBalances = e.ledger.Balances()
	doc.UserPositions = e.ledger.AllPositions()
	return doc
}

func exportBook(b *orderbook.OrderBook) snapshot.BookDoc {
	bd := snapshot.BookDoc{
		Bids:        []snapshot.OrderDoc{},
		Asks:        []snapshot.OrderDoc{},
		Volume:      b.Volume(),
		NextOrderID: b.NextOrderID(),
	}
	if p, ok := b.LastPrice(); ok {
		bd.LastPrice = &p
	}
	for _, o := range b.Orders() {
		od := snapshot.OrderDoc{ID: o.ID, Price: o.Price, Quantity: o.Qty, UserID: o.UserID, Timestamp: o.Created}
		if o.Side == orderbook.Buy {
			bd.Bids = append(bd.Bids, od)
		} else {
			bd.Asks = append(bd.Asks, od)
		}
	}
	return bd
}

// Import replaces the exchange state with doc. Nothing changes if the
// document is invalid.
func (e *Exchange) Import(doc *snapshot.Document) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	reg := market.NewRegistry()

	ids := make([]string, 0, len(doc.Markets))
	for id := range doc.Markets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		md := doc.Markets[id]
		if md.ID == "" {
			md.ID = id
		}
		specs := make([]market.OutcomeSpec, 0, len(md.OutcomeOrder))
		for _, oid := range md.OutcomeOrder {
			specs = append(specs, market.OutcomeSpec{ID: oid, Name: md.Outcomes[oid].Name})
		}
		m, err := market.New(md.ID, md.Description, md.Created, specs, e.bookOptions()...)
		if err != nil {
			return errors.Wrapf(err, "import market %s", id)
		}
		m.Resolved = md.Resolved
		m.Winner = md.WinningOutcome

		for _, o := range m.Outcomes() {
			if err := importBook(o.Book, md.Outcomes[o.ID].OrderBook); err != nil {
				return errors.Wrapf(err, "import market %s outcome %s", id, o.ID)
			}
		}
		reg.Put(m)
	}

	led := ledger.NewWithStart(e.ledger.Start())
	led.Restore(doc.UserBalances, doc.UserPositions)

	e.markets = reg
	e.ledger = led
	if e.seq != nil {
		e.seq.Observe(doc.Seq)
	}
	e.log.Info("snapshot imported",
		zap.Int("markets", reg.Len()),
		zap.Int("users", len(led.Users())),
		zap.Uint64("seq", doc.Seq))
	return nil
}

func importBook(b *orderbook.OrderBook, bd snapshot.BookDoc) error {
	restore := func(side orderbook.Side, docs []snapshot.OrderDoc) error {
		for _, od := range docs {
			err := b.Restore(orderbook.Order{
				ID:      od.ID,
				Side:    side,
				Price:   od.Price,
				Qty:     od.Quantity,
				UserID:  od.UserID,
				Created: od.Timestamp,
			})
			if err != nil {
				return err
			}
		}
		return nil
	}
	if err := restore(orderbook.Buy, bd.Bids); err != nil {
		return err
	}
	if err := restore(orderbook.Sell, bd.Asks); err != nil {
		return err
	}
	// Restore already moved the mark past every resting id.
	b.SetNextOrderID(bd.NextOrderID)
	b.SetLastTrade(bd.LastPrice, bd.Volume)
	if bid, ok := b.BestBid(); ok {
		if ask, ok := b.BestAsk(); ok && !bid.LessThan(ask) {
			return errors.Errorf("crossed book: bid %s >= ask %s", bid, ask)
		}
	}
	return nil
}

// SnapshotOnce writes the current state and drops journal segments the
// snapshot now covers.
func (e *Exchange) SnapshotOnce(w *snapshot.Writer) (string, error) {
	e.snapMu.Lock()
	defer e.snapMu.Unlock()

	doc := e.Export()
	path, err := w.Write(doc)
	e.metrics.Snapshot(err)
	if err != nil {
		return "", err
	}

	e.mu.RLock()
	resting := e.restingOrders()
	journal := e.journal
	e.mu.RUnlock()
	e.metrics.RestingOrders(resting)

	if journal != nil {
		if err := journal.TruncateBefore(doc.Seq); err != nil {
			return path, errors.Wrap(err, "truncate journal")
		}
	}
	e.log.Debug("snapshot written", zap.String("path", path), zap.Uint64("seq", doc.Seq))
	return path, nil
}

// cronLogger routes cron's own messages to zap.
type cronLogger struct{ log *zap.SugaredLogger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}

// StartSnapshotJob snapshots every interval until ctx is done. A tick that
// fires while the previous snapshot is still running is skipped. Callers
// that take a final snapshot wait on Stop().Done() first.
func (e *Exchange) StartSnapshotJob(ctx context.Context, w *snapshot.Writer, interval time.Duration) (*cron.Cron, error) {
	if interval <= 0 {
		return nil, errors.Errorf("snapshot interval must be positive, got %s", interval)
	}
	logger := cronLogger{log: e.log.Named("cron").Sugar()}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	_, err := c.AddFunc("@every "+interval.String(), func() {
		if _, err := e.SnapshotOnce(w); err != nil {
			e.log.Warn("snapshot failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "schedule snapshot")
	}
	c.Start()

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return c, nil
}

