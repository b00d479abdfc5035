package service

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"forecast/domain/market"
	"forecast/domain/orderbook"
	"forecast/jobs/broadcaster"
	entrywal "forecast/infra/wal/entry"
)

// record appends an accepted command to the journal. The command has
// already been applied, so a failed append is logged rather than undone;
// the next snapshot captures the state either way.
func (e *Exchange) record(t entrywal.RecordType, fields map[string]any) {
	if e.journal == nil || e.replaying {
		return
	}
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		e.log.Error("journal encode", zap.Stringer("type", t), zap.Error(err))
		return
	}
	data, err := e.codec.Encode(msg)
	if err != nil {
		e.log.Error("journal encode", zap.Stringer("type", t), zap.Error(err))
		return
	}
	rec := entrywal.NewRecord(t, e.seq.Next(), data)
	rec.Time = e.now().UnixNano()
	if err := e.journal.Append(rec); err != nil {
		e.log.Error("journal append", zap.Uint64("seq", rec.Seq), zap.Error(err))
	}
}

// emit writes a settlement event to the outbox. Replayed commands were
// already broadcast the first time round.
func (e *Exchange) emit(ev broadcaster.Event) {
	if e.outbox == nil || e.replaying {
		return
	}
	ev.V = broadcaster.EventVersion
	ev.Seq = e.eventSeq.Next()
	ev.Time = e.now()
	b, err := ev.Marshal()
	if err != nil {
		e.log.Error("outbox encode", zap.Error(err))
		return
	}
	if err := e.outbox.PutNew(ev.Seq, b); err != nil {
		e.log.Error("outbox put", zap.Uint64("seq", ev.Seq), zap.Error(err))
	}
}

/*
Replay rebuilds state from the journal in dir.

Records at or below after (the sequence of the snapshot already loaded)
are skipped. Commands are re-applied through the same code paths with
journalling and broadcasting suppressed, each at its original time.
This MUST run before accepting traffic.
*/
func (e *Exchange) Replay(ctx context.Context, dir string, after uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.replaying = true
	defer func() { e.replaying = false }()

	applied := 0
	lastSeq, err := entrywal.Replay(dir, func(rec *entrywal.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rec.Seq <= after {
			return nil
		}
		e.at = time.Unix(0, rec.Time).UTC()
		if err := e.apply(rec); err != nil {
			return errors.Wrapf(err, "replay %s", rec.Type)
		}
		applied++
		return nil
	})
	if err != nil {
		return lastSeq, err
	}

	// Resume sequencing after replay.
	if e.seq != nil {
		e.seq.Observe(lastSeq)
		e.seq.Observe(after)
	}
	e.log.Info("journal replay completed",
		zap.String("dir", dir),
		zap.Uint64("last_seq", lastSeq),
		zap.Int("applied", applied))
	return lastSeq, nil
}

func (e *Exchange) apply(rec *entrywal.Record) error {
	msg := &structpb.Struct{}
	if err := e.codec.Decode(rec.Data, msg); err != nil {
		return err
	}
	f := fields(msg)

	switch rec.Type {
	case entrywal.RecordCreateMarket:
		var specs []market.OutcomeSpec
		for _, v := range msg.GetFields()["outcomes"].GetListValue().GetValues() {
			o := v.GetStructValue().GetFields()
			specs = append(specs, market.OutcomeSpec{
				ID:   o["id"].GetStringValue(),
				Name: o["name"].GetStringValue(),
			})
		}
		_, err := e.createMarket(f.str("market"), f.str("description"), specs)
		return err

	case entrywal.RecordLimitOrder:
		price, err := decimal.NewFromString(f.str("price"))
		if err != nil {
			return err
		}
		_, err = e.placeLimit(f.side(), f.str("user"), f.str("market"), f.str("outcome"), price, f.num("qty"))
		return err

	case entrywal.RecordMarketOrder:
		_, err := e.marketOrder(f.side(), f.str("user"), f.str("market"), f.str("outcome"), f.num("qty"))
		return err

	case entrywal.RecordBundle:
		_, err := e.bundle(f.side(), f.str("user"), f.str("market"), f.num("qty"))
		return err

	case entrywal.RecordCancel:
		id, err := strconv.ParseUint(f.str("order_id"), 10, 64)
		if err != nil {
			return err
		}
		_, err = e.cancelOrder(f.str("user"), f.str("market"), f.str("outcome"), id)
		return err

	case entrywal.RecordResolve:
		_, err := e.resolveMarket(f.str("market"), f.str("winner"))
		return err

	default:
		return errors.Errorf("unknown record type %d", rec.Type)
	}
}

type payload map[string]*structpb.Value

func fields(s *structpb.Struct) payload { return s.GetFields() }

func (p payload) str(k string) string { return p[k].GetStringValue() }

func (p payload) num(k string) int64 { return int64(p[k].GetNumberValue()) }

func (p payload) side() orderbook.Side {
	if p.str("side") == orderbook.Sell.String() {
		return orderbook.Sell
	}
	return orderbook.Buy
}
