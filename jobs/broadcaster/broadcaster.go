package broadcaster

import (
	"context"
	"time"

	"go.uber.org/zap"

	"forecast/infra/metrics"
	exitwal "forecast/infra/wal/exit"
)

type Broadcaster struct {
	outbox     *exitwal.ExitWAL
	publisher  Publisher
	log        *zap.Logger
	metrics    *metrics.Metrics
	interval   time.Duration
	maxRetries uint32
}

type Option func(*Broadcaster)

func WithLogger(l *zap.Logger) Option { return func(b *Broadcaster) { b.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(b *Broadcaster) { b.metrics = m } }

func WithInterval(d time.Duration) Option {
	return func(b *Broadcaster) {
		if d > 0 {
			b.interval = d
		}
	}
}

// WithMaxRetries parks records that failed n times. Zero retries forever.
func WithMaxRetries(n uint32) Option { return func(b *Broadcaster) { b.maxRetries = n } }

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

func New(outbox *exitwal.ExitWAL, publisher Publisher, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		outbox:    outbox,
		publisher: publisher,
		log:       zap.NewNop(),
		interval:  250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ------------------------------------------------
// LOOP
// ------------------------------------------------

// Run drains the outbox every interval until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	b.log.Info("broadcaster started", zap.Duration("interval", b.interval))
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.Info("broadcaster stopped")
			return
		case <-ticker.C:
			if _, err := b.Flush(ctx); err != nil {
				b.log.Warn("outbox flush", zap.Error(err))
			}
		}
	}
}

// Flush makes one pass over pending records: SENT before publish, ACKED
// after the broker confirms, FAILED otherwise. Once a market's event
// fails, its later events wait for the next pass. Acked records are then
// truncated. It returns the number of events acknowledged.
func (b *Broadcaster) Flush(ctx context.Context) (int, error) {
	var (
		acked   int
		lastAck uint64
		held    = make(map[string]struct{})
	)
	err := b.outbox.ScanPending(func(rec exitwal.ExitRecord) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if rec.State == exitwal.StateFailed && b.maxRetries > 0 && rec.Retries >= b.maxRetries {
			return nil
		}

		key := partitionKey(rec.Payload)
		if _, ok := held[string(key)]; ok {
			return nil
		}

		if err := b.outbox.MarkSent(rec.Seq); err != nil {
			return err
		}

		if err := b.publisher.Publish(ctx, key, rec.Payload); err != nil {
			b.metrics.Published(err)
			b.log.Warn("publish failed",
				zap.Uint64("seq", rec.Seq),
				zap.ByteString("key", key),
				zap.Uint32("retries", rec.Retries+1),
				zap.Error(err))
			held[string(key)] = struct{}{}
			return b.outbox.MarkFailed(rec.Seq)
		}

		if err := b.outbox.MarkAcked(rec.Seq); err != nil {
			return err
		}
		b.metrics.Published(nil)
		acked++
		lastAck = rec.Seq
		return nil
	})
	if err != nil {
		return acked, err
	}
	if lastAck > 0 {
		if err := b.outbox.TruncateAckedUpTo(lastAck); err != nil {
			return acked, err
		}
	}
	return acked, nil
}

// partitionKey keys events by market so a market's history stays ordered.
func partitionKey(payload []byte) []byte {
	ev, err := UnmarshalEvent(payload)
	if err != nil || ev.MarketID == "" {
		return nil
	}
	return []byte(ev.MarketID)
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.publisher.Close()
}
