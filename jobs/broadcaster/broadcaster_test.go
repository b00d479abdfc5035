package broadcaster

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	exitwal "forecast/infra/wal/exit"
)

type fakePublisher struct {
	mu   sync.Mutex
	fail bool
	// failures makes the event with a given Seq fail that many times.
	failures map[uint64]int
	keys     []string
	msgs     []Event
}

func (f *fakePublisher) Publish(_ context.Context, key, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broker down")
	}
	ev, err := UnmarshalEvent(value)
	if err != nil {
		return err
	}
	if f.failures[ev.Seq] > 0 {
		f.failures[ev.Seq]--
		return errors.New("request timed out")
	}
	f.keys = append(f.keys, string(key))
	f.msgs = append(f.msgs, ev)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func openOutbox(t *testing.T) *exitwal.ExitWAL {
	t.Helper()
	w, err := exitwal.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func put(t *testing.T, w *exitwal.ExitWAL, ev Event) {
	t.Helper()
	b, err := ev.Marshal()
	require.NoError(t, err)
	require.NoError(t, w.PutNew(ev.Seq, b))
}

func TestFlushPublishesInOrderAndTruncates(t *testing.T) {
	w := openOutbox(t)
	put(t, w, Event{V: EventVersion, Type: EventTrade, Seq: 1, MarketID: "m1", Price: "0.35", Qty: 10})
	put(t, w, Event{V: EventVersion, Type: EventOrderCancelled, Seq: 2, MarketID: "m2", OrderID: 4})

	pub := &fakePublisher{}
	b := New(w, pub)
	n, err := b.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"m1", "m2"}, pub.keys)
	assert.Equal(t, EventTrade, pub.msgs[0].Type)
	assert.Equal(t, "0.35", pub.msgs[0].Price)

	_, err = w.Get(1)
	assert.Error(t, err, "acked records are truncated")

	n, err = b.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFlushFailureKeepsRecord(t *testing.T) {
	w := openOutbox(t)
	put(t, w, Event{V: EventVersion, Type: EventTrade, Seq: 1, MarketID: "m1"})

	pub := &fakePublisher{fail: true}
	b := New(w, pub, WithMaxRetries(2))

	for i := 0; i < 3; i++ {
		n, err := b.Flush(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	}
	rec, err := w.Get(1)
	require.NoError(t, err)
	assert.Equal(t, exitwal.StateFailed, rec.State)
	assert.Equal(t, uint32(2), rec.Retries, "parked after max retries")

	pub.fail = false
	b = New(w, pub)
	n, err := b.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFlushHoldsMarketBehindFailure(t *testing.T) {
	w := openOutbox(t)
	put(t, w, Event{V: EventVersion, Type: EventTrade, Seq: 1, MarketID: "m1"})
	put(t, w, Event{V: EventVersion, Type: EventTrade, Seq: 2, MarketID: "m1"})
	put(t, w, Event{V: EventVersion, Type: EventTrade, Seq: 3, MarketID: "m2"})

	pub := &fakePublisher{failures: map[uint64]int{1: 1}}
	b := New(w, pub)

	n, err := b.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the other market gets through")
	rec, err := w.Get(2)
	require.NoError(t, err)
	assert.Equal(t, exitwal.StateNew, rec.State)

	n, err = b.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var order []uint64
	for _, ev := range pub.msgs {
		if ev.MarketID == "m1" {
			order = append(order, ev.Seq)
		}
	}
	assert.Equal(t, []uint64{1, 2}, order)
}

func TestSaramaPublisher(t *testing.T) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)
	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	w := openOutbox(t)
	put(t, w, Event{V: EventVersion, Type: EventTrade, Seq: 1, MarketID: "m1"})
	put(t, w, Event{V: EventVersion, Type: EventTrade, Seq: 2, MarketID: "m1"})

	b := New(w, NewSaramaPublisherWithProducer(producer, "forecast.events"))
	n, err := b.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, err := w.Get(2)
	require.NoError(t, err)
	assert.Equal(t, exitwal.StateFailed, rec.State)
	require.NoError(t, b.Close())
}
