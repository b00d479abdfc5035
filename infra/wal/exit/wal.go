package exit

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
)

// -------------------- State --------------------

type ExitState uint8

const (
	StateNew ExitState = iota
	StateSent
	StateAcked
	StateFailed
)

func (s ExitState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Record --------------------

type ExitRecord struct {
	Seq         uint64
	State       ExitState
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

const recordHeader = 1 + 4 + 8

// binary encoding: [state:1][retries:4][lastAttempt:8][payload]
func encodeRecord(r ExitRecord) []byte {
	buf := make([]byte, recordHeader+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[recordHeader:], r.Payload)
	return buf
}

func decodeRecord(seq uint64, b []byte) (ExitRecord, error) {
	if len(b) < recordHeader {
		return ExitRecord{}, errors.New("invalid exit record length")
	}
	return ExitRecord{
		Seq:         seq,
		State:       ExitState(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     append([]byte(nil), b[recordHeader:]...),
	}, nil
}

// -------------------- WAL --------------------

type ExitWAL struct {
	db *pebble.DB
}

func Open(dir string) (*ExitWAL, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "open outbox")
	}
	return &ExitWAL{db: db}, nil
}

func (w *ExitWAL) Close() error {
	return w.db.Close()
}

// -------------------- API --------------------

// PutNew stores an undelivered event under its sequence number and
// advances the high-water mark returned by LastSeq.
func (w *ExitWAL) PutNew(seq uint64, payload []byte) error {
	batch := w.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(keyFor(seq), encodeRecord(ExitRecord{Seq: seq, State: StateNew, Payload: payload}), nil); err != nil {
		return err
	}
	last, err := w.LastSeq()
	if err != nil {
		return err
	}
	if seq > last {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], seq)
		if err := batch.Set([]byte(lastSeqKey), buf[:], nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

// LastSeq is the highest sequence ever stored, surviving truncation.
func (w *ExitWAL) LastSeq() (uint64, error) {
	val, closer, err := w.db.Get([]byte(lastSeqKey))
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "outbox last seq")
	}
	defer closer.Close()
	if len(val) != 8 {
		return 0, errors.New("invalid outbox high-water mark")
	}
	return binary.BigEndian.Uint64(val), nil
}

func (w *ExitWAL) MarkSent(seq uint64) error {
	return w.transition(seq, StateSent, false)
}

func (w *ExitWAL) MarkAcked(seq uint64) error {
	return w.transition(seq, StateAcked, false)
}

// MarkFailed records a failed attempt and bumps the retry counter.
func (w *ExitWAL) MarkFailed(seq uint64) error {
	return w.transition(seq, StateFailed, true)
}

func (w *ExitWAL) transition(seq uint64, state ExitState, retry bool) error {
	rec, err := w.Get(seq)
	if err != nil {
		return err
	}
	rec.State = state
	rec.LastAttempt = time.Now().UnixNano()
	if retry {
		rec.Retries++
	}
	return w.put(rec)
}

func (w *ExitWAL) put(rec ExitRecord) error {
	return w.db.Set(keyFor(rec.Seq), encodeRecord(rec), pebble.Sync)
}

func (w *ExitWAL) Delete(seq uint64) error {
	return w.db.Delete(keyFor(seq), pebble.Sync)
}

func (w *ExitWAL) Get(seq uint64) (ExitRecord, error) {
	val, closer, err := w.db.Get(keyFor(seq))
	if err != nil {
		return ExitRecord{}, errors.Wrapf(err, "outbox get %d", seq)
	}
	defer closer.Close()
	return decodeRecord(seq, val)
}

// -------------------- Scan --------------------

// ScanPending visits NEW, SENT and FAILED records in sequence order.
// SENT is included so a crash between send and ack is retried.
func (w *ExitWAL) ScanPending(fn func(rec ExitRecord) error) error {
	return w.scan(func(rec ExitRecord) error {
		if rec.State == StateAcked {
			return nil
		}
		return fn(rec)
	})
}

func (w *ExitWAL) ScanByState(state ExitState, fn func(rec ExitRecord) error) error {
	return w.scan(func(rec ExitRecord) error {
		if rec.State != state {
			return nil
		}
		return fn(rec)
	})
}

func (w *ExitWAL) scan(fn func(rec ExitRecord) error) error {
	iter, err := w.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		rec, err := decodeRecord(seq, iter.Value())
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// TruncateAckedUpTo deletes ACKED records with seq <= upTo.
func (w *ExitWAL) TruncateAckedUpTo(upTo uint64) error {
	batch := w.db.NewBatch()
	defer batch.Close()

	err := w.ScanByState(StateAcked, func(rec ExitRecord) error {
		if rec.Seq > upTo {
			return nil
		}
		return batch.Delete(keyFor(rec.Seq), nil)
	})
	if err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

// -------------------- Helpers --------------------

const (
	keyPrefix  = "event/"
	lastSeqKey = "meta/last_seq"
)

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, seq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte(keyPrefix))), "%d", &seq)
	return seq, err
}
