package entry

import "time"

type RecordType uint8

const (
	RecordCreateMarket RecordType = iota + 1
	RecordLimitOrder
	RecordMarketOrder
	RecordBundle
	RecordCancel
	RecordResolve
)

func (t RecordType) String() string {
	switch t {
	case RecordCreateMarket:
		return "create_market"
	case RecordLimitOrder:
		return "limit_order"
	case RecordMarketOrder:
		return "market_order"
	case RecordBundle:
		return "bundle"
	case RecordCancel:
		return "cancel"
	case RecordResolve:
		return "resolve"
	default:
		return "unknown"
	}
}

type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}

const headerSize = 1 + 8 + 8 + 4
