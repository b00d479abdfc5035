package wal

import (
	"encoding/json"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
)

type Serializer interface {
	Encode(any) ([]byte, error)
	Decode([]byte, any) error
}

// ---------- JSON ----------

type JSONSerializer struct{}

func (JSONSerializer) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONSerializer) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// ---------- Protobuf ----------

type ProtoSerializer struct{}

var ErrNotProto = errors.New("value does not implement proto.Message")

func (ProtoSerializer) Encode(v any) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, ErrNotProto
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(msg)
}

func (ProtoSerializer) Decode(data []byte, v any) error {
	msg, ok := v.(proto.Message)
	if !ok {
		return ErrNotProto
	}
	return proto.Unmarshal(data, msg)
}
