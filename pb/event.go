// Package pb wraps events into protobuf Struct messages for the bus
package pb

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/nats-io/nats.go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	VERSION = uint32(1)
)

const (
	KindGiftCombo       = "GIFT_COMBO"
	KindSuperChatReplay = "SUPER_CHAT_REPLAY"
)

type BasicMsgMeta struct {
	Version   uint32 `json:"version"`
	Agent     string `json:"agent"`
	RoomID    uint64 `json:"room_id"`
	TimeStamp uint64 `json:"timestamp"` // unix milli
}

func (m *BasicMsgMeta) asMap() map[string]any {
	return map[string]any{
		"version":   m.Version,
		"agent":     m.Agent,
		"room_id":   m.RoomID,
		"timestamp": m.TimeStamp,
	}
}

type MetaBuilder func() *BasicMsgMeta

func NewMsgMetaBuilder(agentId string, roomID uint64) MetaBuilder {
	return func() *BasicMsgMeta {
		return &BasicMsgMeta{
			Version:   VERSION,
			Agent:     agentId,
			RoomID:    roomID,
			TimeStamp: uint64(time.Now().UnixMilli()),
		}
	}
}

// AsMap turns a JSON object shaped value into fields structpb accepts
func AsMap(v any) (map[string]any, error) {
	raw, err := sonic.Marshal(v)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := sonic.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// NewEnvelope builds {meta, kind, data}, data is v as its JSON form
func NewEnvelope(meta *BasicMsgMeta, kind string, v any) (*structpb.Struct, error) {
	data, err := AsMap(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	return structpb.NewStruct(map[string]any{
		"meta": meta.asMap(),
		"kind": kind,
		"data": data,
	})
}

func Marshal(meta *BasicMsgMeta, kind string, v any) ([]byte, error) {
	s, err := NewEnvelope(meta, kind, v)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func Unmarshal(data []byte) (*structpb.Struct, error) {
	s := &structpb.Struct{}
	if err := proto.Unmarshal(data, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Kind reads the kind of an envelope, empty when missing
func Kind(s *structpb.Struct) string {
	return s.GetFields()["kind"].GetStringValue()
}

func ControlSuccess(controlMsg *nats.Msg, payload map[string]any) error {
	fields := map[string]any{"status": "OK"}
	for k, v := range payload {
		fields[k] = v
	}
	return respond(controlMsg, fields)
}

func ControlError(controlMsg *nats.Msg, err error) error {
	return respond(controlMsg, map[string]any{"status": "ERR", "error": err.Error()})
}

func respond(controlMsg *nats.Msg, fields map[string]any) error {
	resp, err := structpb.NewStruct(fields)
	if err != nil {
		return err
	}
	data, err := proto.Marshal(resp)
	if err != nil {
		return err
	}
	return controlMsg.Respond(data)
}
