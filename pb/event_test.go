package pb

import (
	"testing"

	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/message"
)

func TestEnvelope(t *testing.T) {
	meta := NewMsgMetaBuilder("agent-1", 5050)()
	guard := message.GuardCaptain
	event := message.Danmaku{
		User: message.UserInfo{UID: 1001, Name: "alice", Guard: &guard},
		Text: "hello",
	}
	data, err := Marshal(meta, event.Command(), event)
	if err != nil {
		t.Fatalf("marshal: %s", err.Error())
	}
	s, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %s", err.Error())
	}
	if Kind(s) != message.CmdDanmaku {
		t.Fatalf("unexpected kind: %s", Kind(s))
	}
	fields := s.GetFields()
	m := fields["meta"].GetStructValue().GetFields()
	if m["agent"].GetStringValue() != "agent-1" || m["room_id"].GetNumberValue() != 5050 || m["version"].GetNumberValue() != float64(VERSION) {
		t.Fatalf("unexpected meta: %v", m)
	}
	d := fields["data"].GetStructValue().GetFields()
	user := d["user"].GetStructValue().GetFields()
	if d["text"].GetStringValue() != "hello" || user["name"].GetStringValue() != "alice" || user["guard"].GetNumberValue() != 3 {
		t.Fatalf("unexpected data: %v", d)
	}
	if _, ok := user["medal"]; ok {
		t.Fatalf("nil medal should be omitted")
	}
}

func TestEnvelopeRejectsNonObject(t *testing.T) {
	if _, err := NewEnvelope(&BasicMsgMeta{}, "X", []int{1, 2}); err == nil {
		t.Fatalf("a non object payload should fail")
	}
}
