package sink

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/livectx"
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/message"
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/pb"
	"github.com/nats-io/nats.go"
	"github.com/tidwall/gjson"
)

var (
	captain = message.GuardCaptain
	alice   = message.UserInfo{UID: 1, Name: "alice", Guard: &captain, Medal: &message.Medal{Name: "cat", Level: 12}}
	gift    = message.SendGift{User: alice, GiftName: "rose", Count: 2, TID: "42"}
	combo   = livectx.CombinedSendGift{UID: 1, UserName: "alice", GiftName: "rose", GiftCount: 6, EventCount: 3, ExpiryTime: time.Unix(1700000000, 0)}
)

func TestConsoleLines(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out, "INTERACT_WORD", " ")
	c.OnEvent(message.Danmaku{User: alice, Text: "hello"})
	c.OnEvent(message.Interact{User: alice, Type: message.InteractEnter})
	c.OnEvent(gift)
	c.OnGiftCombo(combo)
	c.OnSuperChat(livectx.Replay{SuperChatPersistent: livectx.SuperChatPersistent{Info: message.SuperChat{User: alice, Message: "hi", Price: 30}}})
	c.OnSuperChat(livectx.Replay{Expired: true})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	want := []string{
		"[DANMAKU] [captain][cat 12] alice: hello",
		"[GIFT] [captain][cat 12] alice sent rose x2",
		"[SUPER CHAT 30] [captain][cat 12] alice: hi (replay)",
	}
	if len(lines) != len(want) {
		t.Fatalf("need %d lines, got %q", len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: need %q, got %q", i, want[i], lines[i])
		}
	}
}

func TestConsoleCombineGifts(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out)
	c.CombineGifts = true
	c.OnEvent(gift)
	c.OnGiftCombo(combo)
	if got := strings.TrimSpace(out.String()); got != "[GIFT] alice sent rose x6 (3 combos)" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestConsoleJSON(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out)
	c.JSON = true
	c.OnEvent(message.Warning{Message: "w"})
	line := out.String()
	if gjson.Get(line, "kind").String() != message.CmdWarning || gjson.Get(line, "data.message").String() != "w" {
		t.Fatalf("unexpected json line: %s", line)
	}
}

func TestFormatEveryEvent(t *testing.T) {
	events := []message.Event{
		message.LiveStart{RoomID: 1}, message.LiveStop{RoomID: "1"}, message.LiveCutOff{Message: "m"},
		message.Warning{Message: "m"}, message.Welcome{User: alice}, message.WelcomeGuard{User: alice, Guard: captain},
		message.Danmaku{User: alice}, gift, message.SuperChat{User: alice}, message.Interact{User: alice, Type: message.InteractFollow},
		message.GuardBuy{User: alice, Guard: captain, Count: 1}, message.GiftTop{Ranks: []message.GiftTopEntry{{Name: "a", Coin: 1}}},
	}
	for _, e := range events {
		if line := FormatEvent(e); !strings.HasPrefix(line, "[") || strings.Contains(line, "%!") {
			t.Errorf("%T: bad line %q", e, line)
		}
	}
}

type fakePublisher struct {
	msgs []*nats.Msg
}

func (p *fakePublisher) PublishMsg(msg *nats.Msg) error {
	p.msgs = append(p.msgs, msg)
	return nil
}

func TestNATSPublish(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNATS(pub, "dmCenter", pb.NewMsgMetaBuilder("agent-1", 5050))
	n.OnEvent(gift)
	n.OnGiftCombo(combo)
	if len(pub.msgs) != 2 {
		t.Fatalf("need 2 messages, got %d", len(pub.msgs))
	}
	if pub.msgs[0].Subject != "dmCenter.stream.send_gift" || pub.msgs[1].Subject != "dmCenter.stream.gift_combo" {
		t.Fatalf("unexpected subjects: %s %s", pub.msgs[0].Subject, pub.msgs[1].Subject)
	}
	if id := pub.msgs[0].Header.Get(nats.MsgIdHdr); id != "gift:42" {
		t.Fatalf("unexpected msg id: %q", id)
	}
	if pub.msgs[1].Header.Get(nats.MsgIdHdr) != "" {
		t.Fatalf("combos have no msg id")
	}
	s, err := pb.Unmarshal(pub.msgs[1].Data)
	if err != nil {
		t.Fatalf("unmarshal: %s", err.Error())
	}
	if pb.Kind(s) != pb.KindGiftCombo || s.GetFields()["data"].GetStructValue().GetFields()["gift_count"].GetNumberValue() != 6 {
		t.Fatalf("unexpected payload: %v", s)
	}
}
