package sink

import (
	"strings"

	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/livectx"
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/message"
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/pb"
	"github.com/nats-io/nats.go"
	"k8s.io/klog/v2"
)

// Publisher is satisfied by *nats.Conn
type Publisher interface {
	PublishMsg(msg *nats.Msg) error
}

// NATS publishes every event as a protobuf Struct on [prefix].stream.[kind].
// Events with a stable identity carry it as Nats-Msg-Id so a JetStream
// stream drops repeats.
type NATS struct {
	pub    Publisher
	prefix string
	meta   pb.MetaBuilder
}

func NewNATS(pub Publisher, prefix string, meta pb.MetaBuilder) *NATS {
	return &NATS{pub: pub, prefix: prefix, meta: meta}
}

func (n *NATS) Subject(kind string) string {
	return strings.Join([]string{n.prefix, "stream", strings.ToLower(kind)}, ".")
}

func (n *NATS) OnEvent(event message.Event) {
	id, _ := message.Identity(event)
	n.publish(event.Command(), event, id)
}

func (n *NATS) OnGiftCombo(combo livectx.CombinedSendGift) {
	n.publish(pb.KindGiftCombo, combo, "")
}

func (n *NATS) OnSuperChat(replay livectx.Replay) {
	n.publish(pb.KindSuperChatReplay, replay, "")
}

func (n *NATS) publish(kind string, v any, id string) {
	data, err := pb.Marshal(n.meta(), kind, v)
	if err != nil {
		klog.Errorf("encode %s failed: %s", kind, err.Error())
		return
	}
	msg := nats.NewMsg(n.Subject(kind))
	msg.Data = data
	if id != "" {
		msg.Header.Set(nats.MsgIdHdr, id)
	}
	if err := n.pub.PublishMsg(msg); err != nil {
		klog.Errorf("publish %s failed: %s", kind, err.Error())
	}
}
