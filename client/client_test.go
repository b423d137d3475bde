package client

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/livectx"
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/message"
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/packet"
	"github.com/tidwall/gjson"
)

type fakeTransport struct {
	inbox   [][]byte
	sent    [][]byte
	recvErr error
	sendErr error
	closed  bool
}

func (f *fakeTransport) Send(data []byte) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeTransport) TryRecv() ([]byte, error) {
	if len(f.inbox) > 0 {
		data := f.inbox[0]
		f.inbox = f.inbox[1:]
		return data, nil
	}
	if f.recvErr != nil {
		return nil, f.recvErr
	}
	return nil, ErrWouldBlock
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func (f *fakeTransport) push(body string) {
	f.inbox = append(f.inbox, packet.Encode(packet.ProtocolCommand, packet.TypeCommand, []byte(body)))
}

type fakeDialer struct {
	transport *fakeTransport
	err       error
	url       string
}

func (d *fakeDialer) Dial(_ context.Context, url string) (Transport, error) {
	d.url = url
	if d.err != nil {
		return nil, d.err
	}
	return d.transport, nil
}

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

type recorder struct {
	calls  []string
	events []message.Event
	combos []livectx.CombinedSendGift
	scs    []livectx.Replay
	acks   []uint32
}

func (r *recorder) handler() Handler {
	return Handler{
		OnEvent: func(event message.Event) {
			r.calls = append(r.calls, "event:"+event.Command())
			r.events = append(r.events, event)
		},
		OnGiftCombo: func(combo livectx.CombinedSendGift) {
			r.calls = append(r.calls, "combo:"+combo.GiftName)
			r.combos = append(r.combos, combo)
		},
		OnSuperChat: func(replay livectx.Replay) {
			r.calls = append(r.calls, "superchat")
			r.scs = append(r.scs, replay)
		},
		OnHeartbeatAck: func(count uint32) {
			r.acks = append(r.acks, count)
		},
	}
}

var testSession = Session{RoomID: 5050, UID: 0, Token: "token", Host: Host{Host: "relay.example", WssPort: 443}}

func setup(t *testing.T) (*Client, *fakeTransport, *fakeClock, *recorder) {
	t.Helper()
	transport := &fakeTransport{}
	clock := &fakeClock{now: time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)}
	rec := &recorder{}
	c, err := Connect(context.Background(), &fakeDialer{transport: transport}, testSession, Config{Clock: clock.Now}, rec.handler())
	if err != nil {
		t.Fatalf("connect: %s", err.Error())
	}
	return c, transport, clock, rec
}

func giftFrame(count int) string {
	return `{"cmd":"SEND_GIFT","data":{"uid":1,"uname":"u1","giftName":"rose","num":` + strconv.Itoa(count) + `}}`
}

func TestConnectSendsCertificate(t *testing.T) {
	transport := &fakeTransport{}
	dialer := &fakeDialer{transport: transport}
	c, err := Connect(context.Background(), dialer, testSession, Config{}, Handler{})
	if err != nil {
		t.Fatalf("connect: %s", err.Error())
	}
	if dialer.url != "wss://relay.example:443/sub" {
		t.Fatalf("unexpected url: %s", dialer.url)
	}
	if c.State() != StateActive {
		t.Fatalf("need ACTIVE, got %s", c.State())
	}
	if len(transport.sent) != 1 {
		t.Fatalf("need only the certificate, got %d frames", len(transport.sent))
	}
	h, body, err := packet.Decode(transport.sent[0])
	if err != nil {
		t.Fatalf("decode certificate: %s", err.Error())
	}
	if packet.Type(h.PacketType) != packet.TypeCertificate || gjson.GetBytes(body, "roomid").Uint() != 5050 {
		t.Fatalf("unexpected certificate: %+v %s", h, body)
	}
}

func TestConnectFailures(t *testing.T) {
	dialErr := &TransportError{Op: "dial", Err: errors.New("refused")}
	if _, err := Connect(context.Background(), &fakeDialer{err: dialErr}, testSession, Config{}, Handler{}); !errors.Is(err, dialErr) {
		t.Fatalf("need dial error, got %v", err)
	}
	transport := &fakeTransport{sendErr: ErrSendSaturated}
	if _, err := Connect(context.Background(), &fakeDialer{transport: transport}, testSession, Config{}, Handler{}); !errors.Is(err, ErrSendSaturated) {
		t.Fatalf("need saturation error, got %v", err)
	}
	if !transport.closed {
		t.Fatalf("transport should be closed after a failed handshake")
	}
}

func TestHeartbeatSchedule(t *testing.T) {
	c, transport, clock, _ := setup(t)
	heartbeats := func() int {
		n := 0
		for _, f := range transport.sent {
			h, _, _ := packet.Decode(f)
			if packet.Type(h.PacketType) == packet.TypeHeartbeat {
				n++
			}
		}
		return n
	}
	if err := c.Tick(); err != nil {
		t.Fatalf("tick: %s", err.Error())
	}
	if heartbeats() != 1 {
		t.Fatalf("first tick should send a heartbeat")
	}
	clock.now = clock.now.Add(DefaultHeartbeatInterval)
	_ = c.Tick()
	if heartbeats() != 1 {
		t.Fatalf("heartbeat at exactly the interval is not due")
	}
	clock.now = clock.now.Add(time.Millisecond)
	_ = c.Tick()
	if heartbeats() != 2 {
		t.Fatalf("need a second heartbeat, got %d", heartbeats())
	}
}

func TestHeartbeatSendFailureIsNotFatal(t *testing.T) {
	c, transport, _, _ := setup(t)
	transport.sendErr = ErrSendSaturated
	if err := c.Tick(); err != nil {
		t.Fatalf("heartbeat failure must not end the connection: %s", err.Error())
	}
	if c.State() != StateActive {
		t.Fatalf("need ACTIVE, got %s", c.State())
	}
}

func TestDrainDispatchesEvents(t *testing.T) {
	c, transport, _, rec := setup(t)
	transport.push(`{"cmd":"LIVE","roomid":5050}`)
	transport.inbox = append(transport.inbox, []byte{0, 0, 0}) // truncated, dropped
	transport.push(`{"cmd":"SOME_NEW_TYPE"}`)
	transport.push(`{"cmd":"SOME_NEW_TYPE"}`)
	transport.push(`{"cmd":"DANMU_MSG","info":[]}`)
	transport.push(`{"cmd":"WARNING","msg":"w"}`)
	transport.inbox = append(transport.inbox, packet.Encode(packet.ProtocolSpecial, packet.TypeHeartbeatResp, []byte{0, 0, 0, 9}))

	if err := c.Tick(); err != nil {
		t.Fatalf("tick: %s", err.Error())
	}
	if len(rec.events) != 2 || rec.events[0].Command() != message.CmdLive || rec.events[1].Command() != message.CmdWarning {
		t.Fatalf("unexpected events: %+v", rec.events)
	}
	if len(rec.acks) != 1 || rec.acks[0] != 9 {
		t.Fatalf("unexpected heartbeat acks: %v", rec.acks)
	}
	if !c.unsupported.Contains("SOME_NEW_TYPE") {
		t.Fatalf("unsupported command should be remembered")
	}
	if len(transport.inbox) != 0 {
		t.Fatalf("tick should drain every buffered frame")
	}
}

func TestGiftComboAcrossTicks(t *testing.T) {
	c, transport, clock, rec := setup(t)
	for i := 1; i <= 3; i++ {
		transport.push(giftFrame(i))
	}
	_ = c.Tick()
	if len(rec.events) != 3 || len(rec.combos) != 0 {
		t.Fatalf("need 3 raw gifts and no combo yet, got %d and %d", len(rec.events), len(rec.combos))
	}

	// the expired combo is reported before the frames of the same tick
	clock.now = clock.now.Add(DefaultGiftWindow + time.Millisecond)
	transport.push(giftFrame(4))
	rec.calls = nil
	_ = c.Tick()
	if len(rec.calls) != 2 || rec.calls[0] != "combo:rose" || rec.calls[1] != "event:"+message.CmdSendGift {
		t.Fatalf("unexpected call order: %v", rec.calls)
	}
	if rec.combos[0].GiftCount != 6 || rec.combos[0].EventCount != 3 {
		t.Fatalf("unexpected combo: %+v", rec.combos[0])
	}
	if c.Live().GiftLen() != 1 {
		t.Fatalf("the late gift should open a new combo")
	}
}

func TestSuperChatReplayAcrossTicks(t *testing.T) {
	c, transport, clock, rec := setup(t)
	transport.push(`{"cmd":"SUPER_CHAT_MESSAGE","data":{"id":1,"uid":3,"user_info":{"uname":"c"},"message":"m","price":30,"time":60}}`)
	_ = c.Tick()
	if len(rec.events) != 1 {
		t.Fatalf("need the raw super chat, got %d events", len(rec.events))
	}
	clock.now = clock.now.Add(DefaultSuperChatInterval + time.Millisecond)
	_ = c.Tick()
	if len(rec.scs) != 1 || rec.scs[0].Expired {
		t.Fatalf("need one due replay, got %+v", rec.scs)
	}
	_ = c.Tick()
	if len(rec.scs) != 1 {
		t.Fatalf("replay should have been rescheduled")
	}
	clock.now = clock.now.Add(time.Minute)
	_ = c.Tick()
	if len(rec.scs) != 2 || !rec.scs[1].Expired {
		t.Fatalf("need the final expired replay, got %+v", rec.scs)
	}
	if c.Live().SuperChatLen() != 0 {
		t.Fatalf("expired super chat should be gone")
	}
}

func TestTransportErrorClosesConnection(t *testing.T) {
	c, transport, _, rec := setup(t)
	transport.push(`{"cmd":"LIVE","roomid":1}`)
	ioErr := &TransportError{Op: "read", Err: errors.New("connection reset")}
	transport.recvErr = ioErr

	err := c.Tick()
	if !errors.Is(err, ioErr) {
		t.Fatalf("need transport error, got %v", err)
	}
	if len(rec.events) != 1 {
		t.Fatalf("frames before the failure should still be delivered")
	}
	if c.State() != StateClosed || !transport.closed {
		t.Fatalf("connection should be closed, state %s", c.State())
	}
	if err := c.Tick(); !errors.Is(err, ioErr) {
		t.Fatalf("a closed client keeps reporting its error, got %v", err)
	}
	if err := c.Send(packet.NewHeartbeat()); !errors.Is(err, ErrNotActive) {
		t.Fatalf("need ErrNotActive, got %v", err)
	}
}

func TestRunStopsOnContext(t *testing.T) {
	c, transport, _, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Run(ctx, time.Millisecond); !errors.Is(err, context.Canceled) {
		t.Fatalf("need context.Canceled, got %v", err)
	}
	if !transport.closed {
		t.Fatalf("run should close the transport on cancel")
	}
}

func TestRunReturnsCloseError(t *testing.T) {
	c, transport, _, _ := setup(t)
	transport.recvErr = ErrClosed
	if err := c.Run(context.Background(), time.Millisecond); !errors.Is(err, ErrClosed) {
		t.Fatalf("need ErrClosed, got %v", err)
	}
}

type countingObserver struct {
	frames, dropped, commands, failed, heartbeats int
}

func (o *countingObserver) FrameReceived(packet.Protocol, int) { o.frames++ }
func (o *countingObserver) FrameDropped(error)                 { o.dropped++ }
func (o *countingObserver) HeartbeatSent(error)                { o.heartbeats++ }
func (o *countingObserver) CommandParsed(_ string, err error) {
	o.commands++
	if err != nil {
		o.failed++
	}
}

func TestObserver(t *testing.T) {
	transport := &fakeTransport{}
	obs := &countingObserver{}
	c, err := Connect(context.Background(), &fakeDialer{transport: transport}, testSession, Config{Observer: obs}, Handler{})
	if err != nil {
		t.Fatalf("connect: %s", err.Error())
	}
	transport.push(`{"cmd":"LIVE","roomid":1}`)
	transport.push(`{"cmd":"NOPE"}`)
	transport.inbox = append(transport.inbox, packet.Encode(99, packet.TypeCommand, nil))
	_ = c.Tick()
	if obs.frames != 2 || obs.dropped != 1 || obs.commands != 2 || obs.failed != 1 || obs.heartbeats != 1 {
		t.Fatalf("unexpected observer counts: %+v", obs)
	}
}

func TestFilterDropsBeforeAggregation(t *testing.T) {
	transport := &fakeTransport{}
	rec := &recorder{}
	handler := rec.handler()
	handler.Filter = func(event message.Event) bool {
		_, isGift := event.(message.SendGift)
		return !isGift
	}
	c, err := Connect(context.Background(), &fakeDialer{transport: transport}, testSession, Config{}, handler)
	if err != nil {
		t.Fatalf("connect: %s", err.Error())
	}
	transport.push(giftFrame(1))
	transport.push(`{"cmd":"LIVE","roomid":5050}`)
	_ = c.Tick()
	if len(rec.events) != 1 || rec.events[0].Command() != message.CmdLive {
		t.Fatalf("only LIVE should pass, got %+v", rec.events)
	}
	if c.Live().GiftLen() != 0 {
		t.Fatalf("a filtered gift must not open a combo")
	}
}
