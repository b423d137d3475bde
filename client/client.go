// Package client holds one relay connection: handshake, heartbeat and the
// non-blocking drain of inbound frames into typed events.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/depack"
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/livectx"
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/message"
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/packet"
	"github.com/zoumo/goset"
	"k8s.io/klog/v2"
)

var ErrNotActive = errors.New("client: connection not active")

type State int32

const (
	StateConnecting = State(iota)
	StateHandshaking
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateHandshaking:
		return "HANDSHAKING"
	case StateActive:
		return "ACTIVE"
	case StateClosed:
		return "CLOSED"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

type Host struct {
	Host    string `json:"host" yaml:"host"`
	WssPort uint16 `json:"wss_port" yaml:"wss_port"`
}

func (h Host) URL() string {
	return fmt.Sprintf("wss://%s:%d/sub", h.Host, h.WssPort)
}

// Session is everything the relay needs to admit one connection, UID is 0 for anonymous
type Session struct {
	RoomID uint64 `json:"room_id"`
	UID    uint64 `json:"uid"`
	Token  string `json:"token"`
	Host   Host   `json:"host"`
}

type Config struct {
	HeartbeatInterval time.Duration
	GiftWindow        time.Duration
	GiftRefresh       bool // slide the combo window on every gift
	SuperChatInterval time.Duration
	Clock             func() time.Time
	Observer          Observer
}

const (
	DefaultHeartbeatInterval = time.Second * 20
	DefaultGiftWindow        = time.Second * 5
	DefaultSuperChatInterval = time.Second * 20
)

func (c *Config) withDefaults() Config {
	out := *c
	if out.HeartbeatInterval <= 0 {
		out.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if out.GiftWindow <= 0 {
		out.GiftWindow = DefaultGiftWindow
	}
	if out.SuperChatInterval <= 0 {
		out.SuperChatInterval = DefaultSuperChatInterval
	}
	if out.Clock == nil {
		out.Clock = time.Now
	}
	if out.Observer == nil {
		out.Observer = NopObserver{}
	}
	return out
}

// Handler receives everything a tick produces, nil funcs are skipped.
// Every raw event reaches OnEvent, gifts additionally show up in OnGiftCombo
// once their combo closes. Events Filter rejects are dropped before they
// reach the aggregation tables.
type Handler struct {
	Filter         func(event message.Event) bool
	OnEvent        func(event message.Event)
	OnGiftCombo    func(combo livectx.CombinedSendGift)
	OnSuperChat    func(replay livectx.Replay)
	OnHeartbeatAck func(count uint32)
}

// Observer is told about frame level activity, mostly for metrics
type Observer interface {
	FrameReceived(protocol packet.Protocol, size int)
	FrameDropped(err error)
	CommandParsed(cmd string, err error)
	HeartbeatSent(err error)
}

type NopObserver struct{}

func (NopObserver) FrameReceived(packet.Protocol, int) {}
func (NopObserver) FrameDropped(error)                 {}
func (NopObserver) CommandParsed(string, error)        {}
func (NopObserver) HeartbeatSent(error)                {}

// Client is driven by a single goroutine through Tick or Run, only State is
// safe to read from elsewhere
type Client struct {
	session   Session
	cfg       Config
	handler   Handler
	transport Transport
	live      *livectx.Context
	state     atomic.Int32
	err       error

	lastHeartbeat time.Time
	unsupported   goset.Set
}

// Connect dials the host and sends the certificate. The certificate ack is
// not waited for, the client is Active as soon as the certificate is queued.
func Connect(ctx context.Context, dialer Dialer, session Session, cfg Config, handler Handler) (*Client, error) {
	c := &Client{
		session:     session,
		cfg:         cfg.withDefaults(),
		handler:     handler,
		unsupported: goset.NewSet(),
	}
	c.live = livectx.New(livectx.WithClock(c.cfg.Clock))
	c.setState(StateConnecting)
	url := session.Host.URL()
	klog.V(2).Infof("connecting to %s for room %d", url, session.RoomID)
	t, err := dialer.Dial(ctx, url)
	if err != nil {
		c.setState(StateClosed)
		return nil, err
	}
	c.transport = t

	c.setState(StateHandshaking)
	cert, err := packet.NewCertificate(session.UID, session.RoomID, session.Token)
	if err != nil {
		_ = t.Close()
		c.setState(StateClosed)
		return nil, err
	}
	if err := t.Send(cert); err != nil {
		_ = t.Close()
		c.setState(StateClosed)
		return nil, fmt.Errorf("send certificate: %w", err)
	}
	c.setState(StateActive)
	klog.Infof("connected to %s, room %d", session.Host.Host, session.RoomID)
	return c, nil
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) Session() Session {
	return c.session
}

// Live exposes the aggregation tables, only for the goroutine driving Tick
func (c *Client) Live() *livectx.Context {
	return c.live
}

// Err is the error that closed the connection
func (c *Client) Err() error {
	return c.err
}

// Send queues a raw frame, a full buffer is reported as ErrSendSaturated
func (c *Client) Send(frame []byte) error {
	if c.State() != StateActive {
		return ErrNotActive
	}
	return c.transport.Send(frame)
}

// Tick runs one scheduler step: heartbeat, then expiry of the aggregation
// tables, then a drain of every frame already received. A returned error
// means the connection is closed.
func (c *Client) Tick() error {
	if c.State() != StateActive {
		if c.err != nil {
			return c.err
		}
		return ErrNotActive
	}
	c.heartbeat()
	c.expire()
	return c.drain()
}

// Run ticks every poll interval until the context ends or the connection closes
func (c *Client) Run(ctx context.Context, poll time.Duration) error {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		if err := c.Tick(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			_ = c.Close()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) Close() error {
	if c.State() == StateClosed {
		return nil
	}
	c.setState(StateClosed)
	if c.err == nil {
		c.err = ErrClosed
	}
	if c.transport == nil {
		return nil
	}
	return c.transport.Close()
}

func (c *Client) heartbeat() {
	now := c.cfg.Clock()
	if !c.lastHeartbeat.IsZero() && now.Sub(c.lastHeartbeat) <= c.cfg.HeartbeatInterval {
		return
	}
	c.lastHeartbeat = now
	err := c.transport.Send(packet.NewHeartbeat())
	c.cfg.Observer.HeartbeatSent(err)
	if err != nil {
		klog.Warningf("send heartbeat failed: %s", err.Error())
		return
	}
	klog.V(5).Info("heartbeat sent")
}

func (c *Client) expire() {
	for _, combo := range c.live.Expired() {
		if c.handler.OnGiftCombo != nil {
			c.handler.OnGiftCombo(combo)
		}
	}
	for _, replay := range c.live.ShouldShow() {
		if c.handler.OnSuperChat != nil {
			c.handler.OnSuperChat(replay)
		}
		if !replay.Expired {
			c.live.Reschedule(replay.Key(), c.cfg.SuperChatInterval)
		}
	}
}

func (c *Client) drain() error {
	for {
		data, err := c.transport.TryRecv()
		if errors.Is(err, ErrWouldBlock) {
			return nil
		}
		if err != nil {
			klog.Warningf("connection to %s closed: %s", c.session.Host.Host, err.Error())
			c.err = err
			_ = c.Close()
			return err
		}
		c.handleFrame(data)
	}
}

func (c *Client) handleFrame(data []byte) {
	h, res, err := depack.DepackBytes(data)
	if err != nil {
		c.cfg.Observer.FrameDropped(err)
		klog.Warningf("dropped frame of %d bytes: %s", len(data), err.Error())
		return
	}
	c.cfg.Observer.FrameReceived(packet.Protocol(h.Protocol), len(data))
	switch r := res.(type) {
	case depack.CertificateAck:
		klog.V(4).Infof("certificate acknowledged, code %d", r.Code)
	case depack.HeartbeatAck:
		klog.V(5).Infof("heartbeat acknowledged, count %d", r.Count)
		if c.handler.OnHeartbeatAck != nil {
			c.handler.OnHeartbeatAck(r.Count)
		}
	case depack.LiveEvents:
		for _, cmd := range r.Commands {
			c.handleCommand(cmd)
		}
	}
}

func (c *Client) handleCommand(cmd depack.Command) {
	c.cfg.Observer.CommandParsed(cmd.Cmd, cmd.Err)
	if cmd.Err != nil {
		if message.IsNotSupported(cmd.Err) {
			if c.unsupported.Contains(cmd.Cmd) {
				klog.V(5).Infof("skipped unsupported command %s", cmd.Cmd)
				return
			}
			_ = c.unsupported.Add(cmd.Cmd)
			klog.V(2).Infof("unsupported command %s, further ones are skipped quietly", cmd.Cmd)
			return
		}
		klog.Warningf("dropped malformed command %q: %s", cmd.Cmd, cmd.Err.Error())
		return
	}
	if c.handler.Filter != nil && !c.handler.Filter(cmd.Event) {
		return
	}
	switch e := cmd.Event.(type) {
	case message.SendGift:
		c.live.AppendGift(e, c.cfg.GiftWindow, c.cfg.GiftRefresh)
	case message.SuperChat:
		c.live.AppendSuperChat(e, c.cfg.SuperChatInterval)
	}
	if c.handler.OnEvent != nil {
		c.handler.OnEvent(cmd.Event)
	}
}
