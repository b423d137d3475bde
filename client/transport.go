package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"k8s.io/klog/v2"
)

var (
	// ErrWouldBlock means nothing is buffered yet, it is not a failure
	ErrWouldBlock    = errors.New("client: no data available")
	ErrSendSaturated = errors.New("client: send buffer saturated")
	ErrClosed        = errors.New("client: connection closed")
)

// TransportError is any I/O failure that ends the connection
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("client: %s: %s", e.Op, e.Err.Error())
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Transport moves whole websocket messages without ever blocking the caller.
// TryRecv returns ErrWouldBlock when nothing is buffered, Send returns
// ErrSendSaturated when the outgoing buffer is full.
type Transport interface {
	Send(data []byte) error
	TryRecv() ([]byte, error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}

// WSDialer opens gorilla websocket connections.
// Zero values fall back to websocket.DefaultDialer and the default buffer sizes.
type WSDialer struct {
	Dialer       *websocket.Dialer
	Header       http.Header
	InboxSize    int
	OutboxSize   int
	WriteTimeout time.Duration
}

const (
	defaultInboxSize    = 256
	defaultOutboxSize   = 16
	defaultWriteTimeout = time.Second * 10
)

func (d *WSDialer) Dial(ctx context.Context, url string) (Transport, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, url, d.Header)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}
	t := &wsTransport{
		conn:         conn,
		inbox:        make(chan []byte, orDefault(d.InboxSize, defaultInboxSize)),
		outbox:       make(chan []byte, orDefault(d.OutboxSize, defaultOutboxSize)),
		done:         make(chan struct{}),
		writeTimeout: d.WriteTimeout,
	}
	if t.writeTimeout <= 0 {
		t.writeTimeout = defaultWriteTimeout
	}
	go t.readLoop()
	go t.writeLoop()
	return t, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// wsTransport owns a reader and a writer goroutine, the caller only
// touches the channels
type wsTransport struct {
	conn         *websocket.Conn
	inbox        chan []byte
	outbox       chan []byte
	done         chan struct{}
	writeTimeout time.Duration
	closeOnce    sync.Once

	mu  sync.Mutex
	err error
}

func (t *wsTransport) setErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err == nil {
		t.err = err
	}
}

func (t *wsTransport) failure() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err == nil {
		return ErrClosed
	}
	return t.err
}

func (t *wsTransport) readLoop() {
	defer close(t.inbox)
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.setErr(classifyReadErr(err))
			return
		}
		select {
		case t.inbox <- data:
		case <-t.done:
			t.setErr(ErrClosed)
			return
		}
	}
}

func classifyReadErr(err error) error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return fmt.Errorf("%w: %s", ErrClosed, closeErr.Error())
	}
	return &TransportError{Op: "read", Err: err}
}

func (t *wsTransport) writeLoop() {
	for {
		select {
		case data := <-t.outbox:
			_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
			if err := t.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				t.setErr(&TransportError{Op: "write", Err: err})
				// unblocks the reader, which then reports the failure
				_ = t.conn.Close()
				return
			}
		case <-t.done:
			return
		}
	}
}

func (t *wsTransport) Send(data []byte) error {
	select {
	case <-t.done:
		return ErrClosed
	default:
	}
	select {
	case t.outbox <- data:
		return nil
	default:
		return ErrSendSaturated
	}
}

func (t *wsTransport) TryRecv() ([]byte, error) {
	select {
	case data, ok := <-t.inbox:
		if !ok {
			return nil, t.failure()
		}
		return data, nil
	default:
		return nil, ErrWouldBlock
	}
}

func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.setErr(ErrClosed)
		close(t.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if werr := t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); werr != nil {
			klog.V(4).Infof("write close frame failed: %s", werr.Error())
		}
		err = t.conn.Close()
	})
	return err
}
