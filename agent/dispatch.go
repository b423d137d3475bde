package agent

import (
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/client"
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/livectx"
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/message"
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/sink"
	"k8s.io/klog/v2"
)

// Metrics is what the runner reports besides the client.Observer calls
type Metrics interface {
	client.Observer
	SetConnected(connected bool)
	SetPopularity(count uint32)
	Duplicate(cmd string)
	SetLiveContext(gifts, superChats int)
}

// Dispatcher fans one connection out to every sink, dropping repeated
// events and keeping per command hit counters in Status
type Dispatcher struct {
	sinks   []sink.Sink
	dedup   *Dedup
	status  *Status
	metrics Metrics
}

// NewDispatcher accepts a nil dedup, status or metrics
func NewDispatcher(dedup *Dedup, status *Status, metrics Metrics, sinks ...sink.Sink) *Dispatcher {
	if status == nil {
		status = &Status{}
	}
	return &Dispatcher{sinks: sinks, dedup: dedup, status: status, metrics: metrics}
}

func (d *Dispatcher) Status() *Status {
	return d.status
}

// Handler builds the client callbacks for one connection
func (d *Dispatcher) Handler() client.Handler {
	return client.Handler{
		Filter:         d.filter,
		OnEvent:        d.onEvent,
		OnGiftCombo:    d.onGiftCombo,
		OnSuperChat:    d.onSuperChat,
		OnHeartbeatAck: d.onHeartbeatAck,
	}
}

func (d *Dispatcher) filter(event message.Event) bool {
	if d.dedup == nil {
		return true
	}
	key, ok := message.Identity(event)
	if !ok {
		return true
	}
	seen, err := d.dedup.Seen(key)
	if err != nil {
		klog.Errorf("dedup lookup of %s failed: %s", key, err.Error())
		return true
	}
	if seen {
		klog.V(4).Infof("dropped repeated %s", key)
		if d.metrics != nil {
			d.metrics.Duplicate(event.Command())
		}
		return false
	}
	return true
}

func (d *Dispatcher) onEvent(event message.Event) {
	d.status.hit(event.Command())
	switch event.(type) {
	case message.LiveStart:
		d.status.set(ConditionLive, true)
	case message.LiveStop, message.LiveCutOff:
		d.status.set(ConditionLive, false)
	}
	for _, s := range d.sinks {
		s.OnEvent(event)
	}
}

func (d *Dispatcher) onGiftCombo(combo livectx.CombinedSendGift) {
	for _, s := range d.sinks {
		s.OnGiftCombo(combo)
	}
}

func (d *Dispatcher) onSuperChat(replay livectx.Replay) {
	for _, s := range d.sinks {
		s.OnSuperChat(replay)
	}
}

func (d *Dispatcher) onHeartbeatAck(count uint32) {
	d.status.popularity.Store(count)
	if d.metrics != nil {
		d.metrics.SetPopularity(count)
	}
}
