// Package metrics exports connection counters to prometheus
package metrics

import (
	"net/http"
	"strconv"

	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/client"
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/message"
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/packet"
	"github.com/TiyaAnlite/FocotServicesCommon/echox"
	"github.com/duke-git/lancet/v2/condition"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MetricsLabelNames = []string{"room_id"}
)

// MetricsExporter implements client.Observer for one room
type MetricsExporter struct {
	registry  *prometheus.Registry
	collector []prometheus.Collector
	room      string
	// metrics
	mFrames      *prometheus.CounterVec
	mFrameBytes  *prometheus.CounterVec
	mDropped     *prometheus.CounterVec
	mCommands    *prometheus.CounterVec
	mHeartbeats  *prometheus.CounterVec
	mConnected   *prometheus.GaugeVec
	mReconnects  *prometheus.CounterVec
	mPopularity  *prometheus.GaugeVec
	mDuplicates  *prometheus.CounterVec
	mLiveContext *prometheus.GaugeVec
}

func NewMetricsExporter(registry *prometheus.Registry, roomID uint64) (*MetricsExporter, error) {
	e := &MetricsExporter{registry: registry, room: strconv.FormatUint(roomID, 10)}
	e.mFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bilive_chat_frames_total", Help: "received frames by protocol"}, append(MetricsLabelNames, "protocol"))
	e.mFrameBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bilive_chat_frame_bytes_total", Help: "units bytes"}, MetricsLabelNames)
	e.mDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bilive_chat_frames_dropped_total", Help: "frames failed to depack"}, MetricsLabelNames)
	e.mCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bilive_chat_commands_total", Help: "commands by cmd and result"}, append(MetricsLabelNames, "cmd", "result"))
	e.mHeartbeats = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bilive_chat_heartbeats_total", Help: "heartbeats by result"}, append(MetricsLabelNames, "result"))
	e.mConnected = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "bilive_chat_connected", Help: "units bool"}, MetricsLabelNames)
	e.mReconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bilive_chat_reconnects_total", Help: "closed connections"}, MetricsLabelNames)
	e.mPopularity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "bilive_chat_popularity", Help: "last heartbeat ack count"}, MetricsLabelNames)
	e.mDuplicates = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bilive_chat_duplicates_total", Help: "events dropped as repeats"}, append(MetricsLabelNames, "cmd"))
	e.mLiveContext = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "bilive_chat_live_context_entries", Help: "open aggregation entries"}, append(MetricsLabelNames, "table"))
	e.collector = []prometheus.Collector{e.mFrames, e.mFrameBytes, e.mDropped, e.mCommands, e.mHeartbeats,
		e.mConnected, e.mReconnects, e.mPopularity, e.mDuplicates, e.mLiveContext}
	for _, collector := range e.collector {
		if err := e.registry.Register(collector); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *MetricsExporter) FrameReceived(protocol packet.Protocol, size int) {
	e.mFrames.WithLabelValues(e.room, protocol.String()).Inc()
	e.mFrameBytes.WithLabelValues(e.room).Add(float64(size))
}

func (e *MetricsExporter) FrameDropped(error) {
	e.mDropped.WithLabelValues(e.room).Inc()
}

func (e *MetricsExporter) CommandParsed(cmd string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case message.IsNotSupported(err):
		result = "unsupported"
	default:
		result = "malformed"
	}
	if cmd == "" {
		cmd = "unknown"
	}
	e.mCommands.WithLabelValues(e.room, cmd, result).Inc()
}

func (e *MetricsExporter) HeartbeatSent(err error) {
	e.mHeartbeats.WithLabelValues(e.room, condition.TernaryOperator(err == nil, "ok", "failed")).Inc()
}

func (e *MetricsExporter) SetConnected(connected bool) {
	e.mConnected.WithLabelValues(e.room).Set(float64(condition.TernaryOperator(connected, 1, 0)))
	if !connected {
		e.mReconnects.WithLabelValues(e.room).Inc()
	}
}

func (e *MetricsExporter) SetPopularity(count uint32) {
	e.mPopularity.WithLabelValues(e.room).Set(float64(count))
}

func (e *MetricsExporter) Duplicate(cmd string) {
	e.mDuplicates.WithLabelValues(e.room, cmd).Inc()
}

func (e *MetricsExporter) SetLiveContext(gifts, superChats int) {
	e.mLiveContext.WithLabelValues(e.room, "gift_combo").Set(float64(gifts))
	e.mLiveContext.WithLabelValues(e.room, "super_chat").Set(float64(superChats))
}

var _ client.Observer = (*MetricsExporter)(nil)

// SetupRoutes mounts /metrics for the registry and /status for whatever status returns
func SetupRoutes(e *echo.Echo, registry *prometheus.Registry, status func() any) {
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: registry}))
	e.GET("/status", func(c echo.Context) error {
		if status == nil {
			return echox.NormalErrorResponse(c, http.StatusServiceUnavailable, http.StatusServiceUnavailable, "no status")
		}
		return echox.NormalResponse(c, status())
	})
}
