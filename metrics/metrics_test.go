package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/message"
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/packet"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestExporterCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	e, err := NewMetricsExporter(registry, 5050)
	if err != nil {
		t.Fatalf("new exporter: %s", err.Error())
	}
	e.FrameReceived(packet.ProtocolCommandBrotli, 100)
	e.FrameReceived(packet.ProtocolCommandBrotli, 50)
	e.FrameDropped(errors.New("bad"))
	e.CommandParsed(message.CmdDanmaku, nil)
	e.CommandParsed("NEW_ONE", &message.NotSupportedError{Cmd: "NEW_ONE"})
	e.CommandParsed(message.CmdDanmaku, &message.DeserializeError{Cmd: message.CmdDanmaku, Err: errors.New("x")})
	e.HeartbeatSent(nil)
	e.SetConnected(true)
	e.SetConnected(false)

	if v := testutil.ToFloat64(e.mFrames.WithLabelValues("5050", packet.ProtocolCommandBrotli.String())); v != 2 {
		t.Fatalf("need 2 frames, got %v", v)
	}
	if v := testutil.ToFloat64(e.mFrameBytes.WithLabelValues("5050")); v != 150 {
		t.Fatalf("need 150 bytes, got %v", v)
	}
	if v := testutil.ToFloat64(e.mCommands.WithLabelValues("5050", "NEW_ONE", "unsupported")); v != 1 {
		t.Fatalf("need one unsupported command, got %v", v)
	}
	if v := testutil.ToFloat64(e.mCommands.WithLabelValues("5050", message.CmdDanmaku, "malformed")); v != 1 {
		t.Fatalf("need one malformed command, got %v", v)
	}
	if v := testutil.ToFloat64(e.mConnected.WithLabelValues("5050")); v != 0 {
		t.Fatalf("need disconnected, got %v", v)
	}
	if v := testutil.ToFloat64(e.mReconnects.WithLabelValues("5050")); v != 1 {
		t.Fatalf("need one reconnect, got %v", v)
	}
	if _, err := NewMetricsExporter(registry, 5050); err == nil {
		t.Fatalf("registering twice should fail")
	}
}

func TestRoutes(t *testing.T) {
	registry := prometheus.NewRegistry()
	exporter, err := NewMetricsExporter(registry, 1)
	if err != nil {
		t.Fatalf("new exporter: %s", err.Error())
	}
	exporter.SetPopularity(42)
	e := echo.New()
	SetupRoutes(e, registry, func() any {
		return map[string]any{"room_id": 1}
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "bilive_chat_popularity") {
		t.Fatalf("unexpected /metrics: %d %s", rec.Code, rec.Body.String())
	}
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "room_id") {
		t.Fatalf("unexpected /status: %d %s", rec.Code, rec.Body.String())
	}
}
