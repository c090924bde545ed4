package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/crypto-data/internal/hub"
	"github.com/rickgao/crypto-data/internal/model"
)

func newTestServer(t *testing.T, h *hub.Hub) *httptest.Server {
	t.Helper()
	s := New(Config{Addr: ":0", MetricsPath: "/metrics"}, h, nil)
	s.started = time.Now()
	ts := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func TestServer_WebsocketReceivesConfigAndBroadcasts(t *testing.T) {
	h := hub.New(nil)
	if err := h.SetConfig(map[string]string{"instance": "test"}); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}
	ts := newTestServer(t, h)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer ws.Close()

	// First frame is the retained config payload.
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read config frame: %v", err)
	}
	var cfg map[string]string
	if err := json.Unmarshal(frame, &cfg); err != nil {
		t.Fatalf("decode config frame: %v", err)
	}
	if cfg["instance"] != "test" {
		t.Errorf("config frame = %v, want instance=test", cfg)
	}

	h.Broadcast(model.BroadcastEvent{
		Type:     "trade",
		Exchange: "binance",
		Symbol:   "BTC/USDT",
		Payload:  model.TradeRecord{Timestamp: 1705320000123, Symbol: "BTC/USDT"},
	})

	_, frame, err = ws.ReadMessage()
	if err != nil {
		t.Fatalf("read broadcast frame: %v", err)
	}
	var ev model.BroadcastEvent
	if err := json.Unmarshal(frame, &ev); err != nil {
		t.Fatalf("decode broadcast frame: %v", err)
	}
	if ev.Type != "trade" || ev.Symbol != "BTC/USDT" {
		t.Errorf("broadcast frame = %+v, want trade BTC/USDT", ev)
	}
}

func TestServer_ClientDisconnectPrunes(t *testing.T) {
	h := hub.New(nil)
	ts := newTestServer(t, h)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	ws.Close()

	deadline := time.After(2 * time.Second)
	for h.Stats().Connections != 0 {
		select {
		case <-deadline:
			t.Fatal("subscriber not removed after client disconnect")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestServer_Healthz(t *testing.T) {
	h := hub.New(nil)
	ts := newTestServer(t, h)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if _, ok := body["subscribers"]; !ok {
		t.Error("subscribers field missing")
	}
}

func TestServer_Metrics(t *testing.T) {
	h := hub.New(nil)
	ts := newTestServer(t, h)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
