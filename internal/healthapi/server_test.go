package healthapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

type fakeReporter struct {
	snap HealthSnapshot
}

func (f fakeReporter) Snapshot() HealthSnapshot { return f.snap }

func TestHealthEndpointReturnsSnapshot(t *testing.T) {
	reporter := fakeReporter{snap: HealthSnapshot{
		Status:     "ok",
		Components: map[string]bool{"gateway": true, "exitmanager": true},
		Symbols: []SymbolHealth{
			{Symbol: "EURUSD", Timeframe: "M15", FreshMs: 1200, Stale: false},
		},
		QueueDepths: map[string]int{"context": 3, "action": 0},
	}}
	hub := NewHub(zap.NewNop())
	go hub.Run()
	defer hub.Close()

	server := NewServer(zap.NewNop(), ":0", reporter, hub)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got HealthSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Status != "ok" || len(got.Symbols) != 1 || got.Symbols[0].Symbol != "EURUSD" {
		t.Fatalf("unexpected snapshot round-trip: %+v", got)
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	reporter := fakeReporter{}
	hub := NewHub(zap.NewNop())
	go hub.Run()
	defer hub.Close()
	server := NewServer(zap.NewNop(), ":0", reporter, hub)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatalf("expected non-empty metrics body")
	}
}

func TestServerStopBeforeStartReturnsNoError(t *testing.T) {
	reporter := fakeReporter{}
	hub := NewHub(zap.NewNop())
	go hub.Run()
	defer hub.Close()
	server := NewServer(zap.NewNop(), "127.0.0.1:0", reporter, hub)

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		t.Fatalf("unexpected error stopping unstarted server: %v", err)
	}
}
