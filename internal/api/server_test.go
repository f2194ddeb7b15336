package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crypto-flow-radar/internal/aggregator"
	"crypto-flow-radar/internal/anomaly"
	"crypto-flow-radar/internal/baseline"
	"crypto-flow-radar/internal/engine"
	"crypto-flow-radar/internal/events"
	"crypto-flow-radar/internal/liquidation"
	"crypto-flow-radar/internal/logging"
	"crypto-flow-radar/internal/patterns"
	"crypto-flow-radar/internal/throttle"
)

func testServer() *Server {
	tracker := baseline.NewTracker(nil)
	gate := throttle.New(time.Minute)
	eng := engine.New(nil, engine.Deps{
		Aggregator: aggregator.New(),
		Baselines:  tracker,
		Detector:   anomaly.NewDetector(nil, tracker),
		Book:       liquidation.NewBook(nil, nil, nil),
		Classifier: patterns.NewClassifier(nil, gate),
		Throttle:   gate,
	}, logging.New(&logging.Config{Level: "ERROR", JSONFormat: true}))

	return NewServer(ServerConfig{ProductionMode: true}, eng, events.NewEventBus())
}

// TestHealthEndpoint verifies the liveness probe
func TestHealthEndpoint(t *testing.T) {
	s := testServer()

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("health should return 200, got %d", w.Code)
	}
}

// TestEmptySnapshots verifies the snapshot endpoints return empty
// collections rather than errors before any data arrives
func TestEmptySnapshots(t *testing.T) {
	s := testServer()

	for _, path := range []string{"/api/alerts", "/api/signals", "/api/liquidations", "/api/status"} {
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s should return 200 on an empty engine, got %d", path, w.Code)
		}
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/alerts", nil))
	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("alerts response should be JSON: %v", err)
	}
	if body.Count != 0 {
		t.Errorf("empty engine should report zero alerts, got %d", body.Count)
	}
}

// TestTopLiquidationsSideValidation verifies an unknown side is a 400
func TestTopLiquidationsSideValidation(t *testing.T) {
	s := testServer()

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/liquidations/sideways/top", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid side should return 400, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/liquidations/long/top?limit=5", nil))
	if w.Code != http.StatusOK {
		t.Errorf("long side should return 200, got %d", w.Code)
	}
}
