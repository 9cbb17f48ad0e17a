package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"FundAgent/internal/state"
)

type stubStatus struct {
	snapshot state.Snapshot
}

func (s stubStatus) Snapshot(context.Context) state.Snapshot { return s.snapshot }

func TestStatusEndpoint(t *testing.T) {
	server := NewServer(":0", stubStatus{snapshot: state.Snapshot{Mode: state.ModeBull, TradeCount: 4}}, nil, nil)

	recorder := httptest.NewRecorder()
	server.handleStatus(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	var snapshot state.Snapshot
	if err := json.NewDecoder(recorder.Body).Decode(&snapshot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snapshot.Mode != state.ModeBull || snapshot.TradeCount != 4 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
}

func TestStatusDegradesToUnavailable(t *testing.T) {
	server := NewServer(":0", nil, nil, nil)

	recorder := httptest.NewRecorder()
	server.handleStatus(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", recorder.Code)
	}
	var payload map[string]string
	if err := json.NewDecoder(recorder.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["status"] != "unavailable" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestTriggerRejectsGet(t *testing.T) {
	server := NewServer(":0", nil, nil, nil)
	handler := server.triggerHandler("buy-cycle")

	recorder := httptest.NewRecorder()
	handler(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/trigger/discovery", nil))

	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", recorder.Code)
	}
}
