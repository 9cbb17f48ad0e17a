package fundagent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/status" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"wallet":"0xF0","mode":"BULL","trade_count":7,"commentary_only":false}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	status, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Mode != "BULL" || status.TradeCount != 7 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestTradesWithLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit = %q, want 5", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"t1","type":"buy","symbol":"MCAT","amount":"1"}]`))
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, nil)
	trades, err := client.Trades(context.Background(), 5)
	if err != nil {
		t.Fatalf("Trades: %v", err)
	}
	if len(trades) != 1 || trades[0].Symbol != "MCAT" {
		t.Fatalf("unexpected trades: %+v", trades)
	}
}

func TestTriggerDiscoveryError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "调度器未初始化", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, nil)
	err := client.TriggerDiscovery(context.Background())
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", apiErr.StatusCode)
	}
}
