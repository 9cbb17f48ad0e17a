package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDiscoverFromListAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tokens":[
			{"address":"0x1000000000000000000000000000000000000001","name":"Moon Cat","symbol":"MCAT"},
			{"address":"0x1000000000000000000000000000000000000002","name":"self.__next_f.push([1])","symbol":"JUNK"},
			{"address":"","name":"No Address","symbol":"NA"}
		]}`))
	}))
	defer server.Close()

	d := New(Config{ListURL: server.URL, Limit: 5})
	candidates, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(candidates))
	}
	if candidates[0].Name != "Moon Cat" || candidates[0].Source != "api" {
		t.Fatalf("unexpected first candidate: %+v", candidates[0])
	}
	// 脚本痕迹的名称要被符号替换掉。
	if candidates[1].Name != "JUNK" {
		t.Fatalf("dirty name not replaced: %q", candidates[1].Name)
	}
}

func TestDiscoverFallsBackToScrape(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer api.Close()
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<a href="/tokens/0xAbCdEf1234567890aBcDeF1234567890ABCDEF12">one</a>
			<a href="/tokens/0xAbCdEf1234567890aBcDeF1234567890ABCDEF12">dup</a>
			<a href="/tokens/0x2222222222222222222222222222222222222222">two</a>`))
	}))
	defer page.Close()

	d := New(Config{ListURL: api.URL, ScrapeURL: page.URL, Limit: 5})
	candidates, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("candidates = %d, want 2 (deduplicated)", len(candidates))
	}
	if candidates[0].Source != "scrape" {
		t.Fatalf("source = %s, want scrape", candidates[0].Source)
	}
}

func TestDiscoverFallsBackToOwnToken(t *testing.T) {
	d := New(Config{OwnToken: "0x3333333333333333333333333333333333333333", OwnSymbol: "FUND"})
	candidates, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Source != "self" || candidates[0].Symbol != "FUND" {
		t.Fatalf("unexpected candidates: %+v", candidates)
	}
}

func TestDiscoverNoSources(t *testing.T) {
	d := New(Config{})
	if _, err := d.Discover(context.Background()); err == nil {
		t.Fatal("no sources configured must be an error")
	}
}
