package social

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseReply(t *testing.T) {
	reply := "TITLE: Fund update\nCONTENT: Bought MCAT today.\nStill bullish."
	title, content := ParseReply(reply, "default", 0)
	if title != "Fund update" {
		t.Fatalf("title = %q", title)
	}
	if content != "Bought MCAT today.\nStill bullish." {
		t.Fatalf("content = %q", content)
	}
}

func TestParseReplyWithoutMarkers(t *testing.T) {
	title, content := ParseReply("just some text", "default", 0)
	if title != "default" || content != "just some text" {
		t.Fatalf("got (%q, %q)", title, content)
	}
}

func TestParseReplyCapsLength(t *testing.T) {
	_, content := ParseReply("CONTENT: 0123456789", "d", 5)
	if content != "01234" {
		t.Fatalf("content = %q, want 01234", content)
	}
}

func TestPost(t *testing.T) {
	var got postRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/posts" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, Submolt: "funds"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := client.Post(context.Background(), "t", "c"); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if got.Submolt != "funds" || got.Title != "t" || got.Content != "c" {
		t.Fatalf("unexpected request: %+v", got)
	}
}
