package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/user/admitchat/internal/types"
)

func TestHistoryFiltersPlaceholderRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("missing bearer credential, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"role":"user","content":"hi"},
			{"role":"assistant","content":""},
			{"role":"assistant","content":"   "},
			{"role":"assistant","content":"hello"}
		]`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Token: "tok"})
	msgs, err := c.History(context.Background(), "t-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d: %v", len(msgs), msgs)
	}
	if msgs[0].Role != types.RoleUser || msgs[0].Content != "hi" {
		t.Errorf("unexpected first message: %+v", msgs[0])
	}
	if msgs[1].Role != types.RoleAssistant || msgs[1].Content != "hello" {
		t.Errorf("unexpected second message: %+v", msgs[1])
	}
}

func TestHistoryNonSuccessDegradesToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Token: "tok"})
	msgs, err := c.History(context.Background(), "t-missing")
	if err != nil {
		t.Fatalf("history must not fail the caller: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected empty history, got %v", msgs)
	}
}

func TestListThreadsCacheBuster(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"t-9","title":"Chemistry prep","preview":"moles","messageCount":4}]`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Token: "tok"})
	threads, err := c.ListThreads(context.Background(), "student-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(threads) != 1 || threads[0].ID != "t-9" || threads[0].MessageCount != 4 {
		t.Fatalf("unexpected threads: %v", threads)
	}

	req, _ := http.NewRequest(http.MethodGet, "http://x/?"+query, nil)
	if req.URL.Query().Get("_") == "" {
		t.Errorf("expected cache-busting parameter in query %q", query)
	}
	if req.URL.Query().Get("owner") != "student-1" {
		t.Errorf("expected owner parameter in query %q", query)
	}
}

func TestListThreadsUnreachableDegradesToEmpty(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1", Token: "tok"})
	c.retry = &RetryPolicy{MaxAttempts: 1, InitialDelay: 1, Multiplier: 1, MaxDelay: 1}

	threads, err := c.ListThreads(context.Background(), "student-1")
	if err != nil {
		t.Fatalf("thread list must not fail the caller: %v", err)
	}
	if len(threads) != 0 {
		t.Fatalf("expected empty list, got %v", threads)
	}
}
