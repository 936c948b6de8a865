// internal/devserver/server_test.go
package devserver

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/user/admitchat/internal/types"
	"github.com/user/admitchat/pkg/backend"
)

func TestDevServerStreamAndHistory(t *testing.T) {
	srv := httptest.NewServer(New("secret", 0))
	defer srv.Close()

	c := backend.New(backend.Config{BaseURL: srv.URL, Token: "secret"})
	ctx := context.Background()

	ch, err := c.Stream(ctx, "t-1", "student-1", "projectile motion")
	if err != nil {
		t.Fatal(err)
	}

	var status string
	var answer strings.Builder
	for ev := range ch {
		switch ev.Type {
		case backend.EventStatus:
			status = ev.Content
		case backend.EventToken:
			answer.WriteString(ev.Content)
		case backend.EventError:
			t.Fatalf("unexpected error event: %s", ev.Content)
		}
	}

	if status == "" {
		t.Error("expected a status frame before tokens")
	}
	if !strings.Contains(answer.String(), "projectile motion") {
		t.Errorf("unexpected answer: %q", answer.String())
	}

	msgs, err := c.History(ctx, "t-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected recorded exchange, got %v", msgs)
	}
	if msgs[0].Role != types.RoleUser || msgs[1].Role != types.RoleAssistant {
		t.Errorf("unexpected roles: %v", msgs)
	}

	threads, err := c.ListThreads(ctx, "student-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(threads) != 1 || threads[0].MessageCount != 2 {
		t.Fatalf("unexpected thread list: %v", threads)
	}
}

func TestDevServerRejectsBadToken(t *testing.T) {
	srv := httptest.NewServer(New("secret", 0))
	defer srv.Close()

	c := backend.New(backend.Config{BaseURL: srv.URL, Token: "wrong"})
	if _, err := c.Stream(context.Background(), "t-1", "student-1", "hi"); err == nil {
		t.Fatal("expected auth failure before streaming begins")
	}
}

func TestDevServerListFiltersByOwner(t *testing.T) {
	s := New("", 0)
	s.Seed("t-a", "student-1", []types.Message{{Role: types.RoleUser, Content: "algebra"}})
	s.Seed("t-b", "student-2", []types.Message{{Role: types.RoleUser, Content: "biology"}})

	srv := httptest.NewServer(s)
	defer srv.Close()

	c := backend.New(backend.Config{BaseURL: srv.URL})
	threads, err := c.ListThreads(context.Background(), "student-2")
	if err != nil {
		t.Fatal(err)
	}
	if len(threads) != 1 || threads[0].ID != "t-b" {
		t.Fatalf("expected only student-2's thread, got %v", threads)
	}
}
