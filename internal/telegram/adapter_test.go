package telegram

import (
	"strings"
	"testing"
)

func TestSplitMessage(t *testing.T) {
	parts := splitMessage("hello")
	if len(parts) != 1 || parts[0] != "hello" {
		t.Errorf("short message should be one part, got %v", parts)
	}
}

func TestSplitMessageLong(t *testing.T) {
	text := strings.Repeat("a", maxTelegramMessage+100)
	parts := splitMessage(text)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if len(parts[0]) != maxTelegramMessage {
		t.Errorf("first part length %d, want %d", len(parts[0]), maxTelegramMessage)
	}
	if len(parts[1]) != 100 {
		t.Errorf("second part length %d, want 100", len(parts[1]))
	}
	if parts[0]+parts[1] != text {
		t.Error("split lost content")
	}
}

func TestBuildOwner(t *testing.T) {
	owner := buildOwner(12345, 67890)
	if string(owner) != "telegram:12345:67890" {
		t.Errorf("unexpected owner: %s", owner)
	}
}

func TestChatSessionStreamLifecycle(t *testing.T) {
	var edits []string
	cs := &chatSession{
		chatID: 1,
		edit: func(chatID int64, messageID int, text string) {
			edits = append(edits, text)
		},
	}

	cs.beginStream(42)
	cs.onToken("The application ")
	cs.onToken("deadline is January 15.")
	cs.onNotice("partial answer")

	content, notice := cs.endStream()
	if content != "The application deadline is January 15." {
		t.Errorf("unexpected accumulated content: %q", content)
	}
	if notice != "partial answer" {
		t.Errorf("unexpected notice: %q", notice)
	}

	// After endStream the session is reset for the next turn.
	content, notice = cs.endStream()
	if content != "" || notice != "" {
		t.Errorf("expected reset state, got %q / %q", content, notice)
	}
}

func TestChatSessionThrottlesEdits(t *testing.T) {
	var edits int
	cs := &chatSession{
		chatID: 1,
		edit: func(chatID int64, messageID int, text string) {
			edits++
		},
	}

	cs.beginStream(42)
	for i := 0; i < 50; i++ {
		cs.onToken("word ")
	}
	// lastEdit was set by beginStream, so no edit interval has elapsed.
	if edits != 0 {
		t.Errorf("expected throttled edits, got %d", edits)
	}

	cs.lastEdit = cs.lastEdit.Add(-2 * editInterval)
	cs.onToken("more")
	if edits != 1 {
		t.Errorf("expected one edit after interval elapsed, got %d", edits)
	}
}
