// internal/types/models_test.go
package types

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestMessageEmpty(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{"", true},
		{"   \t\n", true},
		{"hi", false},
		{" x ", false},
	}
	for _, tt := range tests {
		m := Message{Role: RoleAssistant, Content: tt.content}
		if got := m.Empty(); got != tt.want {
			t.Errorf("Empty(%q) = %v, want %v", tt.content, got, tt.want)
		}
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleUser, RoleAssistant, RoleSystem} {
		if !r.Valid() {
			t.Errorf("expected %s to be valid", r)
		}
	}
	if Role("tool").Valid() {
		t.Error("expected unknown role to be invalid")
	}
}

func TestDeriveTitle(t *testing.T) {
	if got := DeriveTitle("  What is velocity?  "); got != "What is velocity?" {
		t.Errorf("unexpected title: %q", got)
	}
	long := strings.Repeat("a", 100)
	if got := DeriveTitle(long); len(got) > 55 {
		t.Errorf("title not truncated: %d chars", len(got))
	}
}

func TestDerivePreview(t *testing.T) {
	if got := DerivePreview("short answer"); got != "short answer" {
		t.Errorf("unexpected preview: %q", got)
	}
	long := strings.Repeat("b", 200)
	got := DerivePreview(long)
	if !strings.HasPrefix(got, "…") {
		t.Errorf("expected trailing excerpt marker, got %q", got)
	}
}

func TestDeriveTitleMultiByte(t *testing.T) {
	// Truncation must land on rune boundaries, never mid-codepoint.
	long := strings.Repeat("物理学の質問", 20)
	got := DeriveTitle(long)
	if !utf8.ValidString(got) {
		t.Fatalf("title is not valid UTF-8: %q", got)
	}
	if n := len([]rune(got)); n != maxTitleLen+1 {
		t.Errorf("expected %d runes plus ellipsis, got %d", maxTitleLen, n)
	}
}

func TestDerivePreviewMultiByte(t *testing.T) {
	long := strings.Repeat("éàü", 100)
	got := DerivePreview(long)
	if !utf8.ValidString(got) {
		t.Fatalf("preview is not valid UTF-8: %q", got)
	}
	if n := len([]rune(got)); n != maxPreviewLen+1 {
		t.Errorf("expected %d runes plus marker, got %d", maxPreviewLen, n)
	}
}
