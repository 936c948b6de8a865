// internal/types/models.go
package types

import (
	"strings"
	"time"
)

// Role identifies the author of a message turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is one turn in a thread. Ordering within a thread is append-only;
// the slice index is the ordering key. The only message whose Content may be
// mutated after insertion is the in-flight assistant placeholder.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Empty reports whether the message carries no real content.
func (m Message) Empty() bool {
	return strings.TrimSpace(m.Content) == ""
}

// Thread is the metadata for one logical conversation.
type Thread struct {
	ID           ThreadID  `json:"id"`
	Owner        OwnerID   `json:"owner"`
	Title        string    `json:"title"`
	Preview      string    `json:"preview"`
	LastActivity time.Time `json:"last_activity"`
	TokenCount   int64     `json:"token_count,omitempty"`
}

// RemoteThread is a server-known thread summary, used to reconcile threads
// the client has not yet cached locally.
type RemoteThread struct {
	ID           ThreadID `json:"id"`
	Title        string   `json:"title"`
	Preview      string   `json:"preview"`
	MessageCount int      `json:"messageCount"`
}

const (
	maxTitleLen   = 48
	maxPreviewLen = 96
)

// DeriveTitle produces a thread title from the first user message.
func DeriveTitle(text string) string {
	return truncate(strings.TrimSpace(text), maxTitleLen)
}

// DerivePreview produces the trailing excerpt shown in thread lists.
func DerivePreview(text string) string {
	text = strings.TrimSpace(text)
	r := []rune(text)
	if len(r) <= maxPreviewLen {
		return text
	}
	return "…" + string(r[len(r)-maxPreviewLen:])
}

// truncate cuts on rune boundaries so multi-byte content never yields
// invalid UTF-8.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
