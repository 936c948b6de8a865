// internal/types/ids_test.go
package types

import (
	"strings"
	"testing"
)

func TestNewThreadID(t *testing.T) {
	seen := make(map[ThreadID]bool)
	for i := 0; i < 100; i++ {
		id := NewThreadID()
		if !strings.HasPrefix(string(id), "t-") {
			t.Fatalf("unexpected id format: %s", id)
		}
		if seen[id] {
			t.Fatalf("duplicate thread id: %s", id)
		}
		seen[id] = true
	}
}
