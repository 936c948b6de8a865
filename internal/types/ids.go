// internal/types/ids.go
package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type OwnerID string
type ThreadID string

// NewThreadID returns a fresh thread id. The timestamp prefix keeps ids
// sortable by creation time and unique within an owner's namespace even if
// the uuid fragment were ever to collide.
func NewThreadID() ThreadID {
	return ThreadID(fmt.Sprintf("t-%d-%s", time.Now().UnixMilli(), uuid.New().String()[:8]))
}
