// internal/types/interfaces.go
package types

import "context"

// ThreadStore is the durable mapping from owners to their threads and from
// threads to message snapshots. Implementations must make Delete idempotent
// and must degrade read failures to empty results so the chat stays usable
// without history.
type ThreadStore interface {
	List(ctx context.Context, owner OwnerID) ([]*Thread, error)
	Upsert(ctx context.Context, thread *Thread) error
	Delete(ctx context.Context, owner OwnerID, id ThreadID) error
	ActiveThread(ctx context.Context, owner OwnerID) (ThreadID, bool)
	SetActive(ctx context.Context, owner OwnerID, id ThreadID) error
	SaveMessages(ctx context.Context, id ThreadID, msgs []Message) error
	LoadMessages(ctx context.Context, id ThreadID) ([]Message, error)
}
