// internal/state/threadstore.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/user/admitchat/internal/types"
)

// ThreadStore is a JSON-file-backed implementation of types.ThreadStore.
type ThreadStore struct {
	root  string
	mu    sync.Mutex
	locks map[types.OwnerID]*sync.Mutex

	// activeMu guards the active-pointer file. All owners share one JSON
	// document there, so its read-modify-write cannot be protected by the
	// per-owner locks.
	activeMu sync.Mutex
}

// NewThreadStore creates a file-backed ThreadStore rooted at the given directory.
func NewThreadStore(root string) *ThreadStore {
	return &ThreadStore{
		root:  root,
		locks: make(map[types.OwnerID]*sync.Mutex),
	}
}

// getLock returns the per-owner mutex, creating one if it doesn't exist.
func (s *ThreadStore) getLock(owner types.OwnerID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lock, ok := s.locks[owner]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	s.locks[owner] = lock
	return lock
}

func (s *ThreadStore) indexPath(owner types.OwnerID) string {
	return filepath.Join(s.root, "threads", string(owner)+".json")
}

func (s *ThreadStore) activePath() string {
	return filepath.Join(s.root, "threads", "active.json")
}

func (s *ThreadStore) messagesPath(id types.ThreadID) string {
	return filepath.Join(s.root, "messages", string(id)+".json")
}

// loadIndex reads an owner's thread index. Missing or corrupt files degrade
// to an empty index; an unreadable history must never make the chat unusable.
func (s *ThreadStore) loadIndex(owner types.OwnerID) []*types.Thread {
	data, err := os.ReadFile(s.indexPath(owner))
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("read thread index failed, starting empty", "owner", string(owner), "error", err)
		}
		return nil
	}

	var threads []*types.Thread
	if err := json.Unmarshal(data, &threads); err != nil {
		slog.Warn("corrupt thread index, starting empty", "owner", string(owner), "error", err)
		return nil
	}
	return threads
}

// saveIndex sorts the index most-recently-active first, marshals with
// indentation, and writes atomically.
func (s *ThreadStore) saveIndex(owner types.OwnerID, threads []*types.Thread) error {
	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].LastActivity.After(threads[j].LastActivity)
	})

	data, err := json.MarshalIndent(threads, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal thread index: %w", err)
	}
	return writeAtomic(s.indexPath(owner), data)
}

// List returns the owner's threads, most-recently-active first.
func (s *ThreadStore) List(_ context.Context, owner types.OwnerID) ([]*types.Thread, error) {
	lock := s.getLock(owner)
	lock.Lock()
	defer lock.Unlock()

	threads := s.loadIndex(owner)
	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].LastActivity.After(threads[j].LastActivity)
	})
	return threads, nil
}

// Upsert inserts or replaces a thread by id and recomputes the ordering.
func (s *ThreadStore) Upsert(_ context.Context, thread *types.Thread) error {
	lock := s.getLock(thread.Owner)
	lock.Lock()
	defer lock.Unlock()

	threads := s.loadIndex(thread.Owner)
	replaced := false
	for i, t := range threads {
		if t.ID == thread.ID {
			threads[i] = thread
			replaced = true
			break
		}
	}
	if !replaced {
		threads = append(threads, thread)
	}
	return s.saveIndex(thread.Owner, threads)
}

// Delete removes a thread's metadata and its message snapshot. Deleting a
// thread that does not exist is not an error.
func (s *ThreadStore) Delete(_ context.Context, owner types.OwnerID, id types.ThreadID) error {
	lock := s.getLock(owner)
	lock.Lock()
	defer lock.Unlock()

	threads := s.loadIndex(owner)
	kept := threads[:0]
	for _, t := range threads {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	if err := s.saveIndex(owner, kept); err != nil {
		return err
	}

	if err := os.Remove(s.messagesPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove message snapshot: %w", err)
	}

	// Clear the active pointer if it referenced the deleted thread.
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	active := s.loadActive()
	if active[owner] == id {
		delete(active, owner)
		return s.saveActive(active)
	}
	return nil
}

func (s *ThreadStore) loadActive() map[types.OwnerID]types.ThreadID {
	data, err := os.ReadFile(s.activePath())
	if err != nil {
		return make(map[types.OwnerID]types.ThreadID)
	}
	active := make(map[types.OwnerID]types.ThreadID)
	if err := json.Unmarshal(data, &active); err != nil {
		slog.Warn("corrupt active-thread file, starting empty", "error", err)
		return make(map[types.OwnerID]types.ThreadID)
	}
	return active
}

func (s *ThreadStore) saveActive(active map[types.OwnerID]types.ThreadID) error {
	data, err := json.MarshalIndent(active, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal active threads: %w", err)
	}
	return writeAtomic(s.activePath(), data)
}

// ActiveThread returns the thread to resume on load, if one was set.
func (s *ThreadStore) ActiveThread(_ context.Context, owner types.OwnerID) (types.ThreadID, bool) {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()

	id, ok := s.loadActive()[owner]
	return id, ok
}

// SetActive records the owner's active thread.
func (s *ThreadStore) SetActive(_ context.Context, owner types.OwnerID, id types.ThreadID) error {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()

	active := s.loadActive()
	active[owner] = id
	return s.saveActive(active)
}

// SaveMessages persists a message snapshot for the thread.
func (s *ThreadStore) SaveMessages(_ context.Context, id types.ThreadID, msgs []types.Message) error {
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	return writeAtomic(s.messagesPath(id), data)
}

// LoadMessages returns the cached message snapshot for the thread, or nil
// when none exists or the snapshot is unreadable.
func (s *ThreadStore) LoadMessages(_ context.Context, id types.ThreadID) ([]types.Message, error) {
	data, err := os.ReadFile(s.messagesPath(id))
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("read message snapshot failed", "thread_id", string(id), "error", err)
		}
		return nil, nil
	}

	var msgs []types.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		slog.Warn("corrupt message snapshot", "thread_id", string(id), "error", err)
		return nil, nil
	}
	return msgs, nil
}

// writeAtomic writes data to path via a temp file and rename.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
