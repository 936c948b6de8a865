// internal/session/sync.go
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/admitchat/internal/types"
)

// syncFetchLimit bounds concurrent history prefetches during reconciliation.
const syncFetchLimit = 4

// SyncRemote reconciles server-known threads into the local store, picking up
// conversations started on another device. Threads already cached locally are
// left untouched; the local copy is authoritative for metadata it has.
// Returns the number of threads added.
func (c *Controller) SyncRemote(ctx context.Context) (int, error) {
	remote, err := c.api.ListThreads(ctx, c.owner)
	if err != nil {
		return 0, fmt.Errorf("list remote threads: %w", err)
	}
	if len(remote) == 0 {
		return 0, nil
	}

	local, err := c.store.List(ctx, c.owner)
	if err != nil {
		return 0, fmt.Errorf("list local threads: %w", err)
	}
	known := make(map[types.ThreadID]bool, len(local))
	for _, t := range local {
		known[t.ID] = true
	}

	var (
		mu    sync.Mutex
		added int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncFetchLimit)

	for _, rt := range remote {
		if known[rt.ID] {
			continue
		}
		g.Go(func() error {
			msgs, err := c.api.History(gctx, rt.ID)
			if err != nil {
				return err
			}

			meta := &types.Thread{
				ID:           rt.ID,
				Owner:        c.owner,
				Title:        rt.Title,
				Preview:      rt.Preview,
				LastActivity: time.Now(),
			}
			if meta.Title == "" {
				meta.Title = types.DeriveTitle(firstUserContent(msgs, ""))
			}
			if meta.Preview == "" && len(msgs) > 0 {
				meta.Preview = types.DerivePreview(msgs[len(msgs)-1].Content)
			}
			if c.meter != nil {
				meta.TokenCount = int64(c.meter.CountMessages(msgs))
			}

			if err := c.store.Upsert(gctx, meta); err != nil {
				return fmt.Errorf("upsert synced thread: %w", err)
			}
			if len(msgs) > 0 {
				if err := c.store.SaveMessages(gctx, rt.ID, msgs); err != nil {
					return fmt.Errorf("save synced snapshot: %w", err)
				}
			}

			mu.Lock()
			added++
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return added, err
	}
	return added, nil
}
