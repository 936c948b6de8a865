package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/user/admitchat/internal/types"
)

// errHTTPStatus marks a non-success response. Status failures are not
// retried; they fall through immediately to the empty-history fallback.
var errHTTPStatus = errors.New("unexpected status")

// History fetches the full message sequence for a thread. History is
// best-effort: non-success statuses and exhausted retries degrade to an
// empty result so the chat stays usable without prior context. Messages
// with empty or whitespace-only content are dropped; they are server-side
// placeholder rows, not real turns.
func (c *Client) History(ctx context.Context, id types.ThreadID) ([]types.Message, error) {
	url := fmt.Sprintf("%s/history/%s", c.baseURL, string(id))

	var raw []types.Message
	if err := c.getJSON(ctx, url, &raw); err != nil {
		slog.Warn("history fetch failed, continuing without history", "thread_id", string(id), "error", err)
		return nil, nil
	}

	msgs := make([]types.Message, 0, len(raw))
	for _, m := range raw {
		if m.Empty() || !m.Role.Valid() {
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// ListThreads fetches the server-known thread summaries for an owner. A
// cache-defeating parameter is appended so intermediary caches cannot return
// a stale list. Failures degrade to an empty result.
func (c *Client) ListThreads(ctx context.Context, owner types.OwnerID) ([]types.RemoteThread, error) {
	url := fmt.Sprintf("%s/history/list?owner=%s&_=%d", c.baseURL, string(owner), time.Now().UnixNano())

	var threads []types.RemoteThread
	if err := c.getJSON(ctx, url, &threads); err != nil {
		slog.Warn("thread list fetch failed, continuing with local threads", "owner", string(owner), "error", err)
		return nil, nil
	}
	return threads, nil
}

// getJSON issues an authenticated GET and decodes the JSON body, retrying
// transient network errors per the client's retry policy.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	var lastErr error
	for attempt := 1; ; attempt++ {
		err := c.getJSONOnce(ctx, url, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, errHTTPStatus) || !c.retry.ShouldRetry(err, attempt) {
			return lastErr
		}
		select {
		case <-time.After(c.retry.Delay(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) getJSONOnce(ctx context.Context, url string, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w %d", errHTTPStatus, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
