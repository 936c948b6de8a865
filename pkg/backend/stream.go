package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/user/admitchat/internal/types"
)

const doneSentinel = "[DONE]"

// Stream sends a message on the given thread and returns a channel of parsed
// stream events. The channel is closed on normal termination ([DONE] or EOF);
// a mid-stream error arrives as a terminal EventError, not a Go error. A
// non-success status before any frame is read is returned as an error and no
// channel is produced. Cancel the context to abandon the stream; the response
// body is closed promptly and no further events are delivered.
//
// The returned sequence is finite and not restartable: retrying requires a
// fresh call.
func (c *Client) Stream(ctx context.Context, id types.ThreadID, owner types.OwnerID, text string) (<-chan StreamEvent, error) {
	body, err := json.Marshal(streamRequest{
		Message:  text,
		OwnerID:  string(owner),
		ThreadID: string(id),
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/stream", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opening stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("opening stream: unexpected status %d", resp.StatusCode)
	}

	ch := make(chan StreamEvent)
	go c.readFrames(ctx, resp.Body, id, ch)
	return ch, nil
}

// readFrames decodes data: frames off the response body and forwards them as
// events until the [DONE] sentinel, EOF, or cancellation.
func (c *Client) readFrames(ctx context.Context, body io.ReadCloser, id types.ThreadID, ch chan<- StreamEvent) {
	defer close(ch)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	scanner.Split(splitFrames)

	for scanner.Scan() {
		ev, ok := parseFrame(scanner.Bytes())
		if !ok {
			continue
		}
		if ev.Type == eventDone {
			return
		}
		ev.Thread = id

		select {
		case ch <- ev:
		case <-ctx.Done():
			return
		}

		if ev.Type == EventError {
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		// The connection dropped mid-stream. Surface it as a terminal error
		// event so the caller can decide whether it is user-visible.
		select {
		case ch <- StreamEvent{Type: EventError, Content: "connection lost", Thread: id}:
		case <-ctx.Done():
		}
	}
}

// eventDone is internal to frame parsing; normal termination is represented
// to consumers by the channel closing.
const eventDone EventType = "done"

// splitFrames is a bufio.SplitFunc that yields one frame per blank-line
// separated block. Partial frames at the end of a read are held in the
// scanner's buffer until the rest arrives, so a frame boundary landing
// mid-JSON never produces a parse attempt on a fragment.
func splitFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i := bytes.Index(data, []byte("\n\n")); i >= 0 {
		return i + 2, data[:i], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// parseFrame decodes one frame block. Frames without the data: prefix or
// with unparsable JSON are skipped; they are artifacts of chunk boundaries
// or keep-alive padding, not fatal errors.
func parseFrame(block []byte) (StreamEvent, bool) {
	line := strings.TrimSpace(string(block))
	if !strings.HasPrefix(line, "data: ") {
		return StreamEvent{}, false
	}
	payload := strings.TrimPrefix(line, "data: ")

	if payload == doneSentinel {
		return StreamEvent{Type: eventDone}, true
	}

	var f frame
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		return StreamEvent{}, false
	}

	switch EventType(f.Type) {
	case EventToken, EventStatus, EventError:
		return StreamEvent{Type: EventType(f.Type), Content: f.Content}, true
	default:
		return StreamEvent{}, false
	}
}
