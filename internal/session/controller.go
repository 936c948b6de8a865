// internal/session/controller.go
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/user/admitchat/internal/tokens"
	"github.com/user/admitchat/internal/types"
	"github.com/user/admitchat/pkg/backend"
)

// State is the per-thread send lifecycle: Idle -> Sending -> Streaming -> Idle.
type State int

const (
	Idle State = iota
	Sending
	Streaming
)

func (s State) String() string {
	switch s {
	case Sending:
		return "sending"
	case Streaming:
		return "streaming"
	default:
		return "idle"
	}
}

var (
	// ErrBusy is returned when a send is requested while the thread is not idle.
	ErrBusy = errors.New("a message is already in flight on this thread")
	// ErrEmptyMessage is returned for empty or whitespace-only input.
	ErrEmptyMessage = errors.New("message is empty")
)

// Backend is the slice of the backend client the controller consumes.
type Backend interface {
	Stream(ctx context.Context, id types.ThreadID, owner types.OwnerID, text string) (<-chan backend.StreamEvent, error)
	History(ctx context.Context, id types.ThreadID) ([]types.Message, error)
	ListThreads(ctx context.Context, owner types.OwnerID) ([]types.RemoteThread, error)
}

// Config wires a Controller. Owner is explicit: the controller never reads
// identity from ambient state.
type Config struct {
	Owner   types.OwnerID
	Store   types.ThreadStore
	Backend Backend
	// Meter is optional; when set, completed exchanges are token-counted
	// into thread metadata.
	Meter *tokens.Meter
	// IdleTimeout bounds how long a stream may go without producing an
	// event before it is terminated with a timeout notice. Zero selects
	// the default of 90 seconds.
	IdleTimeout time.Duration

	// OnToken and OnStatus fire for events applied to the active thread's
	// visible list. OnNotice carries user-visible failure notices. OnChange
	// fires after any visible-list replacement (new/switch/retraction).
	// All hooks are optional.
	OnToken  func(text string)
	OnStatus func(text string)
	OnNotice func(text string)
	OnChange func()
}

// Controller orchestrates thread identity, history, and the token stream
// into a single visible message list. One controller serves one owner.
type Controller struct {
	owner   types.OwnerID
	store   types.ThreadStore
	api     Backend
	meter   *tokens.Meter
	timeout time.Duration

	onToken  func(string)
	onStatus func(string)
	onNotice func(string)
	onChange func()

	mu     sync.Mutex
	active types.ThreadID
	msgs   []types.Message
	states map[types.ThreadID]State
	// gen increments on every visible-list replacement so an in-flight
	// stream from before a switch can never touch the current list, even
	// if the user switches back to the same thread.
	gen int
}

// New creates a Controller. Store and Backend are required.
func New(cfg Config) (*Controller, error) {
	if cfg.Owner == "" {
		return nil, errors.New("owner is required")
	}
	if cfg.Store == nil || cfg.Backend == nil {
		return nil, errors.New("store and backend are required")
	}
	timeout := cfg.IdleTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	noop := func(string) {}
	c := &Controller{
		owner:    cfg.Owner,
		store:    cfg.Store,
		api:      cfg.Backend,
		meter:    cfg.Meter,
		timeout:  timeout,
		onToken:  cfg.OnToken,
		onStatus: cfg.OnStatus,
		onNotice: cfg.OnNotice,
		onChange: cfg.OnChange,
		states:   make(map[types.ThreadID]State),
	}
	if c.onToken == nil {
		c.onToken = noop
	}
	if c.onStatus == nil {
		c.onStatus = noop
	}
	if c.onNotice == nil {
		c.onNotice = noop
	}
	if c.onChange == nil {
		c.onChange = func() {}
	}
	return c, nil
}

// Owner returns the owner this controller serves.
func (c *Controller) Owner() types.OwnerID { return c.owner }

// Active returns the current thread id.
func (c *Controller) Active() types.ThreadID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// State returns the active thread's send state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[c.active]
}

// Messages returns a copy of the visible message list.
func (c *Controller) Messages() []types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

// Resume restores the owner's active thread from the store, creating a fresh
// thread when none was recorded, and repopulates the visible list.
func (c *Controller) Resume(ctx context.Context) error {
	id, ok := c.store.ActiveThread(ctx, c.owner)
	if !ok {
		return c.NewThread(ctx)
	}

	c.mu.Lock()
	c.active = id
	c.msgs = nil
	c.gen++
	c.mu.Unlock()

	c.loadHistory(ctx, id)
	c.onChange()
	return nil
}

// NewThread starts a fresh conversation: a new client-generated id, a cleared
// visible list, and the active pointer updated. Metadata is written lazily on
// the first real message so empty threads don't clutter history.
func (c *Controller) NewThread(ctx context.Context) error {
	id := types.NewThreadID()

	c.mu.Lock()
	c.active = id
	c.msgs = nil
	c.gen++
	c.mu.Unlock()

	if err := c.store.SetActive(ctx, c.owner, id); err != nil {
		slog.Warn("persist active thread failed", "thread_id", string(id), "error", err)
	}
	c.onChange()
	return nil
}

// SwitchThread makes the given thread active and repopulates the visible
// list. A no-op when the thread is already active. Safe to call while a
// previous thread's stream is in flight: that stream's later events are
// discarded rather than applied to the new list.
func (c *Controller) SwitchThread(ctx context.Context, id types.ThreadID) error {
	c.mu.Lock()
	if c.active == id {
		c.mu.Unlock()
		return nil
	}
	c.active = id
	c.msgs = nil
	c.gen++
	c.mu.Unlock()

	if err := c.store.SetActive(ctx, c.owner, id); err != nil {
		slog.Warn("persist active thread failed", "thread_id", string(id), "error", err)
	}

	c.loadHistory(ctx, id)
	c.onChange()
	return nil
}

// loadHistory repopulates the visible list for id: backend history first,
// local snapshot as the offline fallback. The result is discarded if the
// active thread changed while the fetch was in flight.
func (c *Controller) loadHistory(ctx context.Context, id types.ThreadID) {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	msgs, err := c.api.History(ctx, id)
	if err != nil {
		slog.Warn("history load failed", "thread_id", string(id), "error", err)
		msgs = nil
	}
	if len(msgs) == 0 {
		if cached, err := c.store.LoadMessages(ctx, id); err == nil {
			msgs = cached
		}
	}

	c.mu.Lock()
	if c.active == id && c.gen == gen {
		c.msgs = msgs
	}
	c.mu.Unlock()
}

// Threads lists the owner's threads, most-recently-active first.
func (c *Controller) Threads(ctx context.Context) ([]*types.Thread, error) {
	return c.store.List(ctx, c.owner)
}

// DeleteThread removes a thread and its message log. Deleting the active
// thread clears the visible list and starts a fresh thread.
func (c *Controller) DeleteThread(ctx context.Context, id types.ThreadID) error {
	if err := c.store.Delete(ctx, c.owner, id); err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	if c.Active() == id {
		return c.NewThread(ctx)
	}
	return nil
}

// Send validates and sends one user message on the active thread, consuming
// the token stream to completion. It blocks until the exchange finishes,
// fails, or the context is cancelled. A second send while the thread is not
// idle is rejected with ErrBusy.
func (c *Controller) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	thread := c.active
	if thread == "" {
		c.mu.Unlock()
		return errors.New("no active thread")
	}
	if c.states[thread] != Idle {
		c.mu.Unlock()
		return ErrBusy
	}
	c.states[thread] = Sending
	gen := c.gen
	// Optimistic update: the user's message plus an empty assistant
	// placeholder that streaming will fill in.
	c.msgs = append(c.msgs, types.Message{Role: types.RoleUser, Content: text})
	c.msgs = append(c.msgs, types.Message{Role: types.RoleAssistant})
	c.mu.Unlock()
	c.onChange()

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch, err := c.api.Stream(streamCtx, thread, c.owner, text)
	if err != nil {
		// The user message is kept (the user did say that); only the
		// placeholder is retracted.
		c.retractPlaceholder(thread, gen)
		c.setIdle(thread)
		c.onChange()
		c.onNotice("Could not reach the tutor. Your message was not sent; please try again.")
		return fmt.Errorf("open stream: %w", err)
	}

	return c.consume(ctx, cancel, ch, thread, gen, text)
}

// consume drains the event stream, applying each event to the visible list
// and enforcing the idle timeout.
func (c *Controller) consume(ctx context.Context, cancel context.CancelFunc, ch <-chan backend.StreamEvent, thread types.ThreadID, gen int, userText string) error {
	gotToken := false
	statusShown := false

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				c.finish(ctx, thread, gen, gotToken, userText)
				return nil
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(c.timeout)

			switch ev.Type {
			case backend.EventToken:
				c.applyToken(thread, gen, ev.Content, gotToken || !statusShown)
				gotToken = true
			case backend.EventStatus:
				// Status annotations only overwrite the placeholder until
				// the first token arrives; tokens always win once present.
				if !gotToken {
					c.applyStatus(thread, gen, ev.Content)
					statusShown = true
				}
			case backend.EventError:
				cancel()
				c.failStream(ctx, thread, gen, gotToken, userText, ev.Content)
				return nil
			}

		case <-timer.C:
			cancel()
			c.failStream(ctx, thread, gen, gotToken, userText, "the tutor stopped responding")
			return nil

		case <-ctx.Done():
			// Abandoned (navigation away). Retract an unfilled placeholder
			// and release the stream; no notice.
			if !gotToken {
				c.retractPlaceholder(thread, gen)
				c.onChange()
			}
			c.setIdle(thread)
			return ctx.Err()
		}
	}
}

// applyToken appends (or, when status text was showing, replaces) content on
// the in-flight assistant placeholder and moves the thread to Streaming.
func (c *Controller) applyToken(thread types.ThreadID, gen int, text string, appendMode bool) {
	c.mu.Lock()
	c.states[thread] = Streaming
	if !c.visible(thread, gen) || len(c.msgs) == 0 {
		c.mu.Unlock()
		return
	}
	last := &c.msgs[len(c.msgs)-1]
	if appendMode {
		last.Content += text
	} else {
		last.Content = text
	}
	c.mu.Unlock()
	c.onToken(text)
}

func (c *Controller) applyStatus(thread types.ThreadID, gen int, text string) {
	c.mu.Lock()
	if !c.visible(thread, gen) || len(c.msgs) == 0 {
		c.mu.Unlock()
		return
	}
	c.msgs[len(c.msgs)-1].Content = text
	c.mu.Unlock()
	c.onStatus(text)
}

// visible reports whether events for (thread, gen) may touch the visible
// list. Caller must hold c.mu.
func (c *Controller) visible(thread types.ThreadID, gen int) bool {
	return c.active == thread && c.gen == gen
}

// finish handles normal completion: persist metadata and the message
// snapshot, return to Idle.
func (c *Controller) finish(ctx context.Context, thread types.ThreadID, gen int, gotToken bool, userText string) {
	c.setIdle(thread)

	c.mu.Lock()
	if !c.visible(thread, gen) {
		// The user switched away mid-stream; later events were discarded,
		// so there is no complete exchange to persist.
		c.mu.Unlock()
		return
	}
	if !gotToken && len(c.msgs) > 0 && c.msgs[len(c.msgs)-1].Role == types.RoleAssistant {
		// Stream ended without a single token: retract the placeholder.
		// Any status text it showed was transient, not an answer.
		c.msgs = c.msgs[:len(c.msgs)-1]
	}
	snapshot := make([]types.Message, len(c.msgs))
	copy(snapshot, c.msgs)
	c.mu.Unlock()

	c.persist(ctx, thread, snapshot, userText)
	c.onChange()
}

// failStream surfaces a user-visible notice, retracts the placeholder if it
// is still empty (partial content is never retracted once present), and
// returns to Idle. A partially streamed answer is still persisted.
func (c *Controller) failStream(ctx context.Context, thread types.ThreadID, gen int, gotToken bool, userText, reason string) {
	c.setIdle(thread)

	if !gotToken {
		c.retractPlaceholder(thread, gen)
	} else {
		c.mu.Lock()
		ok := c.visible(thread, gen)
		snapshot := make([]types.Message, len(c.msgs))
		copy(snapshot, c.msgs)
		c.mu.Unlock()
		if ok {
			c.persist(ctx, thread, snapshot, userText)
		}
	}

	c.onNotice("The tutor ran into a problem: " + reason)
	c.onChange()
}

// retractPlaceholder drops the trailing assistant placeholder if it is still
// empty or only ever showed status text.
func (c *Controller) retractPlaceholder(thread types.ThreadID, gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.visible(thread, gen) || len(c.msgs) == 0 {
		return
	}
	last := c.msgs[len(c.msgs)-1]
	if last.Role == types.RoleAssistant {
		c.msgs = c.msgs[:len(c.msgs)-1]
	}
}

func (c *Controller) setIdle(thread types.ThreadID) {
	c.mu.Lock()
	c.states[thread] = Idle
	c.mu.Unlock()
}

// persist writes updated thread metadata and the message snapshot. Storage
// failures are logged and swallowed; the chat stays usable without history.
func (c *Controller) persist(ctx context.Context, thread types.ThreadID, snapshot []types.Message, userText string) {
	meta := c.lookupThread(ctx, thread)
	if meta == nil {
		meta = &types.Thread{ID: thread, Owner: c.owner}
	}
	if meta.Title == "" {
		meta.Title = types.DeriveTitle(firstUserContent(snapshot, userText))
	}
	if len(snapshot) > 0 {
		meta.Preview = types.DerivePreview(snapshot[len(snapshot)-1].Content)
	}
	meta.LastActivity = time.Now()

	if c.meter != nil && len(snapshot) >= 2 {
		exchange := snapshot[len(snapshot)-2:]
		meta.TokenCount += int64(c.meter.CountMessages(exchange))
	}

	if err := c.store.Upsert(ctx, meta); err != nil {
		slog.Warn("persist thread metadata failed", "thread_id", string(thread), "error", err)
	}
	if err := c.store.SaveMessages(ctx, thread, snapshot); err != nil {
		slog.Warn("persist message snapshot failed", "thread_id", string(thread), "error", err)
	}
}

func (c *Controller) lookupThread(ctx context.Context, id types.ThreadID) *types.Thread {
	threads, err := c.store.List(ctx, c.owner)
	if err != nil {
		return nil
	}
	for _, t := range threads {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func firstUserContent(msgs []types.Message, fallback string) string {
	for _, m := range msgs {
		if m.Role == types.RoleUser {
			return m.Content
		}
	}
	return fallback
}
