package backend

import (
	"net/http"

	"github.com/user/admitchat/internal/types"
)

// Config carries the settings for a backend client.
type Config struct {
	// BaseURL is the root of the chat backend, e.g. "https://api.school.example/tutor".
	BaseURL string
	// Token is the bearer credential attached to every request.
	Token string
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// EventType discriminates the variants of a StreamEvent.
type EventType string

const (
	// EventToken appends text to the in-flight assistant message.
	EventToken EventType = "token"
	// EventStatus is a transient progress annotation, shown only until the
	// first token arrives.
	EventStatus EventType = "status"
	// EventError terminates the stream abnormally.
	EventError EventType = "error"
)

// StreamEvent is one unit parsed from the wire. Events are tagged with the
// thread they were sent for so a consumer can discard events that arrive
// after the active thread has changed. Normal termination is represented by
// the event channel closing, not by a dedicated variant.
type StreamEvent struct {
	Type    EventType
	Content string
	Thread  types.ThreadID
}

// frame is the JSON shape of one data: payload on the wire.
type frame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// streamRequest is the JSON body of POST /stream.
type streamRequest struct {
	Message  string `json:"message"`
	OwnerID  string `json:"ownerId"`
	ThreadID string `json:"threadId"`
}
