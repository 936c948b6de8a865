// Package backend is the HTTP client for the admissions chat backend. It
// covers the two surfaces the session core consumes: the token stream for
// sending a message, and the best-effort history endpoints.
package backend

import (
	"net/http"
	"strings"
)

// Client talks to the chat backend.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retry      *RetryPolicy
}

// New creates a backend client with the given configuration. No global
// request timeout is set on the underlying http.Client because token streams
// are long-lived; callers bound individual requests with contexts.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: hc,
		retry:      DefaultRetryPolicy(),
	}
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
}
