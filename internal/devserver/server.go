// internal/devserver/server.go
package devserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/user/admitchat/internal/types"
)

// Server is an in-memory stand-in for the admissions chat backend. It speaks
// the same wire contract (POST /stream, GET /history/{id}, GET /history/list)
// with a canned word-by-word tutor, so the client can be exercised offline.
type Server struct {
	token string
	delay time.Duration
	mux   *http.ServeMux

	mu      sync.Mutex
	history map[types.ThreadID][]types.Message
	order   []types.ThreadID
	owners  map[types.ThreadID]types.OwnerID
}

// New creates a dev server. token, when non-empty, is the bearer credential
// required on every request. delay spaces out streamed tokens so the "live
// typing" behavior is visible; use 0 in tests.
func New(token string, delay time.Duration) *Server {
	s := &Server{
		token:   token,
		delay:   delay,
		mux:     http.NewServeMux(),
		history: make(map[types.ThreadID][]types.Message),
		owners:  make(map[types.ThreadID]types.OwnerID),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /stream", s.handleStream)
	s.mux.HandleFunc("GET /history/list", s.handleList)
	s.mux.HandleFunc("GET /history/{id}", s.handleHistory)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) authorized(r *http.Request) bool {
	if s.token == "" {
		return true
	}
	return r.Header.Get("Authorization") == "Bearer "+s.token
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type streamRequest struct {
	Message  string `json:"message"`
	OwnerID  string `json:"ownerId"`
	ThreadID string `json:"threadId"`
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req streamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" || req.ThreadID == "" {
		http.Error(w, `{"error":"message and threadId are required"}`, http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error":"streaming unsupported"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	thread := types.ThreadID(req.ThreadID)
	s.record(thread, types.OwnerID(req.OwnerID), types.Message{Role: types.RoleUser, Content: req.Message})

	writeFrame(w, flusher, "status", "thinking…")

	reply := cannedReply(req.Message)
	var full strings.Builder
	for i, word := range strings.Fields(reply) {
		if i > 0 {
			word = " " + word
		}
		if s.delay > 0 {
			select {
			case <-time.After(s.delay):
			case <-r.Context().Done():
				return
			}
		}
		full.WriteString(word)
		writeFrame(w, flusher, "token", word)
	}

	s.record(thread, types.OwnerID(req.OwnerID), types.Message{Role: types.RoleAssistant, Content: full.String()})

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func writeFrame(w http.ResponseWriter, flusher http.Flusher, typ, content string) {
	payload, err := json.Marshal(map[string]string{"type": typ, "content": content})
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}

// cannedReply produces a deterministic tutor-ish answer.
func cannedReply(question string) string {
	q := strings.TrimSpace(question)
	return fmt.Sprintf("Let's work through %q together. Start by identifying what is given and what is asked, then pick the relevant formula.", q)
}

func (s *Server) record(id types.ThreadID, owner types.OwnerID, msg types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.history[id]; !ok {
		s.order = append(s.order, id)
	}
	s.history[id] = append(s.history[id], msg)
	s.owners[id] = owner
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	id := types.ThreadID(r.PathValue("id"))

	s.mu.Lock()
	msgs := append([]types.Message(nil), s.history[id]...)
	s.mu.Unlock()

	if msgs == nil {
		msgs = []types.Message{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(msgs); err != nil {
		slog.Error("encode history failed", "thread_id", string(id), "error", err)
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	owner := types.OwnerID(r.URL.Query().Get("owner"))

	s.mu.Lock()
	list := make([]types.RemoteThread, 0, len(s.order))
	for _, id := range s.order {
		if owner != "" && s.owners[id] != owner {
			continue
		}
		msgs := s.history[id]
		rt := types.RemoteThread{ID: id, MessageCount: len(msgs)}
		for _, m := range msgs {
			if m.Role == types.RoleUser {
				rt.Title = types.DeriveTitle(m.Content)
				break
			}
		}
		if len(msgs) > 0 {
			rt.Preview = types.DerivePreview(msgs[len(msgs)-1].Content)
		}
		list = append(list, rt)
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(list); err != nil {
		slog.Error("encode thread list failed", "error", err)
	}
}

// Seed preloads a thread's history, for tests and demos.
func (s *Server) Seed(id types.ThreadID, owner types.OwnerID, msgs []types.Message) {
	for _, m := range msgs {
		s.record(id, owner, m)
	}
}
