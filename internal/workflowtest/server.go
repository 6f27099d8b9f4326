// Package workflowtest provides a scripted stand-in for the workflow API.
package workflowtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// Paths served by default, matching the real API.
const (
	SyncPath   = "/v1/workflow/run"
	StreamPath = "/v1/workflow/stream_run"
)

// Response scripts one reply.
type Response struct {
	StatusCode int
	Body       any
	Delay      time.Duration
	Headers    map[string]string

	// StreamLines are written verbatim, one Write and Flush each, with
	// Content-Type text/event-stream. Include the newlines.
	StreamLines []string
}

// Request is what the server received.
type Request struct {
	Path          string
	Authorization string
	Accept        string
	UserAgent     string
	Body          map[string]any
}

// Server is an httptest server replying from per-path queues. When a
// queue has one entry left it is repeated for every further request.
type Server struct {
	server *httptest.Server

	mu        sync.Mutex
	responses map[string][]Response
	requests  []Request
}

// NewServer starts a server. Call Close when done.
func NewServer() *Server {
	s := &Server{responses: make(map[string][]Response)}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URL returns the base URL.
func (s *Server) URL() string { return s.server.URL }

// Close shuts the server down.
func (s *Server) Close() { s.server.Close() }

// Enqueue appends replies for path.
func (s *Server) Enqueue(path string, responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[path] = append(s.responses[path], responses...)
}

// Requests returns a copy of everything received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestCount returns the number of requests received.
func (s *Server) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *Server) next(path string) (Response, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := s.responses[path]
	if len(queue) == 0 {
		return Response{}, false
	}
	resp := queue[0]
	if len(queue) > 1 {
		s.responses[path] = queue[1:]
	}
	return resp, true
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		Accept:        r.Header.Get("Accept"),
		UserAgent:     r.Header.Get("User-Agent"),
		Body:          body,
	})
	s.mu.Unlock()

	resp, ok := s.next(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}

	if len(resp.StreamLines) > 0 {
		s.stream(w, resp)
		return
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)

	switch v := resp.Body.(type) {
	case nil:
	case string:
		_, _ = io.WriteString(w, v)
	case []byte:
		_, _ = w.Write(v)
	default:
		_ = json.NewEncoder(w).Encode(v)
	}
}

func (s *Server) stream(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	for _, line := range resp.StreamLines {
		_, _ = io.WriteString(w, line)
		flusher.Flush()
	}
}

// JSON returns v marshalled, for building stream frames.
func JSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("workflowtest: marshal: %v", err))
	}
	return string(b)
}

// DataLine formats v as one SSE data frame.
func DataLine(v any) string {
	return "data: " + JSON(v) + "\n\n"
}

// SyncSuccess is a sync reply whose data is the JSON-encoded form of
// data, the way the real API encodes it.
func SyncSuccess(data any) Response {
	return Response{
		StatusCode: http.StatusOK,
		Body: map[string]any{
			"code":      0,
			"msg":       "Success",
			"data":      JSON(data),
			"debug_url": "https://www.coze.cn/work_flow?execute_id=1",
			"usage":     map[string]any{"input_count": 10, "output_count": 20, "token_count": 30},
		},
	}
}
