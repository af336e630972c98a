// Package main implements a mock LLM server for offline semfolio runs.
// It serves OpenAI-compatible /v1/chat/completions responses from JSON fixture
// files. Requests are routed by the structured-output schema named in the
// system prompt (for example "entry_type_classification"), falling back to
// the "model" field.
//
// Usage:
//
//	mock-llm -fixtures /path/to/fixtures -port 11434
//
// Fixture files are JSON named by route: "entry_type_classification.json"
// answers every classification call. Numbered files such as
// "section_coverage.1.json" and "section_coverage.2.json" are returned for
// the first and second call; the base file repeats afterwards, which lets a
// fixture set drive the follow-up loop.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// --- OpenAI-compatible types ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// --- Server ---

// capturedRequest stores the key fields of an incoming request for inspection.
type capturedRequest struct {
	Route     string        `json:"route"`
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	CallIndex int           `json:"call_index"` // 1-indexed per-route call number
	Timestamp int64         `json:"timestamp"`
}

type server struct {
	fixtures map[string][]string // route → ordered fixture contents
	calls    atomic.Int64
	logger   *slog.Logger

	mu            sync.Mutex
	routeCalls    map[string]int
	routeRequests map[string][]capturedRequest
}

func newServer(fixtures map[string][]string, logger *slog.Logger) *server {
	return &server{
		fixtures:      fixtures,
		logger:        logger,
		routeCalls:    make(map[string]int),
		routeRequests: make(map[string][]capturedRequest),
	}
}

// schemaRe matches the output contract the structured invoker appends to
// the system prompt.
var schemaRe = regexp.MustCompile(`Respond with a single JSON object \(([A-Za-z0-9_.-]+)\)`)

// route picks the fixture key for req: the schema named in a system message
// if there is a fixture for it, otherwise the model with any "mock-" prefix
// removed.
func (s *server) route(req chatRequest) (string, bool) {
	for _, m := range req.Messages {
		if m.Role != "system" {
			continue
		}
		if match := schemaRe.FindStringSubmatch(m.Content); match != nil {
			if _, ok := s.fixtures[match[1]]; ok {
				return match[1], true
			}
		}
	}
	if _, ok := s.fixtures[req.Model]; ok {
		return req.Model, true
	}
	stripped := strings.TrimPrefix(req.Model, "mock-")
	_, ok := s.fixtures[stripped]
	return stripped, ok
}

// next records a call on route and returns the fixture and its 1-indexed
// call number.
func (s *server) next(route string, req chatRequest) (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routeCalls[route]++
	callIndex := s.routeCalls[route]
	s.routeRequests[route] = append(s.routeRequests[route], capturedRequest{
		Route:     route,
		Model:     req.Model,
		Messages:  req.Messages,
		CallIndex: callIndex,
		Timestamp: time.Now().UnixMilli(),
	})

	seq := s.fixtures[route]
	if callIndex <= len(seq) {
		return seq[callIndex-1], callIndex
	}
	return seq[len(seq)-1], callIndex
}

func main() {
	fixtureDir := flag.String("fixtures", "", "directory containing fixture response files")
	port := flag.Int("port", 11434, "port to listen on")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if envDir := os.Getenv("MOCK_LLM_FIXTURES"); envDir != "" && *fixtureDir == "" {
		*fixtureDir = envDir
	}
	if *fixtureDir == "" {
		*fixtureDir = "/fixtures"
	}

	fixtures, err := loadFixtures(*fixtureDir)
	if err != nil {
		logger.Error("Failed to load fixtures", "dir", *fixtureDir, "error", err)
		os.Exit(1)
	}
	for route, seq := range fixtures {
		logger.Info("Loaded fixture", "route", route, "count", len(seq))
	}

	s := newServer(fixtures, logger)
	addr := fmt.Sprintf(":%d", *port)
	logger.Info("Mock LLM server listening", "addr", addr)
	if err := http.ListenAndServe(addr, s.handler()); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("/v1/models", s.handleModels)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/requests", s.handleRequests)
	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	callNum := s.calls.Add(1)
	route, ok := s.route(req)
	if !ok {
		s.logger.Warn("No fixture for request", "call", callNum, "model", req.Model)
		http.Error(w, fmt.Sprintf("no fixture for model %q", req.Model), http.StatusNotFound)
		return
	}

	content, callIndex := s.next(route, req)
	s.logger.Info("Serving fixture", "call", callNum, "route", route, "call_index", callIndex,
		"fixtures", len(s.fixtures[route]))

	resp := chatResponse{
		ID:      fmt.Sprintf("mock-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{{
			Index:        0,
			Message:      chatMessage{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: chatUsage{
			PromptTokens:     len(content) / 4,
			CompletionTokens: len(content) / 4,
			TotalTokens:      len(content) / 2,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleModels lists fixture routes as models (Ollama-compatible).
func (s *server) handleModels(w http.ResponseWriter, _ *http.Request) {
	type modelEntry struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		OwnedBy string `json:"owned_by"`
	}
	names := make([]string, 0, len(s.fixtures))
	for name := range s.fixtures {
		names = append(names, name)
	}
	sort.Strings(names)
	models := make([]modelEntry, 0, len(names))
	for _, name := range names {
		models = append(models, modelEntry{ID: name, Object: "model", OwnedBy: "mock-llm"})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   models,
	})
}

// handleStats returns total_calls and calls_by_route.
func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	byRoute := make(map[string]int, len(s.routeCalls))
	for route, n := range s.routeCalls {
		byRoute[route] = n
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"total_calls":    s.calls.Load(),
		"calls_by_route": byRoute,
	})
}

// handleRequests returns captured requests. Query params:
//   - route: filter by route (optional)
//   - call: filter by call index, 1-indexed (optional)
func (s *server) handleRequests(w http.ResponseWriter, r *http.Request) {
	routeFilter := r.URL.Query().Get("route")
	callFilter, _ := strconv.Atoi(r.URL.Query().Get("call"))

	s.mu.Lock()
	result := make(map[string][]capturedRequest)
	for route, reqs := range s.routeRequests {
		if routeFilter != "" && route != routeFilter {
			continue
		}
		for _, req := range reqs {
			if callFilter == 0 || req.CallIndex == callFilter {
				result[route] = append(result[route], req)
			}
		}
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"requests_by_route": result,
	})
}

// numberedFileRe matches files like "section_coverage.1.json".
var numberedFileRe = regexp.MustCompile(`^(.+)\.(\d+)\.json$`)

// loadFixtures reads JSON files from dir and returns route → content
// sequence: numbered files in numeric order, then the base file as the
// repeating fallback.
func loadFixtures(dir string) (map[string][]string, error) {
	baseFiles := make(map[string]string)
	numberedFiles := make(map[string]map[int]string)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".json") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if !json.Valid(data) {
			return fmt.Errorf("invalid JSON in %s", path)
		}
		content := string(data)

		if matches := numberedFileRe.FindStringSubmatch(info.Name()); matches != nil {
			route := matches[1]
			index, _ := strconv.Atoi(matches[2])
			if numberedFiles[route] == nil {
				numberedFiles[route] = make(map[int]string)
			}
			numberedFiles[route][index] = content
			return nil
		}

		baseFiles[strings.TrimSuffix(info.Name(), ".json")] = content
		return nil
	})
	if err != nil {
		return nil, err
	}

	routes := make(map[string]bool)
	for r := range baseFiles {
		routes[r] = true
	}
	for r := range numberedFiles {
		routes[r] = true
	}

	fixtures := make(map[string][]string)
	for route := range routes {
		var seq []string
		if numbered, ok := numberedFiles[route]; ok {
			indices := make([]int, 0, len(numbered))
			for idx := range numbered {
				indices = append(indices, idx)
			}
			sort.Ints(indices)
			for _, idx := range indices {
				seq = append(seq, numbered[idx])
			}
		}
		if base, ok := baseFiles[route]; ok {
			seq = append(seq, base)
		}
		if len(seq) > 0 {
			fixtures[route] = seq
		}
	}

	if len(fixtures) == 0 {
		return nil, fmt.Errorf("no fixture files found in %s", dir)
	}
	return fixtures, nil
}
