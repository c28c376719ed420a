package agentserver

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"clawmobile/internal/domain"
)

type restState struct {
	mu       sync.Mutex
	memory   []domain.MemoryEntry
	cron     []domain.CronJob
	config   string
	nextID   int
	requests map[string]int
}

func newRESTState() *restState {
	return &restState{
		config:   "provider: openai\nmodel: gpt-4o\n",
		requests: make(map[string]int),
	}
}

// Requests reports how many authenticated calls hit path.
func (s *Server) Requests(path string) int {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	return s.state.requests[path]
}

// Config returns the raw config document last stored via PUT /api/config.
func (s *Server) Config() string {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	return s.state.config
}

func (s *Server) registerREST(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /pair", s.handlePair)

	mux.HandleFunc("GET /api/status", s.authed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, domain.SystemStatus{
			Provider: "openai",
			Model:    "gpt-4o",
			Uptime:   3600,
			Channels: []string{"mobile"},
			Health:   domain.HealthHealthy,
		})
	}))
	mux.HandleFunc("GET /api/tools", s.authed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []domain.Tool{
			{Name: "shell", Description: "Run shell commands", Enabled: true},
			{Name: "browser", Description: "Browse the web", Enabled: false},
		})
	}))
	mux.HandleFunc("GET /api/memory", s.authed(s.listMemory))
	mux.HandleFunc("POST /api/memory", s.authed(s.addMemory))
	mux.HandleFunc("GET /api/cost", s.authed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, domain.CostSummary{
			Session: domain.Spend{USD: 0.12, Tokens: 1200},
			Daily:   domain.Spend{USD: 1.5, Tokens: 15000},
			Monthly: domain.Spend{USD: 20, Tokens: 200000},
		})
	}))
	mux.HandleFunc("GET /api/cron", s.authed(s.listCron))
	mux.HandleFunc("POST /api/cron", s.authed(s.addCron))
	mux.HandleFunc("DELETE /api/cron/{id}", s.authed(s.deleteCron))
	mux.HandleFunc("GET /api/config", s.authed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, domain.ServerConfig{"provider": "openai", "model": "gpt-4o"})
	}))
	mux.HandleFunc("PUT /api/config", s.authed(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.state.mu.Lock()
		s.state.config = string(body)
		s.state.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.HandleFunc("GET /api/health", s.authed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, domain.HealthCheck{
			"llm":    domain.HealthHealthy,
			"memory": domain.HealthDegraded,
		})
	}))
	mux.HandleFunc("POST /api/doctor", s.authed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "checks": 3})
	}))
	mux.HandleFunc("POST /v1/chat/completions", s.authed(func(w http.ResponseWriter, r *http.Request) {
		var req domain.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		last := req.Messages[len(req.Messages)-1]
		writeJSON(w, http.StatusOK, domain.ChatCompletionResponse{
			ID: "cmpl-1",
			Choices: []domain.CompletionChoice{
				{Message: domain.CompletionMessage{Role: "assistant", Content: "echo: " + last.Content}},
			},
		})
	}))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	ok := s.healthy
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Pairing-Code") != s.PairingCode {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "Invalid pairing code"})
		return
	}
	writeJSON(w, http.StatusOK, domain.PairingResponse{Paired: true, Token: s.currentToken()})
}

// authed checks the bearer token the way the real server does.
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || token != s.currentToken() {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		s.state.mu.Lock()
		s.state.requests[r.URL.Path]++
		s.state.mu.Unlock()
		next(w, r)
	}
}

func (s *Server) listMemory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	category := domain.MemoryCategory(r.URL.Query().Get("category"))

	s.state.mu.Lock()
	out := make([]domain.MemoryEntry, 0, len(s.state.memory))
	for _, m := range s.state.memory {
		if category != "" && m.Category != category {
			continue
		}
		if query != "" && !strings.Contains(m.Content, query) {
			continue
		}
		out = append(out, m)
	}
	s.state.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) addMemory(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content  string                `json:"content"`
		Category domain.MemoryCategory `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.state.mu.Lock()
	s.state.nextID++
	entry := domain.MemoryEntry{
		ID:        "mem-" + strconv.Itoa(s.state.nextID),
		Content:   body.Content,
		Category:  body.Category,
		Timestamp: 1700000000000,
	}
	s.state.memory = append(s.state.memory, entry)
	s.state.mu.Unlock()
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) listCron(w http.ResponseWriter, _ *http.Request) {
	s.state.mu.Lock()
	out := append([]domain.CronJob{}, s.state.cron...)
	s.state.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) addCron(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Expression string `json:"expression"`
		Command    string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.state.mu.Lock()
	s.state.nextID++
	job := domain.CronJob{
		ID:         "cron-" + strconv.Itoa(s.state.nextID),
		Expression: body.Expression,
		Command:    body.Command,
		Enabled:    true,
	}
	s.state.cron = append(s.state.cron, job)
	s.state.mu.Unlock()
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) deleteCron(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	for i, job := range s.state.cron {
		if job.ID == id {
			s.state.cron = append(s.state.cron[:i], s.state.cron[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	http.Error(w, "not found", http.StatusNotFound)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
