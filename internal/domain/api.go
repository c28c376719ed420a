package domain

// Health is the coarse health of a server component.
type Health string

const (
	HealthHealthy   Health = "healthy"
	HealthDegraded  Health = "degraded"
	HealthUnhealthy Health = "unhealthy"
)

// SystemStatus is returned by GET /api/status.
type SystemStatus struct {
	Provider string   `json:"provider"`
	Model    string   `json:"model"`
	Uptime   int64    `json:"uptime"`
	Channels []string `json:"channels"`
	Health   Health   `json:"health"`
}

// Tool describes one agent tool.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
}

// MemoryCategory groups memory entries.
type MemoryCategory string

const (
	MemoryCore         MemoryCategory = "core"
	MemoryDaily        MemoryCategory = "daily"
	MemoryConversation MemoryCategory = "conversation"
)

// MemoryEntry is one stored agent memory.
type MemoryEntry struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Category  MemoryCategory `json:"category"`
	Timestamp int64          `json:"timestamp"`
}

// Spend is a usd/token pair.
type Spend struct {
	USD    float64 `json:"usd"`
	Tokens int64   `json:"tokens"`
}

// CostSummary is returned by GET /api/cost.
type CostSummary struct {
	Session Spend `json:"session"`
	Daily   Spend `json:"daily"`
	Monthly Spend `json:"monthly"`
}

// CronJob is a scheduled agent command.
type CronJob struct {
	ID         string `json:"id"`
	Expression string `json:"expression"`
	Command    string `json:"command"`
	NextRun    int64  `json:"nextRun"`
	Enabled    bool   `json:"enabled"`
}

// ServerConfig is the flat key/value server configuration.
type ServerConfig map[string]any

// HealthCheck maps component names to their health.
type HealthCheck map[string]Health

// CompletionMessage is one message of an OpenAI-style completion request.
type CompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is the body of POST /v1/chat/completions.
type ChatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []CompletionMessage `json:"messages"`
	Temperature *float64            `json:"temperature,omitempty"`
}

// CompletionChoice is one candidate of a completion response.
type CompletionChoice struct {
	Message CompletionMessage `json:"message"`
}

// ChatCompletionResponse is the response of POST /v1/chat/completions.
type ChatCompletionResponse struct {
	ID      string             `json:"id"`
	Choices []CompletionChoice `json:"choices"`
}
