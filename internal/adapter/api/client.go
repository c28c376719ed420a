// Package api is the REST collaborator for a paired agent server: pairing,
// health, status and the management endpoints the mobile client exposes.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"clawmobile/internal/domain"
	"clawmobile/internal/infra/tracer"
)

// maxResponseBody is the maximum response body size we read from the server.
const maxResponseBody = 10 * 1024 * 1024 // 10 MB

// defaultTimeout bounds one request when no HTTP client is supplied.
const defaultTimeout = 30 * time.Second

// Expirer is implemented by credential sources that can drop a rejected token.
type Expirer interface {
	Expire(ctx context.Context) error
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRateLimit throttles outgoing requests. perMinute <= 0 disables throttling.
func WithRateLimit(perMinute, burst int) Option {
	return func(c *Client) {
		if perMinute <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perMinute)/60.0, burst)
	}
}

// WithBreaker overrides the circuit breaker settings.
func WithBreaker(cfg BreakerConfig) Option {
	return func(c *Client) { c.breakerCfg = cfg }
}

// WithClock sets the clock used to compute cron next-run times.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// Client talks to the agent server's REST surface. Authenticated calls take
// the base URL and bearer token from the credential source on every request,
// so re-pairing takes effect immediately.
type Client struct {
	creds      domain.CredentialSource
	http       *http.Client
	limiter    *rate.Limiter
	breakerCfg BreakerConfig
	breaker    *gobreaker.CircuitBreaker[*response]
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewClient creates a REST client over creds.
func NewClient(creds domain.CredentialSource, opts ...Option) *Client {
	c := &Client{
		creds:   creds,
		http:    &http.Client{Timeout: defaultTimeout},
		limiter: rate.NewLimiter(rate.Inf, 0),
		clock:   clockwork.NewRealClock(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "api")
	c.breaker = newBreaker("api", c.breakerCfg, c.logger)
	return c
}

// BreakerState reports the circuit breaker state for status rendering.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// request describes one call.
type request struct {
	op          string
	method      string
	base        string // overrides the credential source URL (pairing, health probe)
	path        string
	query       url.Values
	header      map[string]string
	body        io.Reader
	contentType string
	auth        bool
}

// Pair exchanges a one-time pairing code for a bearer token.
func (c *Client) Pair(ctx context.Context, serverURL, code string) (domain.PairingResponse, error) {
	var out domain.PairingResponse
	res, err := c.do(ctx, request{
		op:     "api.Pair",
		method: http.MethodPost,
		base:   serverURL,
		path:   "/pair",
		header: map[string]string{"X-Pairing-Code": code},
	})
	if err != nil {
		return out, err
	}
	if res.status != http.StatusOK {
		return out, domain.NewDomainError("api.Pair", domain.ErrPairingFailed, serverMessage(res))
	}
	if err := json.Unmarshal(res.body, &out); err != nil {
		return out, domain.NewDomainError("api.Pair", domain.ErrPairingFailed, "decode response: "+err.Error())
	}
	if !out.Paired || out.Token == "" {
		return out, domain.NewDomainError("api.Pair", domain.ErrPairingFailed, "server did not issue a token")
	}
	return out, nil
}

// CheckHealth probes GET /health on serverURL. Any failure reads as unhealthy.
func (c *Client) CheckHealth(ctx context.Context, serverURL string) bool {
	res, err := c.do(ctx, request{
		op:     "api.CheckHealth",
		method: http.MethodGet,
		base:   serverURL,
		path:   "/health",
	})
	if err != nil {
		c.logger.Debug("health probe failed", "error", err)
		return false
	}
	return res.status >= 200 && res.status < 300
}

// Status returns the agent's provider, model and uptime.
func (c *Client) Status(ctx context.Context) (domain.SystemStatus, error) {
	var out domain.SystemStatus
	err := c.getJSON(ctx, "api.Status", "/api/status", nil, &out)
	return out, err
}

// Tools lists the agent's tools.
func (c *Client) Tools(ctx context.Context) ([]domain.Tool, error) {
	var out []domain.Tool
	err := c.getJSON(ctx, "api.Tools", "/api/tools", nil, &out)
	return out, err
}

// Memory searches stored memories. Empty filters are omitted.
func (c *Client) Memory(ctx context.Context, query string, category domain.MemoryCategory) ([]domain.MemoryEntry, error) {
	q := url.Values{}
	if query != "" {
		q.Set("query", query)
	}
	if category != "" {
		q.Set("category", string(category))
	}
	var out []domain.MemoryEntry
	err := c.getJSON(ctx, "api.Memory", "/api/memory", q, &out)
	return out, err
}

// AddMemory stores a new memory entry.
func (c *Client) AddMemory(ctx context.Context, content string, category domain.MemoryCategory) (domain.MemoryEntry, error) {
	var out domain.MemoryEntry
	body := map[string]any{"content": content, "category": category}
	err := c.sendJSON(ctx, "api.AddMemory", http.MethodPost, "/api/memory", body, &out)
	return out, err
}

// Cost returns session, daily and monthly spend.
func (c *Client) Cost(ctx context.Context) (domain.CostSummary, error) {
	var out domain.CostSummary
	err := c.getJSON(ctx, "api.Cost", "/api/cost", nil, &out)
	return out, err
}

// CronJobs lists scheduled jobs, computing NextRun locally where the server
// did not.
func (c *Client) CronJobs(ctx context.Context) ([]domain.CronJob, error) {
	var out []domain.CronJob
	if err := c.getJSON(ctx, "api.CronJobs", "/api/cron", nil, &out); err != nil {
		return nil, err
	}
	fillNextRun(out, c.clock.Now())
	return out, nil
}

// AddCronJob validates expression locally and creates the job.
func (c *Client) AddCronJob(ctx context.Context, expression, command string) (domain.CronJob, error) {
	var out domain.CronJob
	if err := ValidateCron(expression); err != nil {
		return out, err
	}
	if strings.TrimSpace(command) == "" {
		return out, domain.NewDomainError("api.AddCronJob", domain.ErrInvalidInput, "command is empty")
	}
	body := map[string]string{"expression": expression, "command": command}
	if err := c.sendJSON(ctx, "api.AddCronJob", http.MethodPost, "/api/cron", body, &out); err != nil {
		return out, err
	}
	if out.NextRun == 0 {
		if next, err := NextRun(out.Expression, c.clock.Now()); err == nil {
			out.NextRun = next.UnixMilli()
		}
	}
	return out, nil
}

// DeleteCronJob removes a job by id.
func (c *Client) DeleteCronJob(ctx context.Context, id string) error {
	return c.sendJSON(ctx, "api.DeleteCronJob", http.MethodDelete, "/api/cron/"+url.PathEscape(id), nil, nil)
}

// Config returns the parsed server configuration.
func (c *Client) Config(ctx context.Context) (domain.ServerConfig, error) {
	var out domain.ServerConfig
	err := c.getJSON(ctx, "api.Config", "/api/config", nil, &out)
	return out, err
}

// UpdateConfig replaces the server configuration with the raw document.
func (c *Client) UpdateConfig(ctx context.Context, raw string) error {
	res, err := c.do(ctx, request{
		op:          "api.UpdateConfig",
		method:      http.MethodPut,
		path:        "/api/config",
		body:        strings.NewReader(raw),
		contentType: "text/plain; charset=utf-8",
		auth:        true,
	})
	if err != nil {
		return err
	}
	return c.check("api.UpdateConfig", res)
}

// Health returns per-component health.
func (c *Client) Health(ctx context.Context) (domain.HealthCheck, error) {
	var out domain.HealthCheck
	err := c.getJSON(ctx, "api.Health", "/api/health", nil, &out)
	return out, err
}

// Doctor runs the server's self-diagnostics.
func (c *Client) Doctor(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.sendJSON(ctx, "api.Doctor", http.MethodPost, "/api/doctor", nil, &out)
	return out, err
}

// ChatCompletion calls the OpenAI-compatible completion endpoint.
func (c *Client) ChatCompletion(ctx context.Context, req domain.ChatCompletionRequest) (domain.ChatCompletionResponse, error) {
	var out domain.ChatCompletionResponse
	err := c.sendJSON(ctx, "api.ChatCompletion", http.MethodPost, "/v1/chat/completions", req, &out)
	return out, err
}

func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	res, err := c.do(ctx, request{op: op, method: http.MethodGet, path: path, query: query, auth: true})
	if err != nil {
		return err
	}
	return c.decode(op, res, out)
}

func (c *Client) sendJSON(ctx context.Context, op, method, path string, in, out any) error {
	req := request{op: op, method: method, path: path, auth: true}
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return domain.NewDomainError(op, domain.ErrInvalidInput, err.Error())
		}
		req.body = bytes.NewReader(data)
		req.contentType = "application/json"
	}
	res, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	return c.decode(op, res, out)
}

func (c *Client) decode(op string, res *response, out any) error {
	if err := c.check(op, res); err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(res.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.body, out); err != nil {
		return domain.NewDomainError(op, domain.ErrRequestFailed, "decode response: "+err.Error())
	}
	return nil
}

// check maps a non-2xx status to a domain error.
func (c *Client) check(op string, res *response) error {
	if res.status >= 200 && res.status < 300 {
		return nil
	}
	if res.status == http.StatusNotFound {
		return domain.NewDomainError(op, domain.ErrNotFound, serverMessage(res))
	}
	return domain.NewDomainError(op, domain.ErrRequestFailed,
		fmt.Sprintf("status %d: %s", res.status, serverMessage(res)))
}

// do runs one request through the limiter and the circuit breaker inside a
// span. Transport failures and 5xx responses count against the breaker; a
// 401 on an authenticated call expires the session.
func (c *Client) do(ctx context.Context, r request) (res *response, err error) {
	ctx, span := tracer.StartRequest(ctx, r.op, r.method, r.path)
	defer func() { tracer.End(span, err) }()

	res, err = c.roundTrip(ctx, r)
	if err != nil {
		return nil, err
	}
	tracer.SetHTTPStatus(span, res.status)

	if r.auth && res.status == http.StatusUnauthorized {
		c.expire(ctx)
		return nil, domain.NewDomainError(r.op, domain.ErrSessionExpired, "")
	}
	return res, nil
}

func (c *Client) roundTrip(ctx context.Context, r request) (*response, error) {
	base := r.base
	if base == "" {
		u, err := c.creds.ServerURL(ctx)
		if err != nil {
			return nil, err
		}
		base = u
	}
	var token string
	if r.auth {
		t, err := c.creds.Token(ctx)
		if err != nil {
			return nil, err
		}
		token = t
	}

	target := strings.TrimRight(base, "/") + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, domain.NewDomainError(r.op, domain.ErrTimeout, err.Error())
	}

	res, err := c.breaker.Execute(func() (*response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, r.method, target, r.body)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Accept", "application/json")
		if r.contentType != "" {
			httpReq.Header.Set("Content-Type", r.contentType)
		}
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
		for k, v := range r.header {
			httpReq.Header.Set(k, v)
		}

		httpResp, err := c.http.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("http request: %w", err)
		}
		defer httpResp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		res := &response{status: httpResp.StatusCode, body: body}
		if res.status >= 500 {
			return res, fmt.Errorf("server error %d", res.status)
		}
		return res, nil
	})

	switch {
	case err == nil:
		return res, nil
	case isBreakerOpen(err):
		return nil, domain.NewDomainError(r.op, domain.ErrCircuitOpen, err.Error())
	case res != nil:
		// 5xx: the breaker has counted it; callers see an ordinary status error.
		return res, nil
	default:
		c.logger.Debug("request failed", "op", r.op, "error", err)
		return nil, domain.NewDomainError(r.op, domain.ErrServerUnreachable, err.Error())
	}
}

func (c *Client) expire(ctx context.Context) {
	exp, ok := c.creds.(Expirer)
	if !ok {
		return
	}
	if err := exp.Expire(ctx); err != nil {
		c.logger.Warn("failed to expire session", "error", err)
		return
	}
	c.logger.Info("session expired, token removed")
}

// serverMessage extracts {"message": "..."} from an error body, falling back
// to the trimmed body text.
func serverMessage(res *response) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(res.body, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	msg := strings.TrimSpace(string(res.body))
	if msg == "" {
		return http.StatusText(res.status)
	}
	return msg
}
