package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// listing every problem found.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateServer(cfg, ve)
	validateReconnect(cfg, ve)
	validateQueue(cfg, ve)
	validateStorage(cfg, ve)
	validateAPI(cfg, ve)
	validateDiscovery(cfg, ve)
	validateFeed(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateServer(cfg *Config, ve *ValidationError) {
	if cfg.Server.URL == "" {
		if cfg.Server.Token != "" {
			ve.Add("server.token requires server.url")
		}
		return
	}
	u, err := url.Parse(cfg.Server.URL)
	if err != nil || u.Host == "" {
		ve.Add("server.url %q is not an absolute URL", cfg.Server.URL)
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		ve.Add("server.url scheme must be http or https, got %q", u.Scheme)
	}
}

func validateReconnect(cfg *Config, ve *ValidationError) {
	r := cfg.Reconnect
	if r.BaseDelay <= 0 {
		ve.Add("reconnect.base_delay must be > 0")
	}
	if r.MaxDelay <= 0 {
		ve.Add("reconnect.max_delay must be > 0")
	} else if r.MaxDelay < r.BaseDelay {
		ve.Add("reconnect.max_delay (%s) must be >= reconnect.base_delay (%s)", r.MaxDelay, r.BaseDelay)
	}
	if r.MaxAttempts <= 0 {
		ve.Add("reconnect.max_attempts must be > 0")
	}
}

func validateQueue(cfg *Config, ve *ValidationError) {
	if strings.TrimSpace(cfg.Queue.Key) == "" {
		ve.Add("queue.key must not be empty")
	}
}

var validStorageDrivers = map[string]bool{
	"sqlite": true,
	"memory": true,
}

func validateStorage(cfg *Config, ve *ValidationError) {
	s := cfg.Storage
	if !validStorageDrivers[s.Driver] {
		ve.Add("storage.driver %q is not supported (want sqlite or memory)", s.Driver)
	}
	if s.Driver == "sqlite" && s.Path == "" {
		ve.Add("storage.path must not be empty for the sqlite driver")
	}
	if s.EncryptSecrets && s.Passphrase == "" {
		ve.Add("storage.passphrase is required when storage.encrypt_secrets is enabled")
	}
}

func validateAPI(cfg *Config, ve *ValidationError) {
	a := cfg.API
	if a.Timeout <= 0 {
		ve.Add("api.timeout must be > 0")
	}
	if a.RequestsPerMinute < 0 {
		ve.Add("api.requests_per_minute must be >= 0")
	}
	if a.RequestsPerMinute > 0 && a.Burst <= 0 {
		ve.Add("api.burst must be > 0 when rate limiting is enabled")
	}
	if a.Breaker.Timeout < 0 || a.Breaker.Interval < 0 {
		ve.Add("api.breaker durations must not be negative")
	}
}

func validateDiscovery(cfg *Config, ve *ValidationError) {
	if cfg.Discovery.Enabled && cfg.Discovery.Timeout <= 0 {
		ve.Add("discovery.timeout must be > 0 when discovery is enabled")
	}
}

func validateFeed(cfg *Config, ve *ValidationError) {
	if cfg.Feed.History <= 0 {
		ve.Add("feed.history must be > 0")
	}
	if cfg.Feed.MaxEventSize <= 0 {
		ve.Add("feed.max_event_size must be > 0")
	}
}

var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	validLogFormats = map[string]bool{"text": true, "json": true}
	validExporters  = map[string]bool{"noop": true, "stdout": true, "": true}
)

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is not valid (debug, info, warn, error)", cfg.Logger.Level)
	}
	if !validLogFormats[strings.ToLower(cfg.Logger.Format)] {
		ve.Add("logger.format %q is not valid (text, json)", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if cfg.Tracer.Enabled && !validExporters[cfg.Tracer.Exporter] {
		ve.Add("tracer.exporter %q is not supported (noop, stdout)", cfg.Tracer.Exporter)
	}
}
