package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"clawmobile/internal/security"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "clawmobile.yaml"

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Chat      ChatConfig      `yaml:"chat"`
	Queue     QueueConfig     `yaml:"queue"`
	Storage   StorageConfig   `yaml:"storage"`
	API       APIConfig       `yaml:"api"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Feed      FeedConfig      `yaml:"feed"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
}

// ServerConfig optionally pre-seeds the paired server. Token may be an
// "enc:" value decrypted with CLAWMOBILE_CONFIG_KEY.
type ServerConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// ReconnectConfig tunes the socket and feed reconnect policy.
type ReconnectConfig struct {
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// ChatConfig tunes the chat socket. ReadLimit caps one incoming frame in
// bytes; a negative value disables the cap.
type ChatConfig struct {
	ReadLimit int64 `yaml:"read_limit"`
}

// QueueConfig holds outbox settings.
type QueueConfig struct {
	Key string `yaml:"key"`
}

// StorageConfig selects the key-value store.
type StorageConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "memory"
	Path   string `yaml:"path"`
	// EncryptSecrets seals credentials and queued messages at rest with
	// Passphrase (usually supplied via CLAWMOBILE_STORAGE_PASSPHRASE).
	EncryptSecrets bool   `yaml:"encrypt_secrets"`
	Passphrase     string `yaml:"passphrase"`
}

// APIConfig tunes the REST client.
type APIConfig struct {
	Timeout           time.Duration        `yaml:"timeout"`
	RequestsPerMinute int                  `yaml:"requests_per_minute"`
	Burst             int                  `yaml:"burst"`
	Breaker           CircuitBreakerConfig `yaml:"breaker"`
}

// CircuitBreakerConfig mirrors the REST client's breaker settings.
type CircuitBreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// DiscoveryConfig controls LAN server discovery.
type DiscoveryConfig struct {
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
}

// FeedConfig holds event feed settings. MaxEventSize caps one SSE line in
// bytes; a longer event is dropped and the feed reconnects.
type FeedConfig struct {
	History      int `yaml:"history"`
	MaxEventSize int `yaml:"max_event_size"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// defaultDataDir returns $HOME/.clawmobile, or "./data" without a home.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".clawmobile")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Reconnect: ReconnectConfig{
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
			MaxAttempts: 10,
		},
		Chat:  ChatConfig{ReadLimit: 16 << 20},
		Queue: QueueConfig{Key: "allmightyclaw_message_queue"},
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   filepath.Join(defaultDataDir(), "clawmobile.db"),
		},
		API: APIConfig{
			Timeout:           30 * time.Second,
			RequestsPerMinute: 120,
			Burst:             10,
			Breaker: CircuitBreakerConfig{
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Discovery: DiscoveryConfig{Enabled: true, Timeout: 5 * time.Second},
		Feed:      FeedConfig{History: 100, MaxEventSize: 1 << 20},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{Exporter: "noop"},
	}
}

// Load reads a YAML config file, applies env var overrides, and decrypts secrets.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := validatePermissions(path); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv("CLAWMOBILE_CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps CLAWMOBILE_* env vars to config fields. Malformed
// numbers and durations are ignored.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CLAWMOBILE_SERVER_URL"); v != "" {
		cfg.Server.URL = v
	}
	if v := os.Getenv("CLAWMOBILE_SERVER_TOKEN"); v != "" {
		cfg.Server.Token = v
	}
	if v := os.Getenv("CLAWMOBILE_RECONNECT_BASE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Reconnect.BaseDelay = d
		}
	}
	if v := os.Getenv("CLAWMOBILE_RECONNECT_MAX_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Reconnect.MaxDelay = d
		}
	}
	if v := os.Getenv("CLAWMOBILE_RECONNECT_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Reconnect.MaxAttempts = n
		}
	}
	if v := os.Getenv("CLAWMOBILE_CHAT_READ_LIMIT"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n != 0 {
			cfg.Chat.ReadLimit = n
		}
	}
	if v := os.Getenv("CLAWMOBILE_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("CLAWMOBILE_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("CLAWMOBILE_STORAGE_PASSPHRASE"); v != "" {
		cfg.Storage.Passphrase = v
		cfg.Storage.EncryptSecrets = true
	}
	if v := os.Getenv("CLAWMOBILE_API_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.API.Timeout = d
		}
	}
	if v := os.Getenv("CLAWMOBILE_API_REQUESTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.API.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("CLAWMOBILE_DISCOVERY_ENABLED"); v != "" {
		cfg.Discovery.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("CLAWMOBILE_FEED_HISTORY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Feed.History = n
		}
	}
	if v := os.Getenv("CLAWMOBILE_FEED_MAX_EVENT_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Feed.MaxEventSize = n
		}
	}
	if v := os.Getenv("CLAWMOBILE_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("CLAWMOBILE_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("CLAWMOBILE_LOGGER_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv("CLAWMOBILE_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("CLAWMOBILE_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
}

// decryptSecrets replaces "enc:..." values with their plaintext.
func decryptSecrets(cfg *Config, passphrase string) error {
	fields := []struct {
		name string
		ptr  *string
	}{
		{"server.token", &cfg.Server.Token},
		{"storage.passphrase", &cfg.Storage.Passphrase},
	}
	for _, f := range fields {
		if !strings.HasPrefix(*f.ptr, security.SecretPrefix) {
			continue
		}
		plain, err := security.DecryptValue(strings.TrimPrefix(*f.ptr, security.SecretPrefix), passphrase)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.ptr = plain
	}
	return nil
}

// validatePermissions checks the config file has restrictive permissions.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o077 > 0o044 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
