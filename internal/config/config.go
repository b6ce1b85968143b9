// Package config handles loading and validating Keysage configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()
}

// Config is the root configuration for Keysage.
type Config struct {
	Akeyless      AkeylessConfig       `json:"akeyless" yaml:"akeyless"`
	Gemini        GeminiConfig         `json:"gemini" yaml:"gemini"`
	Gateways      GatewaysConfig       `json:"gateways" yaml:"gateways"`
	Observability *ObservabilityConfig `json:"observability,omitempty" yaml:"observability,omitempty"` // nil = observability disabled
}

// AkeylessConfig configures the Akeyless gateway connection.
// Credentials can be set here or via AKEYLESS_ACCESS_ID / AKEYLESS_ACCESS_KEY
// env vars. Environment variables take precedence.
type AkeylessConfig struct {
	AccessID       string `json:"access_id,omitempty" yaml:"access_id,omitempty"`   // Override: AKEYLESS_ACCESS_ID env var.
	AccessKey      string `json:"access_key,omitempty" yaml:"access_key,omitempty"` // Override: AKEYLESS_ACCESS_KEY env var.
	GatewayURL     string `json:"gateway_url" yaml:"gateway_url"`                   // Override: AKEYLESS_GATEWAY_URL env var. Default: https://api.akeyless.io.
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`           // Per-request timeout. Default: 15.
	MaxRetries     int    `json:"max_retries" yaml:"max_retries"`                   // Retries for transient failures. Default: 2.
}

// Timeout returns the per-request timeout with a default of 15s.
func (a *AkeylessConfig) Timeout() time.Duration {
	if a != nil && a.TimeoutSeconds > 0 {
		return time.Duration(a.TimeoutSeconds) * time.Second
	}
	return 15 * time.Second
}

// Retries returns the transient-failure retry count with a default of 2.
func (a *AkeylessConfig) Retries() int {
	if a != nil && a.MaxRetries > 0 {
		return a.MaxRetries
	}
	return 2
}

// ResolvedGatewayURL returns the gateway URL with the public API default.
func (a *AkeylessConfig) ResolvedGatewayURL() string {
	if a != nil && a.GatewayURL != "" {
		return strings.TrimRight(a.GatewayURL, "/")
	}
	return "https://api.akeyless.io"
}

// GeminiConfig configures the Gemini intent classifier backend.
type GeminiConfig struct {
	APIKey         string `json:"api_key,omitempty" yaml:"api_key,omitempty"` // Override: GEMINI_API_KEY env var.
	Model          string `json:"model" yaml:"model"`                         // Default: gemini-2.5-flash.
	BaseURL        string `json:"base_url" yaml:"base_url"`                   // Optional. Defaults to https://generativelanguage.googleapis.com.
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`     // Per-request timeout. Default: 30.
}

// Timeout returns the per-request timeout with a default of 30s.
func (g *GeminiConfig) Timeout() time.Duration {
	if g != nil && g.TimeoutSeconds > 0 {
		return time.Duration(g.TimeoutSeconds) * time.Second
	}
	return 30 * time.Second
}

// ModelName returns the model with a default of gemini-2.5-flash.
func (g *GeminiConfig) ModelName() string {
	if g != nil && g.Model != "" {
		return g.Model
	}
	return "gemini-2.5-flash"
}

// GatewaysConfig defines which gateways are enabled and their settings.
// Nil pointers mean the gateway is not configured. If the entire section
// is absent, the CLI gateway is enabled by default.
type GatewaysConfig struct {
	CLI  *CLIGatewayConfig  `json:"cli,omitempty" yaml:"cli,omitempty"`
	HTTP *HTTPGatewayConfig `json:"http,omitempty" yaml:"http,omitempty"`
}

// CLIGatewayConfig configures the interactive CLI gateway.
type CLIGatewayConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// HTTPGatewayConfig configures the web dashboard and HTTP API gateway.
type HTTPGatewayConfig struct {
	Enabled             bool              `json:"enabled" yaml:"enabled"`
	EnableDocs          bool              `json:"enable_docs" yaml:"enable_docs"`
	ListenAddr          string            `json:"listen_addr" yaml:"listen_addr"` // Default: ":8080".
	MaxRequestSizeBytes int64             `json:"max_request_size_bytes" yaml:"max_request_size_bytes"`
	APIKeyUserMapping   map[string]string `json:"api_key_user_mapping" yaml:"api_key_user_mapping"` // API key → user ID. Empty = open local mode.
	RateLimit           RateLimitConfig   `json:"rate_limit" yaml:"rate_limit"`
	SSE                 bool              `json:"sse" yaml:"sse"` // Enable SSE streaming chat endpoint.
}

// Addr returns the listen address with a default of ":8080".
func (h *HTTPGatewayConfig) Addr() string {
	if h != nil && h.ListenAddr != "" {
		return h.ListenAddr
	}
	return ":8080"
}

// RateLimitConfig configures per-user rate limiting for a gateway.
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute"`
	BurstSize         int `json:"burst_size" yaml:"burst_size"`
}

// ObservabilityConfig configures metrics and tracing.
// When nil, all observability features are disabled with zero overhead.
type ObservabilityConfig struct {
	Metrics *MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing *TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"` // Default: "/metrics"
}

// TracingConfig configures OpenTelemetry distributed tracing.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`         // OTLP endpoint, e.g. "localhost:4317"
	Protocol    string  `json:"protocol" yaml:"protocol"`         // "grpc" or "http". Default: "grpc"
	ServiceName string  `json:"service_name" yaml:"service_name"` // Default: "keysage"
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`   // 0.0–1.0. Default: 1.0
	Insecure    bool    `json:"insecure" yaml:"insecure"`         // Skip TLS for dev
}

// DefaultConfigPath returns the default config file path (~/.keysage/config.yml).
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "configs/keysage.yml" // fallback for environments without a home dir
	}
	return filepath.Join(home, ".keysage", "config.yml")
}

// Load reads a JSON or YAML config file and returns a validated Config.
// The format is detected by file extension: .yml/.yaml for YAML, everything
// else for JSON. The file is optional — a missing file yields an env-only
// configuration. Credentials can be set in the file or overridden by
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	// Expand ~ in config path.
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path %s: %w", path, err)
	}

	var cfg Config
	data, err := os.ReadFile(resolved)
	switch {
	case os.IsNotExist(err):
		// Env-only startup.
	case err != nil:
		return nil, fmt.Errorf("reading config %s: %w", resolved, err)
	default:
		switch ext := strings.ToLower(filepath.Ext(resolved)); ext {
		case ".yml", ".yaml":
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing YAML config %s: %w", resolved, err)
			}
		default:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing JSON config %s: %w", resolved, err)
			}
		}
	}

	// Environment variable overrides — env vars take precedence over config values.
	if env := os.Getenv("AKEYLESS_ACCESS_ID"); env != "" {
		cfg.Akeyless.AccessID = env
	}
	if env := os.Getenv("AKEYLESS_ACCESS_KEY"); env != "" {
		cfg.Akeyless.AccessKey = env
	}
	if env := os.Getenv("AKEYLESS_GATEWAY_URL"); env != "" {
		cfg.Akeyless.GatewayURL = env
	}
	if env := os.Getenv("GEMINI_API_KEY"); env != "" {
		cfg.Gemini.APIKey = env
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// resolvePath expands ~ to the user home directory and returns an absolute path.
func resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}

func (c *Config) validate() error {
	if c.Akeyless.AccessID == "" {
		return fmt.Errorf("akeyless.access_id is required (set AKEYLESS_ACCESS_ID env var)")
	}
	if c.Akeyless.AccessKey == "" {
		return fmt.Errorf("akeyless.access_key is required (set AKEYLESS_ACCESS_KEY env var)")
	}
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("gemini.api_key is required (set GEMINI_API_KEY env var)")
	}
	if c.Akeyless.TimeoutSeconds < 0 {
		return fmt.Errorf("akeyless.timeout_seconds must not be negative")
	}
	if c.Gemini.TimeoutSeconds < 0 {
		return fmt.Errorf("gemini.timeout_seconds must not be negative")
	}
	if c.Akeyless.MaxRetries < 0 {
		return fmt.Errorf("akeyless.max_retries must not be negative")
	}
	return nil
}
