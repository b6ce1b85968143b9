package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_YAMLWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	content := `
akeyless:
  access_id: file-id
  access_key: file-key
  gateway_url: https://gw.example.com/
gemini:
  api_key: file-gemini
  model: gemini-2.5-flash
gateways:
  http:
    enabled: true
    listen_addr: ":9090"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AKEYLESS_ACCESS_ID", "env-id")
	t.Setenv("AKEYLESS_ACCESS_KEY", "")
	t.Setenv("AKEYLESS_GATEWAY_URL", "")
	t.Setenv("GEMINI_API_KEY", "env-gemini")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Akeyless.AccessID != "env-id" {
		t.Errorf("AccessID = %q, want env override", cfg.Akeyless.AccessID)
	}
	if cfg.Akeyless.AccessKey != "file-key" {
		t.Errorf("AccessKey = %q, want file value", cfg.Akeyless.AccessKey)
	}
	if cfg.Gemini.APIKey != "env-gemini" {
		t.Errorf("Gemini APIKey = %q, want env override", cfg.Gemini.APIKey)
	}
	if got := cfg.Akeyless.ResolvedGatewayURL(); got != "https://gw.example.com" {
		t.Errorf("ResolvedGatewayURL = %q, want trailing slash trimmed", got)
	}
	if cfg.Gateways.HTTP == nil || cfg.Gateways.HTTP.Addr() != ":9090" {
		t.Errorf("HTTP gateway addr not loaded: %+v", cfg.Gateways.HTTP)
	}
}

func TestLoad_MissingFileEnvOnly(t *testing.T) {
	t.Setenv("AKEYLESS_ACCESS_ID", "p-1234")
	t.Setenv("AKEYLESS_ACCESS_KEY", "secret")
	t.Setenv("AKEYLESS_GATEWAY_URL", "")
	t.Setenv("GEMINI_API_KEY", "gk")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("Load with missing file: %v", err)
	}
	if got := cfg.Akeyless.ResolvedGatewayURL(); got != "https://api.akeyless.io" {
		t.Errorf("default gateway = %q", got)
	}
	if got := cfg.Akeyless.Timeout(); got != 15*time.Second {
		t.Errorf("default akeyless timeout = %v", got)
	}
	if got := cfg.Gemini.Timeout(); got != 30*time.Second {
		t.Errorf("default gemini timeout = %v", got)
	}
	if got := cfg.Akeyless.Retries(); got != 2 {
		t.Errorf("default retries = %d", got)
	}
	if got := cfg.Gemini.ModelName(); got != "gemini-2.5-flash" {
		t.Errorf("default model = %q", got)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing access id", map[string]string{"AKEYLESS_ACCESS_ID": "", "AKEYLESS_ACCESS_KEY": "k", "GEMINI_API_KEY": "g"}},
		{"missing access key", map[string]string{"AKEYLESS_ACCESS_ID": "i", "AKEYLESS_ACCESS_KEY": "", "GEMINI_API_KEY": "g"}},
		{"missing gemini key", map[string]string{"AKEYLESS_ACCESS_ID": "i", "AKEYLESS_ACCESS_KEY": "k", "GEMINI_API_KEY": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
