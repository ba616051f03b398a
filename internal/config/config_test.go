package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider != ProviderOllama {
		t.Fatalf("provider=%q, want %q", cfg.Provider, ProviderOllama)
	}
	if cfg.Model != DefaultModel {
		t.Fatalf("model=%q, want %q", cfg.Model, DefaultModel)
	}
	if cfg.Ollama.BaseURL != DefaultOllamaBaseURL {
		t.Fatalf("ollama.base_url=%q, want %q", cfg.Ollama.BaseURL, DefaultOllamaBaseURL)
	}
	if cfg.Serve.Addr != DefaultServeAddr {
		t.Fatalf("serve.addr=%q, want %q", cfg.Serve.Addr, DefaultServeAddr)
	}
	if cfg.Serve.MaxInFlight != DefaultMaxInFlight {
		t.Fatalf("serve.max_in_flight=%d, want %d", cfg.Serve.MaxInFlight, DefaultMaxInFlight)
	}
	if cfg.Inference.Timeout != 0 {
		t.Fatalf("inference.timeout=%v, want 0", cfg.Inference.Timeout)
	}
}

func TestLoadReadsFile(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	t.Setenv("LOCAL_LLM_KEY", "sekret")
	path := writeConfig(t, `provider: openai_compat
model: qwen2.5-coder
openai_compat:
  base_url: http://127.0.0.1:1234/v1
  api_key: ${LOCAL_LLM_KEY}
inference:
  timeout: 90s
serve:
  addr: 0.0.0.0:9000
  max_in_flight: 0
log:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider != ProviderOpenAICompat {
		t.Fatalf("provider=%q, want %q", cfg.Provider, ProviderOpenAICompat)
	}
	if cfg.Model != "qwen2.5-coder" {
		t.Fatalf("model=%q, want %q", cfg.Model, "qwen2.5-coder")
	}
	if cfg.OpenAICompat.APIKey != "sekret" {
		t.Fatalf("api_key=%q, want expanded env value", cfg.OpenAICompat.APIKey)
	}
	if cfg.Inference.Timeout != 90*time.Second {
		t.Fatalf("inference.timeout=%v, want 90s", cfg.Inference.Timeout)
	}
	if cfg.Serve.Addr != "0.0.0.0:9000" {
		t.Fatalf("serve.addr=%q", cfg.Serve.Addr)
	}
	if cfg.Serve.MaxInFlight != DefaultMaxInFlight {
		t.Fatalf("serve.max_in_flight=%d, want clamp to %d", cfg.Serve.MaxInFlight, DefaultMaxInFlight)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log.level=%q, want debug", cfg.Log.Level)
	}
}

func TestLoadHonoursEnvironment(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "http://gpu-box:11434")
	t.Setenv("DEEPCHAT_MODEL", "llama3.2")

	cfg, err := Load(writeConfig(t, "provider: ollama\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Ollama.BaseURL != "http://gpu-box:11434" {
		t.Fatalf("ollama.base_url=%q, want OLLAMA_HOST value", cfg.Ollama.BaseURL)
	}
	if cfg.Model != "llama3.2" {
		t.Fatalf("model=%q, want DEEPCHAT_MODEL value", cfg.Model)
	}
}

func TestOllamaHostIsOnlyAFallback(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		envURL string
		want   string
	}{
		{name: "file wins", file: "ollama:\n  base_url: http://from-file:11434\n", want: "http://from-file:11434"},
		{name: "deepchat env wins", file: "provider: ollama\n", envURL: "http://from-env:11434", want: "http://from-env:11434"},
		{name: "fallback", file: "provider: ollama\n", want: "0.0.0.0:11434"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("OLLAMA_HOST", "0.0.0.0:11434")
			t.Setenv("DEEPCHAT_OLLAMA_BASE_URL", tc.envURL)

			cfg, err := Load(writeConfig(t, tc.file))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.Ollama.BaseURL != tc.want {
				t.Fatalf("ollama.base_url=%q, want %q", cfg.Ollama.BaseURL, tc.want)
			}
		})
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	if _, err := Load(writeConfig(t, "provider: [unclosed\n")); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := Default()

	cfg.ApplyOverrides("openai_compat", "phi4")
	if cfg.Provider != ProviderOpenAICompat || cfg.Model != "phi4" {
		t.Fatalf("got provider=%q model=%q", cfg.Provider, cfg.Model)
	}

	cfg.ApplyOverrides("  ", "")
	if cfg.Provider != ProviderOpenAICompat || cfg.Model != "phi4" {
		t.Fatalf("blank overrides changed config: provider=%q model=%q", cfg.Provider, cfg.Model)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "unknown provider", mutate: func(c *Config) { c.Provider = "anthropic" }, wantErr: true},
		{name: "missing model", mutate: func(c *Config) { c.Model = "" }, wantErr: true},
		{name: "missing ollama url", mutate: func(c *Config) { c.Ollama.BaseURL = "" }, wantErr: true},
		{name: "missing compat url", mutate: func(c *Config) {
			c.Provider = ProviderOpenAICompat
			c.OpenAICompat.BaseURL = ""
		}, wantErr: true},
		{name: "negative timeout", mutate: func(c *Config) { c.Inference.Timeout = -time.Second }, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSaveThenLoad(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Model = "mistral"
	cfg.Inference.Timeout = 2 * time.Minute

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Model != "mistral" {
		t.Fatalf("model=%q, want mistral", got.Model)
	}
	if got.Inference.Timeout != 2*time.Minute {
		t.Fatalf("timeout=%v, want 2m", got.Inference.Timeout)
	}
}
