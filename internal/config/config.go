package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Provider names accepted in the provider key.
const (
	ProviderOllama       = "ollama"
	ProviderOpenAICompat = "openai_compat"
)

const (
	DefaultModel         = "deepseek-r1:7b"
	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultServeAddr     = "127.0.0.1:8765"
	DefaultMaxInFlight   = 1
)

type Config struct {
	Provider     string             `mapstructure:"provider" yaml:"provider"`
	Model        string             `mapstructure:"model" yaml:"model"`
	Ollama       OllamaConfig       `mapstructure:"ollama" yaml:"ollama"`
	OpenAICompat OpenAICompatConfig `mapstructure:"openai_compat" yaml:"openai_compat"`
	Inference    InferenceConfig    `mapstructure:"inference" yaml:"inference"`
	Serve        ServeConfig        `mapstructure:"serve" yaml:"serve"`
	Log          LogConfig          `mapstructure:"log" yaml:"log"`
}

type OllamaConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

type OpenAICompatConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key,omitempty"`
}

type InferenceConfig struct {
	// Timeout bounds a whole request including the stream. Zero means none.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type ServeConfig struct {
	Addr        string `mapstructure:"addr" yaml:"addr"`
	Token       string `mapstructure:"token" yaml:"token,omitempty"`
	MaxInFlight int    `mapstructure:"max_in_flight" yaml:"max_in_flight"`

	// AllowedOrigins lists extra browser origins, besides the panel's own,
	// that may open the websocket.
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins,omitempty"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"` // debug, info, warn, error
	File  string `mapstructure:"file" yaml:"file,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Provider: ProviderOllama,
		Model:    DefaultModel,
		Ollama:   OllamaConfig{BaseURL: DefaultOllamaBaseURL},
		OpenAICompat: OpenAICompatConfig{
			BaseURL: "http://localhost:11434/v1",
		},
		Serve: ServeConfig{
			Addr:        DefaultServeAddr,
			MaxInFlight: DefaultMaxInFlight,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the config file at path, or the default location when path is
// empty. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	def := Default()
	v.SetDefault("provider", def.Provider)
	v.SetDefault("model", def.Model)
	v.SetDefault("ollama.base_url", def.Ollama.BaseURL)
	v.SetDefault("openai_compat.base_url", def.OpenAICompat.BaseURL)
	v.SetDefault("openai_compat.api_key", "")
	v.SetDefault("inference.timeout", "0s")
	v.SetDefault("serve.addr", def.Serve.Addr)
	v.SetDefault("serve.token", "")
	v.SetDefault("serve.max_in_flight", def.Serve.MaxInFlight)
	v.SetDefault("serve.allowed_origins", []string{})
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.file", "")

	v.SetEnvPrefix("DEEPCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := configDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(path != "" && errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// OLLAMA_HOST is what the ollama CLI itself honours. It only fills in
	// a base URL that neither the file nor DEEPCHAT_OLLAMA_BASE_URL set.
	if !v.InConfig("ollama.base_url") && os.Getenv("DEEPCHAT_OLLAMA_BASE_URL") == "" {
		if host := strings.TrimSpace(os.Getenv("OLLAMA_HOST")); host != "" {
			cfg.Ollama.BaseURL = host
		}
	}

	cfg.OpenAICompat.APIKey = expandEnv(cfg.OpenAICompat.APIKey)
	cfg.Serve.Token = expandEnv(cfg.Serve.Token)
	if cfg.OpenAICompat.APIKey == "" {
		cfg.OpenAICompat.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Serve.MaxInFlight <= 0 {
		cfg.Serve.MaxInFlight = DefaultMaxInFlight
	}

	return &cfg, nil
}

// ApplyOverrides replaces the provider and model when the values are set.
func (c *Config) ApplyOverrides(provider, model string) {
	if p := strings.TrimSpace(provider); p != "" {
		c.Provider = p
	}
	if m := strings.TrimSpace(model); m != "" {
		c.Model = m
	}
}

// Validate reports configuration that cannot reach an inference service.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOllama:
		if strings.TrimSpace(c.Ollama.BaseURL) == "" {
			return fmt.Errorf("ollama.base_url is required")
		}
	case ProviderOpenAICompat:
		if strings.TrimSpace(c.OpenAICompat.BaseURL) == "" {
			return fmt.Errorf("openai_compat.base_url is required")
		}
	default:
		return fmt.Errorf("unknown provider %q (valid: %s, %s)", c.Provider, ProviderOllama, ProviderOpenAICompat)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("model is required")
	}
	if c.Inference.Timeout < 0 {
		return fmt.Errorf("inference.timeout must not be negative")
	}
	return nil
}

// expandEnv expands ${VAR} or $VAR in a string
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}

func configDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config dir: %w", err)
	}
	return filepath.Join(dir, "deepchat"), nil
}

// GetConfigPath returns the path where the config file should be located
func GetConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// Save writes cfg to path, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}
