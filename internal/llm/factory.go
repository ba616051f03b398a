package llm

import (
	"fmt"
	"net/http"

	"github.com/cmuxiao/deepchat/internal/config"
)

// NewProvider builds the provider selected by cfg.Provider.
func NewProvider(cfg *config.Config) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	// No client timeout: inference.timeout is applied per request by the bridge.
	client := &http.Client{}

	switch cfg.Provider {
	case config.ProviderOllama:
		return NewOllamaProvider(cfg.Ollama.BaseURL, cfg.Model, client), nil
	case config.ProviderOpenAICompat:
		return NewOpenAICompatProvider(cfg.OpenAICompat.BaseURL, cfg.OpenAICompat.APIKey, cfg.Model, client), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}
