package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// DefaultOllamaBaseURL is where a local Ollama daemon listens by default.
const DefaultOllamaBaseURL = "http://localhost:11434"

// OllamaProvider streams chat completions from Ollama's native /api/chat
// endpoint through the official client.
type OllamaProvider struct {
	client *api.Client
	model  string
}

// NewOllamaProvider creates a provider for the daemon at baseURL.
// A nil client means http.DefaultClient.
func NewOllamaProvider(baseURL, model string, client *http.Client) *OllamaProvider {
	if client == nil {
		client = http.DefaultClient
	}
	base, err := url.Parse(NormalizeBaseURL(baseURL, DefaultOllamaBaseURL))
	if err != nil {
		base, _ = url.Parse(DefaultOllamaBaseURL)
	}
	return &OllamaProvider{
		client: api.NewClient(base, client),
		model:  model,
	}
}

func (p *OllamaProvider) Name() string {
	return fmt.Sprintf("Ollama (%s)", p.model)
}

func (p *OllamaProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("no messages provided")
	}
	stream := true
	chatReq := &api.ChatRequest{
		Model:    requestModel(req, p.model),
		Messages: buildOllamaMessages(req.Messages),
		Stream:   &stream,
	}

	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		err := p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
			if resp.Message.Content == "" {
				return nil
			}
			return send(ctx, events, Event{Type: EventTextDelta, Text: resp.Message.Content})
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ollamaError(err)
		}
		return send(ctx, events, Event{Type: EventDone})
	}), nil
}

// ListModels returns the models pulled into the local daemon.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	resp, err := p.client.List(ctx)
	if err != nil {
		return nil, ollamaError(err)
	}
	models := make([]ModelInfo, 0, len(resp.Models))
	for _, m := range resp.Models {
		id := m.Name
		if id == "" {
			id = m.Model
		}
		models = append(models, ModelInfo{
			ID:      id,
			Details: joinNonEmpty(m.Details.ParameterSize, m.Details.QuantizationLevel),
			Size:    m.Size,
		})
	}
	return models, nil
}

func buildOllamaMessages(messages []Message) []api.Message {
	out := make([]api.Message, 0, len(messages))
	for _, msg := range messages {
		out = append(out, api.Message{Role: string(msg.Role), Content: msg.Content})
	}
	return out
}

// ollamaError turns the client's status error into a *StatusError so callers
// see one error type for every provider.
func ollamaError(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		body := statusErr.ErrorMessage
		if body == "" {
			body = statusErr.Status
		}
		return &StatusError{StatusCode: statusErr.StatusCode, Body: body}
	}
	return fmt.Errorf("ollama: %w", err)
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// NormalizeBaseURL trims trailing slashes and adds a scheme to bare
// host:port values such as those found in OLLAMA_HOST.
func NormalizeBaseURL(raw, fallback string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		value = fallback
	}
	if !strings.Contains(value, "://") {
		value = "http://" + value
	}
	return strings.TrimRight(value, "/")
}
