package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAICompatProvider streams chat completions from any server that speaks
// the OpenAI chat completions API (LM Studio, vLLM, llama.cpp, Ollama /v1).
type OpenAICompatProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAICompatProvider creates a provider for the server at baseURL.
// Local servers usually ignore the key, so an empty one is replaced.
func NewOpenAICompatProvider(baseURL, apiKey, model string, httpClient *http.Client) *OpenAICompatProvider {
	if strings.TrimSpace(apiKey) == "" {
		apiKey = "local"
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	opts := []option.RequestOption{
		option.WithBaseURL(baseURL + "/"),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	client := openai.NewClient(opts...)
	return &OpenAICompatProvider{
		client: &client,
		model:  model,
	}
}

func (p *OpenAICompatProvider) Name() string {
	return fmt.Sprintf("OpenAI-compatible (%s)", p.model)
}

func (p *OpenAICompatProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("no messages provided")
	}
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(requestModel(req, p.model)),
		Messages: buildOpenAIMessages(req.Messages),
	}

	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		stream := p.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			for _, choice := range chunk.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				if err := send(ctx, events, Event{Type: EventTextDelta, Text: choice.Delta.Content}); err != nil {
					return err
				}
			}
		}
		if err := stream.Err(); err != nil {
			return fmt.Errorf("openai-compatible streaming error: %w", err)
		}
		return send(ctx, events, Event{Type: EventDone})
	}), nil
}

// ListModels queries the server's /models endpoint.
func (p *OpenAICompatProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	models := make([]ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, ModelInfo{ID: m.ID, Created: m.Created})
	}
	return models, nil
}

func buildOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
