package llm

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIService speaks the OpenAI chat completion API. Groq exposes the same
// API at a different base URL, so one client covers both hosted providers.
type OpenAIService struct {
	client   openai.Client
	provider Provider
	model    string
}

// NewOpenAIService creates a chat completion client for an OpenAI-compatible
// provider.
func NewOpenAIService(provider Provider, apiKey, model, baseURL string) (*OpenAIService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s API key is required", provider)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIService{
		client:   openai.NewClient(opts...),
		provider: provider,
		model:    model,
	}, nil
}

// Complete generates a completion for the given messages.
func (s *OpenAIService) Complete(ctx context.Context, messages []Message, opts CompletionOptions) (string, error) {
	log.Debug("Requesting completion", "provider", s.provider, "model", s.model)

	chatMessages := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, m := range messages {
		switch m.Role {
		case "system":
			chatMessages[i] = openai.SystemMessage(m.Content)
		case "assistant":
			chatMessages[i] = openai.AssistantMessage(m.Content)
		default:
			chatMessages[i] = openai.UserMessage(m.Content)
		}
	}

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(s.model),
		Messages:    chatMessages,
		Temperature: openai.Float(opts.Temperature),
		MaxTokens:   openai.Int(int64(opts.MaxTokens)),
	})
	if err != nil {
		return "", &ProviderError{Provider: s.provider, Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: s.provider, Err: fmt.Errorf("no completion returned")}
	}

	return resp.Choices[0].Message.Content, nil
}

// Provider returns the provider name.
func (s *OpenAIService) Provider() Provider {
	return s.provider
}

// ModelName returns the model name.
func (s *OpenAIService) ModelName() string {
	return s.model
}
