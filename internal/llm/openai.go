package llm

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/thanhvu/examgen/internal/model"
	"github.com/thanhvu/examgen/internal/prompt"
)

// OpenAIClient generates exams through any OpenAI-compatible chat API,
// including local inference servers.
type OpenAIClient struct {
	api   *openai.Client
	model string
}

// NewOpenAI creates a client for the given endpoint. An empty baseURL uses
// the official API.
func NewOpenAI(baseURL, apiKey, modelName string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIClient{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Ping verifies the endpoint is reachable.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// Generate submits the request and parses the structured response. The
// chat API has no response-schema parameter, so the schema is appended to
// the instructions and JSON output mode is enforced.
func (c *OpenAIClient) Generate(ctx context.Context, req prompt.Request) (*model.Exam, error) {
	instructions := req.Instructions +
		"\n\nThe JSON object must strictly follow this schema:\n" + req.SchemaJSON()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: instructions},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: provider returned no choices", model.ErrGeneration)
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("generation response", "provider", ProviderOpenAI, "raw", raw)

	return decodeExam(raw)
}
