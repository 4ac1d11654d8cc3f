package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient implements Client with the OpenAI chat-completions API or any
// compatible gateway reachable at BaseURL.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// OpenAIOptions configures NewOpenAIClient.
type OpenAIOptions struct {
	APIKey  string
	BaseURL string
	Model   string
	// Timeout bounds each HTTP round trip. Zero leaves it to the context.
	Timeout time.Duration
}

// NewOpenAIClient creates a client for opts.Model.
func NewOpenAIClient(opts OpenAIOptions) *OpenAIClient {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  opts.Model,
	}
}

// CreateChatCompletion sends req and returns the first choice's content.
func (c *OpenAIClient) CreateChatCompletion(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}
