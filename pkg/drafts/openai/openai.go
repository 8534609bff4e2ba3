// Package openai implements drafts.Completer on the OpenAI chat API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/replyforge/replyforge/pkg/drafts"
)

// DefaultTimeout is the hard bound on one completion call.
const DefaultTimeout = 15 * time.Second

// Config for the completion client.
type Config struct {
	APIKey      string
	Model       string        // default: gpt-4o-mini
	Timeout     time.Duration // default: DefaultTimeout
	Temperature float32       // default: 0.7
	MaxTokens   int           // default: 1024
	BaseURL     string        // override for proxies and tests
}

// Client calls the OpenAI chat completion API with a bounded timeout.
// One attempt per request, no automatic retry: a timeout propagates as
// drafts.ErrUpstreamTimeout so the caller can decide to retry.
type Client struct {
	client      *openai.Client
	model       string
	timeout     time.Duration
	temperature float32
	maxTokens   int
}

// New creates a completion client. A missing API key is a configuration
// error, surfaced here rather than on the first request.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, drafts.ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Client{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Complete implements drafts.Completer.
func (c *Client) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return "", drafts.ErrUpstreamTimeout
		}
		// Keep the status, drop the provider's error body.
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("%w: status %d", drafts.ErrUpstream, apiErr.HTTPStatusCode)
		}
		return "", fmt.Errorf("%w: %v", drafts.ErrUpstream, errKind(err))
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", drafts.ErrUpstream)
	}
	return resp.Choices[0].Message.Content, nil
}

// errKind reduces a transport error to a coarse label so provider error
// bodies are never passed through verbatim.
func errKind(err error) string {
	if errors.Is(err, context.Canceled) {
		return "request canceled"
	}
	return "transport error"
}
