package llm

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"docchat/internal/contextutil"
	"docchat/internal/rag"
)

// Client is a chat completions client for OpenAI-compatible APIs.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
}

// NewClient creates a chat client. It returns rag.ErrMissingCredential when no
// API key is configured.
func NewClient(cfg Config) (*Client, error) {
	api, err := newAPIClient(cfg)
	if err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	return &Client{
		api:         api,
		model:       cfg.ChatModel,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
	}, nil
}

func newAPIClient(cfg Config) (*openai.Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, rag.ErrMissingCredential
	}
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	return openai.NewClientWithConfig(apiCfg), nil
}

// Model returns the chat model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends the messages and returns the content of the first choice.
func (c *Client) Complete(ctx context.Context, messages []rag.Message) (string, error) {
	logger := contextutil.LoggerFromContext(ctx)

	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toChatMessages(messages),
		Temperature: requestTemperature(c.temperature),
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		svcErr := classify(rag.ServiceGeneration, err)
		logger.ErrorContext(ctx, "chat completion failed",
			"model", c.model,
			"reason", svcErr.Reason,
			"status", svcErr.StatusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return "", svcErr
	}

	if len(resp.Choices) == 0 {
		return "", &rag.ServiceError{
			Service: rag.ServiceGeneration,
			Reason:  rag.ReasonBadResponse,
			Err:     errors.New("no choices returned"),
		}
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", &rag.ServiceError{
			Service: rag.ServiceGeneration,
			Reason:  rag.ReasonBadResponse,
			Err:     errors.New("empty completion"),
		}
	}

	logger.DebugContext(ctx, "chat completion finished",
		"model", c.model,
		"messages", len(messages),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

// Ping checks that the API is reachable with the configured credential.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.api.ListModels(ctx); err != nil {
		return classify(rag.ServiceGeneration, err)
	}
	return nil
}

func toChatMessages(messages []rag.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// requestTemperature maps 0 to the smallest positive value: the request field is
// omitted when zero, which would make the server fall back to its own default.
func requestTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
