package llm

import "time"

const (
	// DefaultChatModel is the chat model used when none is configured.
	DefaultChatModel = "gpt-4o-mini"
	// DefaultEmbeddingModel is the embedding model used when none is configured.
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultBatchSize is the number of texts sent per embeddings request.
	DefaultBatchSize = 64
	// DefaultTimeout bounds a single request to the API.
	DefaultTimeout = 60 * time.Second
)

// Config holds the settings shared by the chat and embeddings clients.
type Config struct {
	APIKey  string
	BaseURL string

	ChatModel   string
	Temperature float32

	EmbeddingModel string
	BatchSize      int

	// Timeout is applied to every request. Zero disables the per-call deadline.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.ChatModel == "" {
		c.ChatModel = DefaultChatModel
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = DefaultEmbeddingModel
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	return c
}
