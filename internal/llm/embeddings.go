package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"docchat/internal/contextutil"
	"docchat/internal/rag"
)

// EmbeddingsClient implements rag.Embedder on top of the OpenAI embeddings API.
type EmbeddingsClient struct {
	api       *openai.Client
	model     string
	batchSize int
	timeout   time.Duration
}

// NewEmbeddingsClient creates an embeddings client. It returns
// rag.ErrMissingCredential when no API key is configured.
func NewEmbeddingsClient(cfg Config) (*EmbeddingsClient, error) {
	api, err := newAPIClient(cfg)
	if err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	return &EmbeddingsClient{
		api:       api,
		model:     cfg.EmbeddingModel,
		batchSize: cfg.BatchSize,
		timeout:   cfg.Timeout,
	}, nil
}

// Model returns the embedding model name.
func (c *EmbeddingsClient) Model() string {
	return c.model
}

// Embed returns one vector per text, in input order. Texts are sent in batches of
// the configured size; if any batch fails nothing is returned.
func (c *EmbeddingsClient) Embed(ctx context.Context, texts []string) ([]rag.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()

	vectors := make([]rag.Vector, 0, len(texts))
	dim := 0
	for from := 0; from < len(texts); from += c.batchSize {
		to := min(from+c.batchSize, len(texts))
		batch, err := c.embedBatch(ctx, texts[from:to])
		if err != nil {
			logger.ErrorContext(ctx, "embedding batch failed",
				"model", c.model,
				"batch_start", from,
				"batch_size", to-from,
				"error", err,
			)
			return nil, err
		}
		for i, v := range batch {
			if dim == 0 {
				dim = len(v)
			}
			if len(v) != dim {
				return nil, badEmbeddingResponse(fmt.Errorf("embedding %d has dimension %d, expected %d", from+i, len(v), dim))
			}
		}
		vectors = append(vectors, batch...)
	}

	logger.DebugContext(ctx, "texts embedded",
		"model", c.model,
		"count", len(vectors),
		"dimension", dim,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return vectors, nil
}

func (c *EmbeddingsClient) embedBatch(ctx context.Context, texts []string) ([]rag.Vector, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.model),
		Input: texts,
	})
	if err != nil {
		return nil, classify(rag.ServiceEmbedding, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, badEmbeddingResponse(fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
	}

	// The API reports the input position of each embedding; place them by it.
	out := make([]rag.Vector, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) || out[d.Index] != nil {
			return nil, badEmbeddingResponse(fmt.Errorf("unexpected embedding index %d", d.Index))
		}
		if len(d.Embedding) == 0 {
			return nil, badEmbeddingResponse(fmt.Errorf("embedding %d is empty", d.Index))
		}
		out[d.Index] = rag.Vector(d.Embedding)
	}
	return out, nil
}

func badEmbeddingResponse(err error) error {
	return &rag.ServiceError{Service: rag.ServiceEmbedding, Reason: rag.ReasonBadResponse, Err: err}
}
