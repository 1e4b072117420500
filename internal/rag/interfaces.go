package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_rag.go -package=mocks docchat/internal/rag Embedder,ChatModel,TextExtractor

import "context"

// Embedder maps texts to vectors through an external embedding service.
// Implementations return exactly one vector per input, in input order, all of the
// same dimension. On failure no vectors are returned.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([]Vector, error)
}

// ChatModel is the language-generation service.
type ChatModel interface {
	// Complete sends the messages and returns the assistant reply.
	Complete(ctx context.Context, messages []Message) (string, error)
}

// TextExtractor returns the plain text of a document. An empty string is a valid
// result for a document without extractable text.
type TextExtractor interface {
	ExtractText(ctx context.Context, doc Document) (string, error)
}

// Index is a searchable set of (Chunk, Vector) pairs.
type Index interface {
	// Search returns the k chunks most similar to query, best first.
	// Ties are broken by insertion order.
	Search(ctx context.Context, query Vector, k int) (RetrievalResult, error)
	// Len returns the number of stored chunks.
	Len() int
	// Dimension returns the vector dimension shared by all stored vectors.
	Dimension() int
	// Close releases resources held by the index.
	Close(ctx context.Context) error
}

// IndexBuilder builds an Index from chunks.
type IndexBuilder interface {
	// Build embeds all chunk texts in one batched call and stores the pairs.
	// It returns ErrEmptyCorpus when chunks is empty.
	Build(ctx context.Context, chunks []Chunk, embedder Embedder) (Index, error)
}
