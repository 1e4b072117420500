package service

import (
	"context"
	"fmt"

	"docchat/internal/rag"
)

// Retriever embeds query text and searches an index with it.
type Retriever struct {
	embedder rag.Embedder
	k        int
}

// NewRetriever creates a Retriever. k is used when Retrieve is called with k <= 0.
func NewRetriever(embedder rag.Embedder, k int) *Retriever {
	if k <= 0 {
		k = rag.DefaultK
	}
	return &Retriever{embedder: embedder, k: k}
}

// Retrieve returns the k chunks of index most similar to query.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, index rag.Index) (rag.RetrievalResult, error) {
	if index == nil {
		return nil, rag.ErrIndexNotBuilt
	}
	if k <= 0 {
		k = r.k
	}

	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: expected 1 query vector, got %d", rag.ErrConsistency, len(vecs))
	}

	return index.Search(ctx, vecs[0], k)
}
