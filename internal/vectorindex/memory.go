package vectorindex

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"docchat/internal/contextutil"
	"docchat/internal/rag"
)

// Memory is an exact brute-force index using cosine similarity.
// A Memory is immutable once built and safe for concurrent searches.
type Memory struct {
	chunks []rag.Chunk
	vecs   []rag.Vector
	norms  []float64
	dim    int
}

// MemoryBuilder builds Memory indexes.
type MemoryBuilder struct{}

// NewMemoryBuilder returns a builder for in-process indexes.
func NewMemoryBuilder() *MemoryBuilder {
	return &MemoryBuilder{}
}

// Build embeds all chunk texts in one call and stores the pairs in insertion order.
func (b *MemoryBuilder) Build(ctx context.Context, chunks []rag.Chunk, embedder rag.Embedder) (rag.Index, error) {
	if len(chunks) == 0 {
		return nil, rag.ErrEmptyCorpus
	}
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()

	vecs, err := embedChunks(ctx, chunks, embedder)
	if err != nil {
		return nil, err
	}
	idx, err := NewMemory(chunks, vecs)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "index built",
		"backend", "memory",
		"chunks", idx.Len(),
		"dimension", idx.Dimension(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return idx, nil
}

// NewMemory creates an index from already embedded chunks.
func NewMemory(chunks []rag.Chunk, vecs []rag.Vector) (*Memory, error) {
	if len(chunks) == 0 {
		return nil, rag.ErrEmptyCorpus
	}
	if len(chunks) != len(vecs) {
		return nil, fmt.Errorf("%w: %d chunks but %d vectors", rag.ErrConsistency, len(chunks), len(vecs))
	}
	dim := len(vecs[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: empty vector", rag.ErrConsistency)
	}
	norms := make([]float64, len(vecs))
	for i, v := range vecs {
		if len(v) != dim {
			return nil, &rag.DimensionMismatchError{Expected: dim, Actual: len(v)}
		}
		norms[i] = norm(v)
	}
	return &Memory{
		chunks: slices.Clone(chunks),
		vecs:   slices.Clone(vecs),
		norms:  norms,
		dim:    dim,
	}, nil
}

// Search returns the k chunks most similar to query. Scores are cosine
// similarities; equal scores keep insertion order.
func (m *Memory) Search(ctx context.Context, query rag.Vector, k int) (rag.RetrievalResult, error) {
	if m == nil || len(m.vecs) == 0 {
		return nil, rag.ErrIndexNotBuilt
	}
	if len(query) != m.dim {
		return nil, &rag.DimensionMismatchError{Expected: m.dim, Actual: len(query)}
	}
	if k <= 0 {
		return rag.RetrievalResult{}, nil
	}
	k = min(k, len(m.vecs))

	qn := norm(query)
	matches := make(rag.RetrievalResult, len(m.vecs))
	for i, v := range m.vecs {
		matches[i] = rag.Match{Chunk: m.chunks[i], Score: cosine(query, v, qn, m.norms[i])}
	}
	slices.SortStableFunc(matches, func(a, b rag.Match) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	return matches[:k:k], nil
}

// Len returns the number of stored chunks.
func (m *Memory) Len() int {
	if m == nil {
		return 0
	}
	return len(m.vecs)
}

// Dimension returns the vector dimension of the index.
func (m *Memory) Dimension() int {
	if m == nil {
		return 0
	}
	return m.dim
}

// Close is a no-op; the index is reclaimed by the garbage collector.
func (m *Memory) Close(context.Context) error {
	return nil
}

// embedChunks embeds chunk texts in a single call and checks the result shape.
func embedChunks(ctx context.Context, chunks []rag.Chunk, embedder rag.Embedder) ([]rag.Vector, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vecs) != len(chunks) {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for %d chunks", rag.ErrConsistency, len(vecs), len(chunks))
	}
	return vecs, nil
}

func norm(v rag.Vector) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosine returns 0 when either vector has zero magnitude.
func cosine(a, b rag.Vector, an, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (an * bn)
}
