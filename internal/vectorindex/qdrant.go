package vectorindex

import (
	"cmp"
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"docchat/internal/contextutil"
	"docchat/internal/rag"
)

const (
	collectionPrefix = "docchat_"
	defaultGRPCPort  = 6334
	upsertBatchSize  = 256
)

// QdrantBuilder builds indexes stored in a Qdrant server. Every build gets its
// own collection, which is dropped when the index is closed.
type QdrantBuilder struct {
	client *qdrant.Client
}

// NewQdrantBuilder creates a Qdrant-backed builder.
// urlStr should be in the format "http://host:port" (e.g., "http://localhost:6333").
// The gRPC port is derived from the HTTP port.
func NewQdrantBuilder(urlStr string) (*QdrantBuilder, error) {
	cfg, err := parseQdrantURL(urlStr)
	if err != nil {
		return nil, err
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}
	return &QdrantBuilder{client: client}, nil
}

func parseQdrantURL(urlStr string) (*qdrant.Config, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}

	port := defaultGRPCPort
	if parsedURL.Port() != "" {
		httpPort, err := strconv.Atoi(parsedURL.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid Qdrant port %q: %w", parsedURL.Port(), err)
		}
		port = httpPort + 1
	}

	return &qdrant.Config{
		Host:   host,
		Port:   port,
		UseTLS: parsedURL.Scheme == "https",
	}, nil
}

// Close closes the connection to the server.
func (b *QdrantBuilder) Close() error {
	return b.client.Close()
}

// Ping checks that the server answers.
func (b *QdrantBuilder) Ping(ctx context.Context) error {
	if _, err := b.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	return nil
}

// Build embeds all chunk texts in one call and uploads them to a new collection.
// The collection is removed again if any step fails.
func (b *QdrantBuilder) Build(ctx context.Context, chunks []rag.Chunk, embedder rag.Embedder) (rag.Index, error) {
	if len(chunks) == 0 {
		return nil, rag.ErrEmptyCorpus
	}
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()

	vecs, err := embedChunks(ctx, chunks, embedder)
	if err != nil {
		return nil, err
	}
	dim := len(vecs[0])
	for _, v := range vecs {
		if len(v) != dim {
			return nil, &rag.DimensionMismatchError{Expected: dim, Actual: len(v)}
		}
	}

	collection := collectionName()
	err = b.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	if err := b.upsert(ctx, collection, chunks, vecs); err != nil {
		if dropErr := b.client.DeleteCollection(context.WithoutCancel(ctx), collection); dropErr != nil {
			logger.WarnContext(ctx, "failed to drop collection after failed build", "collection", collection, "error", dropErr)
		}
		return nil, err
	}

	logger.InfoContext(ctx, "index built",
		"backend", "qdrant",
		"collection", collection,
		"chunks", len(chunks),
		"dimension", dim,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &Qdrant{
		client:     b.client,
		collection: collection,
		count:      len(chunks),
		dim:        dim,
	}, nil
}

func (b *QdrantBuilder) upsert(ctx context.Context, collection string, chunks []rag.Chunk, vecs []rag.Vector) error {
	for from := 0; from < len(chunks); from += upsertBatchSize {
		to := min(from+upsertBatchSize, len(chunks))
		points := make([]*qdrant.PointStruct, 0, to-from)
		for i := from; i < to; i++ {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDNum(uint64(i)),
				Vectors: qdrant.NewVectors(vecs[i]...),
				Payload: qdrant.NewValueMap(chunkPayload(chunks[i], i)),
			})
		}
		_, err := b.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		if err != nil {
			return fmt.Errorf("failed to upsert points: %w", err)
		}
	}
	return nil
}

// Qdrant is an index stored in one Qdrant collection.
type Qdrant struct {
	client     *qdrant.Client
	collection string
	count      int
	dim        int
}

// Search queries the collection and returns the k best matches. Results are
// re-sorted so that equal scores keep insertion order.
func (q *Qdrant) Search(ctx context.Context, query rag.Vector, k int) (rag.RetrievalResult, error) {
	if q == nil || q.count == 0 {
		return nil, rag.ErrIndexNotBuilt
	}
	if len(query) != q.dim {
		return nil, &rag.DimensionMismatchError{Expected: q.dim, Actual: len(query)}
	}
	if k <= 0 {
		return rag.RetrievalResult{}, nil
	}
	limit := uint64(min(k, q.count))

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to search points", "collection", q.collection, "k", k, "error", err)
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	matches := make(rag.RetrievalResult, 0, len(points))
	for _, p := range points {
		matches = append(matches, rag.Match{
			Chunk: chunkFromPayload(convertPayloadToMap(p.GetPayload()), p.GetId().GetNum()),
			Score: float64(p.GetScore()),
		})
	}
	sortMatches(matches)
	return matches, nil
}

// Len returns the number of stored chunks.
func (q *Qdrant) Len() int { return q.count }

// Dimension returns the vector dimension of the collection.
func (q *Qdrant) Dimension() int { return q.dim }

// Close drops the collection.
func (q *Qdrant) Close(ctx context.Context) error {
	if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", q.collection, err)
	}
	return nil
}

func collectionName() string {
	return collectionPrefix + uuid.NewString()
}

func chunkPayload(c rag.Chunk, ordinal int) map[string]any {
	return map[string]any{
		"text":    c.Text,
		"offset":  int64(c.Offset),
		"ordinal": int64(ordinal),
	}
}

func chunkFromPayload(payload map[string]any, id uint64) rag.Chunk {
	c := rag.Chunk{Index: int(id)}
	if text, ok := payload["text"].(string); ok {
		c.Text = text
	}
	if offset, ok := payload["offset"].(int64); ok {
		c.Offset = int(offset)
	}
	if ordinal, ok := payload["ordinal"].(int64); ok {
		c.Index = int(ordinal)
	}
	return c
}

// sortMatches orders by descending score, then ascending chunk index.
func sortMatches(matches rag.RetrievalResult) {
	slices.SortFunc(matches, func(a, b rag.Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Chunk.Index, b.Chunk.Index)
	})
}

// convertPayloadToMap converts Qdrant payload to map[string]any.
func convertPayloadToMap(payload map[string]*qdrant.Value) map[string]any {
	result := make(map[string]any, len(payload))
	for k, v := range payload {
		if v == nil {
			continue
		}
		result[k] = convertValue(v)
	}
	return result
}

// convertValue converts a Qdrant Value to Go any type.
func convertValue(v *qdrant.Value) any {
	switch val := v.Kind.(type) {
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_ListValue:
		list := make([]any, len(val.ListValue.Values))
		for i, item := range val.ListValue.Values {
			list[i] = convertValue(item)
		}
		return list
	case *qdrant.Value_StructValue:
		return convertPayloadToMap(val.StructValue.Fields)
	default:
		return nil
	}
}
