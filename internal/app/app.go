package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"docchat/internal/chunker"
	"docchat/internal/config"
	"docchat/internal/extract"
	"docchat/internal/handlers"
	"docchat/internal/llm"
	"docchat/internal/rag"
	"docchat/internal/service"
	"docchat/internal/storage"
	"docchat/internal/vectorindex"
)

// App holds the components shared by the API server and the terminal chat.
type App struct {
	Deps    service.Deps
	Options service.Options
	// HealthChecks maps a dependency name to the Pinger that checks it.
	HealthChecks map[string]handlers.Pinger

	closers []func() error
}

// NewLogger creates the logger described by cfg.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// New wires the language model clients, chunker, index backend and optional
// turn log from cfg.
func New(cfg *config.Config) (*App, error) {
	llmCfg := llm.Config{
		APIKey:         cfg.OpenAIAPIKey,
		BaseURL:        cfg.OpenAIBaseURL,
		ChatModel:      cfg.ChatModel,
		Temperature:    cfg.ChatTemperature,
		EmbeddingModel: cfg.EmbeddingModel,
		BatchSize:      cfg.EmbeddingBatchSize,
		Timeout:        cfg.RequestTimeout,
	}
	chat, err := llm.NewClient(llmCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat client: %w", err)
	}
	embedder, err := llm.NewEmbeddingsClient(llmCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings client: %w", err)
	}
	splitter, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("invalid chunking configuration: %w", err)
	}

	a := &App{
		Deps: service.Deps{
			Extractor: extract.NewExtractor(),
			Splitter:  splitter,
			Embedder:  embedder,
			Chat:      chat,
		},
		Options: service.Options{
			K:           cfg.RetrievalK,
			Reformulate: cfg.Reformulate,
		},
		HealthChecks: map[string]handlers.Pinger{"llm": chat},
	}

	switch cfg.IndexBackend {
	case config.BackendQdrant:
		builder, err := vectorindex.NewQdrantBuilder(cfg.QdrantURL)
		if err != nil {
			return nil, err
		}
		a.Deps.Builder = builder
		a.HealthChecks["vector_index"] = builder
		a.closers = append(a.closers, builder.Close)
		slog.Info("Using Qdrant index backend", "url", cfg.QdrantURL)
	default:
		a.Deps.Builder = vectorindex.NewMemoryBuilder()
	}

	if cfg.TurnLogPath != "" {
		db, err := storage.New(cfg.TurnLogPath)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to open turn log: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := storage.Migrate(db); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to migrate turn log: %w", err)
		}
		a.Deps.Turns = storage.NewTurnRepo(db)
		slog.Info("Turn log enabled", "path", cfg.TurnLogPath)
	}

	slog.Debug("Language model configuration",
		"base_url", cfg.OpenAIBaseURL,
		"chat_model", chat.Model(),
		"embedding_model", embedder.Model(),
		"k", cfg.RetrievalK,
		"reformulate", cfg.Reformulate,
	)
	return a, nil
}

// Close releases the index backend connection and the turn log.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// ErrorExitCode returns the process exit code for err.
func ErrorExitCode(err error) int {
	switch rag.KindOf(err) {
	case rag.KindConfiguration:
		return 2
	case rag.KindInput:
		return 3
	case rag.KindService:
		return 4
	}
	return 1
}
