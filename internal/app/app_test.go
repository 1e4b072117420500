package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"docchat/internal/config"
	"docchat/internal/rag"
	"docchat/internal/vectorindex"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testConfig() *config.Config {
	return &config.Config{
		OpenAIAPIKey:       "sk-test",
		ChatModel:          "gpt-4o-mini",
		EmbeddingModel:     "text-embedding-3-small",
		EmbeddingBatchSize: 64,
		ChunkSize:          1000,
		ChunkOverlap:       200,
		RetrievalK:         4,
		Reformulate:        true,
		IndexBackend:       config.BackendMemory,
		LogLevel:           slog.LevelInfo,
		LogFormat:          "text",
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(t *testing.T, cfg *config.Config)
		wantErr   error
		wantTurns bool
	}{
		{
			name:   "memory backend",
			mutate: func(t *testing.T, cfg *config.Config) {},
		},
		{
			name: "turn log enabled",
			mutate: func(t *testing.T, cfg *config.Config) {
				cfg.TurnLogPath = filepath.Join(t.TempDir(), "turns.db")
			},
			wantTurns: true,
		},
		{
			name:    "missing credential",
			mutate:  func(t *testing.T, cfg *config.Config) { cfg.OpenAIAPIKey = "" },
			wantErr: rag.ErrMissingCredential,
		},
		{
			name: "invalid chunking",
			mutate: func(t *testing.T, cfg *config.Config) {
				cfg.ChunkOverlap = cfg.ChunkSize
			},
			wantErr: rag.ErrInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(t, cfg)

			a, err := New(cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			t.Cleanup(func() { _ = a.Close() })

			if _, ok := a.Deps.Builder.(*vectorindex.MemoryBuilder); !ok {
				t.Errorf("Builder = %T, want *vectorindex.MemoryBuilder", a.Deps.Builder)
			}
			if a.Deps.Extractor == nil || a.Deps.Embedder == nil || a.Deps.Chat == nil || a.Deps.Splitter == nil {
				t.Errorf("Deps = %+v, want every collaborator set", a.Deps)
			}
			if (a.Deps.Turns != nil) != tt.wantTurns {
				t.Errorf("Turns set = %v, want %v", a.Deps.Turns != nil, tt.wantTurns)
			}
			if a.Options.K != 4 || !a.Options.Reformulate {
				t.Errorf("Options = %+v", a.Options)
			}
			if _, ok := a.HealthChecks["llm"]; !ok {
				t.Error("HealthChecks should include llm")
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	cfg := testConfig()
	cfg.LogFormat = "json"
	cfg.LogLevel = slog.LevelWarn

	var buf bytes.Buffer
	logger := NewLogger(cfg, &buf)
	logger.Info("dropped")
	logger.Warn("kept", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output %q is not a single JSON entry: %v", buf.String(), err)
	}
	if entry["msg"] != "kept" || entry["key"] != "value" {
		t.Errorf("entry = %v", entry)
	}
}

func TestErrorExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{rag.ErrMissingCredential, 2},
		{rag.ErrNoTextFound, 3},
		{&rag.ServiceError{Service: rag.ServiceEmbedding, Reason: rag.ReasonAuth}, 4},
		{errors.New("boom"), 1},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.err), func(t *testing.T) {
			if got := ErrorExitCode(tt.err); got != tt.want {
				t.Errorf("ErrorExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
