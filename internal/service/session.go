package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"docchat/internal/chunker"
	"docchat/internal/contextutil"
	"docchat/internal/rag"
	"docchat/internal/storage"
)

// PreviewRunes is the length of the text preview returned after processing.
const PreviewRunes = 5000

// State is the lifecycle state of a Session.
type State int

const (
	// StateUninitialized means no document set has been indexed yet.
	StateUninitialized State = iota
	// StateReady means an index is installed and questions can be asked.
	StateReady
)

func (s State) String() string {
	if s == StateReady {
		return "ready"
	}
	return "uninitialized"
}

// Deps are the collaborators a Session works with.
type Deps struct {
	Extractor rag.TextExtractor
	Splitter  *chunker.Splitter
	Embedder  rag.Embedder
	Builder   rag.IndexBuilder
	Chat      rag.ChatModel
	// Turns is optional; when set, processed corpora and completed turns are logged.
	Turns storage.TurnStore
}

// Options tune how a Session answers questions.
type Options struct {
	// K is the number of chunks retrieved per question.
	K int
	// Reformulate enables rewriting follow-up questions into standalone ones.
	Reformulate bool
}

// ProcessResult describes a successfully indexed document set.
type ProcessResult struct {
	Documents  int        `json:"documents"`
	Characters int        `json:"characters"`
	Chunks     int        `json:"chunks"`
	Dimension  int        `json:"dimension"`
	Stats      ChunkStats `json:"chunk_stats"`
	Preview    string     `json:"preview"`
}

// AskResult is the outcome of an answered question.
type AskResult struct {
	Answer             string              `json:"answer"`
	History            []rag.Turn          `json:"history"`
	Sources            rag.RetrievalResult `json:"sources"`
	StandaloneQuestion string              `json:"standalone_question"`
}

// Session owns one document index and one conversation history.
// Operations on a Session are serialised.
type Session struct {
	id        string
	deps      Deps
	opts      Options
	retriever *Retriever
	createdAt time.Time

	mu      sync.Mutex
	index   rag.Index
	history []rag.Turn
}

// NewSession creates a Session in StateUninitialized.
func NewSession(id string, deps Deps, opts Options) *Session {
	if opts.K <= 0 {
		opts.K = rag.DefaultK
	}
	return &Session{
		id:        id,
		deps:      deps,
		opts:      opts,
		retriever: NewRetriever(deps.Embedder, opts.K),
		createdAt: time.Now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return StateUninitialized
	}
	return StateReady
}

// History returns a copy of the conversation history.
func (s *Session) History() []rag.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// Reset clears the conversation history and keeps the index.
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, logger := contextutil.With(ctx, "session_id", s.id)
	logger.InfoContext(ctx, "history cleared", "turns", len(s.history))
	s.history = nil
}

// ProcessDocuments extracts, chunks and indexes docs. On success the new index
// replaces the previous one and the history is cleared. On failure the session
// is left unchanged.
func (s *Session) ProcessDocuments(ctx context.Context, docs []rag.Document) (ProcessResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, logger := contextutil.With(ctx, "session_id", s.id)
	start := time.Now()

	if len(docs) == 0 {
		return ProcessResult{}, rag.ErrNoDocuments
	}

	texts := make([]string, 0, len(docs))
	for _, doc := range docs {
		text, err := s.deps.Extractor.ExtractText(ctx, doc)
		if err != nil {
			logger.ErrorContext(ctx, "failed to extract text", "document", doc.Name, "error", err)
			return ProcessResult{}, fmt.Errorf("failed to extract text from %s: %w", doc.Name, err)
		}
		if strings.TrimSpace(text) == "" {
			logger.WarnContext(ctx, "document has no extractable text", "document", doc.Name)
			continue
		}
		texts = append(texts, text)
	}
	if len(texts) == 0 {
		return ProcessResult{}, rag.ErrNoTextFound
	}
	corpus := strings.Join(texts, "\n")

	chunks := s.deps.Splitter.Split(corpus)
	if len(chunks) == 0 {
		return ProcessResult{}, rag.ErrNoTextFound
	}

	index, err := s.deps.Builder.Build(ctx, chunks, s.deps.Embedder)
	if err != nil {
		logger.ErrorContext(ctx, "failed to build index", "chunks", len(chunks), "error", err)
		return ProcessResult{}, fmt.Errorf("failed to build index: %w", err)
	}

	previous := s.index
	s.index = index
	s.history = nil
	if previous != nil {
		if err := previous.Close(ctx); err != nil {
			logger.WarnContext(ctx, "failed to release previous index", "error", err)
		}
	}

	result := ProcessResult{
		Documents:  len(docs),
		Characters: utf8.RuneCountInString(corpus),
		Chunks:     len(chunks),
		Dimension:  index.Dimension(),
		Stats:      computeChunkStats(chunks),
		Preview:    preview(corpus, PreviewRunes),
	}

	if s.deps.Turns != nil {
		err := s.deps.Turns.AppendCorpus(ctx, &storage.CorpusRecord{
			SessionID:  s.id,
			Documents:  result.Documents,
			Characters: result.Characters,
			Chunks:     result.Chunks,
		})
		if err != nil {
			logger.WarnContext(ctx, "failed to log corpus", "error", err)
		}
	}

	logger.InfoContext(ctx, "documents processed",
		"documents", result.Documents,
		"characters", result.Characters,
		"chunks", result.Chunks,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// Ask answers question from the indexed documents and the conversation so far.
// The history only grows when an answer was generated.
func (s *Session) Ask(ctx context.Context, question string) (AskResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, logger := contextutil.With(ctx, "session_id", s.id)
	start := time.Now()

	if s.index == nil {
		return AskResult{}, rag.ErrNotReady
	}
	if strings.TrimSpace(question) == "" {
		return AskResult{}, &rag.ValidationError{Field: "question", Message: "cannot be empty"}
	}

	standalone := question
	if s.opts.Reformulate && len(s.history) > 0 {
		standalone = s.condense(ctx, question)
	}

	sources, err := s.retriever.Retrieve(ctx, standalone, s.opts.K, s.index)
	if err != nil {
		logger.ErrorContext(ctx, "failed to retrieve context", "error", err)
		return AskResult{}, fmt.Errorf("failed to retrieve context: %w", err)
	}

	prompt := rag.Prompt{
		Context:  sources.Texts(),
		History:  s.history,
		Question: question,
	}
	answer, err := s.deps.Chat.Complete(ctx, answerMessages(prompt))
	if err != nil {
		logger.ErrorContext(ctx, "failed to generate answer", "error", err)
		return AskResult{}, fmt.Errorf("failed to generate answer: %w", generationError(err))
	}

	s.history = append(s.history,
		rag.Turn{Role: rag.RoleUser, Content: question},
		rag.Turn{Role: rag.RoleAssistant, Content: answer},
	)

	if s.deps.Turns != nil {
		err := s.deps.Turns.AppendTurn(ctx, &storage.TurnRecord{
			SessionID:          s.id,
			Question:           question,
			StandaloneQuestion: standalone,
			Answer:             answer,
			Sources:            len(sources),
		})
		if err != nil {
			logger.WarnContext(ctx, "failed to log turn", "error", err)
		}
	}

	logger.InfoContext(ctx, "question answered",
		"sources", len(sources),
		"reformulated", standalone != question,
		"history_turns", len(s.history),
		"answer_length", len(answer),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return AskResult{
		Answer:             answer,
		History:            slices.Clone(s.history),
		Sources:            sources,
		StandaloneQuestion: standalone,
	}, nil
}

// condense rewrites question into a standalone question. It falls back to the
// question as asked when the model fails or returns nothing.
func (s *Session) condense(ctx context.Context, question string) string {
	logger := contextutil.LoggerFromContext(ctx)

	out, err := s.deps.Chat.Complete(ctx, condenseMessages(s.history, question))
	if err != nil {
		logger.WarnContext(ctx, "question reformulation failed, using question as asked", "error", err)
		return question
	}
	out = strings.TrimSpace(out)
	if out == "" {
		logger.WarnContext(ctx, "question reformulation returned nothing, using question as asked")
		return question
	}
	logger.DebugContext(ctx, "question reformulated", "question", question, "standalone", out)
	return out
}

// Close releases the index. The session cannot answer questions afterwards.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index == nil {
		return nil
	}
	err := s.index.Close(ctx)
	s.index = nil
	s.history = nil
	return err
}

// generationError makes sure a chat model failure is reported as a generation
// service error.
func generationError(err error) error {
	if errors.Is(err, rag.ErrService) {
		return err
	}
	return &rag.ServiceError{Service: rag.ServiceGeneration, Reason: rag.ReasonUnknown, Err: err}
}

func preview(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n])
}
