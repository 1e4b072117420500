package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"docchat/internal/contextutil"
	"docchat/internal/rag"
	"docchat/internal/service"
	"docchat/internal/storage"
)

const (
	// MaxUploadBytes bounds the size of a document upload request.
	MaxUploadBytes = 64 << 20
	// multipartMemory is the part of an upload kept in memory before spilling to disk.
	multipartMemory = 32 << 20
)

// SessionHandler handles HTTP requests for chat sessions.
type SessionHandler struct {
	manager *service.Manager
	turns   storage.TurnStore
}

// NewSessionHandler creates a new SessionHandler. turns may be nil when the
// turn log is disabled.
func NewSessionHandler(manager *service.Manager, turns storage.TurnStore) *SessionHandler {
	return &SessionHandler{manager: manager, turns: turns}
}

// SessionResponse describes a session.
//
// swagger:model SessionResponse
type SessionResponse struct {
	ID        string `json:"id"`
	State     string `json:"state"`
	CreatedAt string `json:"created_at"`
}

// AskRequest represents the HTTP request payload for a question.
//
// swagger:model AskRequest
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse represents the HTTP response payload for an answered question.
//
// swagger:model AskResponse
type AskResponse struct {
	// The generated answer
	Answer string `json:"answer"`
	// The conversation so far, including this turn
	History []rag.Turn `json:"history"`
	// Chunks the answer was grounded on, best first
	Sources []SourceResponse `json:"sources"`
	// The question used for retrieval, if it was rewritten
	StandaloneQuestion string `json:"standalone_question,omitempty"`
}

// SourceResponse is a retrieved chunk.
//
// swagger:model SourceResponse
type SourceResponse struct {
	Index  int     `json:"index"`
	Offset int     `json:"offset"`
	Score  float64 `json:"score"`
	Text   string  `json:"text"`
}

// HistoryResponse holds the conversation of a session.
//
// swagger:model HistoryResponse
type HistoryResponse struct {
	History []rag.Turn `json:"history"`
}

// TurnLogEntry is a logged turn.
//
// swagger:model TurnLogEntry
type TurnLogEntry struct {
	Seq                int    `json:"seq"`
	Question           string `json:"question"`
	StandaloneQuestion string `json:"standalone_question"`
	Answer             string `json:"answer"`
	Sources            int    `json:"sources"`
	CreatedAt          string `json:"created_at"`
}

func sessionResponse(s *service.Session) SessionResponse {
	return SessionResponse{
		ID:        s.ID(),
		State:     s.State().String(),
		CreatedAt: s.CreatedAt().UTC().Format(time.RFC3339),
	}
}

// session resolves the {id} URL parameter. It writes a 404 response when the
// session does not exist.
func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*service.Session, bool) {
	s, err := h.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(r.Context(), w, err, "Failed to load session")
		return nil, false
	}
	return s, true
}

// Create starts a new session.
//
// swagger:route POST /api/sessions sessions createSession
//
// Creates an empty session. Upload documents before asking questions.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	s := h.manager.Create(r.Context())
	writeJSON(r.Context(), w, http.StatusCreated, sessionResponse(s))
}

// Get describes a session.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, sessionResponse(s))
}

// Delete closes a session and releases its index.
//
// swagger:route DELETE /api/sessions/{id} sessions deleteSession
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.manager.Delete(r.Context(), id); err != nil {
		handleServiceError(r.Context(), w, err, "Failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Upload indexes the uploaded documents, replacing the session's previous
// document set and clearing its history.
//
// swagger:route POST /api/sessions/{id}/documents sessions uploadDocuments
//
// Accepts a multipart form with one or more "files" parts (.pdf, .md, .txt).
func (h *SessionHandler) Upload(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "Upload too large", Kind: rag.KindInput.String()})
			return
		}
		logger.WarnContext(ctx, "invalid multipart form", "error", err)
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: "Expected a multipart form with files", Kind: rag.KindInput.String()})
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	headers := r.MultipartForm.File["files"]
	docs := make([]rag.Document, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			handleServiceError(ctx, w, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err), "Failed to read upload")
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			handleServiceError(ctx, w, fmt.Errorf("failed to read upload %s: %w", fh.Filename, err), "Failed to read upload")
			return
		}
		docs = append(docs, rag.Document{Name: fh.Filename, Data: data})
	}

	res, err := s.ProcessDocuments(ctx, docs)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to process documents")
		return
	}
	writeJSON(ctx, w, http.StatusOK, res)
}

// Ask answers a question from the session's documents and conversation.
//
// swagger:route POST /api/sessions/{id}/ask sessions askQuestion
//
// Responses: 200 answer, 400 invalid question, 404 unknown session,
// 409 no documents processed, 429/502/504 external service errors.
func (h *SessionHandler) Ask(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Kind: rag.KindInput.String()})
		return
	}

	res, err := s.Ask(ctx, req.Question)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to answer question")
		return
	}

	sources := make([]SourceResponse, len(res.Sources))
	for i, m := range res.Sources {
		sources[i] = SourceResponse{
			Index:  m.Chunk.Index,
			Offset: m.Chunk.Offset,
			Score:  m.Score,
			Text:   m.Chunk.Text,
		}
	}
	resp := AskResponse{
		Answer:  res.Answer,
		History: res.History,
		Sources: sources,
	}
	if res.StandaloneQuestion != req.Question {
		resp.StandaloneQuestion = res.StandaloneQuestion
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

// History returns the conversation of a session.
//
// swagger:route GET /api/sessions/{id}/history sessions getHistory
func (h *SessionHandler) History(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	history := s.History()
	if history == nil {
		history = []rag.Turn{}
	}
	writeJSON(r.Context(), w, http.StatusOK, HistoryResponse{History: history})
}

// ResetHistory clears the conversation and keeps the indexed documents.
//
// swagger:route DELETE /api/sessions/{id}/history sessions resetHistory
func (h *SessionHandler) ResetHistory(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Reset(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Log returns the persisted turns of a session. Logged turns outlive the session.
//
// swagger:route GET /api/sessions/{id}/log sessions getTurnLog
func (h *SessionHandler) Log(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.turns == nil {
		writeError(w, http.StatusNotFound, ErrorResponse{Error: "Turn log is disabled"})
		return
	}

	turns, err := h.turns.ListTurns(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to read turn log")
		return
	}
	entries := make([]TurnLogEntry, len(turns))
	for i, t := range turns {
		entries[i] = TurnLogEntry{
			Seq:                t.Seq,
			Question:           t.Question,
			StandaloneQuestion: t.StandaloneQuestion,
			Answer:             t.Answer,
			Sources:            t.Sources,
			CreatedAt:          t.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	writeJSON(ctx, w, http.StatusOK, entries)
}
