package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/mock/gomock"

	"docchat/internal/chunker"
	"docchat/internal/rag"
	"docchat/internal/rag/mocks"
	"docchat/internal/service"
	"docchat/internal/storage"
	storagemocks "docchat/internal/storage/mocks"
	"docchat/internal/vectorindex"
)

// wordEmbed maps each text to counts of a few keywords plus a constant component.
func wordEmbed(_ context.Context, texts []string) ([]rag.Vector, error) {
	words := []string{"sky", "blue", "grass", "green"}
	vecs := make([]rag.Vector, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		v := make(rag.Vector, len(words)+1)
		for j, w := range words {
			v[j] = float32(strings.Count(lower, w))
		}
		v[len(words)] = 0.1
		vecs[i] = v
	}
	return vecs, nil
}

type testServer struct {
	router  http.Handler
	manager *service.Manager
	chat    *mocks.MockChatModel
	turns   *storagemocks.MockTurnStore
}

func newTestServer(t *testing.T, withTurns bool) *testServer {
	t.Helper()
	ctrl := gomock.NewController(t)

	extractor := mocks.NewMockTextExtractor(ctrl)
	extractor.EXPECT().ExtractText(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, doc rag.Document) (string, error) {
			return string(doc.Data), nil
		}).AnyTimes()
	embedder := mocks.NewMockEmbedder(ctrl)
	embedder.EXPECT().Embed(gomock.Any(), gomock.Any()).DoAndReturn(wordEmbed).AnyTimes()

	splitter, err := chunker.New(20, 5)
	if err != nil {
		t.Fatalf("chunker.New() error = %v", err)
	}

	ts := &testServer{chat: mocks.NewMockChatModel(ctrl)}
	deps := service.Deps{
		Extractor: extractor,
		Splitter:  splitter,
		Embedder:  embedder,
		Builder:   vectorindex.NewMemoryBuilder(),
		Chat:      ts.chat,
	}
	var turns storage.TurnStore
	if withTurns {
		ts.turns = storagemocks.NewMockTurnStore(ctrl)
		turns = ts.turns
	}
	ts.manager = service.NewManager(deps, service.Options{K: 2})
	h := NewSessionHandler(ts.manager, turns)

	r := chi.NewRouter()
	r.Post("/api/sessions", h.Create)
	r.Route("/api/sessions/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
		r.Post("/documents", h.Upload)
		r.Post("/ask", h.Ask)
		r.Get("/history", h.History)
		r.Delete("/history", h.ResetHistory)
		r.Get("/log", h.Log)
	})
	ts.router = r
	return ts
}

func (ts *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) createSession(t *testing.T) string {
	t.Helper()
	w := ts.do(t, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("create session status = %d, want %d", w.Code, http.StatusCreated)
	}
	var resp SessionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp.ID
}

func uploadRequest(t *testing.T, id string, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func askRequest(id, question string) *http.Request {
	body, _ := json.Marshal(AskRequest{Question: question})
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/ask", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestSessionHandler_Create(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(t, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	var resp SessionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID == "" || resp.State != "uninitialized" || resp.CreatedAt == "" {
		t.Errorf("response = %+v", resp)
	}
	if ts.manager.Len() != 1 {
		t.Errorf("manager.Len() = %d, want 1", ts.manager.Len())
	}
}

func TestSessionHandler_UploadAndAsk(t *testing.T) {
	ts := newTestServer(t, false)
	id := ts.createSession(t)

	w := ts.do(t, askRequest(id, "What color is the sky?"))
	if w.Code != http.StatusConflict {
		t.Errorf("ask before upload status = %d, want %d", w.Code, http.StatusConflict)
	}

	w = ts.do(t, uploadRequest(t, id, map[string]string{"sky.txt": "The sky is blue. Grass is green."}))
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var processed service.ProcessResult
	if err := json.NewDecoder(w.Body).Decode(&processed); err != nil {
		t.Fatalf("failed to decode upload response: %v", err)
	}
	if processed.Documents != 1 || processed.Chunks < 2 || processed.Preview == "" {
		t.Errorf("upload response = %+v", processed)
	}

	ts.chat.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("The sky is blue.", nil)
	w = ts.do(t, askRequest(id, "What color is the sky?"))
	if w.Code != http.StatusOK {
		t.Fatalf("ask status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var answer AskResponse
	if err := json.NewDecoder(w.Body).Decode(&answer); err != nil {
		t.Fatalf("failed to decode ask response: %v", err)
	}
	if answer.Answer != "The sky is blue." {
		t.Errorf("answer = %q", answer.Answer)
	}
	if len(answer.History) != 2 || answer.History[0].Role != rag.RoleUser || answer.History[1].Role != rag.RoleAssistant {
		t.Errorf("history = %+v, want user and assistant turns", answer.History)
	}
	if len(answer.Sources) == 0 || !strings.Contains(answer.Sources[0].Text, "sky") {
		t.Errorf("sources = %+v, want the sky chunk first", answer.Sources)
	}
	if answer.StandaloneQuestion != "" {
		t.Errorf("standalone question = %q, want it omitted", answer.StandaloneQuestion)
	}

	w = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil))
	var session SessionResponse
	if err := json.NewDecoder(w.Body).Decode(&session); err != nil {
		t.Fatalf("failed to decode session response: %v", err)
	}
	if session.State != "ready" {
		t.Errorf("state = %q, want ready", session.State)
	}
}

func TestSessionHandler_Upload_Errors(t *testing.T) {
	tests := []struct {
		name       string
		request    func(t *testing.T, id string) *http.Request
		wantStatus int
	}{
		{
			name: "no files",
			request: func(t *testing.T, id string) *http.Request {
				return uploadRequest(t, id, nil)
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "only blank files",
			request: func(t *testing.T, id string) *http.Request {
				return uploadRequest(t, id, map[string]string{"empty.txt": "  \n"})
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "not a multipart form",
			request: func(t *testing.T, id string) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/documents", strings.NewReader("{}"))
				req.Header.Set("Content-Type", "application/json")
				return req
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "unknown session",
			request: func(t *testing.T, id string) *http.Request {
				return uploadRequest(t, "missing", map[string]string{"sky.txt": "The sky is blue."})
			},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, false)
			id := ts.createSession(t)

			w := ts.do(t, tt.request(t, id))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestSessionHandler_Ask_Errors(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(ts *testServer)
		request    func(id string) *http.Request
		wantStatus int
	}{
		{
			name:  "invalid body",
			setup: func(ts *testServer) {},
			request: func(id string) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/ask", strings.NewReader("{"))
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "blank question",
			setup:      func(ts *testServer) {},
			request:    func(id string) *http.Request { return askRequest(id, "  ") },
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "generation rate limited",
			setup: func(ts *testServer) {
				ts.chat.EXPECT().Complete(gomock.Any(), gomock.Any()).
					Return("", &rag.ServiceError{Service: rag.ServiceGeneration, Reason: rag.ReasonRateLimit, StatusCode: 429})
			},
			request:    func(id string) *http.Request { return askRequest(id, "What color is the sky?") },
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name: "generation auth failure",
			setup: func(ts *testServer) {
				ts.chat.EXPECT().Complete(gomock.Any(), gomock.Any()).
					Return("", &rag.ServiceError{Service: rag.ServiceGeneration, Reason: rag.ReasonAuth, StatusCode: 401})
			},
			request:    func(id string) *http.Request { return askRequest(id, "What color is the sky?") },
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "unknown session",
			setup:      func(ts *testServer) {},
			request:    func(id string) *http.Request { return askRequest("missing", "What color is the sky?") },
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, false)
			id := ts.createSession(t)
			if w := ts.do(t, uploadRequest(t, id, map[string]string{"sky.txt": "The sky is blue. Grass is green."})); w.Code != http.StatusOK {
				t.Fatalf("upload status = %d", w.Code)
			}
			tt.setup(ts)

			w := ts.do(t, tt.request(id))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}

			s, err := ts.manager.Get(id)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if len(s.History()) != 0 {
				t.Errorf("history = %d turns after a failed ask, want 0", len(s.History()))
			}
		})
	}
}

func TestSessionHandler_HistoryAndDelete(t *testing.T) {
	ts := newTestServer(t, false)
	id := ts.createSession(t)
	if w := ts.do(t, uploadRequest(t, id, map[string]string{"sky.txt": "The sky is blue."})); w.Code != http.StatusOK {
		t.Fatalf("upload status = %d", w.Code)
	}
	ts.chat.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("Blue.", nil)
	if w := ts.do(t, askRequest(id, "What color is the sky?")); w.Code != http.StatusOK {
		t.Fatalf("ask status = %d", w.Code)
	}

	history := func() []rag.Turn {
		w := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/history", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("history status = %d", w.Code)
		}
		var resp HistoryResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode history: %v", err)
		}
		if resp.History == nil {
			t.Fatal("history should encode as an array")
		}
		return resp.History
	}

	if got := history(); len(got) != 2 {
		t.Errorf("history = %d turns, want 2", len(got))
	}

	w := ts.do(t, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+id+"/history", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("reset status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := history(); len(got) != 0 {
		t.Errorf("history = %d turns after reset, want 0", len(got))
	}

	w = ts.do(t, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+id, nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want %d", w.Code, http.StatusNoContent)
	}
	w = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/history", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("history after delete status = %d, want %d", w.Code, http.StatusNotFound)
	}
	w = ts.do(t, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+id, nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestSessionHandler_Log(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		ts := newTestServer(t, false)
		w := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/abc/log", nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("lists turns", func(t *testing.T) {
		ts := newTestServer(t, true)
		created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		ts.turns.EXPECT().ListTurns(gomock.Any(), "abc").Return([]*storage.TurnRecord{
			{SessionID: "abc", Seq: 1, Question: "Q1", StandaloneQuestion: "Q1", Answer: "A1", Sources: 2, CreatedAt: created},
			{SessionID: "abc", Seq: 2, Question: "Q2", StandaloneQuestion: "Q2?", Answer: "A2", Sources: 1, CreatedAt: created},
		}, nil)

		w := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/abc/log", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		var entries []TurnLogEntry
		if err := json.NewDecoder(w.Body).Decode(&entries); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(entries) != 2 || entries[1].Seq != 2 || entries[1].StandaloneQuestion != "Q2?" {
			t.Errorf("entries = %+v", entries)
		}
		if entries[0].CreatedAt != "2024-05-01T12:00:00Z" {
			t.Errorf("created_at = %q", entries[0].CreatedAt)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		ts := newTestServer(t, true)
		ts.turns.EXPECT().ListTurns(gomock.Any(), "abc").Return(nil, errors.New("database is locked"))

		w := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/abc/log", nil))
		if w.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
		}
	})
}
