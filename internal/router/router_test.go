package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/gin-gonic/gin"
	"github.com/opendeepwiki/ragchat/config"
	"github.com/opendeepwiki/ragchat/internal/eventbus"
	"github.com/opendeepwiki/ragchat/internal/handler"
	"github.com/opendeepwiki/ragchat/internal/model"
	"github.com/opendeepwiki/ragchat/internal/pkg/database"
	"github.com/opendeepwiki/ragchat/internal/pkg/llm"
	"github.com/opendeepwiki/ragchat/internal/pkg/llm/llmtest"
	"github.com/opendeepwiki/ragchat/internal/repository"
	"github.com/opendeepwiki/ragchat/internal/service"
	"github.com/opendeepwiki/ragchat/internal/service/ragflow"
	"github.com/opendeepwiki/ragchat/internal/service/retrieval"
	"github.com/opendeepwiki/ragchat/internal/subscriber"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keywordEmbedding(ctx context.Context, text string) ([]float32, error) {
	vec := []float32{float32(strings.Count(text, "매출")), float32(strings.Count(text, "직원")), 0.01}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

func newTestEngine(t *testing.T, answer *llmtest.FakeChatModel) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.InitDB("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	splitter, err := retrieval.NewSplitter(context.Background(), 200, 0)
	require.NoError(t, err)
	store, err := retrieval.NewStore(retrieval.StoreOptions{
		EmbeddingFunc: keywordEmbedding,
		Splitter:      splitter,
		TopK:          3,
	})
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Data.UploadDir = t.TempDir()

	reasoning := llmtest.NewFakeChatModelFunc(func(input []*schema.Message) (string, error) {
		if strings.Contains(llmtest.Prompt(input), "판단:") {
			return "retrieve", nil
		}
		return "문서에 매출이 있다", nil
	})

	sessionRepo := repository.NewSessionRepository(db)
	bus := eventbus.NewChatEventBus()
	subscriber.NewChatEventSubscriber(sessionRepo).Register(bus)
	sessions := service.NewSessionManager(
		sessionRepo,
		repository.NewMessageRepository(db),
		store,
		llm.NewAdapter("reasoning", reasoning, config.ModelConfig{Model: "reasoning", Stream: true}),
		llm.NewAdapter("answer", answer, config.ModelConfig{Model: "answer", Stream: true}),
		bus,
	)
	chat := service.NewChatService(sessions, bus)
	documents := service.NewDocumentService(cfg, store, sessions)

	return Setup(cfg,
		handler.NewSessionHandler(sessions),
		handler.NewDocumentHandler(documents),
		handler.NewChatHandler(chat, sessions),
	)
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func upload(t *testing.T, r http.Handler, sessionID, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+sessionID+"/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, r http.Handler) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var snapshot service.SessionSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
	require.NotEmpty(t, snapshot.ID)
	return snapshot.ID
}

func TestHealthz(t *testing.T) {
	r := newTestEngine(t, llmtest.NewFakeChatModel("답변"))
	w := doJSON(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestChatRequiresDocument(t *testing.T) {
	r := newTestEngine(t, llmtest.NewFakeChatModel("답변"))
	id := createSession(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/chat", gin.H{"query": "매출 알려줘"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), ragflow.RetrieverUnconfiguredWarning)

	w = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/chat/stream", gin.H{"query": "매출 알려줘"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUnknownSession(t *testing.T) {
	r := newTestEngine(t, llmtest.NewFakeChatModel("답변"))

	assert.Equal(t, http.StatusNotFound, doJSON(t, r, http.MethodGet, "/api/sessions/missing", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, r, http.MethodGet, "/api/sessions/missing/messages", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, r, http.MethodPost, "/api/sessions/missing/reset", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, r, http.MethodPost, "/api/sessions/missing/chat", gin.H{"query": "q"}).Code)
	assert.Equal(t, http.StatusNotFound, upload(t, r, "missing", "a.txt", "매출").Code)
}

func TestChatRequestValidation(t *testing.T) {
	r := newTestEngine(t, llmtest.NewFakeChatModel("답변"))
	id := createSession(t, r)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/chat", gin.H{}).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/chat", gin.H{"query": "   "}).Code)
}

func TestChatStreamRejectsBlankQuery(t *testing.T) {
	r := newTestEngine(t, llmtest.NewFakeChatModel("답변"))
	id := createSession(t, r)
	require.Equal(t, http.StatusOK, upload(t, r, id, "report.txt", "2024년 매출은 120억 원이다.").Code)

	w := doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/chat/stream", gin.H{"query": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotContains(t, w.Header().Get("Content-Type"), "text/event-stream")
	assert.Contains(t, w.Body.String(), "error")

	w = doJSON(t, r, http.MethodPost, "/api/sessions/missing/chat/stream", gin.H{"query": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteSession(t *testing.T) {
	r := newTestEngine(t, llmtest.NewFakeChatModel("매출은 120억 원입니다."))
	id := createSession(t, r)
	require.Equal(t, http.StatusOK, upload(t, r, id, "report.txt", "2024년 매출은 120억 원이다.").Code)
	require.Equal(t, http.StatusOK, doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/chat", gin.H{"query": "매출 알려줘"}).Code)

	w := doJSON(t, r, http.MethodDelete, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	assert.Equal(t, http.StatusNotFound, doJSON(t, r, http.MethodGet, "/api/sessions/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, r, http.MethodGet, "/api/sessions/"+id+"/messages", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, r, http.MethodDelete, "/api/sessions/"+id, nil).Code)
}

func TestUploadValidation(t *testing.T) {
	r := newTestEngine(t, llmtest.NewFakeChatModel("답변"))
	id := createSession(t, r)

	assert.Equal(t, http.StatusBadRequest, upload(t, r, id, "image.png", "binary").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, upload(t, r, id, "empty.txt", "  ").Code)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/documents", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadChatAndReset(t *testing.T) {
	r := newTestEngine(t, llmtest.NewFakeChatModel("매출은 120억 원입니다."))
	id := createSession(t, r)

	w := upload(t, r, id, "report.txt", "2024년 매출은 120억 원이다.")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var uploaded service.UploadResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &uploaded))
	assert.Equal(t, 1, uploaded.Chunks)

	w = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/chat", gin.H{"query": "매출 알려줘"})
	require.Equal(t, http.StatusOK, w.Code)
	var result service.TurnResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, ragflow.ModeRetrieve, result.Mode)
	assert.Equal(t, "매출은 120억 원입니다.", result.Answer)
	assert.Equal(t, "문서에 매출이 있다", result.Rationale)
	assert.Len(t, result.Documents, 1)
	assert.Empty(t, result.Error)

	w = doJSON(t, r, http.MethodGet, "/api/sessions/"+id+"/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var messages []model.ChatMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &messages))
	assert.Len(t, messages, 4)

	w = doJSON(t, r, http.MethodGet, "/api/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snapshot service.SessionSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
	assert.Equal(t, model.SessionStatusReady, snapshot.Status)
	assert.Equal(t, 1, snapshot.TurnCount)

	w = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
	assert.Equal(t, model.SessionStatusEmpty, snapshot.Status)
	assert.Equal(t, 0, snapshot.MessageCount)

	w = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/chat", gin.H{"query": "매출 알려줘"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestChatFailureIsRecordedTurn(t *testing.T) {
	r := newTestEngine(t, llmtest.NewFailingChatModel(errors.New("model offline")))
	id := createSession(t, r)
	require.Equal(t, http.StatusOK, upload(t, r, id, "report.txt", "2024년 매출은 120억 원이다.").Code)

	w := doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/chat", gin.H{"query": "매출 알려줘"})
	require.Equal(t, http.StatusOK, w.Code)
	var result service.TurnResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Contains(t, result.Error, "model offline")
	assert.Equal(t, ragflow.StageError, result.Stage)
	require.Len(t, result.Messages, 2)
	assert.True(t, strings.HasPrefix(result.Messages[1].Content, "오류 발생: "))
}

func TestChatStream(t *testing.T) {
	r := newTestEngine(t, llmtest.NewFakeChatModel("매출은 120억 원입니다."))
	server := httptest.NewServer(r)
	defer server.Close()

	id := createSession(t, r)
	require.Equal(t, http.StatusOK, upload(t, r, id, "report.txt", "2024년 매출은 120억 원이다.").Code)

	resp, err := http.Post(server.URL+"/api/sessions/"+id+"/chat/stream", "application/json", strings.NewReader(`{"query":"매출 알려줘"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)
	for _, event := range []string{"event:stage", "event:documents", "event:thinking", "event:answer", "event:done"} {
		assert.Contains(t, text, event)
	}
	assert.NotContains(t, text, "event:error")
	assert.Less(t, strings.Index(text, "event:documents"), strings.Index(text, "event:done"))
}
