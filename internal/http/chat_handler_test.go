package http

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"grounded-chat/internal/agent"
	"grounded-chat/internal/domain"
	"grounded-chat/internal/repository"
	"grounded-chat/internal/service"
)

func newTestRouter(t *testing.T, mock *agent.MockClient) (*gin.Engine, *service.ConversationService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	repo := repository.NewMemorySessionRepository()
	attachments := service.NewAttachmentService()
	conversations := service.NewConversationService(logger, repo, mock, attachments)
	handler := NewChatHandler(logger, conversations, attachments)

	return NewRouter(logger, handler), conversations
}

func performRequest(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func createSession(t *testing.T, r http.Handler) string {
	t.Helper()
	rec := performRequest(r, http.MethodPost, "/session", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: expected 201, got %d", rec.Code)
	}
	var resp struct {
		Session  domain.Session   `json:"session"`
		Messages []domain.Message `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Messages) != 1 || resp.Messages[0].Content != service.GreetingText {
		t.Fatalf("expected greeting in new session, got %+v", resp.Messages)
	}
	return resp.Session.ID
}

func TestChatHandlerCreateSession(t *testing.T) {
	router, _ := newTestRouter(t, &agent.MockClient{})
	id := createSession(t, router)
	if id == "" {
		t.Fatalf("expected non-empty session id")
	}
}

func TestChatHandlerGetHistory_UnknownSessionEmpty(t *testing.T) {
	router, _ := newTestRouter(t, &agent.MockClient{})

	rec := performRequest(router, http.MethodGet, "/session/unknown/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Messages) != 0 {
		t.Fatalf("expected empty history, got %d", len(resp.Messages))
	}
}

func TestChatHandlerPostMessage_StreamsSnapshots(t *testing.T) {
	mock := &agent.MockClient{
		Snapshots: []agent.Snapshot{
			{Text: "Hel"},
			{Text: "Hello World", Citations: []domain.GroundingChunk{{URI: "https://example.com", Title: "Example"}}},
		},
	}
	router, _ := newTestRouter(t, mock)
	id := createSession(t, router)

	rec := performRequest(router, http.MethodPost, "/session/"+id+"/message", gin.H{"content": "ping"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("expected SSE content type, got %q", ct)
	}

	body := rec.Body.String()
	if strings.Count(body, "event:snapshot") != 2 {
		t.Fatalf("expected 2 snapshot events, got body:\n%s", body)
	}
	if !strings.Contains(body, "event:done") {
		t.Fatalf("expected done event, got body:\n%s", body)
	}
	if !strings.Contains(body, "Hello World") || !strings.Contains(body, "https://example.com") {
		t.Fatalf("expected final text and citation in stream, got body:\n%s", body)
	}

	histRec := performRequest(router, http.MethodGet, "/session/"+id+"/history", nil)
	var resp struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := json.Unmarshal(histRec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(resp.Messages) != 3 {
		t.Fatalf("expected greeting + user + assistant, got %d", len(resp.Messages))
	}
}

func TestChatHandlerPostMessage_EmptyTurnRejected(t *testing.T) {
	router, _ := newTestRouter(t, &agent.MockClient{})
	id := createSession(t, router)

	rec := performRequest(router, http.MethodPost, "/session/"+id+"/message", gin.H{"content": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestChatHandlerPostMessage_ProviderFailure(t *testing.T) {
	mock := &agent.MockClient{SendErr: http.ErrHandlerTimeout}
	router, conversations := newTestRouter(t, mock)
	id := createSession(t, router)

	rec := performRequest(router, http.MethodPost, "/session/"+id+"/message", gin.H{"content": "ping"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 stream, got %d", rec.Code)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "event:error") {
		t.Fatalf("expected error event, got body:\n%s", body)
	}
	if !strings.Contains(body, service.ErrorNotice) {
		t.Fatalf("expected fixed error notice in stream, got body:\n%s", body)
	}
	if st := conversations.Status(id); st != domain.StatusError {
		t.Fatalf("expected error status, got %s", st)
	}
}

func TestChatHandlerStageAttachment_DataURI(t *testing.T) {
	router, _ := newTestRouter(t, &agent.MockClient{})
	id := createSession(t, router)

	payload := base64.StdEncoding.EncodeToString([]byte("imagen"))
	rec := performRequest(router, http.MethodPost, "/session/"+id+"/attachment", gin.H{
		"data": "data:image/png;base64," + payload,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestChatHandlerStageAttachment_UnsupportedType(t *testing.T) {
	router, _ := newTestRouter(t, &agent.MockClient{})
	id := createSession(t, router)

	rec := performRequest(router, http.MethodPost, "/session/"+id+"/attachment", gin.H{
		"data":      base64.StdEncoding.EncodeToString([]byte("documento")),
		"mime_type": "application/pdf",
	})
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rec.Code)
	}
}

func TestChatHandlerRemoveAttachment(t *testing.T) {
	router, _ := newTestRouter(t, &agent.MockClient{})
	id := createSession(t, router)

	rec := performRequest(router, http.MethodDelete, "/session/"+id+"/attachment", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestChatHandlerResetSession(t *testing.T) {
	mock := &agent.MockClient{Snapshots: []agent.Snapshot{{Text: "respuesta"}}}
	router, _ := newTestRouter(t, mock)
	id := createSession(t, router)

	performRequest(router, http.MethodPost, "/session/"+id+"/message", gin.H{"content": "hola"})

	rec := performRequest(router, http.MethodPost, "/session/"+id+"/reset", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var resp struct {
		Session  domain.Session   `json:"session"`
		Messages []domain.Message `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Session.ID == id {
		t.Fatalf("expected a fresh session id")
	}
	if len(resp.Messages) != 1 || resp.Messages[0].Content != service.GreetingText {
		t.Fatalf("expected exactly one greeting, got %+v", resp.Messages)
	}

	oldRec := performRequest(router, http.MethodGet, "/session/"+id+"/history", nil)
	var oldResp struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := json.Unmarshal(oldRec.Body.Bytes(), &oldResp); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(oldResp.Messages) != 0 {
		t.Fatalf("expected old session cleared, got %d messages", len(oldResp.Messages))
	}
}
