package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"medibot/internal/bot"
	"medibot/internal/domain"
	"medibot/internal/service"
)

type mockSessionRepo struct {
	sessions map[string]domain.Session
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[string]domain.Session)}
}

func (m *mockSessionRepo) Create(_ context.Context, session domain.Session) error {
	m.sessions[session.ID] = session
	return nil
}

func (m *mockSessionRepo) GetByID(_ context.Context, id string) (domain.Session, error) {
	session, ok := m.sessions[id]
	if !ok {
		return domain.Session{}, pgx.ErrNoRows
	}
	return session, nil
}

func (m *mockSessionRepo) UpdateTitle(_ context.Context, id, title string) (domain.Session, error) {
	session, ok := m.sessions[id]
	if !ok {
		return domain.Session{}, pgx.ErrNoRows
	}
	session.Title = title
	m.sessions[id] = session
	return session, nil
}

func (m *mockSessionRepo) ListByUserID(_ context.Context, userID string) ([]domain.Session, error) {
	var out []domain.Session
	for _, session := range m.sessions {
		if session.UserID == userID {
			out = append(out, session)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockSessionRepo) Delete(_ context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

type mockMessageRepo struct {
	messages []domain.Message
}

func (m *mockMessageRepo) Create(_ context.Context, message domain.Message) error {
	m.messages = append(m.messages, message)
	return nil
}

func (m *mockMessageRepo) ListBySessionID(_ context.Context, sessionID string) ([]domain.Message, error) {
	var out []domain.Message
	for _, msg := range m.messages {
		if msg.SessionID == sessionID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *mockMessageRepo) ListByUserID(_ context.Context, userID string) ([]domain.Message, error) {
	var out []domain.Message
	for _, msg := range m.messages {
		if msg.UserID == userID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *mockMessageRepo) DeleteBySessionID(_ context.Context, sessionID string) error {
	kept := m.messages[:0]
	for _, msg := range m.messages {
		if msg.SessionID != sessionID {
			kept = append(kept, msg)
		}
	}
	m.messages = kept
	return nil
}

type chatTestEnv struct {
	router   *gin.Engine
	sessions *mockSessionRepo
	messages *mockMessageRepo
	token    string
}

func setupChatRouter(t *testing.T) *chatTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sessions := newMockSessionRepo()
	messages := &mockMessageRepo{}
	chatSvc := service.NewChatService(zap.NewNop(), sessions, messages, &bot.MockResponder{Response: "ok"})
	jwtSvc := newJWTForTests()
	h := NewChatHandler(zap.NewNop(), chatSvc)

	r := gin.New()
	chat := r.Group("/api/chat")
	chat.Use(JWTAuthMiddleware(jwtSvc))
	chat.POST("/startSession", h.StartSession)
	chat.POST("/save", h.SaveMessage)
	chat.PUT("/session/:sessionId", h.RenameSession)
	chat.GET("/sessions/user/:userId", h.ListSessions)
	chat.GET("/messages/:sessionId", h.ListMessages)
	chat.DELETE("/session/:sessionId", h.DeleteSession)
	chat.GET("/history/:userId", h.History)

	pair, err := jwtSvc.GeneratePair(domain.User{ID: uuid.NewString(), Name: "alice", Verified: true})
	if err != nil {
		t.Fatalf("generate tokens: %v", err)
	}

	return &chatTestEnv{router: r, sessions: sessions, messages: messages, token: pair.AccessToken}
}

func (e *chatTestEnv) request(method, path string, body any) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.token)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestChatRoutes_RequireToken(t *testing.T) {
	env := setupChatRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/chat/startSession", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 without token, got %d", rec.Code)
	}
}

func TestChatHandlerStartSession(t *testing.T) {
	env := setupChatRouter(t)
	userID := uuid.NewString()

	rec := env.request(http.MethodPost, "/api/chat/startSession", map[string]string{"userId": userID})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var session domain.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.Title != domain.DefaultSessionTitle || session.UserID != userID {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestChatHandlerStartSession_InvalidUserID(t *testing.T) {
	env := setupChatRouter(t)

	rec := env.request(http.MethodPost, "/api/chat/startSession", map[string]string{"userId": "nope"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error"] != "Invalid or missing userId" {
		t.Fatalf("unexpected error message: %q", body["error"])
	}
}

func TestChatHandlerSaveMessage(t *testing.T) {
	env := setupChatRouter(t)
	userID := uuid.NewString()
	sessionID := uuid.NewString()

	rec := env.request(http.MethodPost, "/api/chat/save", map[string]string{
		"userId":    userID,
		"sessionId": sessionID,
		"message":   "hello",
		"sender":    domain.SenderUser,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["message"] != "Saved" {
		t.Fatalf("unexpected response: %+v", body)
	}
	if len(env.messages.messages) != 1 {
		t.Fatalf("expected message persisted")
	}
}

func TestChatHandlerSaveMessage_MissingFields(t *testing.T) {
	env := setupChatRouter(t)

	rec := env.request(http.MethodPost, "/api/chat/save", map[string]string{
		"userId":    uuid.NewString(),
		"sessionId": uuid.NewString(),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error"] != "Message and sender are required" {
		t.Fatalf("unexpected error message: %q", body["error"])
	}
}

func TestChatHandlerRenameSession_NotFound(t *testing.T) {
	env := setupChatRouter(t)

	rec := env.request(http.MethodPut, "/api/chat/session/"+uuid.NewString(), map[string]string{"title": "new"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestChatHandlerListSessions_EmptyIsArray(t *testing.T) {
	env := setupChatRouter(t)

	rec := env.request(http.MethodGet, "/api/chat/sessions/user/"+uuid.NewString(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if rec.Body.String() != "[]" {
		t.Fatalf("expected empty JSON array, got %s", rec.Body.String())
	}
}

func TestChatHandlerDeleteSession(t *testing.T) {
	env := setupChatRouter(t)
	userID := uuid.NewString()

	rec := env.request(http.MethodPost, "/api/chat/startSession", map[string]string{"userId": userID, "title": "bye"})
	if rec.Code != http.StatusOK {
		t.Fatalf("start session failed: %d", rec.Code)
	}
	var session domain.Session
	_ = json.Unmarshal(rec.Body.Bytes(), &session)

	rec = env.request(http.MethodPost, "/api/chat/save", map[string]string{
		"userId":    userID,
		"sessionId": session.ID,
		"message":   "hello",
		"sender":    domain.SenderUser,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("save message failed: %d", rec.Code)
	}

	rec = env.request(http.MethodDelete, "/api/chat/session/"+session.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["message"] != "Deleted session" {
		t.Fatalf("unexpected response: %+v", body)
	}
	if len(env.messages.messages) != 0 {
		t.Fatalf("expected session messages removed")
	}
	if len(env.sessions.sessions) != 0 {
		t.Fatalf("expected session removed")
	}
}

func TestChatHandlerHistory(t *testing.T) {
	env := setupChatRouter(t)
	userID := uuid.NewString()
	sessionID := uuid.NewString()

	for _, m := range []struct{ body, sender string }{
		{"hi", domain.SenderUser},
		{"hello!", domain.SenderBot},
	} {
		rec := env.request(http.MethodPost, "/api/chat/save", map[string]string{
			"userId":    userID,
			"sessionId": sessionID,
			"message":   m.body,
			"sender":    m.sender,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("save failed: %d", rec.Code)
		}
	}

	rec := env.request(http.MethodGet, "/api/chat/history/"+userID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var history []domain.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 2 || history[0].Body != "hi" {
		t.Fatalf("unexpected history: %+v", history)
	}
}
