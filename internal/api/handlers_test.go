package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"counselgo/internal/config"
	"counselgo/internal/models"
	"counselgo/internal/service/practice"
	"counselgo/internal/storage"
)

type mockGenerator struct {
	replyErr error
}

func (m *mockGenerator) Reply(_ context.Context, personaType string, history []*models.Message) (string, error) {
	if m.replyErr != nil {
		return "", m.replyErr
	}
	last := history[len(history)-1]
	return fmt.Sprintf("[%s] mock reply to %q", personaType, last.Content), nil
}

func newTestServer(t *testing.T) (*gin.Engine, *sql.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: filepath.Join(t.TempDir(), "api_test.db")},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}

	handler := NewHandler(practice.NewService(db, "sqlite3"), &mockGenerator{}, nil)
	router := gin.New()
	handler.RegisterRoutes(router)
	return router, db
}

func doJSONRequest(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, data []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode json: %v", err)
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("unexpected status %d (want %d), body: %s", rec.Code, want, rec.Body.String())
	}
}

func TestHandlersEndToEndFlow(t *testing.T) {
	router, db := newTestServer(t)
	email := "therapist@example.com"

	// Login creates the student on first contact.
	loginResp := doJSONRequest(t, router, http.MethodPost, "/api/students/login", map[string]string{
		"email": email,
		"name":  "Trainee",
	})
	assertStatus(t, loginResp, http.StatusOK)
	var loginBody struct {
		StudentID int64 `json:"student_id"`
	}
	decodeJSON(t, loginResp.Body.Bytes(), &loginBody)
	if loginBody.StudentID <= 0 {
		t.Fatalf("expected positive student id")
	}

	// Start a new conversation.
	startResp := doJSONRequest(t, router, http.MethodPost, "/api/conversation/start", map[string]string{
		"email":        email,
		"persona_type": "jitesh",
	})
	assertStatus(t, startResp, http.StatusCreated)
	var startBody struct {
		SessionID   string `json:"session_id"`
		SessionName string `json:"session_name"`
	}
	decodeJSON(t, startResp.Body.Bytes(), &startBody)
	if startBody.SessionID == "" {
		t.Fatalf("expected session id")
	}
	if startBody.SessionName != "Session-1" {
		t.Fatalf("expected Session-1, got %s", startBody.SessionName)
	}

	// Send a message; persona replies and both turns are persisted.
	msgResp := doJSONRequest(t, router, http.MethodPost, "/api/conversation/msg", map[string]string{
		"session_id": startBody.SessionID,
		"email":      email,
		"content":    "Hello Jitesh, how are you today?",
	})
	assertStatus(t, msgResp, http.StatusOK)
	var msgBody struct {
		UserMessage struct {
			SequenceNumber int64 `json:"sequence_number"`
		} `json:"user_message"`
		ClientMessage struct {
			SequenceNumber int64  `json:"sequence_number"`
			Content        string `json:"content"`
		} `json:"client_message"`
	}
	decodeJSON(t, msgResp.Body.Bytes(), &msgBody)
	if msgBody.UserMessage.SequenceNumber != 1 || msgBody.ClientMessage.SequenceNumber != 2 {
		t.Fatalf("unexpected sequence numbers: %+v", msgBody)
	}
	if msgBody.ClientMessage.Content == "" {
		t.Fatalf("expected persona reply content")
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM messages WHERE session_id = ?`, startBody.SessionID).Scan(&count); err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 stored messages, got %d", count)
	}

	// History reflects both turns in order.
	histResp := doJSONRequest(t, router, http.MethodGet,
		fmt.Sprintf("/api/conversation/sessions/%s/messages", startBody.SessionID), nil)
	assertStatus(t, histResp, http.StatusOK)
	var histBody struct {
		History []models.HistoryEntry `json:"history"`
	}
	decodeJSON(t, histResp.Body.Bytes(), &histBody)
	if len(histBody.History) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(histBody.History))
	}
	if histBody.History[0].Role != "user" || histBody.History[1].Role != "assistant" {
		t.Fatalf("unexpected history roles: %+v", histBody.History)
	}

	// Sidebar list shows the session with its derived name and count.
	listResp := doJSONRequest(t, router, http.MethodGet, "/api/conversation/sessions?email="+email, nil)
	assertStatus(t, listResp, http.StatusOK)
	var listBody struct {
		SessionList []models.SessionSummary `json:"session_list"`
	}
	decodeJSON(t, listResp.Body.Bytes(), &listBody)
	if len(listBody.SessionList) != 1 {
		t.Fatalf("expected 1 session, got %d", len(listBody.SessionList))
	}
	if listBody.SessionList[0].SessionName != "Session-1" || listBody.SessionList[0].MessageCount != 2 {
		t.Fatalf("unexpected summary: %+v", listBody.SessionList[0])
	}

	// Single-session name lookup agrees with creation and listing.
	nameResp := doJSONRequest(t, router, http.MethodGet,
		fmt.Sprintf("/api/conversation/sessions/%s/name?email=%s", startBody.SessionID, email), nil)
	assertStatus(t, nameResp, http.StatusOK)
	var nameBody struct {
		SessionName string `json:"session_name"`
	}
	decodeJSON(t, nameResp.Body.Bytes(), &nameBody)
	if nameBody.SessionName != "Session-1" {
		t.Fatalf("expected Session-1, got %s", nameBody.SessionName)
	}
}

func TestSendMessageUnknownSession(t *testing.T) {
	router, _ := newTestServer(t)
	resp := doJSONRequest(t, router, http.MethodPost, "/api/conversation/msg", map[string]string{
		"session_id": "11111111-2222-3333-4444-555555555555",
		"content":    "anyone there?",
	})
	assertStatus(t, resp, http.StatusNotFound)
}

func TestStartConversationValidation(t *testing.T) {
	router, _ := newTestServer(t)

	// Unknown persona is rejected before any storage access.
	resp := doJSONRequest(t, router, http.MethodPost, "/api/conversation/start", map[string]string{
		"email":        "someone@example.com",
		"persona_type": "nonexistent",
	})
	assertStatus(t, resp, http.StatusBadRequest)

	// Unknown student yields not-found, not an invented row.
	resp = doJSONRequest(t, router, http.MethodPost, "/api/conversation/start", map[string]string{
		"email":        "unregistered@example.com",
		"persona_type": "jitesh",
	})
	assertStatus(t, resp, http.StatusNotFound)
}

func TestLoginRequiresEmail(t *testing.T) {
	router, _ := newTestServer(t)
	resp := doJSONRequest(t, router, http.MethodPost, "/api/students/login", map[string]string{
		"email": "   ",
		"name":  "No Email",
	})
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestSessionNameNotFound(t *testing.T) {
	router, _ := newTestServer(t)
	resp := doJSONRequest(t, router, http.MethodGet,
		"/api/conversation/sessions/deadbeef-0000-0000-0000-000000000000/name?email=missing@example.com", nil)
	assertStatus(t, resp, http.StatusNotFound)
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestServer(t)
	resp := doJSONRequest(t, router, http.MethodGet, "/api/health", nil)
	assertStatus(t, resp, http.StatusOK)
}

func TestSessionListEmptyForUnknownEmail(t *testing.T) {
	router, _ := newTestServer(t)
	resp := doJSONRequest(t, router, http.MethodGet, "/api/conversation/sessions?email=ghost@example.com", nil)
	assertStatus(t, resp, http.StatusOK)
	var body struct {
		SessionList []models.SessionSummary `json:"session_list"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if len(body.SessionList) != 0 {
		t.Fatalf("expected empty session list, got %d", len(body.SessionList))
	}
}

func TestStorageFailureIsServerError(t *testing.T) {
	router, db := newTestServer(t)

	// Seed a student and session while the database is still up.
	resp := doJSONRequest(t, router, http.MethodPost, "/api/students/login", map[string]string{
		"email": "outage@example.com",
		"name":  "Outage",
	})
	assertStatus(t, resp, http.StatusOK)
	resp = doJSONRequest(t, router, http.MethodPost, "/api/conversation/start", map[string]string{
		"email":        "outage@example.com",
		"persona_type": "jitesh",
	})
	assertStatus(t, resp, http.StatusCreated)
	var started struct {
		SessionID string `json:"session_id"`
	}
	decodeJSON(t, resp.Body.Bytes(), &started)

	if err := db.Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}

	// With the backend down, well-formed requests must not look like
	// caller mistakes.
	resp = doJSONRequest(t, router, http.MethodPost, "/api/students/login", map[string]string{
		"email": "outage@example.com",
		"name":  "Outage",
	})
	assertStatus(t, resp, http.StatusInternalServerError)

	resp = doJSONRequest(t, router, http.MethodPost, "/api/conversation/msg", map[string]string{
		"session_id": started.SessionID,
		"content":    "still there?",
	})
	assertStatus(t, resp, http.StatusInternalServerError)

	resp = doJSONRequest(t, router, http.MethodGet,
		"/api/conversation/sessions/"+started.SessionID+"/messages", nil)
	assertStatus(t, resp, http.StatusInternalServerError)
}
