package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemini-chat/internal/chat"
	"gemini-chat/internal/models"
	"gemini-chat/internal/services"
)

const (
	testTimeout = 2 * time.Second
	testTick    = 10 * time.Millisecond
)

type stubSession struct {
	reply string
	err   error
	gate  chan struct{}
}

func (s *stubSession) SendMessage(ctx context.Context, text string) (string, error) {
	if s.gate != nil {
		<-s.gate
	}
	return s.reply, s.err
}

type stubClient struct {
	session *stubSession
}

func (c *stubClient) StartChat(ctx context.Context, params models.GenerationParams) (services.ChatSession, error) {
	return c.session, nil
}

func (c *stubClient) Close() error { return nil }

func newTestController(t *testing.T, apiKey string, session *stubSession) *chat.Controller {
	t.Helper()
	factory := func(ctx context.Context, key string) (services.ChatClient, error) {
		return &stubClient{session: session}, nil
	}
	c := chat.NewController(apiKey, factory, models.DefaultGenerationParams())
	c.Initialize(context.Background())
	t.Cleanup(c.Close)
	return c
}

func doJSON(t *testing.T, h http.HandlerFunc, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-1")
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decodeSnapshot(t *testing.T, rr *httptest.ResponseRecorder) models.ChatSnapshot {
	t.Helper()
	var snap models.ChatSnapshot
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&snap))
	return snap
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.APIError {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp.Error
}

func TestChatHandler_SendMessage_Success(t *testing.T) {
	h := NewChatHandler(newTestController(t, "key", &stubSession{reply: "Hi there!"}))

	rr := doJSON(t, h.SendMessage, http.MethodPost, "/api/v1/chat/messages", `{"message":"Hello"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	snap := decodeSnapshot(t, rr)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "Hello", snap.Messages[0].Content)
	assert.Equal(t, "Hi there!", snap.Messages[1].Content)
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Error)
}

func TestChatHandler_SendMessage_Errors(t *testing.T) {
	tests := []struct {
		name         string
		apiKey       string
		session      *stubSession
		body         string
		expectedCode int
		expectedErr  string
		expectedMsg  string
	}{
		{"malformed body", "key", &stubSession{}, `{"message":`, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body"},
		{"whitespace message", "key", &stubSession{}, `{"message":"   "}`, http.StatusBadRequest, "VALIDATION_ERROR", "Message is required"},
		{"missing api key", "", &stubSession{}, `{"message":"Hello"}`, http.StatusServiceUnavailable, "CHAT_UNAVAILABLE",
			"Gemini API key is missing. Please set GEMINI_API_KEY in your .env file."},
		{"quota exceeded", "key", &stubSession{err: errors.New("quota exceeded")}, `{"message":"Hello"}`, http.StatusBadGateway, "AI_ERROR",
			"Error: quota exceeded"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewChatHandler(newTestController(t, tc.apiKey, tc.session))

			rr := doJSON(t, h.SendMessage, http.MethodPost, "/api/v1/chat/messages", tc.body)

			assert.Equal(t, tc.expectedCode, rr.Code)
			apiErr := decodeError(t, rr)
			assert.Equal(t, tc.expectedErr, apiErr.Code)
			assert.Equal(t, tc.expectedMsg, apiErr.Message)
			assert.Equal(t, "req-1", apiErr.RequestID)
		})
	}
}

func TestChatHandler_SendMessage_FailureKeepsUserMessage(t *testing.T) {
	c := newTestController(t, "key", &stubSession{err: errors.New("quota exceeded")})
	h := NewChatHandler(c)

	doJSON(t, h.SendMessage, http.MethodPost, "/api/v1/chat/messages", `{"message":"Hello"}`)

	rr := doJSON(t, h.GetState, http.MethodGet, "/api/v1/chat", "")
	snap := decodeSnapshot(t, rr)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, models.RoleUser, snap.Messages[0].Role)
	assert.Equal(t, "Error: quota exceeded", snap.Error)
	assert.False(t, snap.Loading)
}

func TestChatHandler_SendMessage_Conflict(t *testing.T) {
	session := &stubSession{reply: "done", gate: make(chan struct{})}
	c := newTestController(t, "key", session)
	h := NewChatHandler(c)

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		done <- doJSON(t, h.SendMessage, http.MethodPost, "/api/v1/chat/messages", `{"message":"first"}`)
	}()

	require.Eventually(t, func() bool { return c.Snapshot().Loading }, testTimeout, testTick)

	rr := doJSON(t, h.SendMessage, http.MethodPost, "/api/v1/chat/messages", `{"message":"second"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "EXCHANGE_IN_FLIGHT", decodeError(t, rr).Code)
	assert.Len(t, c.Snapshot().Messages, 1)

	close(session.gate)
	first := <-done
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Len(t, c.Snapshot().Messages, 2)
}

func TestChatHandler_SetTemperature(t *testing.T) {
	c := newTestController(t, "key", &stubSession{reply: "ok"})
	h := NewChatHandler(c)
	doJSON(t, h.SendMessage, http.MethodPost, "/api/v1/chat/messages", `{"message":"Hello"}`)

	rr := doJSON(t, h.SetTemperature, http.MethodPut, "/api/v1/chat/temperature", `{"temperature":0.2}`)

	require.Equal(t, http.StatusOK, rr.Code)
	snap := decodeSnapshot(t, rr)
	assert.Equal(t, 0.2, snap.Temperature)
	assert.Equal(t, "More Focused", snap.TemperatureLabel)
	assert.Equal(t, 2, snap.Epoch)
	assert.Len(t, snap.Messages, 2)
	assert.True(t, snap.Ready)
}

func TestChatHandler_SetTemperature_Invalid(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		expectedMsg string
	}{
		{"missing", `{}`, "Temperature is required"},
		{"above range", `{"temperature":1.5}`, "Temperature must be between 0 and 1"},
		{"below range", `{"temperature":-1}`, "Temperature must be between 0 and 1"},
		{"not a number", `{"temperature":"hot"}`, "Invalid request body"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewChatHandler(newTestController(t, "key", &stubSession{}))

			rr := doJSON(t, h.SetTemperature, http.MethodPut, "/api/v1/chat/temperature", tc.body)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tc.expectedMsg, decodeError(t, rr).Message)
		})
	}
}

func TestChatHandler_SetTemperature_MissingKeyReportsState(t *testing.T) {
	h := NewChatHandler(newTestController(t, "", &stubSession{}))

	rr := doJSON(t, h.SetTemperature, http.MethodPut, "/api/v1/chat/temperature", `{"temperature":0.5}`)

	require.Equal(t, http.StatusOK, rr.Code)
	snap := decodeSnapshot(t, rr)
	assert.False(t, snap.Ready)
	assert.Contains(t, snap.Error, "GEMINI_API_KEY")
}

func TestChatHandler_UpdateInput(t *testing.T) {
	h := NewChatHandler(newTestController(t, "key", &stubSession{}))

	rr := doJSON(t, h.UpdateInput, http.MethodPut, "/api/v1/chat/input", `{"message":"draft"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "draft", decodeSnapshot(t, rr).Input)
}

func TestPageHandler_Index(t *testing.T) {
	c := newTestController(t, "key", &stubSession{reply: "<b>Hi</b>"})
	h := NewPageHandler(c)

	rr := doJSON(t, h.Index, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `id="empty-state"`)
	assert.Contains(t, body, "More Creative")
	assert.Contains(t, body, `step="0.1"`)

	require.NoError(t, c.Send(context.Background(), "Hello"))
	rr = doJSON(t, h.Index, http.MethodGet, "/", "")
	body = rr.Body.String()
	assert.Contains(t, body, `<div class="speaker">You</div>`)
	assert.Contains(t, body, `<div class="speaker">Gemini</div>`)
	assert.Contains(t, body, "&lt;b&gt;Hi&lt;/b&gt;")
	assert.NotContains(t, body, `id="empty-state"`)
}

func TestPageHandler_Index_DisablesSendWithoutSession(t *testing.T) {
	c := newTestController(t, "", &stubSession{})
	c.SetInput("keep me")
	h := NewPageHandler(c)

	rr := doJSON(t, h.Index, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `<button type="submit" id="send" disabled>`)
	assert.Contains(t, body, `value="keep me"`)
	assert.Contains(t, body, "GEMINI_API_KEY")

	rr = doJSON(t, NewChatHandler(c).SendMessage, http.MethodPost, "/api/v1/chat/messages", `{"message":"keep me"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "keep me", c.Snapshot().Input)
	assert.Empty(t, c.Snapshot().Messages)
}

func TestPageHandler_Index_EnablesSendWithSession(t *testing.T) {
	h := NewPageHandler(newTestController(t, "key", &stubSession{}))

	rr := doJSON(t, h.Index, http.MethodGet, "/", "")
	assert.Contains(t, rr.Body.String(), `<button type="submit" id="send" >`)
}
