package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"gemini-chat/internal/chat"
	"gemini-chat/internal/models"
)

type chatController interface {
	Snapshot() models.ChatSnapshot
	Send(ctx context.Context, text string) error
	SetInput(text string)
	SetTemperature(ctx context.Context, t float64) error
}

type ChatHandler struct {
	chat chatController
}

func NewChatHandler(c chatController) *ChatHandler {
	return &ChatHandler{chat: c}
}

func (h *ChatHandler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.chat.Snapshot())
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	// The exchange outlives a disconnected browser; its result still lands in the transcript.
	err := h.chat.Send(context.WithoutCancel(r.Context()), req.Message)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, h.chat.Snapshot())
	case errors.Is(err, chat.ErrEmptyMessage):
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message is required", r))
	case errors.Is(err, chat.ErrExchangeInFlight):
		writeJSON(w, http.StatusConflict, errorResp("EXCHANGE_IN_FLIGHT", "A message is already being sent", r))
	case errors.Is(err, chat.ErrNoSession):
		msg := h.chat.Snapshot().Error
		if msg == "" {
			msg = "Chat session is not initialized"
		}
		writeJSON(w, http.StatusServiceUnavailable, errorResp("CHAT_UNAVAILABLE", msg, r))
	default:
		log.Printf("Chat exchange failed: %v", err)
		writeJSON(w, http.StatusBadGateway, errorResp("AI_ERROR", h.chat.Snapshot().Error, r))
	}
}

func (h *ChatHandler) SetTemperature(w http.ResponseWriter, r *http.Request) {
	var req models.TemperatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.Temperature == nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Temperature is required", r))
		return
	}

	if err := h.chat.SetTemperature(r.Context(), *req.Temperature); err != nil {
		if errors.Is(err, models.ErrTemperatureRange) {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Temperature must be between 0 and 1", r))
			return
		}
		// Initialization failures are part of the chat state, not of this request.
		log.Printf("Chat re-initialization failed: %v", err)
	}

	writeJSON(w, http.StatusOK, h.chat.Snapshot())
}

func (h *ChatHandler) UpdateInput(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	h.chat.SetInput(req.Message)
	writeJSON(w, http.StatusOK, h.chat.Snapshot())
}
