package services

import (
	"context"
	"errors"

	"gemini-chat/internal/models"
)

var (
	ErrMissingAPIKey = errors.New("API key is required to initialize Gemini client")
	ErrEmptyResponse = errors.New("Gemini returned an empty response")
)

// ChatClient is an authenticated handle to a model provider.
type ChatClient interface {
	// StartChat opens a new conversation with no prior turns. It does not
	// contact the remote service.
	StartChat(ctx context.Context, params models.GenerationParams) (ChatSession, error)
	Close() error
}

// ChatSession keeps prior turns on the provider side.
type ChatSession interface {
	SendMessage(ctx context.Context, text string) (string, error)
}

// ClientFactory builds a ChatClient from an API key.
type ClientFactory func(ctx context.Context, apiKey string) (ChatClient, error)

// FactoryForSDK picks the client factory matching the configured SDK name.
func FactoryForSDK(sdk string) ClientFactory {
	if sdk == "genai" {
		return NewGenAIClient
	}
	return NewGeminiClient
}
