package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"google.golang.org/genai"

	"gemini-chat/internal/models"
)

// GenAIClient talks to Gemini through the unified Google Gen AI SDK.
type GenAIClient struct {
	client *genai.Client
}

func NewGenAIClient(ctx context.Context, apiKey string) (ChatClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}

	client, err := newGenAIClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func newGenAIClient(ctx context.Context, cfg *genai.ClientConfig) (*GenAIClient, error) {
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIClient{client: client}, nil
}

func (c *GenAIClient) StartChat(ctx context.Context, params models.GenerationParams) (ChatSession, error) {
	name := params.Model
	if name == "" {
		name = models.DefaultModel
	}

	chat, err := c.client.Chats.Create(ctx, name, &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(params.Temperature)),
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI chat: %w", err)
	}

	return &genAISession{chat: chat}, nil
}

// Close is a no-op; the Gen AI client holds no connection of its own.
func (c *GenAIClient) Close() error {
	return nil
}

type genAISession struct {
	chat *genai.Chat
}

func (s *genAISession) SendMessage(ctx context.Context, text string) (string, error) {
	resp, err := s.chat.SendMessage(ctx, genai.Part{Text: text})
	if err != nil {
		log.Printf("GenAI chat error: %v", err)
		return "", err
	}

	reply := resp.Text()
	if reply == "" {
		reason := "no candidates"
		if len(resp.Candidates) > 0 {
			reason = string(resp.Candidates[0].FinishReason)
		}
		return "", fmt.Errorf("%w (finish reason: %s)", ErrEmptyResponse, reason)
	}

	return reply, nil
}
