package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"gemini-chat/internal/models"
)

// GeminiClient wraps the generative-ai-go client.
type GeminiClient struct {
	client *genai.Client
}

func NewGeminiClient(ctx context.Context, apiKey string) (ChatClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{client: client}, nil
}

func (c *GeminiClient) StartChat(ctx context.Context, params models.GenerationParams) (ChatSession, error) {
	name := params.Model
	if name == "" {
		name = models.DefaultModel
	}

	model := c.client.GenerativeModel(name)
	model.SetTemperature(float32(params.Temperature))

	return &geminiSession{cs: model.StartChat()}, nil
}

func (c *GeminiClient) Close() error {
	return c.client.Close()
}

type geminiSession struct {
	cs *genai.ChatSession
}

func (s *geminiSession) SendMessage(ctx context.Context, text string) (string, error) {
	resp, err := s.cs.SendMessage(ctx, genai.Text(text))
	if err != nil {
		log.Printf("Gemini chat error: %v", err)
		return "", err
	}

	return replyText(resp)
}

// Helper functions

func replyText(resp *genai.GenerateContentResponse) (string, error) {
	reply := extractText(resp)
	if reply == "" {
		return "", fmt.Errorf("%w (finish reason: %s)", ErrEmptyResponse, finishReason(resp))
	}
	return reply, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

func finishReason(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return "no candidates"
	}
	return resp.Candidates[0].FinishReason.String()
}
