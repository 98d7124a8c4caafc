package models

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

const (
	DefaultModel       = "gemini-1.5-flash"
	DefaultTemperature = 0.7

	MinTemperature = 0.0
	MaxTemperature = 1.0
)

var ErrTemperatureRange = errors.New("temperature must be between 0 and 1")

// ChatMessage is one entry of the transcript. It is never mutated after it
// has been appended.
type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Epoch     int       `json:"epoch"`
	Stale     bool      `json:"stale,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GenerationParams configures a chat session.
type GenerationParams struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
}

func DefaultGenerationParams() GenerationParams {
	return GenerationParams{Model: DefaultModel, Temperature: DefaultTemperature}
}

// ChatSnapshot is a read-only copy of the conversation state.
type ChatSnapshot struct {
	Messages         []ChatMessage `json:"messages"`
	Input            string        `json:"input"`
	Loading          bool          `json:"loading"`
	Error            string        `json:"error"`
	Temperature      float64       `json:"temperature"`
	TemperatureLabel string        `json:"temperature_label"`
	Model            string        `json:"model"`
	Epoch            int           `json:"epoch"`
	Ready            bool          `json:"ready"`
	// Version increases with every state change so that consumers can drop
	// snapshots that arrive out of order.
	Version uint64 `json:"version"`
}

// ChatRequest is the payload sent to the message and input endpoints.
type ChatRequest struct {
	Message string `json:"message"`
}

type TemperatureRequest struct {
	Temperature *float64 `json:"temperature"`
}

// TemperatureLabel describes where t sits on the focus/creativity scale.
func TemperatureLabel(t float64) string {
	switch {
	case t <= 0.3:
		return "More Focused"
	case t >= 0.7:
		return "More Creative"
	default:
		return ""
	}
}

// NormalizeTemperature snaps t to the slider's 0.1 step.
func NormalizeTemperature(t float64) (float64, error) {
	if math.IsNaN(t) || t < MinTemperature || t > MaxTemperature {
		return 0, ErrTemperatureRange
	}
	return math.Round(t*10) / 10, nil
}
