package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	SDKGenerativeAI = "generative-ai-go"
	SDKGenAI        = "genai"
)

type Config struct {
	// Server
	Port string `env:"PORT" envDefault:"8080"`
	Env  string `env:"ENV" envDefault:"development"`

	// Gemini AI
	// GeminiAPIKey is optional at load time; a missing key is reported in the chat UI.
	GeminiAPIKey       string  `env:"GEMINI_API_KEY"`
	GeminiModel        string  `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	GeminiSDK          string  `env:"GEMINI_SDK" envDefault:"generative-ai-go"`
	DefaultTemperature float64 `env:"DEFAULT_TEMPERATURE" envDefault:"0.7"`

	// Redis (optional, enables pub/sub fan-out of chat updates)
	RedisURL string `env:"REDIS_URL"`

	// Chat submissions allowed per IP per minute
	ChatRateLimit int `env:"CHAT_RATE_LIMIT" envDefault:"30"`

	// Frontend
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:8080"`
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.GeminiAPIKey = strings.TrimSpace(cfg.GeminiAPIKey)

	switch cfg.GeminiSDK {
	case SDKGenerativeAI, SDKGenAI:
	default:
		return nil, fmt.Errorf("unsupported GEMINI_SDK %q (want %q or %q)", cfg.GeminiSDK, SDKGenerativeAI, SDKGenAI)
	}

	if cfg.DefaultTemperature < 0 || cfg.DefaultTemperature > 1 {
		return nil, fmt.Errorf("DEFAULT_TEMPERATURE must be within [0,1], got %v", cfg.DefaultTemperature)
	}

	if cfg.ChatRateLimit <= 0 {
		return nil, fmt.Errorf("CHAT_RATE_LIMIT must be positive, got %d", cfg.ChatRateLimit)
	}

	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
