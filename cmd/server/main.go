package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gemini-chat/internal/chat"
	"gemini-chat/internal/config"
	"gemini-chat/internal/database"
	"gemini-chat/internal/handlers"
	"gemini-chat/internal/middleware"
	"gemini-chat/internal/models"
	"gemini-chat/internal/router"
	"gemini-chat/internal/services"
	"gemini-chat/internal/websocket"
)

func main() {
	log.Println("🚀 Starting Gemini Chat...")

	// ──── Step 1: Load Environment Variables ────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("✗ Configuration invalid: %v", err)
	}
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize Redis (optional) ────
	redisClient, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Println("✓ Redis connected")
	} else {
		log.Println("• Redis not configured, chat updates are not mirrored")
	}

	// ──── Step 3: Initialize Chat Controller ────
	controller := chat.NewController(
		cfg.GeminiAPIKey,
		services.FactoryForSDK(cfg.GeminiSDK),
		models.GenerationParams{Model: cfg.GeminiModel, Temperature: cfg.DefaultTemperature},
	)
	defer controller.Close()

	// ──── Step 4: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClient, controller.Snapshot)
	wsHub.Start()
	controller.Observe(wsHub.Publish)
	log.Println("✓ WebSocket hub started")

	// ──── Step 5: Open Gemini Session ────
	// A missing key or a failed client stays visible in the UI; the server keeps running.
	if err := controller.Initialize(context.Background()); err != nil {
		log.Printf("✗ Gemini session unavailable: %v", err)
	} else {
		log.Printf("✓ Gemini session ready (%s via %s, temperature %.1f)", cfg.GeminiModel, cfg.GeminiSDK, controller.Snapshot().Temperature)
	}

	// ──── Step 6: Start HTTP Server ────
	chatLimiter := middleware.NewRateLimiter(cfg.ChatRateLimit, time.Minute)
	limiterCtx, stopLimiter := context.WithCancel(context.Background())
	go chatLimiter.Cleanup(limiterCtx)

	r := router.New(
		handlers.NewPageHandler(controller),
		handlers.NewChatHandler(controller),
		wsHub,
		chatLimiter,
		cfg.FrontendURL,
	)

	// No WriteTimeout: a message request lasts as long as the Gemini round trip.
	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		stopLimiter()
		wsHub.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ Gemini Chat ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1/chat", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
