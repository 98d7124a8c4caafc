package database

import "testing"

func TestNewRedisClient_EmptyURL(t *testing.T) {
	client, err := NewRedisClient("")
	if err != nil {
		t.Fatalf("Expected no error for empty URL, got %v", err)
	}
	if client != nil {
		t.Error("Expected nil client when Redis is not configured")
	}
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	if _, err := NewRedisClient("not-a-redis-url"); err == nil {
		t.Error("Expected error for invalid Redis URL")
	}
}
