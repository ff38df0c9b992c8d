package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/zhouzirui/z-chat/backend/internal/config"
)

func TestChatOptionsFromConfig(t *testing.T) {
	temperature := 0.2
	maxTokens := 300
	cfg := &config.Config{
		AI:   config.AIConfig{Temperature: &temperature, MaxTokens: &maxTokens, Timeout: 5 * time.Second},
		Chat: config.ChatConfig{SystemPrompt: "be brief"},
	}

	opts := chatOptions(cfg)
	if opts.SystemPrompt != "be brief" || opts.MaxTokens != 300 || opts.Timeout != 5*time.Second {
		t.Fatalf("unexpected options %+v", opts)
	}
	if opts.Temperature < 0.19 || opts.Temperature > 0.21 {
		t.Fatalf("unexpected temperature %v", opts.Temperature)
	}
}

func TestNewModelClientDisabled(t *testing.T) {
	if client := newModelClient(context.Background(), config.AIConfig{}); client != nil {
		t.Fatalf("expected nil client without credentials, got %T", client)
	}
}

func TestRunServerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}

	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runServer returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runServer did not return after cancel")
	}
}
