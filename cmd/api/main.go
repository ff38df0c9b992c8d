package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/z-chat/backend/internal/config"
	"github.com/zhouzirui/z-chat/backend/internal/handler"
	"github.com/zhouzirui/z-chat/backend/internal/service/ai"
	"github.com/zhouzirui/z-chat/backend/internal/service/chat"
	"github.com/zhouzirui/z-chat/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	backend, err := cfg.Storage.OpenBackend(ctx)
	if err != nil {
		log.Fatalf("failed to open session storage: %v", err)
	}
	sessions := store.New(backend, store.Options{DefaultTitle: cfg.Chat.DefaultTitle})
	defer func() {
		if err := sessions.Close(); err != nil {
			log.Printf("warning: failed to close session storage: %v", err)
		}
	}()
	log.Printf("session storage: %s", cfg.Storage.Describe())

	chatService := chat.NewService(sessions, newModelClient(ctx, cfg.AI), chatOptions(cfg))

	router := handler.NewRouter(chatService, cfg.Server.AllowedOrigins)

	startServer(ctx, cfg.Server, router)
}

// newModelClient returns nil when the model is not configured or fails the
// startup probe; the server still serves session routes in that case.
func newModelClient(ctx context.Context, aiCfg config.AIConfig) chat.Completer {
	if !aiCfg.Enabled() {
		log.Println("Ark 凭证未配置，跳过 AI 功能初始化")
		return nil
	}

	chatModel, err := aiCfg.NewChatModel(ctx)
	if err != nil {
		log.Printf("warning: failed to create chat model: %v", err)
		log.Println("continuing without AI functionality - 请检查 Ark 模型相关环境变量")
		return nil
	}

	client, err := ai.NewClient(ctx, chatModel)
	if err != nil {
		log.Printf("warning: failed to initialize AI client: %v", err)
		return nil
	}

	if aiCfg.StartupProbe {
		probeCtx, cancel := context.WithTimeout(ctx, aiCfg.Timeout)
		defer cancel()
		if err := client.Probe(probeCtx); err != nil {
			log.Printf("warning: %v", err)
			log.Println("continuing without AI functionality")
			return nil
		}
	}

	log.Println("AI client initialized successfully")
	return client
}

func chatOptions(cfg *config.Config) chat.Options {
	opts := chat.Options{
		SystemPrompt: cfg.Chat.SystemPrompt,
		Timeout:      cfg.AI.Timeout,
	}
	if cfg.AI.Temperature != nil {
		opts.Temperature = float32(*cfg.AI.Temperature)
	}
	if cfg.AI.MaxTokens != nil {
		opts.MaxTokens = *cfg.AI.MaxTokens
	}
	return opts
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Z Chat backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Printf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
