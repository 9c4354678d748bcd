package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"legalis/internal/config"
	"legalis/internal/handler"
	"legalis/internal/llm"
	"legalis/internal/llm/anthropic"
	"legalis/internal/llm/openai"
	"legalis/internal/port"
	"legalis/internal/prompt"
	"legalis/internal/repository/postgres"
	"legalis/internal/router"
	"legalis/internal/service"
	"legalis/internal/template"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Initialize repositories
	docRepo := postgres.NewDocumentRepo(db)
	usageRepo := postgres.NewUsageRepo(db)

	// Register LLM providers and build the adapter for the configured one
	llm.RegisterProvider("anthropic", func(pc *config.ProviderConfig) (port.LLMAdapter, error) {
		return anthropic.NewAdapter(pc), nil
	})
	llm.RegisterProvider("openai", func(pc *config.ProviderConfig) (port.LLMAdapter, error) {
		return openai.NewAdapter(pc), nil
	})

	adapter, err := llm.NewAdapter(&cfg.LLM.Primary)
	if err != nil {
		return fmt.Errorf("failed to create LLM adapter: %w", err)
	}
	llmSvc := llm.NewService(adapter, &cfg.LLM.Primary, &cfg.LLM, usageRepo)

	// Prompt layer
	registry := prompt.NewRegistry()
	engine := template.NewEngine(template.MissingError)
	prompts := prompt.NewManager(registry, engine, llmSvc)

	// Services
	translationSvc := service.NewTranslationService(docRepo, prompts)

	// Queue worker with graceful shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker := service.NewTranslationQueueWorker(docRepo, translationSvc, service.TranslationQueueConfig{
		PollInterval: cfg.Queue.PollInterval(),
		MaxAttempts:  cfg.Queue.MaxAttempts,
		Concurrency:  cfg.Queue.Concurrency,
	})
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Start(ctx)
	}()

	// Handlers and router
	documentH := handler.NewDocumentHandler(translationSvc)
	usageH := handler.NewUsageHandler(usageRepo, llmSvc)
	healthH := handler.NewHealthHandler(db)

	r := router.Setup(cfg, documentH, usageH, healthH)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Printf("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}

	// Wait for in-flight translations to drain.
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Printf("worker drain timed out")
	}

	return nil
}
