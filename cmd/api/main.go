package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/gm-engine/internal/config"
	"github.com/jwebster45206/gm-engine/internal/handlers"
	"github.com/jwebster45206/gm-engine/internal/logger"
	"github.com/jwebster45206/gm-engine/internal/middleware"
	"github.com/jwebster45206/gm-engine/internal/services"
	"github.com/jwebster45206/gm-engine/internal/services/events"
	"github.com/jwebster45206/gm-engine/internal/session"
	"github.com/jwebster45206/gm-engine/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting GM Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider,
		"model_name", cfg.ModelName)

	source := newTextSource(cfg, log)

	opts := session.Options{
		HistoryLimit: cfg.PromptHistoryLimit,
		FetchTimeout: cfg.FetchTimeout,
		Logger:       log,
	}
	health := map[string]handlers.Pinger{}

	var (
		store       storage.Storage
		redisSvc    *services.RedisService
		broadcaster *events.Broadcaster
	)
	if cfg.RedisURL != "" {
		redisSvc, err = services.NewRedisService(cfg.RedisURL, log)
		if err != nil {
			log.Error("Invalid Redis configuration", "error", err)
			os.Exit(1)
		}
		redisCtx, redisCancel := context.WithTimeout(context.Background(), 2*time.Minute)
		if err := redisSvc.WaitForConnection(redisCtx); err != nil {
			redisCancel()
			log.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		redisCancel()

		client := redisSvc.GetClient()
		store = storage.NewRedisStorage(client, cfg.DataDir, cfg.StateTTL, log)
		broadcaster = events.NewBroadcaster(client, log)
		opts.Lock = services.NewRedisTurnLock(client, cfg.TurnLockTTL, log)
		opts.Publisher = broadcaster
		health["redis"] = redisSvc
		log.Info("Using Redis for turn locks, snapshots and events")
	} else {
		store = storage.NewMemoryStorage(cfg.DataDir, log)
		log.Info("REDIS_URL not set; sessions are kept in memory")
	}
	health["storage"] = store

	manager := session.NewManager(source, store, opts)

	mux := http.NewServeMux()
	mux.Handle("/health", handlers.NewHealthHandler(health, log))

	mux.Handle("/v1/ingest", handlers.NewIngestHandler(log))
	mux.Handle("/v1/reduce", handlers.NewReduceHandler(log))

	seedHandler := handlers.NewSeedHandler(store, log)
	mux.Handle("/v1/seeds", seedHandler)
	mux.Handle("/v1/seeds/", seedHandler)

	sessionsHandler := handlers.NewSessionsHandler(manager, store, log)
	mux.Handle("/v1/sessions", sessionsHandler)
	mux.Handle("/v1/sessions/", sessionsHandler)

	if broadcaster != nil {
		mux.Handle("/v1/events/sessions/", handlers.NewEventsHandler(broadcaster, log))
	}

	handler := middleware.Logger(mux)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout removed to enable streaming - the events endpoint holds connections open
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	// In-flight turns are cancelled; snapshots survive in storage.
	manager.CloseAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := store.Close(); err != nil {
		log.Error("Error closing storage", "error", err)
	}
	if redisSvc != nil {
		if err := redisSvc.Close(); err != nil {
			log.Error("Error closing Redis connection", "error", err)
		}
	}

	log.Info("Server exited")
}

func newTextSource(cfg *config.Config, log *slog.Logger) services.TextSource {
	switch cfg.LLMProvider {
	case "anthropic":
		svc := services.NewAnthropicService(cfg.AnthropicAPIKey, cfg.ModelName, log)
		if cfg.AnthropicBaseURL != "" {
			svc = svc.WithBaseURL(cfg.AnthropicBaseURL)
		}
		log.Info("Using Anthropic LLM provider")
		return svc
	default:
		log.Warn("Using mock LLM provider; replies are canned")
		return services.NewMockTextSource()
	}
}
