package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/story-coach/internal/config"
	"github.com/jwebster45206/story-coach/internal/conversation"
	"github.com/jwebster45206/story-coach/internal/handlers"
	"github.com/jwebster45206/story-coach/internal/logger"
	"github.com/jwebster45206/story-coach/internal/middleware"
	"github.com/jwebster45206/story-coach/internal/services"
	"github.com/jwebster45206/story-coach/internal/services/events"
	"github.com/jwebster45206/story-coach/internal/workflow"
	"github.com/jwebster45206/story-coach/pkg/prompts"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Story Coach API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider,
		"model_name", cfg.ModelName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	llmService, err := newLLMService(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to create LLM service", "error", err, "provider", cfg.LLMProvider)
		os.Exit(1)
	}

	initCtx, initCancel := context.WithTimeout(ctx, 10*time.Minute)
	err = llmService.InitModel(initCtx, cfg.ModelName)
	initCancel()
	if err != nil {
		log.Error("Failed to initialize LLM model", "error", err, "model", cfg.ModelName)
		os.Exit(1)
	}

	rules, err := prompts.LoadRules(afero.NewOsFs(), cfg.RulesPath)
	if err != nil {
		log.Warn("Using built-in rules", "path", cfg.RulesPath, "error", err)
	}

	var (
		publisher  events.Publisher = events.NopPublisher{}
		subscriber handlers.Subscriber
		redisCheck services.HealthChecker
		redisSvc   *services.RedisService
	)
	if cfg.RedisURL != "" {
		redisSvc, err = services.NewRedisService(cfg.RedisURL, log)
		if err != nil {
			log.Error("Invalid Redis configuration", "error", err)
			os.Exit(1)
		}
		waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Minute)
		err = redisSvc.WaitForConnection(waitCtx)
		waitCancel()
		if err != nil {
			log.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		broadcaster := events.NewBroadcaster(redisSvc.GetClient(), log)
		publisher = broadcaster
		subscriber = broadcaster
		redisCheck = redisSvc
	} else {
		log.Info("REDIS_URL not set; workflow events are not broadcast")
	}

	gateway := conversation.NewGateway(llmService, log, cfg.LLMTimeout).WithHistoryLimit(cfg.HistoryLimit)
	session := workflow.NewSession(gateway, rules, publisher, log)

	health := handlers.NewHealthHandler(redisCheck, cfg.LLMProvider, cfg.ModelName, log)
	mux := handlers.NewRouter(session, health, subscriber, log)

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.Logger(mux),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: chat replies and the event stream are long-lived.
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Server is shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		if redisSvc != nil {
			if err := redisSvc.Close(); err != nil {
				log.Error("Error closing Redis connection", "error", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("Server exited")
}

func newLLMService(ctx context.Context, cfg *config.Config, log *slog.Logger) (services.LLMService, error) {
	switch cfg.LLMProvider {
	case services.ProviderAnthropic:
		log.Info("Using Anthropic LLM provider")
		return services.NewAnthropicService(cfg.AnthropicAPIKey, cfg.ModelName, log), nil
	case services.ProviderVenice:
		log.Info("Using Venice LLM provider")
		return services.NewVeniceService(cfg.VeniceAPIKey, cfg.ModelName), nil
	case services.ProviderGemini:
		log.Info("Using Gemini LLM provider", "google_search", cfg.GeminiSearch)
		return services.NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.ModelName, cfg.GeminiSearch, log)
	case services.ProviderOpenAI:
		log.Info("Using OpenAI LLM provider", "base_url", cfg.OpenAIBaseURL)
		return services.NewOpenAIService(cfg.OpenAIAPIKey, cfg.ModelName, cfg.OpenAIBaseURL, log)
	case services.ProviderOllama:
		log.Info("Using Ollama LLM provider", "url", cfg.OllamaURL)
		return services.NewOllamaService(cfg.OllamaURL, cfg.ModelName, log), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.LLMProvider)
	}
}
