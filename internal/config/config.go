package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultModels is used when MODEL_NAME is not set.
var DefaultModels = map[string]string{
	"anthropic": "claude-3-5-haiku-latest",
	"venice":    "llama-3.3-70b",
	"gemini":    "gemini-2.5-flash",
	"openai":    "gpt-4o-mini",
	"ollama":    "llama3.2",
}

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	LLMProvider     string
	ModelName       string
	LLMTimeout      time.Duration
	HistoryLimit    int // history messages per LLM call; 0 keeps everything
	AnthropicAPIKey string
	VeniceAPIKey    string
	GeminiAPIKey    string
	GeminiSearch    bool
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OllamaURL       string

	RulesPath string
	RedisURL  string // optional; events are dropped when empty
}

// Load reads configuration from the environment. It fails when the selected
// LLM provider is unknown or has no credentials.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),

		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
		ModelName:       getEnv("MODEL_NAME", ""),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		VeniceAPIKey:    os.Getenv("VENICE_API_KEY"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:   os.Getenv("OPENAI_BASE_URL"),
		OllamaURL:       getEnv("OLLAMA_URL", "http://localhost:11434"),

		RulesPath: getEnv("RULES_PATH", "rules.txt"),
		RedisURL:  os.Getenv("REDIS_URL"),
	}

	timeout, err := time.ParseDuration(getEnv("LLM_TIMEOUT", "2m"))
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_TIMEOUT: %w", err)
	}
	cfg.LLMTimeout = timeout

	limit, err := strconv.Atoi(getEnv("HISTORY_LIMIT", "0"))
	if err != nil || limit < 0 {
		return nil, fmt.Errorf("invalid HISTORY_LIMIT %q: must be a non-negative integer", os.Getenv("HISTORY_LIMIT"))
	}
	cfg.HistoryLimit = limit

	search, err := strconv.ParseBool(getEnv("GEMINI_SEARCH", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid GEMINI_SEARCH: %w", err)
	}
	cfg.GeminiSearch = search

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.ModelName == "" {
		cfg.ModelName = DefaultModels[cfg.LLMProvider]
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var key, name string
	switch c.LLMProvider {
	case "anthropic":
		key, name = c.AnthropicAPIKey, "ANTHROPIC_API_KEY"
	case "venice":
		key, name = c.VeniceAPIKey, "VENICE_API_KEY"
	case "gemini":
		key, name = c.GeminiAPIKey, "GEMINI_API_KEY"
	case "openai":
		key, name = c.OpenAIAPIKey, "OPENAI_API_KEY"
	case "ollama":
		return nil
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q (supported: anthropic, venice, gemini, openai, ollama)", c.LLMProvider)
	}
	if key == "" {
		return fmt.Errorf("%s is required when LLM_PROVIDER=%s", name, c.LLMProvider)
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
