package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	// LLM provider: "anthropic", "ollama", or "mock".
	LLMProvider     string
	ModelName       string
	AnthropicAPIKey string
	OllamaURL       string

	RedisURL string

	// Simulation tuning.
	TickInterval    time.Duration
	TurnCooldown    time.Duration
	MaxActiveGroups int
	MaxParticipants int

	// Asset files. Empty values fall back to built-in tables.
	TopicTablePath  string
	ActionTablePath string
	ActorsDir       string
}

func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		LogLevel:        parseLogLevel(getEnv("LOG_LEVEL", "info")),
		LLMProvider:     getEnv("LLM_PROVIDER", "mock"),
		ModelName:       getEnv("MODEL_NAME", "claude-sonnet-4-20250514"),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OllamaURL:       getEnv("OLLAMA_URL", "http://localhost:11434"),
		RedisURL:        getEnv("REDIS_URL", "localhost:6379"),
		TickInterval:    getEnvDuration("TICK_INTERVAL", 500*time.Millisecond),
		TurnCooldown:    getEnvDuration("TURN_COOLDOWN", 30*time.Second),
		MaxActiveGroups: getEnvInt("MAX_ACTIVE_GROUPS", 5),
		MaxParticipants: getEnvInt("MAX_PARTICIPANTS", 4),
		TopicTablePath:  getEnv("TOPIC_TABLE_PATH", ""),
		ActionTablePath: getEnv("ACTION_TABLE_PATH", ""),
		ActorsDir:       getEnv("ACTORS_DIR", "data/actors"),
	}
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

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
