// Package config provides configuration for the therapy orchestrator.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultSystemPrompt is the counselor persona used when SYSTEM_PROMPT is unset.
const DefaultSystemPrompt = `You are a compassionate AI therapy companion. You listen carefully, reflect feelings back, ` +
	`and draw on evidence-based techniques such as cognitive behavioral therapy, mindfulness and ` +
	`solution-focused questioning. You are not a replacement for a licensed professional and you ` +
	`say so when it matters. Keep replies warm, concise and practical.`

// Config holds the orchestrator configuration.
type Config struct {
	// Server settings
	HTTPPort     int
	InternalPort int
	RPCPort      int

	// Database
	DatabaseURL string

	// Model provider
	LLMProvider   string
	LLMBaseURL    string
	LLMAPIKey     string
	AnalysisModel string
	ResponseModel string
	LLMMaxRetries int

	// Timeouts
	AnalysisTimeout time.Duration
	ResponseTimeout time.Duration

	// Persona
	SystemPrompt string

	// Event delivery
	EventWebhookURL     string
	EventWebhookTimeout time.Duration

	// WebSocket settings
	WSPingInterval time.Duration
	WSWriteTimeout time.Duration
	WSReadTimeout  time.Duration

	// Logging
	LogLevel  string
	LogPretty bool
}

// Load loads configuration from environment variables.
// A .env file in the working directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:            getEnvInt("HTTP_PORT", 8080),
		InternalPort:        getEnvInt("INTERNAL_PORT", 8081),
		RPCPort:             getEnvInt("RPC_PORT", 8082),
		DatabaseURL:         getEnv("DATABASE_URL", "file:therapy.db?cache=shared&mode=rwc"),
		LLMProvider:         strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		LLMBaseURL:          getEnv("LLM_BASE_URL", "http://localhost:4000"),
		LLMAPIKey:           getEnv("LLM_API_KEY", ""),
		AnalysisModel:       getEnv("ANALYSIS_MODEL", "gpt-4o-mini"),
		ResponseModel:       getEnv("RESPONSE_MODEL", "gpt-4o-mini"),
		LLMMaxRetries:       getEnvInt("LLM_MAX_RETRIES", 2),
		AnalysisTimeout:     time.Duration(getEnvInt("ANALYSIS_TIMEOUT_MS", 20000)) * time.Millisecond,
		ResponseTimeout:     time.Duration(getEnvInt("RESPONSE_TIMEOUT_MS", 45000)) * time.Millisecond,
		SystemPrompt:        getEnv("SYSTEM_PROMPT", DefaultSystemPrompt),
		EventWebhookURL:     getEnv("EVENT_WEBHOOK_URL", ""),
		EventWebhookTimeout: time.Duration(getEnvInt("EVENT_WEBHOOK_TIMEOUT_MS", 5000)) * time.Millisecond,
		WSPingInterval:      time.Duration(getEnvInt("WS_PING_INTERVAL_MS", 30000)) * time.Millisecond,
		WSWriteTimeout:      time.Duration(getEnvInt("WS_WRITE_TIMEOUT_MS", 10000)) * time.Millisecond,
		WSReadTimeout:       time.Duration(getEnvInt("WS_READ_TIMEOUT_MS", 60000)) * time.Millisecond,
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogPretty:           getEnvBool("LOG_PRETTY", false),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
