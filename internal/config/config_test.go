package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HTTP_PORT", "")
	t.Setenv("SYSTEM_PROMPT", "")

	cfg := Load()
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 8081, cfg.InternalPort)
	assert.Equal(t, DefaultSystemPrompt, cfg.SystemPrompt)
	assert.Equal(t, 20*time.Second, cfg.AnalysisTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("LLM_PROVIDER", "Anthropic")
	t.Setenv("RESPONSE_TIMEOUT_MS", "1500")
	t.Setenv("LOG_PRETTY", "true")
	t.Setenv("LLM_MAX_RETRIES", "not-a-number")

	cfg := Load()
	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.Equal(t, "anthropic", cfg.LLMProvider)
	assert.Equal(t, 1500*time.Millisecond, cfg.ResponseTimeout)
	assert.True(t, cfg.LogPretty)
	assert.Equal(t, 2, cfg.LLMMaxRetries)
}
