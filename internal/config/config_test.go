package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LLM_MODEL", "qwen3")
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg := Load()

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "qwen3", cfg.LLM.ClassifierModel, "classifier model falls back to LLM_MODEL")
	assert.Equal(t, "sk-test", cfg.LLM.APIKey())
	assert.Equal(t, 20, cfg.RateLimit.Max)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestGetEnvAsDuration(t *testing.T) {
	t.Setenv("WINDOW_A", "90s")
	t.Setenv("WINDOW_B", "30")
	t.Setenv("WINDOW_C", "soon")

	assert.Equal(t, 90*time.Second, getEnvAsDuration("WINDOW_A", time.Minute))
	assert.Equal(t, 30*time.Second, getEnvAsDuration("WINDOW_B", time.Minute))
	assert.Equal(t, time.Minute, getEnvAsDuration("WINDOW_C", time.Minute))
	assert.Equal(t, time.Minute, getEnvAsDuration("WINDOW_MISSING", time.Minute))
}

func TestLLMConfig_ProviderSettings(t *testing.T) {
	l := LLMConfig{Provider: "ollama", OllamaBaseURL: "http://ollama:11434", GeminiAPIKey: "g"}
	assert.Equal(t, "http://ollama:11434", l.BaseURL())
	assert.Empty(t, l.APIKey())

	l.Provider = "gemini"
	assert.Equal(t, "g", l.APIKey())
	assert.Empty(t, l.BaseURL())
}
