package factory

import (
	"context"
	"fmt"

	"github.com/Kripu77/prompt-map-sub001/pkg/llm"
	"github.com/Kripu77/prompt-map-sub001/pkg/llm/gemini"
	"github.com/Kripu77/prompt-map-sub001/pkg/llm/ollama"
	"github.com/Kripu77/prompt-map-sub001/pkg/llm/openai"
)

type Config struct {
	Provider string // ollama | openai | gemini
	Model    string
	BaseURL  string
	APIKey   string
}

func NewLLMProvider(ctx context.Context, cfg Config) (llm.LLMProvider, error) {
	switch cfg.Provider {
	case "ollama", "":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, cfg.Model), nil
	case "openai", "huggingface":
		return openai.NewProvider(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini provider requires an API key")
		}
		return gemini.New(ctx, cfg.APIKey, cfg.Model, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
