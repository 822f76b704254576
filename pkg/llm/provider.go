package llm

import (
	"context"
	"errors"
	"strings"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
	JSON        bool   // Ask the backend for a JSON object response
	Reasoning   bool   // Surface model "thinking" separately when supported
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		if model != "" {
			o.Model = model
		}
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithJSON() Option {
	return func(o *Options) {
		o.JSON = true
	}
}

func WithReasoning(enabled bool) Option {
	return func(o *Options) {
		o.Reasoning = enabled
	}
}

// Apply resolves options over the given defaults.
func Apply(defaults Options, opts ...Option) Options {
	for _, o := range opts {
		o(&defaults)
	}
	return defaults
}

// Chunk is one incremental piece of a streamed completion.
type Chunk struct {
	Text      string
	Reasoning string
}

// ChunkHandler receives chunks in order. Returning an error aborts the stream.
type ChunkHandler func(Chunk) error

var ErrEmptyResponse = errors.New("llm returned an empty response")

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Name identifies the backend ("ollama", "openai", "gemini").
	Name() string

	// Model is the default model used when no WithModel option is given.
	Model() string

	// Chat sends a chat history to the model and returns the response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)

	// Stream sends a chat history and delivers the response incrementally.
	Stream(ctx context.Context, history []Message, handler ChunkHandler, options ...Option) error
}

// Classifier adapts a provider to single-shot JSON classification prompts
// such as the topic-shift check.
type Classifier struct {
	Provider LLMProvider
	Model    string
}

func (c Classifier) Classify(ctx context.Context, prompt string) (string, error) {
	out, err := c.Provider.Generate(ctx, prompt, WithJSON(), WithTemperature(0), WithModel(c.Model))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}
