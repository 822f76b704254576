package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/Kripu77/prompt-map-sub001/pkg/llm"
)

// Provider implements llm.LLMProvider using the Google Gen AI SDK.
type Provider struct {
	client *genai.Client
	model  string
}

var _ llm.LLMProvider = (*Provider)(nil)

// New creates a Gemini provider. baseURL is only set when pointing the SDK at
// a proxy or a test server.
func New(ctx context.Context, apiKey, model, baseURL string) (*Provider, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Provider{client: client, model: model}, nil
}

func (p *Provider) Name() string  { return "gemini" }
func (p *Provider) Model() string { return p.model }

func (p *Provider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	opts := llm.Apply(llm.Options{Model: p.model, Temperature: 0.7}, options...)
	contents, config := buildRequest(history, opts)

	resp, err := p.client.Models.GenerateContent(ctx, opts.Model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text, _ := collect(resp)
	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	return text, nil
}

func (p *Provider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, options...)
}

func (p *Provider) Stream(ctx context.Context, history []llm.Message, handler llm.ChunkHandler, options ...llm.Option) error {
	opts := llm.Apply(llm.Options{Model: p.model, Temperature: 0.7}, options...)
	contents, config := buildRequest(history, opts)

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for resp, err := range p.client.Models.GenerateContentStream(streamCtx, opts.Model, contents, config) {
		if err != nil {
			return fmt.Errorf("gemini stream: %w", err)
		}
		text, thought := collect(resp)
		if text == "" && thought == "" {
			continue
		}
		if err := handler(llm.Chunk{Text: text, Reasoning: thought}); err != nil {
			return err
		}
	}
	return nil
}

// buildRequest maps chat messages to genai contents. System messages become
// the system instruction; assistant turns use the "model" role.
func buildRequest(history []llm.Message, opts llm.Options) ([]*genai.Content, *genai.GenerateContentConfig) {
	var (
		contents []*genai.Content
		system   []string
	)
	for _, msg := range history {
		switch msg.Role {
		case llm.RoleSystem:
			system = append(system, msg.Content)
		case llm.RoleAssistant, genai.RoleModel:
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: msg.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: msg.Content}}})
		}
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(opts.Temperature)),
	}
	if len(system) > 0 {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}}}
	}
	if opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.JSON {
		config.ResponseMIMEType = "application/json"
	}
	if opts.Reasoning {
		config.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
	}
	return contents, config
}

// collect splits a response into answer text and thought text.
func collect(resp *genai.GenerateContentResponse) (text, thought string) {
	if resp == nil {
		return "", ""
	}
	var t, th strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.Text == "" {
				continue
			}
			if part.Thought {
				th.WriteString(part.Text)
			} else {
				t.WriteString(part.Text)
			}
		}
	}
	return t.String(), th.String()
}
