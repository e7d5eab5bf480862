// Package llm implements the engine's generation port on top of
// OpenAI-compatible chat completion APIs.
package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"

	"github.com/botweaver/engine/internal/workflow"
)

// Config describes the upstream chat completion endpoint. BaseURL may point
// at any OpenAI-compatible service (OpenAI, OpenRouter, a local Ollama).
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// OpenAIGenerator implements workflow.Generator against an OpenAI-compatible
// endpoint. The eino chat model carries model name and sampling parameters
// at construction, so instances are cached per (model, temperature) pair.
type OpenAIGenerator struct {
	cfg Config

	mu     sync.Mutex
	models map[string]*openai.ChatModel
}

// NewOpenAIGenerator creates a generator. Construction is cheap; chat model
// clients are created lazily on first use of each (model, temperature).
func NewOpenAIGenerator(cfg Config) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm: default model is required")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	return &OpenAIGenerator{
		cfg:    cfg,
		models: make(map[string]*openai.ChatModel),
	}, nil
}

// Generate sends one chat completion request and returns the response text.
func (g *OpenAIGenerator) Generate(ctx context.Context, req workflow.GenerationRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = g.cfg.Model
	}

	cm, err := g.chatModel(ctx, model, float32(req.Temperature))
	if err != nil {
		return "", err
	}

	messages := make([]*schema.Message, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, schema.SystemMessage(req.SystemPrompt))
	}
	for _, h := range req.History {
		switch h.Sender {
		case "bot", "assistant":
			messages = append(messages, schema.AssistantMessage(h.Content, nil))
		default:
			messages = append(messages, schema.UserMessage(h.Content))
		}
	}
	messages = append(messages, schema.UserMessage(req.Prompt))

	out, err := cm.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	return out.Content, nil
}

func (g *OpenAIGenerator) chatModel(ctx context.Context, model string, temperature float32) (*openai.ChatModel, error) {
	key := fmt.Sprintf("%s|%.3f", model, temperature)

	g.mu.Lock()
	defer g.mu.Unlock()

	if cm, ok := g.models[key]; ok {
		return cm, nil
	}

	maxTokens := g.cfg.MaxTokens
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      g.cfg.APIKey,
		BaseURL:     g.cfg.BaseURL,
		Model:       model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating chat model: %w", err)
	}

	g.models[key] = cm
	return cm, nil
}
