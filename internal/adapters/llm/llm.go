// Package llm provides completion clients for the providers drover
// supports: hosted APIs and local models through langchaingo, plus an
// arbitrary local command for air-gapped setups. Clients retry
// transient failures with exponential backoff per the retry config.
package llm

import (
	"context"
	"fmt"

	"github.com/drover-dev/drover/internal/config"
	"github.com/drover-dev/drover/internal/domain"
	"github.com/drover-dev/drover/internal/ports"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// New builds the completer for cfg.Provider, wrapped with the
// configured retry policy.
func New(cfg config.LLMConfig) (ports.Completer, error) {
	inner, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}
	return withRetry(inner, cfg), nil
}

func newProvider(cfg config.LLMConfig) (ports.Completer, error) {
	switch cfg.Provider {
	case "command":
		if cfg.Command == "" {
			return nil, fmt.Errorf("command provider requires llm.command")
		}
		return &CommandClient{Command: cfg.Command}, nil

	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		model, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}
		return &Client{llm: model, cfg: cfg}, nil

	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		opts := []openai.Option{
			openai.WithToken(cfg.APIKey),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}
		return &Client{llm: model, cfg: cfg}, nil

	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err := anthropic.New(
			anthropic.WithToken(cfg.APIKey),
			anthropic.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}
		return &Client{llm: model, cfg: cfg}, nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// Client generates completions through a langchaingo model.
type Client struct {
	llm llms.Model
	cfg config.LLMConfig
}

func (c *Client) Complete(ctx context.Context, msgs []domain.Message) (string, error) {
	content := make([]llms.MessageContent, 0, len(msgs))
	for _, m := range msgs {
		role := llms.ChatMessageTypeHuman
		if m.Role == domain.RoleSystem {
			role = llms.ChatMessageTypeSystem
		}
		content = append(content, llms.TextParts(role, m.Content))
	}

	resp, err := c.llm.GenerateContent(ctx, content,
		llms.WithTemperature(c.cfg.Temperature),
		llms.WithTopP(c.cfg.TopP),
	)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}
	return resp.Choices[0].Content, nil
}
