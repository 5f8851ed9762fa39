// Package llm builds the language model used by the llm-backed matcher and
// locator. Every provider is reached through langchaingo, so callers only
// ever see an llms.Model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/nadzzz/stockline/internal/config"
)

// ErrMissingAPIKey is returned for hosted providers configured without a key.
var ErrMissingAPIKey = errors.New("llm api key not configured")

// New creates a model for the configured provider.
func New(ctx context.Context, cfg config.LLMConfig) (llms.Model, error) {
	switch strings.ToLower(cfg.Provider) {
	case "googleai", "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("googleai: %w", ErrMissingAPIKey)
		}
		opts := []googleai.Option{googleai.WithAPIKey(cfg.APIKey)}
		if cfg.Model != "" {
			opts = append(opts, googleai.WithDefaultModel(cfg.Model))
		}
		m, err := googleai.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("googleai: %w", err)
		}
		return m, nil

	case "openai":
		if cfg.APIKey == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
		}
		token := cfg.APIKey
		if token == "" {
			// Local OpenAI-compatible servers accept any token.
			token = "none"
		}
		opts := []openai.Option{openai.WithToken(token)}
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		m, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("openai: %w", err)
		}
		return m, nil

	case "ollama":
		opts := []ollama.Option{}
		if cfg.Model != "" {
			opts = append(opts, ollama.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		m, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("ollama: %w", err)
		}
		return m, nil

	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// Complete sends a single prompt and returns the trimmed reply text, with any
// surrounding quotes or markdown fences removed.
func Complete(ctx context.Context, model llms.Model, prompt string, temperature float64) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, model, prompt, llms.WithTemperature(temperature))
	if err != nil {
		return "", err
	}
	return cleanReply(out), nil
}

func cleanReply(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```text")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}
