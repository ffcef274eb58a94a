// Package llm selects the remote completion provider.
package llm

import (
	"context"
	"errors"
	"fmt"

	"supportbot/internal/config"
	"supportbot/internal/domain"
	"supportbot/internal/llm/gemini"
	"supportbot/internal/llm/openai"
)

// ErrUnavailable is returned by the Unavailable completer.
var ErrUnavailable = errors.New("no completion provider configured")

// Unavailable always fails, so every FAQ miss degrades to the fallback reply.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Name() string { return "unavailable" }

func (u Unavailable) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	if u.Reason != "" {
		return "", fmt.Errorf("%w: %s", ErrUnavailable, u.Reason)
	}
	return "", ErrUnavailable
}

// New builds the completer named by cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig) (domain.Completer, error) {
	switch cfg.Provider {
	case "openai", "":
		oc := config.OpenAIConfig{}
		if cfg.OpenAI != nil {
			oc = *cfg.OpenAI
		}
		retries := 2
		if oc.MaxRetries != nil {
			retries = *oc.MaxRetries
		}
		c, err := openai.NewClient(openai.Config{
			BaseURL:    oc.BaseURL,
			APIKeyEnv:  oc.APIKeyEnv,
			Timeout:    cfg.Timeout(),
			MaxRetries: retries,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case "gemini":
		gc := config.GeminiConfig{}
		if cfg.Gemini != nil {
			gc = *cfg.Gemini
		}
		c, err := gemini.NewClient(ctx, gemini.Config{APIKeyEnv: gc.APIKeyEnv})
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
