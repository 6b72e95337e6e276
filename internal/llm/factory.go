package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/abhisek/gradeproxy/internal/store"
)

// NewProvider creates a Provider from configuration.
// It returns the provider wrapped with caching, retry and logging middleware.
func NewProvider(ctx context.Context, cfg Config, eventRepo store.EventRepo, logger *zap.Logger) (Provider, error) {
	var base Provider
	var err error

	switch cfg.Provider {
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "openrouter":
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	if eventRepo == nil {
		eventRepo = store.NopEventRepo{}
	}

	// Wrap with middleware: caller → cache → retry → logging → base
	var p Provider = WithLogging(base, cfg.Provider, eventRepo, logger)
	p = WithRetry(p, cfg.Retry)

	if cfg.Cache.RedisURL != "" {
		cache, err := NewRedisCache(cfg.Cache.RedisURL)
		if err != nil {
			return nil, err
		}
		p = WithCache(p, cache, cfg.Cache, logger)
	}

	return p, nil
}
