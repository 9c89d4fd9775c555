// README: Builds the configured upstream provider, with the shared Redis budget when enabled.
package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"itinera/internal/ai"
	"itinera/internal/config"
	"itinera/internal/logger"
	"itinera/internal/ratelimit"
)

// NewLimiter returns nil when no shared budget is configured.
func NewLimiter(cfg config.Config) (ai.Limiter, *redis.Client) {
	if cfg.Limits.UpstreamPerMinute <= 0 || cfg.Redis.Addr == "" {
		return nil, nil
	}
	client := NewRedis(cfg.Redis.Addr)
	logger.Info("shared upstream budget enabled", "per_minute", cfg.Limits.UpstreamPerMinute, "redis", cfg.Redis.Addr)
	return ratelimit.NewRedisWindow(client, int64(cfg.Limits.UpstreamPerMinute), time.Minute), client
}

// NewProvider builds the provider named by cfg.AI.Provider. The returned
// close function releases provider resources.
func NewProvider(ctx context.Context, cfg config.Config, limiter ai.Limiter) (ai.Provider, func() error, error) {
	switch cfg.AI.Provider {
	case config.ProviderGemini:
		p, err := ai.NewGeminiClient(ctx, ai.GeminiOptions{
			APIKey:      cfg.AI.GeminiKey,
			Model:       cfg.AI.Model,
			Temperature: float32(cfg.AI.Temperature),
			MaxTokens:   int32(cfg.AI.MaxTokens),
			MaxAttempts: cfg.AI.MaxAttempts,
			Limiter:     limiter,
		})
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	case config.ProviderOpenAI:
		p, err := ai.NewOpenAIClient(ai.OpenAIOptions{
			BaseURL:     cfg.AI.BaseURL,
			APIKey:      cfg.AI.OpenAIKey,
			Model:       cfg.AI.Model,
			Temperature: cfg.AI.Temperature,
			MaxTokens:   cfg.AI.MaxTokens,
			Timeout:     cfg.AI.RequestTimeout,
			MaxAttempts: cfg.AI.MaxAttempts,
			Limiter:     limiter,
		})
		if err != nil {
			return nil, nil, err
		}
		return p, func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown provider %q", cfg.AI.Provider)
}
