// README: Shared command context for the itinera CLI; commands pick a local provider or a remote API.
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"itinera/internal/client"
	"itinera/internal/config"
	"itinera/internal/infra"
	"itinera/internal/itinerary"
	"itinera/internal/session"
	"itinera/internal/stream"
)

// Context is handed to every command's Run method.
type Context struct {
	Ctx    context.Context
	Out    io.Writer
	Server string
}

func (c *Context) client() (*client.Client, error) {
	if c.Server == "" {
		return nil, fmt.Errorf("--server is required for this command")
	}
	return client.New(client.Options{BaseURL: c.Server}), nil
}

// planner opens sources for preferences either through the API or with an
// in-process provider built from the environment.
type planner struct {
	source  func(itinerary.TripPreferences) session.Source
	options session.Options
	close   func() error
}

func (c *Context) planner() (*planner, error) {
	if c.Server != "" {
		api := client.New(client.Options{BaseURL: c.Server})
		return &planner{
			source: func(p itinerary.TripPreferences) session.Source { return api.Source(p) },
			close:  func() error { return nil },
		}, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	limiter, redisClient := infra.NewLimiter(cfg)
	provider, closeProvider, err := infra.NewProvider(c.Ctx, cfg, limiter)
	if err != nil {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, err
	}
	return &planner{
		source: func(p itinerary.TripPreferences) session.Source { return stream.NewGenerator(provider, p) },
		options: session.Options{
			MaxRetries:     retryLimit(cfg.Session.MaxRetries),
			RetryDelay:     cfg.Session.RetryDelay,
			AttemptTimeout: cfg.Session.AttemptTimeout,
		},
		close: func() error {
			if redisClient != nil {
				_ = redisClient.Close()
			}
			return closeProvider()
		},
	}, nil
}

// retryLimit maps the configured retry count onto session options, where
// zero selects the default.
func retryLimit(n int) int {
	if n <= 0 {
		return session.NoRetries
	}
	return n
}

func parseDate(s string) (time.Time, error) {
	d, err := itinerary.ParseDate(s)
	if err != nil {
		return time.Time{}, err
	}
	return d.Time, nil
}
