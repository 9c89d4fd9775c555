// README: Entry point; loads config, wires the provider and stores, serves the HTTP API until shutdown.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"itinera/internal/config"
	httptransport "itinera/internal/http"
	"itinera/internal/infra"
	"itinera/internal/logger"
	"itinera/internal/modules/saved"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", "err", err)
	}
	if err := logger.Init(logger.Config{Level: cfg.Log.Level, File: cfg.Log.File, JSON: cfg.Log.JSON}); err != nil {
		logger.Fatal("init logger", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := newRepository(ctx, cfg)
	if err != nil {
		logger.Fatal("init store", "backend", cfg.Store.Backend, "err", err)
	}
	defer closeRepo()

	limiter, redisClient := infra.NewLimiter(cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	provider, closeProvider, err := infra.NewProvider(ctx, cfg, limiter)
	if err != nil {
		logger.Fatal("init provider", "provider", cfg.AI.Provider, "err", err)
	}
	defer closeProvider()

	server := httptransport.NewServer(cfg.HTTP.Addr, httptransport.ServerDeps{
		Provider:       provider,
		Saved:          saved.NewService(repo),
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		StreamTimeout:  cfg.Session.AttemptTimeout,
		BufferTimeout:  time.Duration(max(cfg.AI.MaxAttempts, 1)) * cfg.AI.RequestTimeout,
	})

	logger.Info("itinera api starting", "provider", provider.Name(), "store", cfg.Store.Backend)
	if err := server.Run(ctx); err != nil {
		logger.Error("http server stopped", "err", err)
		os.Exit(1)
	}
}

func newRepository(ctx context.Context, cfg config.Config) (saved.Repository, func(), error) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		db, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			return nil, nil, err
		}
		return saved.NewPostgresStore(db), db.Close, nil
	case config.StoreMongo:
		client, err := infra.NewMongo(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, nil, err
		}
		store := saved.NewMongoStore(client.Database(cfg.Mongo.Database))
		if err := store.EnsureIndexes(ctx); err != nil {
			logger.Warn("mongo index creation failed", "err", err)
		}
		return store, func() { _ = client.Disconnect(context.Background()) }, nil
	}
	logger.Warn("using in-memory itinerary store; saved itineraries are lost on restart")
	return saved.NewMemoryStore(), func() {}, nil
}
