package main

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/time/rate"

	"github.com/okian/minirank/internal/adapters/cache"
	"github.com/okian/minirank/internal/adapters/nyt"
	"github.com/okian/minirank/internal/adapters/repository"
	"github.com/okian/minirank/internal/adapters/repository/postgres"
	"github.com/okian/minirank/internal/adapters/repository/sqlite"
	app "github.com/okian/minirank/internal/app"
	"github.com/okian/minirank/internal/config"
	"github.com/okian/minirank/internal/domain/rating"
	"github.com/okian/minirank/pkg/logger"
)

// setup loads configuration and initializes logging.
func setup(ctx context.Context) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithOutput(os.Stderr)); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, logger.Get(), nil
}

// openStore opens the configured backend.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return repository.NewMemoryStore(), nil
	case config.StoreSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath)
	case config.StorePostgres:
		return postgres.Open(ctx, cfg.PostgresURL)
	default:
		return nil, fmt.Errorf("%w: %w %q", config.ErrInvalidConfig, config.ErrUnknownStore, cfg.Store)
	}
}

// newService builds the service with every configured adapter.
func newService(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	log.Info(ctx, "store opened", logger.String("store", cfg.Store))

	fetcher := nyt.NewClient(cfg.NYTToken,
		nyt.WithBaseURL(cfg.NYTBaseURL),
		nyt.WithTimeout(cfg.NYTTimeout()),
		nyt.WithRateLimit(rate.Limit(cfg.NYTRequestsPerSecond)),
		nyt.WithRetry(cfg.FetchAttempts, cfg.FetchRetryDelay()),
		nyt.WithLogger(log.Named("nyt")),
	)

	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithFetcher(fetcher),
		app.WithLocation(loc),
		app.WithPriors(rating.Config{Mu: cfg.RatingMu, Sigma: cfg.RatingSigma}),
		app.WithScale(cfg.ScoreScale),
		app.WithTrailingWindows(cfg.TrailingWindows),
	}
	if cfg.RedisAddr != "" {
		c, err := cache.New(ctx, cache.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			// The cache is optional; reads fall back to the store.
			log.Warn(ctx, "redis unavailable; serving from the store", logger.String("addr", cfg.RedisAddr), logger.Error(err))
		} else {
			opts = append(opts, app.WithPublisher(c))
		}
	}
	return app.New(store, opts...), nil
}
