package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/supabase-go/internal/crypto"
	"github.com/felixgeelhaar/supabase-go/internal/transport"
	"github.com/felixgeelhaar/supabase-go/pkg/auth"
	"github.com/felixgeelhaar/supabase-go/pkg/config"
	"github.com/felixgeelhaar/supabase-go/pkg/observability"
	"github.com/felixgeelhaar/supabase-go/pkg/supabase"
	"github.com/redis/go-redis/v9"
)

// App holds the CLI application dependencies.
type App struct {
	Config  *config.Config
	Client  *supabase.Client
	Logger  *slog.Logger
	Metrics observability.Metrics

	redis *redis.Client
}

var app *App

// NewApp builds the client from cfg. Sessions are kept in Redis when
// cfg.RedisURL is set so that they survive between invocations.
func NewApp(cfg *config.Config, logger *slog.Logger, metrics observability.Metrics) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = observability.OrDefault(logger)
	metrics = observability.OrNoop(metrics)

	a := &App{Config: cfg, Logger: logger, Metrics: metrics}

	var store auth.SessionStore = auth.NewMemoryStore()
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		var sealer *crypto.Sealer
		if cfg.SessionEncryptionKey != "" {
			if sealer, err = crypto.NewSealerFromBase64(cfg.SessionEncryptionKey); err != nil {
				return nil, fmt.Errorf("session encryption key: %w", err)
			}
		}

		a.redis = redis.NewClient(opts)
		redisStore := auth.NewRedisStore(a.redis, 0)
		if sealer != nil {
			redisStore.WithSealer(sealer)
		}
		store = redisStore
	}

	breaker := transport.DefaultBreakerConfig()
	breaker.Enabled = cfg.BreakerEnabled
	breaker.FailureThreshold = cfg.BreakerFailureThreshold
	breaker.Timeout = cfg.BreakerTimeout

	a.Client = supabase.New(cfg.URL, cfg.Key, &supabase.Options{
		Schema:               cfg.Schema,
		AutoRefreshToken:     cfg.AutoRefreshToken,
		ListenForAuthChanges: cfg.ListenForAuthChanges,
		RefreshMargin:        cfg.RefreshMargin,
		SessionStore:         store,
		StorageKey:           cfg.SessionKey,
		HTTPClient:           transport.NewHTTPClient(cfg.HTTPTimeout, breaker, logger, metrics),
		Logger:               logger,
		Metrics:              metrics,
		OnAuthStateChange: func(event auth.Event, s *auth.Session) {
			logger.Info("auth state changed", "event", string(event), "signed_in", s != nil)
		},
	})
	return a, nil
}

// Restore loads the persisted session into the auth client.
func (a *App) Restore(ctx context.Context) error {
	_, err := a.Client.Auth().RestoreSession(ctx)
	return err
}

// Close releases the client and the Redis connection.
func (a *App) Close() error {
	a.Client.Close()
	// Waits for a running refresh to persist before the store is closed.
	a.Client.Auth().Close()
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}
