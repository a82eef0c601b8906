// Package app wires one storefront client from configuration. Both the
// headless API and the terminal client are built on it.
package app

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"storefront/internal/analytics"
	"storefront/internal/auth"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/experiment"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/services/storeapi"
	"storefront/internal/storefront"
)

type App struct {
	Config      *config.Config
	DB          *database.Database
	Metrics     *metrics.Metrics
	DataLayer   *analytics.DataLayer
	Gate        *auth.Gate
	Google      *auth.GoogleFederator
	Experiments *experiment.Engine
	Storefront  *storefront.Storefront

	closers []func() error
	logger  *logger.Logger
}

// New builds every collaborator. prompt is used by Google sign-in when no
// grant arrives on the context; nil disables that path.
func New(cfg *config.Config, log *logger.Logger, prompt auth.CodePrompt) (*App, error) {
	a := &App{
		Config:    cfg,
		Metrics:   metrics.New(),
		DataLayer: analytics.NewDataLayer(),
		logger:    log,
	}

	db, err := database.New(cfg.DatabaseURL, log.IsDebug())
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)

	sessions, err := a.sessionStore()
	if err != nil {
		a.Close()
		return nil, err
	}

	var sink analytics.Sink = a.DataLayer
	switch strings.ToLower(cfg.AnalyticsSink) {
	case "", "datalayer":
	case "kafka":
		kafkaSink := analytics.NewKafkaSink(cfg.KafkaBrokers, cfg.AnalyticsTopic, "storefront", log)
		a.closers = append(a.closers, kafkaSink.Close)
		sink = analytics.Tee{a.DataLayer, kafkaSink}
	default:
		a.Close()
		return nil, errors.Errorf("unknown analytics sink %q", cfg.AnalyticsSink)
	}

	engine, err := experiment.NewEngine(experiment.Config{
		SiteCode: cfg.ExperimentSiteCode,
		Flags:    cfg.FeatureFlags,
	}, experiment.NewGormStore(db.DB), log)
	if err != nil {
		a.Close()
		return nil, errors.Wrap(err, "feature flags")
	}
	a.Experiments = engine

	gateCfg := auth.GateConfig{
		Provider:   auth.NewLocalProvider(db.DB, log),
		Store:      sessions,
		StoreKey:   cfg.SessionKey,
		Sink:       sink,
		Correlator: engine,
		Metrics:    a.Metrics,
		Logger:     log,
	}
	if cfg.GoogleClientID != "" {
		a.Google = auth.NewGoogleFederator(auth.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		}, prompt, log)
		gateCfg.Federator = a.Google
	}
	a.Gate = auth.NewGate(gateCfg)

	client := storeapi.NewClient(storeapi.Config{
		BaseURL:     cfg.StoreAPIURL,
		Timeout:     cfg.RequestTimeout,
		MaxFailures: cfg.BreakerMaxFailures,
	}, a.Metrics, log)

	a.Storefront = storefront.New(storefront.Config{
		Store:        client,
		Sessions:     a.Gate,
		Experiments:  engine,
		Sink:         sink,
		Metrics:      a.Metrics,
		Logger:       log,
		CheckoutGoal: cfg.ExperimentCheckoutGoal,
	})
	return a, nil
}

func (a *App) sessionStore() (auth.SessionStore, error) {
	switch strings.ToLower(a.Config.SessionStore) {
	case "", "database":
		return auth.NewDBStore(a.DB.DB, a.Config.SessionTTL), nil
	case "redis":
		opts, err := redis.ParseURL(a.Config.RedisURL)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis url")
		}
		client := redis.NewClient(opts)
		a.closers = append(a.closers, client.Close)
		return auth.NewRedisStore(client, a.Config.SessionTTL), nil
	default:
		return nil, errors.Errorf("unknown session store %q", a.Config.SessionStore)
	}
}

// Mount loads the initial storefront state.
func (a *App) Mount(ctx context.Context) {
	a.Storefront.Mount(ctx)
}

// Close releases everything New opened, newest first.
func (a *App) Close() {
	if a.Storefront != nil {
		a.Storefront.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close: %v", err)
		}
	}
	a.closers = nil
}
