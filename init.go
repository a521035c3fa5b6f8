package main

import (
	"context"
	"fmt"

	"github.com/tournevent/cttgateway/internal/broker/kafka"
	"github.com/tournevent/cttgateway/internal/cache/rediscache"
	"github.com/tournevent/cttgateway/internal/config"
	"github.com/tournevent/cttgateway/internal/storage/pgtoken"
	"github.com/tournevent/cttgateway/internal/telemetry"
	"github.com/tournevent/cttgateway/pkg/gateway"
	"github.com/tournevent/cttgateway/pkg/shipper/auth"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// app bundles everything a command needs.
type app struct {
	cfg     *config.Config
	logger  *otelzap.Logger
	gateway *gateway.Gateway
	tokens  auth.TokenCache
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.logger.Sync()
}

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(cfg *config.Config) (*otelzap.Logger, error) {
	return telemetry.NewLogger(telemetry.LogConfig{
		Level:       cfg.LogLevel,
		Debug:       cfg.Debug,
		ServiceName: cfg.ServiceName,
		Version:     cfg.Version,
	})
}

func initTracer(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return func(context.Context) error { return nil }, nil
	}

	_, shutdown, err := telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.Attributes()...)
	return shutdown, err
}

func initTokenCache(cfg *config.Config) (auth.TokenCache, func(), error) {
	switch cfg.TokenCache {
	case "", "memory":
		return auth.NewMemoryCache(), func() {}, nil
	case "file":
		cache, err := auth.NewFileCache(cfg.TokenCacheDir)
		if err != nil {
			return nil, nil, err
		}
		return cache, func() {}, nil
	case "redis":
		cache := rediscache.New(cfg.RedisAddr)
		return cache, func() { cache.Close() }, nil
	case "postgres":
		store, err := pgtoken.New(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown token cache %q", cfg.TokenCache)
	}
}

// newApp loads configuration and accounts and wires the gateway.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		a.closers = append(a.closers, func() { tracerShutdown(context.Background()) })
	}

	registry, err := config.LoadAccounts(cfg.AccountsFile)
	if err != nil {
		a.Close()
		return nil, err
	}

	cache, closeCache, err := initTokenCache(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.tokens = cache
	a.closers = append(a.closers, closeCache)

	factory := gateway.NewFactory(gateway.AdapterConfig{
		LegacyEndpoint: cfg.LegacyEndpoint,
		RESTBaseURL:    cfg.RESTBaseURL,
		TokenURL:       cfg.TokenURL,
		Timeout:        cfg.Timeout,
		UseMock:        cfg.UseMock,
		Debug:          cfg.Debug,
		Platform:       cfg.Platform,
		TokenCache:     cache,
	}, logger)

	opts := []gateway.Option{
		gateway.WithRateFunc(gateway.FixedRate(cfg.FixedPrice)),
		gateway.WithRecorder(telemetry.NewMetrics()),
		gateway.WithTracer(otel.Tracer(cfg.ServiceName)),
	}
	if cfg.KafkaEnabled {
		sink := kafka.NewStateSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		a.closers = append(a.closers, func() { sink.Close() })
		opts = append(opts, gateway.WithStateSink(sink))
	}

	a.gateway = gateway.New(registry, factory, gateway.Config{
		Debug:               cfg.Debug,
		ManifestConcurrency: cfg.ManifestConcurrency,
		LabelDelay:          cfg.LabelDelay,
	}, logger, opts...)

	logger.Info("Gateway ready",
		zap.Int("accounts", registry.Count()),
		zap.String("token_cache", cfg.TokenCache),
		zap.Bool("kafka", cfg.KafkaEnabled),
	)
	return a, nil
}
