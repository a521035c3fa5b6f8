// Package gateway is the caller-facing facade of the CTT Express integration.
// It resolves accounts, builds shipment requests, dispatches them to the
// protocol adapter of each account and normalizes what comes back.
package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tournevent/cttgateway/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	instrumentationName        = "github.com/tournevent/cttgateway/pkg/gateway"
	defaultManifestConcurrency = 4
)

// Factory builds the protocol adapter of an account.
type Factory func(account *shipper.CarrierAccount) (shipper.Shipper, error)

// Recorder receives operation metrics.
type Recorder interface {
	RecordRequest(operation, protocol, status string, duration float64)
	RecordError(protocol, kind string)
}

// Config holds gateway settings.
type Config struct {
	// Debug logs request and response values of every operation.
	Debug bool
	// ManifestConcurrency bounds concurrent manifest fetches.
	ManifestConcurrency int
	// RecognizedStates restricts the states UpdateTrackingState accepts.
	// Empty means every DeliveryState.
	RecognizedStates []shipper.DeliveryState
	// LabelDelay is waited between creating a shipment and fetching its label.
	LabelDelay time.Duration
}

// Gateway dispatches operations to the adapter of each account.
type Gateway struct {
	registry   *shipper.Registry
	factory    Factory
	config     Config
	rate       RateFunc
	sink       StateSink
	metrics    Recorder
	translator *shipper.Translator
	recognized map[shipper.DeliveryState]bool
	logger     *otelzap.Logger
	tracer     trace.Tracer

	mu       sync.Mutex
	adapters map[string]shipper.Shipper
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithRateFunc sets the pricing function used by Send.
func WithRateFunc(fn RateFunc) Option {
	return func(g *Gateway) { g.rate = fn }
}

// WithStateSink publishes every tracking state update to sink.
func WithStateSink(sink StateSink) Option {
	return func(g *Gateway) { g.sink = sink }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(g *Gateway) { g.metrics = r }
}

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(g *Gateway) { g.tracer = t }
}

// WithTranslator replaces the default status code translator.
func WithTranslator(t *shipper.Translator) Option {
	return func(g *Gateway) { g.translator = t }
}

// New creates a gateway over the accounts of registry.
func New(registry *shipper.Registry, factory Factory, cfg Config, logger *otelzap.Logger, opts ...Option) *Gateway {
	if cfg.ManifestConcurrency <= 0 {
		cfg.ManifestConcurrency = defaultManifestConcurrency
	}
	states := cfg.RecognizedStates
	if len(states) == 0 {
		states = shipper.DeliveryStates()
	}

	g := &Gateway{
		registry:   registry,
		factory:    factory,
		config:     cfg,
		rate:       FixedRate(DefaultPrice),
		metrics:    nopRecorder{},
		translator: shipper.NewTranslator(),
		recognized: make(map[shipper.DeliveryState]bool, len(states)),
		logger:     logger,
		tracer:     otel.Tracer(instrumentationName),
		adapters:   make(map[string]shipper.Shipper),
	}
	for _, s := range states {
		g.recognized[s] = true
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Registry returns the account registry.
func (g *Gateway) Registry() *shipper.Registry {
	return g.registry
}

// adapter resolves an account and its memoized adapter. The account is
// re-validated on every call since registered accounts may be edited in place.
func (g *Gateway) adapter(accountID string) (*shipper.CarrierAccount, shipper.Shipper, error) {
	account, err := g.registry.Get(accountID)
	if err != nil {
		return nil, nil, err
	}
	if err := account.Validate(); err != nil {
		return nil, nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.adapters[accountID]; ok {
		return account, s, nil
	}
	s, err := g.factory(account)
	if err != nil {
		return nil, nil, fmt.Errorf("building adapter for account %s: %w", accountID, err)
	}
	g.adapters[accountID] = s
	return account, s, nil
}

// observe runs fn inside a span and records its outcome.
func (g *Gateway) observe(ctx context.Context, operation string, account *shipper.CarrierAccount, fn func(ctx context.Context) error) error {
	ctx, span := g.tracer.Start(ctx, "gateway."+operation, trace.WithAttributes(
		attribute.String("ctt.account", account.ID),
		attribute.String("ctt.protocol", string(account.Protocol)),
	))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		kind := string(shipper.KindOf(err))
		if kind == "" {
			kind = "unknown"
		}
		g.metrics.RecordError(string(account.Protocol), kind)
		g.logger.Ctx(ctx).Error("Gateway operation failed",
			zap.String("operation", operation),
			zap.String("account", account.ID),
			zap.Error(err),
		)
	}
	g.metrics.RecordRequest(operation, string(account.Protocol), status, duration)
	return err
}

func (g *Gateway) debug(msg string, fields ...zap.Field) {
	if g.config.Debug {
		g.logger.Debug(msg, fields...)
	}
}

type nopRecorder struct{}

func (nopRecorder) RecordRequest(string, string, string, float64) {}
func (nopRecorder) RecordError(string, string)                    {}
