package gateway

import (
	"time"

	"github.com/tournevent/cttgateway/pkg/shipper"
	"github.com/tournevent/cttgateway/pkg/shipper/auth"
	"github.com/tournevent/cttgateway/pkg/shipper/legacy"
	"github.com/tournevent/cttgateway/pkg/shipper/rest"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
)

// AdapterConfig holds the settings shared by every adapter the factory builds.
type AdapterConfig struct {
	// LegacyEndpoint overrides the production/test endpoint of legacy accounts.
	LegacyEndpoint string
	RESTBaseURL    string
	TokenURL       string
	Timeout        time.Duration
	UseMock        bool
	Debug          bool
	Platform       string
	TokenCache     auth.TokenCache
}

// NewFactory returns a Factory building legacy and REST adapters.
func NewFactory(cfg AdapterConfig, logger *otelzap.Logger) Factory {
	return func(account *shipper.CarrierAccount) (shipper.Shipper, error) {
		switch account.Protocol {
		case shipper.ProtocolSOAP:
			return legacy.New(legacy.Config{
				Account:  account,
				Endpoint: cfg.LegacyEndpoint,
				Timeout:  cfg.Timeout,
				UseMock:  cfg.UseMock,
				Debug:    cfg.Debug,
			}, logger), nil
		case shipper.ProtocolREST:
			return rest.New(rest.Config{
				Account:    account,
				BaseURL:    cfg.RESTBaseURL,
				TokenURL:   cfg.TokenURL,
				Timeout:    cfg.Timeout,
				UseMock:    cfg.UseMock,
				Debug:      cfg.Debug,
				Platform:   cfg.Platform,
				TokenCache: cfg.TokenCache,
			}, logger), nil
		default:
			return nil, shipper.NewValidationError("INVALID_PROTOCOL",
				"account "+account.ID+": unknown protocol "+string(account.Protocol))
		}
	}
}
