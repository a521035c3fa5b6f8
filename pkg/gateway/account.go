package gateway

import (
	"context"
	"strings"

	"github.com/tournevent/cttgateway/pkg/shipper"
	"go.uber.org/zap"
)

// ValidateAccount checks the account configuration and, where the protocol
// allows it, the credentials and the configured service type against the
// carrier.
func (g *Gateway) ValidateAccount(ctx context.Context, accountID string) error {
	account, adapter, err := g.adapter(accountID)
	if err != nil {
		return err
	}

	return g.observe(ctx, "validate", account, func(ctx context.Context) error {
		service := strings.TrimSpace(account.ServiceType)
		if service == "" {
			service = shipper.DefaultService(account.Protocol)
		}

		if account.Protocol == shipper.ProtocolREST {
			if !shipper.HasService(shipper.ProtocolREST, service) {
				return serviceNotAllowed(account, service)
			}
			return nil
		}

		if err := adapter.ValidateUser(ctx); err != nil {
			return err
		}
		allowed, err := adapter.ServiceTypes(ctx)
		if err != nil {
			return err
		}
		for _, s := range allowed {
			if s.Code == service {
				return nil
			}
		}
		return serviceNotAllowed(account, service)
	})
}

func serviceNotAllowed(account *shipper.CarrierAccount, service string) error {
	return shipper.NewValidationError("SERVICE_NOT_ALLOWED",
		"account "+account.ID+": service type "+service+" is not allowed")
}

// ServiceTypes lists the service types of an account. REST accounts use the
// static catalogue.
func (g *Gateway) ServiceTypes(ctx context.Context, accountID string) ([]shipper.ServiceType, error) {
	account, adapter, err := g.adapter(accountID)
	if err != nil {
		return nil, err
	}
	if account.Protocol == shipper.ProtocolREST {
		return shipper.Services(shipper.ProtocolREST), nil
	}

	var types []shipper.ServiceType
	err = g.observe(ctx, "service_types", account, func(ctx context.Context) error {
		var err error
		types, err = adapter.ServiceTypes(ctx)
		return err
	})
	return types, err
}

// RequestPickup books a courier pickup and returns its code.
func (g *Gateway) RequestPickup(ctx context.Context, accountID string, req *shipper.PickupRequest) (string, error) {
	account, adapter, err := g.adapter(accountID)
	if err != nil {
		return "", err
	}

	var code string
	err = g.observe(ctx, "pickup", account, func(ctx context.Context) error {
		var err error
		code, err = adapter.RequestPickup(ctx, req)
		return err
	})
	if err == nil {
		g.logger.Info("Pickup requested", zap.String("account", accountID), zap.String("code", code))
	}
	return code, err
}
