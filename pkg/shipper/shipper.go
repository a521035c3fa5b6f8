// Package shipper provides the protocol-neutral model of the CTT Express
// carrier: accounts, shipment requests, tracking events, delivery states and
// the operation set every wire protocol adapter implements.
package shipper

import (
	"context"
)

// Shipper defines the operations that every protocol adapter must implement.
// An adapter is bound to a single CarrierAccount.
type Shipper interface {
	// Protocol returns the wire protocol spoken by the adapter.
	Protocol() Protocol

	// CreateShipment manifests a new shipment with the carrier.
	CreateShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentResult, error)

	// CancelShipment cancels a shipment by its tracking code.
	CancelShipment(ctx context.Context, trackingCode string) error

	// GetLabel retrieves the label documents of a shipment.
	GetLabel(ctx context.Context, trackingCode string, spec LabelSpec) ([]Document, error)

	// GetTracking returns the event history of a shipment.
	GetTracking(ctx context.Context, trackingCode string) ([]TrackingEvent, error)

	// BulkTracking queries shipments of a client center by shipping date.
	BulkTracking(ctx context.Context, query *BulkTrackingQuery) (*BulkTrackingPage, error)

	// Manifest returns the shipping report for a date range.
	Manifest(ctx context.Context, req *ManifestRequest) ([]Document, error)

	// RequestPickup books a pickup and returns its code.
	RequestPickup(ctx context.Context, req *PickupRequest) (string, error)

	// ValidateUser checks the account credentials against the carrier.
	ValidateUser(ctx context.Context) error

	// ServiceTypes lists the service types allowed for the account.
	ServiceTypes(ctx context.Context) ([]ServiceType, error)
}
