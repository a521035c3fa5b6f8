// Package mock provides an in-memory shipper implementation for testing.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tournevent/cttgateway/pkg/shipper"
)

// Client is a mock shipper that records every call. Hooks replace the
// default behavior of single operations.
type Client struct {
	protocol shipper.Protocol

	OnCreateShipment func(ctx context.Context, req *shipper.ShipmentRequest) (*shipper.ShipmentResult, error)
	OnCancelShipment func(ctx context.Context, trackingCode string) error
	OnGetLabel       func(ctx context.Context, trackingCode string, spec shipper.LabelSpec) ([]shipper.Document, error)
	OnGetTracking    func(ctx context.Context, trackingCode string) ([]shipper.TrackingEvent, error)
	OnBulkTracking   func(ctx context.Context, query *shipper.BulkTrackingQuery) (*shipper.BulkTrackingPage, error)
	OnManifest       func(ctx context.Context, req *shipper.ManifestRequest) ([]shipper.Document, error)
	OnRequestPickup  func(ctx context.Context, req *shipper.PickupRequest) (string, error)
	OnValidateUser   func(ctx context.Context) error
	OnServiceTypes   func(ctx context.Context) ([]shipper.ServiceType, error)

	mu    sync.Mutex
	seq   int
	calls map[string]int
}

// New creates a new mock shipper speaking the given protocol.
func New(protocol shipper.Protocol) *Client {
	return &Client{protocol: protocol, calls: make(map[string]int)}
}

// Calls returns how many times the named operation was invoked.
func (c *Client) Calls(operation string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[operation]
}

// TotalCalls returns the number of invocations of any operation.
func (c *Client) TotalCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

func (c *Client) record(operation string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[operation]++
}

// Protocol returns the configured protocol.
func (c *Client) Protocol() shipper.Protocol {
	return c.protocol
}

// CreateShipment returns a sequential tracking code.
func (c *Client) CreateShipment(ctx context.Context, req *shipper.ShipmentRequest) (*shipper.ShipmentResult, error) {
	c.record("CreateShipment")
	if c.OnCreateShipment != nil {
		return c.OnCreateShipment(ctx, req)
	}
	c.mu.Lock()
	c.seq++
	code := fmt.Sprintf("0082%016d", c.seq)
	c.mu.Unlock()
	return &shipper.ShipmentResult{TrackingCode: code}, nil
}

// CancelShipment always succeeds.
func (c *Client) CancelShipment(ctx context.Context, trackingCode string) error {
	c.record("CancelShipment")
	if c.OnCancelShipment != nil {
		return c.OnCancelShipment(ctx, trackingCode)
	}
	return nil
}

// GetLabel returns one fake document in the requested format.
func (c *Client) GetLabel(ctx context.Context, trackingCode string, spec shipper.LabelSpec) ([]shipper.Document, error) {
	c.record("GetLabel")
	if c.OnGetLabel != nil {
		return c.OnGetLabel(ctx, trackingCode, spec)
	}
	return []shipper.Document{{
		Name:    trackingCode + "." + spec.Format.Extension(),
		Content: []byte("mock label " + trackingCode),
	}}, nil
}

// GetTracking returns a single recorded event.
func (c *Client) GetTracking(ctx context.Context, trackingCode string) ([]shipper.TrackingEvent, error) {
	c.record("GetTracking")
	if c.OnGetTracking != nil {
		return c.OnGetTracking(ctx, trackingCode)
	}
	now := time.Now()
	code := "0"
	if c.protocol == shipper.ProtocolREST {
		code = "0000"
	}
	return []shipper.TrackingEvent{{Time: &now, StatusCode: code, StatusDescription: "Recorded"}}, nil
}

// BulkTracking returns an empty page.
func (c *Client) BulkTracking(ctx context.Context, query *shipper.BulkTrackingQuery) (*shipper.BulkTrackingPage, error) {
	c.record("BulkTracking")
	if c.OnBulkTracking != nil {
		return c.OnBulkTracking(ctx, query)
	}
	return &shipper.BulkTrackingPage{Page: query.Page, PageLimit: query.PageLimit}, nil
}

// Manifest returns one fake report.
func (c *Client) Manifest(ctx context.Context, req *shipper.ManifestRequest) ([]shipper.Document, error) {
	c.record("Manifest")
	if c.OnManifest != nil {
		return c.OnManifest(ctx, req)
	}
	return []shipper.Document{{Name: "report." + req.Format.Extension(), Content: []byte("mock report")}}, nil
}

// RequestPickup returns a fixed pickup code.
func (c *Client) RequestPickup(ctx context.Context, req *shipper.PickupRequest) (string, error) {
	c.record("RequestPickup")
	if c.OnRequestPickup != nil {
		return c.OnRequestPickup(ctx, req)
	}
	return "PICKUP-" + req.Date.Format("20060102"), nil
}

// ValidateUser always succeeds.
func (c *Client) ValidateUser(ctx context.Context) error {
	c.record("ValidateUser")
	if c.OnValidateUser != nil {
		return c.OnValidateUser(ctx)
	}
	return nil
}

// ServiceTypes returns the static catalogue of the protocol.
func (c *Client) ServiceTypes(ctx context.Context) ([]shipper.ServiceType, error) {
	c.record("ServiceTypes")
	if c.OnServiceTypes != nil {
		return c.OnServiceTypes(ctx)
	}
	return shipper.Services(c.protocol), nil
}

var _ shipper.Shipper = (*Client)(nil)
