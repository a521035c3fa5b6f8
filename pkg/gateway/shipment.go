package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/tournevent/cttgateway/pkg/shipper"
	"go.uber.org/zap"
)

// SendResult is the outcome of Send.
type SendResult struct {
	TrackingCode string
	Price        float64
	Attachments  []Attachment
	RawResponse  []byte
}

// Send manifests a shipment, records the tracking code and price on it and
// attaches its label. When only the label fetch fails, the result is
// returned together with the error.
func (g *Gateway) Send(ctx context.Context, accountID string, s *Shipment) (*SendResult, error) {
	account, adapter, err := g.adapter(accountID)
	if err != nil {
		return nil, err
	}

	var result *SendResult
	err = g.observe(ctx, "send", account, func(ctx context.Context) error {
		req := BuildRequest(account, s, time.Now())
		g.debug("Shipment request", zap.String("account", account.ID), zap.Any("request", req))

		created, err := adapter.CreateShipment(ctx, req)
		if err != nil {
			return err
		}
		g.debug("Shipment response", zap.String("account", account.ID), zap.ByteString("response", created.RawResponse))

		s.TrackingRef = AppendTrackingRef(s.TrackingRef, created.TrackingCode)
		s.Price = g.rate(account, s)
		result = &SendResult{
			TrackingCode: created.TrackingCode,
			Price:        s.Price,
			RawResponse:  created.RawResponse,
		}
		if created.TrackingCode == "" {
			return nil
		}

		if g.config.LabelDelay > 0 {
			select {
			case <-time.After(g.config.LabelDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		result.Attachments, err = g.fetchLabel(ctx, account, adapter, created.TrackingCode)
		if err != nil {
			return fmt.Errorf("fetching label for %s: %w", created.TrackingCode, err)
		}
		return nil
	})
	return result, err
}

// Cancel cancels every tracking code of ref. An empty ref is a no-op that
// returns false without contacting the carrier.
func (g *Gateway) Cancel(ctx context.Context, accountID, trackingRef string) (bool, error) {
	codes := TrackingCodes(trackingRef)
	if len(codes) == 0 {
		return false, nil
	}

	account, adapter, err := g.adapter(accountID)
	if err != nil {
		return false, err
	}

	err = g.observe(ctx, "cancel", account, func(ctx context.Context) error {
		for _, code := range codes {
			if err := adapter.CancelShipment(ctx, code); err != nil {
				return fmt.Errorf("cancelling %s: %w", code, err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// BulkTracking lists shipments by shipping date. Only REST accounts support it.
func (g *Gateway) BulkTracking(ctx context.Context, accountID string, query *shipper.BulkTrackingQuery) (*shipper.BulkTrackingPage, error) {
	account, adapter, err := g.adapter(accountID)
	if err != nil {
		return nil, err
	}

	var page *shipper.BulkTrackingPage
	err = g.observe(ctx, "bulk_tracking", account, func(ctx context.Context) error {
		var err error
		page, err = adapter.BulkTracking(ctx, query)
		return err
	})
	return page, err
}
