package rest

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/cttgateway/pkg/shipper"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnCreateShipping func(ctx context.Context, req *ShippingRequest) (*ShippingResponse, error)
	OnCancelShipping func(ctx context.Context, shippingCode string) error
	OnGetLabels      func(ctx context.Context, shippingCode string, params LabelParams) (*LabelResponse, error)
	OnGetHistory     func(ctx context.Context, shippingCode string) (*HistoryResponse, error)
	OnListShippings  func(ctx context.Context, query *ShippingsQuery) (*ShippingsResponse, error)
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

func (m *MockAPIClient) simulate() error {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}
	if m.SimulateErrors {
		return shipper.CheckCarrierMessages([]shipper.CarrierMessage{
			{Code: "MOCK_ERROR", Message: "Simulated API error"},
		})
	}
	return nil
}

// CreateShipping returns a random shipping code.
func (m *MockAPIClient) CreateShipping(ctx context.Context, req *ShippingRequest) (*ShippingResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCreateShipping != nil {
		return m.OnCreateShipping(ctx, req)
	}
	resp := &ShippingResponse{}
	resp.ShippingData.ShippingCode = "0082" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:18]
	resp.Raw = []byte(`{"shipping_data":{"shipping_code":"` + resp.ShippingData.ShippingCode + `"}}`)
	return resp, nil
}

// CancelShipping always succeeds.
func (m *MockAPIClient) CancelShipping(ctx context.Context, shippingCode string) error {
	if err := m.simulate(); err != nil {
		return err
	}
	if m.OnCancelShipping != nil {
		return m.OnCancelShipping(ctx, shippingCode)
	}
	return nil
}

// GetLabels returns a single fake PDF label.
func (m *MockAPIClient) GetLabels(ctx context.Context, shippingCode string, params LabelParams) (*LabelResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGetLabels != nil {
		return m.OnGetLabels(ctx, shippingCode, params)
	}
	resp := &LabelResponse{}
	resp.Data = append(resp.Data, struct {
		Label string `json:"label"`
	}{Label: base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 mock label " + shippingCode))})
	return resp, nil
}

// GetHistory returns a recorded and an in transit event.
func (m *MockAPIClient) GetHistory(ctx context.Context, shippingCode string) (*HistoryResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGetHistory != nil {
		return m.OnGetHistory(ctx, shippingCode)
	}
	now := time.Now().UTC()
	resp := &HistoryResponse{}
	resp.Data.ShippingHistory.Events = []HistoryEvent{
		{EventDate: now.Add(-2 * time.Hour).Format(time.RFC3339), Code: "0000", Description: "Grabado"},
		{EventDate: now.Format(time.RFC3339), Code: "1500", Description: "En reparto"},
	}
	return resp, nil
}

// ListShippings returns an empty page.
func (m *MockAPIClient) ListShippings(ctx context.Context, query *ShippingsQuery) (*ShippingsResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnListShippings != nil {
		return m.OnListShippings(ctx, query)
	}
	return &ShippingsResponse{}, nil
}

var _ APIClient = (*MockAPIClient)(nil)
