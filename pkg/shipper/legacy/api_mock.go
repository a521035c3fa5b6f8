package legacy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/cttgateway/pkg/shipper"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnValidateUser     func(ctx context.Context) ([]ErrorResult, error)
	OnGetServiceTypes  func(ctx context.Context) ([]ServiceTypeEntry, error)
	OnManifestShipping func(ctx context.Context, data *ShippingData) (*ManifestResult, error)
	OnCancelShipping   func(ctx context.Context, shippingCode string) error
	OnGetDocumentsV2   func(ctx context.Context, req *DocumentsRequest) ([]DocumentEntry, error)
	OnGetTracking      func(ctx context.Context, shippingCode string) ([]TrackingEntry, error)
	OnReportShipping   func(ctx context.Context, req *ReportRequest) ([]DocumentEntry, error)
	OnCreateRequest    func(ctx context.Context, req *PickupData) (string, error)
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
		return CheckErrors([]ErrorResult{{ErrorCode: "MOCK_ERROR", ErrorMessage: "Simulated API error"}})
	}
	return nil
}

// ValidateUser returns the success entry the service answers with.
func (m *MockAPIClient) ValidateUser(ctx context.Context) ([]ErrorResult, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnValidateUser != nil {
		return m.OnValidateUser(ctx)
	}
	return []ErrorResult{{ErrorCode: "", ErrorMessage: "OK"}}, nil
}

// GetServiceTypes returns the first entries of the legacy catalogue.
func (m *MockAPIClient) GetServiceTypes(ctx context.Context) ([]ServiceTypeEntry, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGetServiceTypes != nil {
		return m.OnGetServiceTypes(ctx)
	}
	entries := make([]ServiceTypeEntry, 0, 4)
	for _, s := range shipper.LegacyServices {
		if s.Code == "19H" || s.Code == "48H" || s.Code == "10H" || s.Code == "14H" {
			entries = append(entries, ServiceTypeEntry{Code: s.Code, Description: s.Description})
		}
	}
	return entries, nil
}

// ManifestShipping returns a random shipping code.
func (m *MockAPIClient) ManifestShipping(ctx context.Context, data *ShippingData) (*ManifestResult, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnManifestShipping != nil {
		return m.OnManifestShipping(ctx, data)
	}
	return &ManifestResult{
		ShippingCode: "0082" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:18],
	}, nil
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

// GetDocumentsV2 returns a single fake PDF.
func (m *MockAPIClient) GetDocumentsV2(ctx context.Context, req *DocumentsRequest) ([]DocumentEntry, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGetDocumentsV2 != nil {
		return m.OnGetDocumentsV2(ctx, req)
	}
	return []DocumentEntry{{
		FileName: req.ShippingCode + ".pdf",
		Content:  []byte("%PDF-1.4 mock label " + req.ShippingCode),
	}}, nil
}

// GetTracking returns a recorded and an in-transit event.
func (m *MockAPIClient) GetTracking(ctx context.Context, shippingCode string) ([]TrackingEntry, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGetTracking != nil {
		return m.OnGetTracking(ctx, shippingCode)
	}
	now := time.Now().UTC()
	return []TrackingEntry{
		{StatusDateTime: now.Add(-2 * time.Hour).Format(timeLayout), StatusCode: "0", StatusDescription: "PENDIENTE DE ENTRADA EN RED"},
		{StatusDateTime: now.Format(timeLayout), StatusCode: "1", StatusDescription: "EN TRANSITO"},
	}, nil
}

// ReportShipping returns a fake report.
func (m *MockAPIClient) ReportShipping(ctx context.Context, req *ReportRequest) ([]DocumentEntry, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnReportShipping != nil {
		return m.OnReportShipping(ctx, req)
	}
	return []DocumentEntry{{
		FileName: "report." + strings.ToLower(req.DocumentTypeCode),
		Content:  []byte(fmt.Sprintf("mock report %s..%s", req.From.Format("2006-01-02"), req.To.Format("2006-01-02"))),
	}}, nil
}

// CreateRequest returns a random pickup code.
func (m *MockAPIClient) CreateRequest(ctx context.Context, req *PickupData) (string, error) {
	if err := m.simulate(); err != nil {
		return "", err
	}
	if m.OnCreateRequest != nil {
		return m.OnCreateRequest(ctx, req)
	}
	return "REQ-" + uuid.New().String()[:8], nil
}

var _ APIClient = (*MockAPIClient)(nil)
