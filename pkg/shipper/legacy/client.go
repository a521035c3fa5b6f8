// Package legacy implements the CTT Express SOAP protocol
// (ClientsIntegrationService) behind the shipper.Shipper interface.
package legacy

import (
	"context"
	"strings"
	"time"

	"github.com/tournevent/cttgateway/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const (
	timeLayout = "2006-01-02T15:04:05"

	createdProcessCode = "CTTGATEWAY"
	reportPlatform     = "CTTGATEWAY"
)

// Config holds the legacy adapter configuration.
type Config struct {
	Account *shipper.CarrierAccount
	// Endpoint overrides the production/test endpoint chosen from the account.
	Endpoint string
	Timeout  time.Duration
	UseMock  bool
	Debug    bool
}

// Client is the legacy protocol adapter of one account.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
}

// New creates a new legacy client.
func New(cfg Config, logger *otelzap.Logger) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = TestEndpoint
			if cfg.Account.Production {
				endpoint = ProductionEndpoint
			}
		}
		apiClient = NewSOAPAPIClient(SOAPAPIClientConfig{
			Endpoint:    endpoint,
			Credentials: credentialsFor(cfg.Account),
			Timeout:     cfg.Timeout,
			Logger:      logger,
			Debug:       cfg.Debug,
		})
	}

	return NewWithAPIClient(cfg, apiClient, logger)
}

// NewWithAPIClient creates a new legacy client with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger) *Client {
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
	}
}

func credentialsFor(a *shipper.CarrierAccount) Credentials {
	return Credentials{
		UserName:     a.SOAP.User,
		Password:     a.SOAP.Password,
		ClientCode:   a.SOAP.Customer,
		AgencyCode:   a.SOAP.Agency,
		ContractCode: a.SOAP.Contract,
	}
}

// Protocol returns shipper.ProtocolSOAP.
func (c *Client) Protocol() shipper.Protocol {
	return shipper.ProtocolSOAP
}

// CreateShipment manifests a shipment. A response without shipping code is
// returned as a result with an empty tracking code.
func (c *Client) CreateShipment(ctx context.Context, req *shipper.ShipmentRequest) (*shipper.ShipmentResult, error) {
	c.logger.Info("Manifesting legacy shipment",
		zap.String("account", c.config.Account.ID),
		zap.String("reference", req.Reference),
		zap.String("recipient_postal", req.Recipient.PostalCode),
		zap.Int("package_count", req.PackageCount),
	)

	apiResp, err := c.apiClient.ManifestShipping(ctx, ShippingDataFrom(req))
	if err != nil {
		c.logger.Error("Legacy API error", zap.String("operation", "ManifestShipping"), zap.Error(err))
		return nil, err
	}

	if apiResp.ShippingCode == "" {
		c.logger.Warn("Shipment accepted without shipping code", zap.String("reference", req.Reference))
	}
	return &shipper.ShipmentResult{
		TrackingCode: apiResp.ShippingCode,
		RawResponse:  apiResp.RawResponse,
	}, nil
}

// CancelShipment cancels a shipment.
func (c *Client) CancelShipment(ctx context.Context, trackingCode string) error {
	c.logger.Info("Cancelling legacy shipment", zap.String("tracking_code", trackingCode))

	if err := c.apiClient.CancelShipping(ctx, trackingCode); err != nil {
		c.logger.Error("Legacy API error", zap.String("operation", "CancelShipping"), zap.Error(err))
		return err
	}
	return nil
}

// GetLabel retrieves the label documents of a shipment.
func (c *Client) GetLabel(ctx context.Context, trackingCode string, spec shipper.LabelSpec) ([]shipper.Document, error) {
	c.logger.Info("Getting legacy label",
		zap.String("tracking_code", trackingCode),
		zap.String("format", string(spec.Format)),
		zap.String("model", string(spec.Model)),
	)

	docs, err := c.apiClient.GetDocumentsV2(ctx, &DocumentsRequest{
		ShippingCode:      trackingCode,
		DocumentKindCode:  string(spec.Format),
		DocumentModelCode: string(spec.Model),
		Offset:            spec.Offset,
	})
	if err != nil {
		c.logger.Error("Legacy API error", zap.String("operation", "GetDocumentsV2"), zap.Error(err))
		return nil, err
	}
	return documentsToShipper(docs), nil
}

// GetTracking returns the event history of a shipment.
func (c *Client) GetTracking(ctx context.Context, trackingCode string) ([]shipper.TrackingEvent, error) {
	c.logger.Info("Getting legacy tracking", zap.String("tracking_code", trackingCode))

	entries, err := c.apiClient.GetTracking(ctx, trackingCode)
	if err != nil {
		c.logger.Error("Legacy API error", zap.String("operation", "GetTracking"), zap.Error(err))
		return nil, err
	}

	events := make([]shipper.TrackingEvent, len(entries))
	for i, e := range entries {
		events[i] = shipper.TrackingEvent{
			Time:                parseTime(e.StatusDateTime),
			StatusCode:          strings.TrimSpace(e.StatusCode),
			StatusDescription:   e.StatusDescription,
			IncidentCode:        strings.TrimSpace(e.IncidentCode),
			IncidentDescription: e.IncidentDescription,
		}
	}
	return events, nil
}

// BulkTracking is not offered by the legacy protocol.
func (c *Client) BulkTracking(_ context.Context, _ *shipper.BulkTrackingQuery) (*shipper.BulkTrackingPage, error) {
	return nil, shipper.NewUnsupportedError(shipper.ProtocolSOAP, "bulk tracking")
}

// Manifest returns the shipping report files for a date range.
func (c *Client) Manifest(ctx context.Context, req *shipper.ManifestRequest) ([]shipper.Document, error) {
	c.logger.Info("Getting legacy manifest",
		zap.String("account", c.config.Account.ID),
		zap.String("format", string(req.Format)),
		zap.Time("from", req.From),
		zap.Time("to", req.To),
	)

	docs, err := c.apiClient.ReportShipping(ctx, &ReportRequest{
		Platform:         reportPlatform,
		DocumentTypeCode: string(req.Format),
		From:             req.From,
		To:               req.To,
	})
	if err != nil {
		c.logger.Error("Legacy API error", zap.String("operation", "ReportShipping"), zap.Error(err))
		return nil, err
	}
	return documentsToShipper(docs), nil
}

// RequestPickup books a pickup and returns its request code.
func (c *Client) RequestPickup(ctx context.Context, req *shipper.PickupRequest) (string, error) {
	minHour, maxHour, err := shipper.PickupWindow(req.MinHour, req.MaxHour)
	if err != nil {
		return "", err
	}
	c.logger.Info("Requesting legacy pickup",
		zap.String("account", c.config.Account.ID),
		zap.String("date", req.Date.Format("2006-01-02")),
		zap.String("min_hour", minHour),
		zap.String("max_hour", maxHour),
	)

	code, err := c.apiClient.CreateRequest(ctx, &PickupData{Date: req.Date, MinHour: minHour, MaxHour: maxHour})
	if err != nil {
		c.logger.Error("Legacy API error", zap.String("operation", "CreateRequest"), zap.Error(err))
		return "", err
	}
	return code, nil
}

// ValidateUser checks the credentials. The service answers a successful
// validation with an error entry of its own, so the list only counts as a
// failure when its first entry carries a code.
func (c *Client) ValidateUser(ctx context.Context) error {
	list, err := c.apiClient.ValidateUser(ctx)
	if err != nil {
		c.logger.Error("Legacy API error", zap.String("operation", "ValidateUser"), zap.Error(err))
		return err
	}
	if len(list) == 0 || list[0].ErrorCode == "" {
		return nil
	}
	return CheckErrors(list)
}

// ServiceTypes lists the service types allowed for the account.
func (c *Client) ServiceTypes(ctx context.Context) ([]shipper.ServiceType, error) {
	entries, err := c.apiClient.GetServiceTypes(ctx)
	if err != nil {
		c.logger.Error("Legacy API error", zap.String("operation", "GetServiceTypes"), zap.Error(err))
		return nil, err
	}
	types := make([]shipper.ServiceType, len(entries))
	for i, e := range entries {
		types[i] = shipper.ServiceType{Code: e.Code, Description: e.Description}
	}
	return types, nil
}

// ============================================================================
// Conversion helpers
// ============================================================================

// ShippingDataFrom maps a shipment request onto the flat ManifestShipping
// payload. Weight is sent in grams, never below one.
func ShippingDataFrom(req *shipper.ShipmentRequest) *ShippingData {
	return &ShippingData{
		ClientReference:     req.Reference,
		ItemsCount:          req.PackageCount,
		RecipientAddress:    req.Recipient.Address,
		RecipientCountry:    req.Recipient.Country,
		RecipientEmail:      req.Recipient.Email,
		RecipientMobile:     req.Recipient.Mobile,
		RecipientName:       req.Recipient.Name,
		RecipientPhone:      req.Recipient.Phone,
		RecipientPostalCode: req.Recipient.PostalCode,
		RecipientTown:       req.Recipient.City,
		SenderAddress:       req.Sender.Address,
		SenderName:          req.Sender.Name,
		SenderPhone:         req.Sender.Phone,
		SenderPostalCode:    req.Sender.PostalCode,
		SenderTown:          req.Sender.City,
		ShippingTypeCode:    req.ServiceType,
		Weight:              Grams(req.Weight),
		CreatedProcessCode:  createdProcessCode,
	}
}

// Grams converts kilograms to whole grams, with a minimum of one.
func Grams(kg float64) int {
	g := int(kg*1000 + 0.5)
	if g < 1 {
		return 1
	}
	return g
}

func documentsToShipper(docs []DocumentEntry) []shipper.Document {
	result := make([]shipper.Document, 0, len(docs))
	for _, d := range docs {
		if len(d.Content) == 0 {
			continue
		}
		result = append(result, shipper.Document{Name: d.FileName, Content: d.Content})
	}
	return result
}

var timeLayouts = []string{
	time.RFC3339Nano,
	timeLayout,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

var _ shipper.Shipper = (*Client)(nil)
