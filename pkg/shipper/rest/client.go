// Package rest implements the CTT Express integrations REST protocol behind
// the shipper.Shipper interface.
package rest

import (
	"context"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tournevent/cttgateway/pkg/shipper"
	"github.com/tournevent/cttgateway/pkg/shipper/auth"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const (
	defaultPlatform  = "CTTGATEWAY"
	defaultPageLimit = 100
	dateLayout       = "2006-01-02"
	rangeSeparator   = "[range]"
)

// Config holds the REST adapter configuration.
type Config struct {
	Account  *shipper.CarrierAccount
	BaseURL  string
	TokenURL string
	Timeout  time.Duration
	UseMock  bool
	Debug    bool
	// Platform is reported to the carrier on every new shipment.
	Platform string
	// TokenCache shares bearer tokens between processes. Nil keeps them in memory.
	TokenCache auth.TokenCache
}

// Client is the REST protocol adapter of one account.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
}

// New creates a new REST client.
func New(cfg Config, logger *otelzap.Logger) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		creds := cfg.Account.REST
		session := auth.NewSession(cfg.Account.Identity(), auth.Config{
			TokenURL:     cfg.TokenURL,
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Username:     creds.Username,
			Password:     creds.Password,
			HTTPClient:   &http.Client{Timeout: timeout},
		}, cfg.TokenCache, logger)

		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL: cfg.BaseURL,
			Session: session,
			Logger:  logger,
			Debug:   cfg.Debug,
		})
	}

	return NewWithAPIClient(cfg, apiClient, logger)
}

// NewWithAPIClient creates a new REST client with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger) *Client {
	if cfg.Platform == "" {
		cfg.Platform = defaultPlatform
	}
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
	}
}

// Protocol returns shipper.ProtocolREST.
func (c *Client) Protocol() shipper.Protocol {
	return shipper.ProtocolREST
}

// CreateShipment posts a shipment to the manifest API.
func (c *Client) CreateShipment(ctx context.Context, req *shipper.ShipmentRequest) (*shipper.ShipmentResult, error) {
	c.logger.Info("Creating REST shipment",
		zap.String("account", c.config.Account.ID),
		zap.String("reference", req.Reference),
		zap.String("recipient_postal", req.Recipient.PostalCode),
		zap.Int("package_count", req.PackageCount),
	)

	apiResp, err := c.apiClient.CreateShipping(ctx, c.shippingRequestFrom(req))
	if err != nil {
		c.logger.Error("REST API error", zap.String("operation", "CreateShipping"), zap.Error(err))
		return nil, err
	}

	code := apiResp.ShippingData.ShippingCode
	if code == "" {
		c.logger.Warn("Shipment accepted without shipping code", zap.String("reference", req.Reference))
	}
	return &shipper.ShipmentResult{
		TrackingCode: code,
		RawResponse:  apiResp.Raw,
	}, nil
}

// CancelShipment cancels a shipment.
func (c *Client) CancelShipment(ctx context.Context, trackingCode string) error {
	c.logger.Info("Cancelling REST shipment", zap.String("tracking_code", trackingCode))

	if err := c.apiClient.CancelShipping(ctx, trackingCode); err != nil {
		c.logger.Error("REST API error", zap.String("operation", "CancelShipping"), zap.Error(err))
		return err
	}
	return nil
}

// GetLabel retrieves and decodes the labels of a shipment.
func (c *Client) GetLabel(ctx context.Context, trackingCode string, spec shipper.LabelSpec) ([]shipper.Document, error) {
	c.logger.Info("Getting REST label",
		zap.String("tracking_code", trackingCode),
		zap.String("format", string(spec.Format)),
		zap.String("model", string(spec.Model)),
	)

	resp, err := c.apiClient.GetLabels(ctx, trackingCode, LabelParamsFor(spec))
	if err != nil {
		c.logger.Error("REST API error", zap.String("operation", "GetLabels"), zap.Error(err))
		return nil, err
	}

	docs := make([]shipper.Document, 0, len(resp.Data))
	for i, d := range resp.Data {
		if d.Label == "" {
			continue
		}
		content, err := base64.StdEncoding.DecodeString(d.Label)
		if err != nil {
			return nil, shipper.NewRemoteError("PARSE_ERROR", "label is not valid base64").WithCause(err)
		}
		docs = append(docs, shipper.Document{
			Name:    labelName(trackingCode, i),
			Content: content,
		})
	}
	return docs, nil
}

// GetTracking returns the event history of a shipment.
func (c *Client) GetTracking(ctx context.Context, trackingCode string) ([]shipper.TrackingEvent, error) {
	c.logger.Info("Getting REST tracking", zap.String("tracking_code", trackingCode))

	resp, err := c.apiClient.GetHistory(ctx, trackingCode)
	if err != nil {
		c.logger.Error("REST API error", zap.String("operation", "GetHistory"), zap.Error(err))
		return nil, err
	}

	raw := resp.Data.ShippingHistory.Events
	events := make([]shipper.TrackingEvent, len(raw))
	for i, e := range raw {
		events[i] = shipper.TrackingEvent{
			Time:                parseEventTime(e.EventDate),
			StatusCode:          strings.TrimSpace(e.Code),
			StatusDescription:   e.Description,
			IncidentCode:        strings.TrimSpace(e.IncidentCode),
			IncidentDescription: e.IncidentDescription,
		}
	}
	return events, nil
}

// BulkTracking lists the shipments of a client center by shipping date.
func (c *Client) BulkTracking(ctx context.Context, query *shipper.BulkTrackingQuery) (*shipper.BulkTrackingPage, error) {
	limit := query.PageLimit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	center := query.ClientCenterCode
	if center == "" {
		center = c.config.Account.REST.ClientCenterCode
	}
	dates := ShippingDateFilter(query.From, query.To)

	c.logger.Info("Querying REST bulk tracking",
		zap.String("client_center_code", center),
		zap.String("shipping_date", dates),
		zap.Int("page", query.Page),
		zap.Int("page_limit", limit),
	)

	resp, err := c.apiClient.ListShippings(ctx, &ShippingsQuery{
		ClientCenterCode: center,
		ShippingDate:     dates,
		PageLimit:        limit,
		PageOffset:       query.Page,
		OrderBy:          query.OrderBy,
	})
	if err != nil {
		c.logger.Error("REST API error", zap.String("operation", "ListShippings"), zap.Error(err))
		return nil, err
	}

	items := make([]shipper.BulkTrackingItem, len(resp.Data))
	for i, s := range resp.Data {
		items[i] = shipper.BulkTrackingItem{
			TrackingCode:      s.ShippingCode,
			References:        s.ClientReferences,
			ShippingDate:      s.ShippingDate,
			StatusCode:        s.ShippingStatusCode,
			StatusDescription: s.ShippingStatusDescription,
			State:             shipper.Translate(shipper.ProtocolREST, s.ShippingStatusCode),
		}
	}
	return &shipper.BulkTrackingPage{
		Items:     items,
		Page:      query.Page,
		PageLimit: limit,
		HasMore:   len(items) == limit,
	}, nil
}

// Manifest is not offered by the REST protocol.
func (c *Client) Manifest(_ context.Context, _ *shipper.ManifestRequest) ([]shipper.Document, error) {
	return nil, shipper.NewUnsupportedError(shipper.ProtocolREST, "manifest")
}

// RequestPickup is not offered by the REST protocol.
func (c *Client) RequestPickup(_ context.Context, _ *shipper.PickupRequest) (string, error) {
	return "", shipper.NewUnsupportedError(shipper.ProtocolREST, "pickup request")
}

// ValidateUser is not offered by the REST protocol.
func (c *Client) ValidateUser(_ context.Context) error {
	return shipper.NewUnsupportedError(shipper.ProtocolREST, "user validation")
}

// ServiceTypes is not offered by the REST protocol; the static catalogue in
// shipper.RESTServices applies instead.
func (c *Client) ServiceTypes(_ context.Context) ([]shipper.ServiceType, error) {
	return nil, shipper.NewUnsupportedError(shipper.ProtocolREST, "service type listing")
}

// ============================================================================
// Conversion helpers
// ============================================================================

func (c *Client) shippingRequestFrom(req *shipper.ShipmentRequest) *ShippingRequest {
	date := req.ShippingDate
	if date.IsZero() {
		date = time.Now()
	}
	weight := req.Weight
	if weight <= 0 {
		weight = 1
	}
	return &ShippingRequest{
		ClientCenterCode:       c.config.Account.REST.ClientCenterCode,
		Platform:               c.config.Platform,
		ShippingTypeCode:       req.ServiceType,
		ClientReferences:       []string{req.Reference},
		ShippingWeightDeclared: weight,
		ItemCount:              req.PackageCount,
		SenderName:             req.Sender.Name,
		SenderCountryCode:      req.Sender.Country,
		SenderPostalCode:       req.Sender.PostalCode,
		SenderAddress:          req.Sender.Address,
		SenderTown:             req.Sender.City,
		SenderPhones:           phones(req.Sender),
		RecipientName:          req.Recipient.Name,
		RecipientCountryCode:   req.Recipient.Country,
		RecipientPostalCode:    req.Recipient.PostalCode,
		RecipientAddress:       req.Recipient.Address,
		RecipientTown:          req.Recipient.City,
		RecipientPhones:        phones(req.Recipient),
		ShippingDate:           date.Format(dateLayout),
	}
}

func phones(p shipper.Party) []string {
	list := []string{}
	for _, n := range []string{p.Phone, p.Mobile} {
		if n = strings.TrimSpace(n); n != "" {
			list = append(list, n)
		}
	}
	return list
}

// ShippingDateFilter renders the shipping_date filter of the bulk tracking
// endpoint: a single date, or a range when to is set.
func ShippingDateFilter(from, to time.Time) string {
	if to.IsZero() {
		return from.Format(dateLayout)
	}
	return from.Format(dateLayout) + rangeSeparator + to.Format(dateLayout)
}

// LabelParamsFor maps the account label settings onto the labelling
// endpoint. The endpoint always renders PDF; the document format only
// matters as the model code when the model is NOSINGLE.
func LabelParamsFor(spec shipper.LabelSpec) LabelParams {
	model := string(spec.Model)
	if spec.Model == shipper.ModelNoSingle {
		model = string(spec.Format)
	}
	offset := spec.Offset
	if offset <= 0 {
		offset = 1
	}
	return LabelParams{
		LabelTypeCode: LabelType,
		ModelTypeCode: model,
		LabelOffset:   offset,
	}
}

func labelName(code string, i int) string {
	name := "ctt_" + code
	if i > 0 {
		name += "_" + strconv.Itoa(i)
	}
	return name + "." + shipper.DocumentPDF.Extension()
}

var eventLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseEventTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range eventLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

var _ shipper.Shipper = (*Client)(nil)
