package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tournevent/cttgateway/pkg/shipper"
	"github.com/tournevent/cttgateway/pkg/shipper/auth"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// DefaultBaseURL is the production integrations API.
const DefaultBaseURL = "https://api.cttexpress.com/integrations"

// HTTPAPIClient is the production implementation of APIClient.
// Every call goes through the account session, which adds the bearer
// token and user headers and renews the token once on HTTP 401.
type HTTPAPIClient struct {
	baseURL string
	session *auth.Session
	logger  *otelzap.Logger
	debug   bool
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL string
	Session *auth.Session
	Logger  *otelzap.Logger
	Debug   bool
}

// NewHTTPAPIClient creates a new HTTP API client.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPAPIClient{
		baseURL: baseURL,
		session: cfg.Session,
		logger:  cfg.Logger,
		debug:   cfg.Debug,
	}
}

// CreateShipping posts a new shipment.
func (c *HTTPAPIClient) CreateShipping(ctx context.Context, req *ShippingRequest) (*ShippingResponse, error) {
	status, body, err := c.doRequest(ctx, http.MethodPost, "/manifest/v1.0/shippings", nil, req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, parseError(status, body)
	}

	var result ShippingResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, decodeError("shipping", err)
	}
	result.Raw = body
	return &result, nil
}

// CancelShipping cancels a shipment. HTTP 201 is success, as is another 2xx
// with an empty body or an envelope without errors. A 2xx body that is not
// JSON is a remote failure.
func (c *HTTPAPIClient) CancelShipping(ctx context.Context, shippingCode string) error {
	path := "/manifest/v1.0/rpc-cancel-shipping-by-shipping-code/" + url.PathEscape(shippingCode)
	status, body, err := c.doRequest(ctx, http.MethodPost, path, nil, struct{}{})
	if err != nil {
		return err
	}
	if status == http.StatusCreated {
		return nil
	}
	if status >= 200 && status < 300 {
		if len(bytes.TrimSpace(body)) == 0 {
			return nil
		}
		var env ErrorEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return shipper.NewRemoteError(fmt.Sprintf("HTTP_%d", status),
				"unreadable cancel response: "+truncate(string(body))).
				WithStatusCode(status).WithCause(err)
		}
		return checkEnvelope(&env)
	}
	return parseError(status, body)
}

// GetLabels fetches the labels of a shipment.
func (c *HTTPAPIClient) GetLabels(ctx context.Context, shippingCode string, params LabelParams) (*LabelResponse, error) {
	query := url.Values{}
	query.Set("label_type_code", params.LabelTypeCode)
	query.Set("model_type_code", params.ModelTypeCode)
	query.Set("label_offset", strconv.Itoa(params.LabelOffset))

	path := fmt.Sprintf("/trf/labelling/v1.0/shippings/%s/shipping-labels", url.PathEscape(shippingCode))
	status, body, err := c.doRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, parseError(status, body)
	}

	var result LabelResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, decodeError("label", err)
	}
	return &result, nil
}

// GetHistory fetches the item history of a shipment.
func (c *HTTPAPIClient) GetHistory(ctx context.Context, shippingCode string) (*HistoryResponse, error) {
	query := url.Values{}
	query.Set("view", "APITRACK")
	query.Set("showItems", "false")

	path := "/trf/item-history-api/history/" + url.PathEscape(shippingCode)
	status, body, err := c.doRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, parseError(status, body)
	}

	var result HistoryResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, decodeError("history", err)
	}
	return &result, nil
}

// ListShippings runs a bulk tracking query.
func (c *HTTPAPIClient) ListShippings(ctx context.Context, q *ShippingsQuery) (*ShippingsResponse, error) {
	query := url.Values{}
	query.Set("client_center_code", q.ClientCenterCode)
	query.Set("shipping_date", q.ShippingDate)
	query.Set("page_limit", strconv.Itoa(q.PageLimit))
	query.Set("page_offsets", strconv.Itoa(q.PageOffset))
	if q.OrderBy != "" {
		query.Set("order_by", q.OrderBy)
	}

	status, body, err := c.doRequest(ctx, http.MethodGet, "/trf/web-tracking/v1.0/shippings", query, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, parseError(status, body)
	}

	var result ShippingsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, decodeError("shippings", err)
	}
	return &result, nil
}

// doRequest sends an authenticated request and returns the status and the
// full body.
func (c *HTTPAPIClient) doRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (int, []byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}
	c.dump("REST request", method, endpoint, payload)

	resp, err := c.session.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, shipper.NewRemoteError("READ_ERROR", "reading response").WithCause(err)
	}
	c.dump("REST response", method, endpoint, data)
	return resp.StatusCode, data, nil
}

func (c *HTTPAPIClient) dump(msg, method, endpoint string, payload []byte) {
	if !c.debug || c.logger == nil {
		return
	}
	c.logger.Debug(msg,
		zap.String("method", method),
		zap.String("url", endpoint),
		zap.ByteString("payload", payload),
	)
}

// parseError turns a non-success response into a carrier_rejected error when
// the body is a recognizable envelope, and into remote_failure otherwise.
func parseError(status int, body []byte) error {
	var env ErrorEnvelope
	if err := json.Unmarshal(body, &env); err == nil {
		if err := checkEnvelope(&env); err != nil {
			var shipperErr *shipper.ShipperError
			if errors.As(err, &shipperErr) {
				shipperErr.WithStatusCode(status)
			}
			return err
		}
	}

	var simpleErr struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &simpleErr); err == nil && simpleErr.Code != "" && simpleErr.Message != "" {
		return shipper.NewShipperError(shipper.KindCarrierRejected, simpleErr.Code, simpleErr.Message).
			WithStatusCode(status)
	}

	return shipper.NewRemoteError(fmt.Sprintf("HTTP_%d", status), truncate(string(body))).
		WithStatusCode(status).
		WithRetryable(status >= 500 || status == http.StatusTooManyRequests)
}

func checkEnvelope(env *ErrorEnvelope) error {
	entries := env.Entries()
	msgs := make([]shipper.CarrierMessage, len(entries))
	for i, e := range entries {
		msgs[i] = shipper.CarrierMessage{Code: e.Code, Message: e.Message}
	}
	return shipper.CheckCarrierMessages(msgs)
}

func decodeError(what string, err error) error {
	return shipper.NewRemoteError("PARSE_ERROR", "failed to decode "+what+" response").WithCause(err)
}

func truncate(s string) string {
	const max = 512
	if len(s) > max {
		return s[:max]
	}
	return s
}

var _ APIClient = (*HTTPAPIClient)(nil)
