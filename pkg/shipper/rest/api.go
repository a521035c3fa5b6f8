package rest

import (
	"context"
	"encoding/json"
	"strings"
)

// APIClient defines the REST integration endpoints used by the adapter.
// Error envelopes are returned as *shipper.ShipperError of kind
// carrier_rejected; anything else that fails is remote_failure.
type APIClient interface {
	// CreateShipping posts a new shipment to the manifest API.
	CreateShipping(ctx context.Context, req *ShippingRequest) (*ShippingResponse, error)

	// CancelShipping cancels a shipment by its shipping code.
	CancelShipping(ctx context.Context, shippingCode string) error

	// GetLabels returns the labels of a shipment.
	GetLabels(ctx context.Context, shippingCode string, params LabelParams) (*LabelResponse, error)

	// GetHistory returns the event history of a shipment.
	GetHistory(ctx context.Context, shippingCode string) (*HistoryResponse, error)

	// ListShippings queries shipments of a client center by date.
	ListShippings(ctx context.Context, query *ShippingsQuery) (*ShippingsResponse, error)
}

// ============================================================================
// API Request/Response Types (match the CTT integrations REST API)
// ============================================================================

// ShippingRequest is the body of POST /manifest/v1.0/shippings.
type ShippingRequest struct {
	ClientCenterCode       string   `json:"client_center_code"`
	Platform               string   `json:"platform"`
	ShippingTypeCode       string   `json:"shipping_type_code"`
	ClientReferences       []string `json:"client_references"`
	ShippingWeightDeclared float64  `json:"shipping_weight_declared"`
	ItemCount              int      `json:"item_count"`
	SenderName             string   `json:"sender_name"`
	SenderCountryCode      string   `json:"sender_country_code"`
	SenderPostalCode       string   `json:"sender_postal_code"`
	SenderAddress          string   `json:"sender_address"`
	SenderTown             string   `json:"sender_town"`
	SenderPhones           []string `json:"sender_phones"`
	RecipientName          string   `json:"recipient_name"`
	RecipientCountryCode   string   `json:"recipient_country_code"`
	RecipientPostalCode    string   `json:"recipient_postal_code"`
	RecipientAddress       string   `json:"recipient_address"`
	RecipientTown          string   `json:"recipient_town"`
	RecipientPhones        []string `json:"recipient_phones"`
	ShippingDate           string   `json:"shipping_date"`
	Delivery               Delivery `json:"delivery"`
}

// Delivery holds delivery instructions.
type Delivery struct {
	Comments string `json:"comments"`
}

// ShippingResponse is the create response.
type ShippingResponse struct {
	ShippingData struct {
		ShippingCode string `json:"shipping_code"`
	} `json:"shipping_data"`
	Raw []byte `json:"-"`
}

// LabelType is the only label type the labelling endpoint is asked for.
const LabelType = "PDF"

// LabelParams are the query parameters of the labelling endpoint.
type LabelParams struct {
	LabelTypeCode string
	ModelTypeCode string
	LabelOffset   int
}

// LabelResponse holds base64 encoded labels.
type LabelResponse struct {
	Data []struct {
		Label string `json:"label"`
	} `json:"data"`
}

// HistoryResponse is the item history of one shipment.
type HistoryResponse struct {
	Data struct {
		ShippingHistory struct {
			Events []HistoryEvent `json:"events"`
		} `json:"shipping_history"`
	} `json:"data"`
}

// HistoryEvent is one raw status change.
type HistoryEvent struct {
	EventDate           string `json:"event_date"`
	Code                string `json:"code"`
	Description         string `json:"description"`
	IncidentCode        string `json:"incident_code,omitempty"`
	IncidentDescription string `json:"incident_description,omitempty"`
}

// ShippingsQuery selects shipments for bulk tracking.
type ShippingsQuery struct {
	ClientCenterCode string
	ShippingDate     string // YYYY-MM-DD or YYYY-MM-DD[range]YYYY-MM-DD
	PageLimit        int
	PageOffset       int
	OrderBy          string
}

// ShippingsResponse is one page of bulk tracking results.
type ShippingsResponse struct {
	Data []ShippingSummary `json:"data"`
}

// ShippingSummary is the bulk tracking view of a shipment.
type ShippingSummary struct {
	ShippingCode              string   `json:"shipping_code"`
	ClientReferences          []string `json:"client_references"`
	ShippingDate              string   `json:"shipping_date"`
	ShippingStatusCode        string   `json:"shipping_status_code"`
	ShippingStatusDescription string   `json:"shipping_status_description"`
}

// ErrorEnvelope is the error body returned by the integrations API.
type ErrorEnvelope struct {
	Error  []ErrorEntry `json:"error"`
	Errors []ErrorEntry `json:"errors"`
}

// Entries returns all entries of the envelope.
func (e *ErrorEnvelope) Entries() []ErrorEntry {
	return append(append([]ErrorEntry{}, e.Error...), e.Errors...)
}

// ErrorEntry is a code/message pair. The API sends it either as an object
// or as a two element array.
type ErrorEntry struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UnmarshalJSON accepts {"code","message"} objects and ["code","message"] pairs.
func (e *ErrorEntry) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var pair []json.RawMessage
		if err := json.Unmarshal(data, &pair); err != nil {
			return err
		}
		if len(pair) > 0 {
			e.Code = rawString(pair[0])
		}
		if len(pair) > 1 {
			e.Message = rawString(pair[1])
		}
		return nil
	}

	var obj struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
		Detail  string          `json:"detail"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	e.Code = rawString(obj.Code)
	e.Message = obj.Message
	if e.Message == "" {
		e.Message = obj.Detail
	}
	return nil
}

// rawString renders a JSON string or number as text.
func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if string(raw) == "null" {
		return ""
	}
	return strings.TrimSpace(string(raw))
}
