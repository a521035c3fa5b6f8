package legacy

import (
	"context"
	"time"
)

// APIClient defines the operations of the ClientsIntegrationService endpoint.
// Implementations return carrier error lists as *shipper.ShipperError of kind
// carrier_rejected and transport problems as remote_failure.
type APIClient interface {
	// ValidateUser checks the credentials. The raw error list is returned
	// because the service reports success as an error entry.
	ValidateUser(ctx context.Context) ([]ErrorResult, error)

	// GetServiceTypes lists the service types allowed for the credentials.
	GetServiceTypes(ctx context.Context) ([]ServiceTypeEntry, error)

	// ManifestShipping records a new shipment.
	ManifestShipping(ctx context.Context, data *ShippingData) (*ManifestResult, error)

	// CancelShipping cancels a shipment by its shipping code.
	CancelShipping(ctx context.Context, shippingCode string) error

	// GetDocumentsV2 returns the label documents of a shipment.
	GetDocumentsV2(ctx context.Context, req *DocumentsRequest) ([]DocumentEntry, error)

	// GetTracking returns the status history of a shipment.
	GetTracking(ctx context.Context, shippingCode string) ([]TrackingEntry, error)

	// ReportShipping returns the shipping report files of a date range.
	ReportShipping(ctx context.Context, req *ReportRequest) ([]DocumentEntry, error)

	// CreateRequest books a pickup and returns the request code.
	CreateRequest(ctx context.Context, req *PickupData) (string, error)
}

// ============================================================================
// API Request/Response Types (match the ClientsIntegrationService contract)
// ============================================================================

// Credentials identify the caller on every operation.
type Credentials struct {
	UserName     string
	Password     string
	ClientCode   string
	AgencyCode   string
	ContractCode string
}

// ErrorResult is one entry of the ErrorCodes list of every response.
type ErrorResult struct {
	ErrorCode    string
	ErrorMessage string
}

// ServiceTypeEntry is a service allowed for the credentials.
type ServiceTypeEntry struct {
	Code        string
	Description string
}

// ShippingData is the flat ManifestShipping payload. Fields the gateway never
// fills are sent as nil elements and have no field here.
type ShippingData struct {
	ClientReference     string
	ItemsCount          int
	RecipientAddress    string
	RecipientCountry    string
	RecipientEmail      string
	RecipientMobile     string
	RecipientName       string
	RecipientPhone      string
	RecipientPostalCode string
	RecipientTown       string
	SenderAddress       string
	SenderName          string
	SenderPhone         string
	SenderPostalCode    string
	SenderTown          string
	ShippingTypeCode    string
	Weight              int // grams
	CreatedProcessCode  string
}

// ManifestResult is the ManifestShipping payload.
type ManifestResult struct {
	ShippingCode string
	RawResponse  []byte
}

// DocumentsRequest asks for the label documents of a shipment.
type DocumentsRequest struct {
	ShippingCode      string
	DocumentKindCode  string
	DocumentModelCode string
	Offset            int
}

// DocumentEntry is a named document with its decoded content.
type DocumentEntry struct {
	FileName string
	Content  []byte
}

// TrackingEntry is one status change of a shipment.
type TrackingEntry struct {
	StatusDateTime      string
	StatusCode          string
	StatusDescription   string
	IncidentCode        string
	IncidentDescription string
}

// ReportRequest asks for the shipping report of a date range.
type ReportRequest struct {
	Platform         string
	DocumentTypeCode string
	From             time.Time
	To               time.Time
}

// PickupData is the CreateRequest payload. Hours are HH:MM.
type PickupData struct {
	Date    time.Time
	MinHour string
	MaxHour string
}
