package shipper

import (
	"strings"
	"time"
)

// CarrierName identifies the carrier in errors, logs and metrics.
const CarrierName = "cttexpress"

// Protocol selects the wire protocol used by a carrier account.
type Protocol string

const (
	ProtocolSOAP Protocol = "SOAP"
	ProtocolREST Protocol = "REST"
)

// DeliveryState is the normalized state of a shipment.
type DeliveryState string

const (
	StateRecorded  DeliveryState = "shipping_recorded_in_carrier"
	StateInTransit DeliveryState = "in_transit"
	StateDelivered DeliveryState = "customer_delivered"
	StateIncidence DeliveryState = "incidence"
	StateCanceled  DeliveryState = "canceled_shipment"
)

// DeliveryStates returns every delivery state in lifecycle order.
func DeliveryStates() []DeliveryState {
	return []DeliveryState{StateRecorded, StateInTransit, StateDelivered, StateIncidence, StateCanceled}
}

// DocumentFormat is the file format of label documents.
type DocumentFormat string

const (
	DocumentPDF DocumentFormat = "PDF"
	DocumentPNG DocumentFormat = "PNG"
	DocumentBMP DocumentFormat = "BMP"
)

// Extension returns the lowercase file extension for the format.
func (f DocumentFormat) Extension() string {
	if f == "" {
		return "pdf"
	}
	return strings.ToLower(string(f))
}

// DocumentModel is the label sheet layout.
type DocumentModel string

const (
	ModelSingle DocumentModel = "SINGLE"
	ModelMulti1 DocumentModel = "MULTI1"
	ModelMulti3 DocumentModel = "MULTI3"
	ModelMulti4 DocumentModel = "MULTI4"
	// ModelNoSingle asks the REST labelling API for the document format
	// instead of a sheet layout.
	ModelNoSingle DocumentModel = "NOSINGLE"
)

// ManifestFormat is the file format of manifest reports.
type ManifestFormat string

const (
	ManifestPDF  ManifestFormat = "PDF"
	ManifestXLSX ManifestFormat = "XLSX"
)

// Extension returns the lowercase file extension for the format.
func (f ManifestFormat) Extension() string {
	return strings.ToLower(string(f))
}

// SOAPCredentials are the static credentials of the legacy protocol.
type SOAPCredentials struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Customer string `yaml:"customer"`
	Agency   string `yaml:"agency"`
	Contract string `yaml:"contract"`
}

// RESTCredentials are the OAuth client and user credentials of the REST protocol.
type RESTCredentials struct {
	ClientID         string `yaml:"client_id"`
	ClientSecret     string `yaml:"client_secret"`
	Username         string `yaml:"username"`
	Password         string `yaml:"password"`
	ClientCenterCode string `yaml:"client_center_code"`
}

// CarrierAccount is one configured connection to the carrier.
// Exactly one credential set, selected by Protocol, must be populated.
type CarrierAccount struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	Protocol   Protocol `yaml:"protocol"`
	Production bool     `yaml:"production"`

	SOAP SOAPCredentials `yaml:"soap"`
	REST RESTCredentials `yaml:"rest"`

	ServiceType    string         `yaml:"service_type"`
	DocumentFormat DocumentFormat `yaml:"document_format"`
	DocumentModel  DocumentModel  `yaml:"document_model"`
	DocumentOffset int            `yaml:"document_offset"`

	DefaultPackageCount int     `yaml:"default_package_count"`
	WeightOverride      bool    `yaml:"weight_override"`
	DefaultWeight       float64 `yaml:"default_weight"`
}

// Validate checks that the credential set selected by the protocol is complete.
func (a *CarrierAccount) Validate() error {
	var missing []string
	require := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}

	require("id", a.ID)
	switch a.Protocol {
	case ProtocolSOAP:
		require("soap.user", a.SOAP.User)
		require("soap.password", a.SOAP.Password)
		require("soap.customer", a.SOAP.Customer)
		require("soap.agency", a.SOAP.Agency)
		require("soap.contract", a.SOAP.Contract)
	case ProtocolREST:
		require("rest.client_id", a.REST.ClientID)
		require("rest.client_secret", a.REST.ClientSecret)
		require("rest.username", a.REST.Username)
		require("rest.password", a.REST.Password)
		require("rest.client_center_code", a.REST.ClientCenterCode)
	default:
		return NewValidationError("INVALID_PROTOCOL",
			"account "+a.ID+": unknown protocol "+string(a.Protocol))
	}
	if a.WeightOverride && a.DefaultWeight <= 0 {
		missing = append(missing, "default_weight")
	}

	if len(missing) > 0 {
		return NewValidationError("MISSING_FIELDS",
			"account "+a.ID+": missing "+strings.Join(missing, ", "))
	}
	return nil
}

// Identity returns the tuple that identifies the remote account. Accounts
// that differ only in defaults (service type, document format) share it.
func (a *CarrierAccount) Identity() string {
	if a.Protocol == ProtocolREST {
		return strings.Join([]string{string(ProtocolREST), a.REST.ClientID, a.REST.ClientCenterCode}, "|")
	}
	return strings.Join([]string{string(ProtocolSOAP), a.SOAP.Customer, a.SOAP.Contract, a.SOAP.Agency}, "|")
}

// LabelSpec returns the label settings configured for the account.
func (a *CarrierAccount) LabelSpec() LabelSpec {
	spec := LabelSpec{
		Format: a.DocumentFormat,
		Model:  a.DocumentModel,
		Offset: a.DocumentOffset,
	}
	if spec.Format == "" {
		spec.Format = DocumentPDF
	}
	if spec.Model == "" {
		spec.Model = ModelSingle
	}
	if spec.Offset <= 0 {
		spec.Offset = 1
	}
	return spec
}

// Party is a sender or recipient of a shipment.
type Party struct {
	Name       string
	Country    string // ISO 3166-1 alpha-2
	PostalCode string
	Address    string
	City       string
	Phone      string
	Email      string
	Mobile     string
}

// ShipmentRequest is the protocol-neutral description of a shipment to manifest.
type ShipmentRequest struct {
	Reference    string
	Sender       Party
	Recipient    Party
	Weight       float64 // kg
	PackageCount int
	ServiceType  string
	ShippingDate time.Time
}

// ShipmentResult is the outcome of a successful create call.
type ShipmentResult struct {
	// TrackingCode may be empty when the carrier accepted the shipment
	// without assigning a code yet.
	TrackingCode string
	Price        float64
	RawResponse  []byte
}

// TrackingEvent is a single carrier status change.
type TrackingEvent struct {
	Time                *time.Time
	StatusCode          string
	StatusDescription   string
	IncidentCode        string
	IncidentDescription string
}

// Document is a named binary document returned by the carrier.
type Document struct {
	Name    string
	Content []byte
}

// LabelSpec selects the label format and layout.
type LabelSpec struct {
	Format DocumentFormat
	Model  DocumentModel
	Offset int
}

// BulkTrackingQuery selects shipments of a client center by shipping date.
type BulkTrackingQuery struct {
	ClientCenterCode string
	From             time.Time
	To               time.Time // zero for a single date
	Page             int       // zero-based
	PageLimit        int
	OrderBy          string
}

// BulkTrackingItem is one shipment of a bulk tracking page.
type BulkTrackingItem struct {
	TrackingCode      string        `json:"tracking_code"`
	References        []string      `json:"references,omitempty"`
	ShippingDate      string        `json:"shipping_date"`
	StatusCode        string        `json:"status_code"`
	StatusDescription string        `json:"status_description"`
	State             DeliveryState `json:"state,omitempty"`
}

// BulkTrackingPage is one page of a bulk tracking query.
type BulkTrackingPage struct {
	Items     []BulkTrackingItem `json:"items"`
	Page      int                `json:"page"`
	PageLimit int                `json:"page_limit"`
	HasMore   bool               `json:"has_more"`
}

// ManifestRequest asks for the shipping report of a date range.
type ManifestRequest struct {
	Format ManifestFormat
	From   time.Time
	To     time.Time
}

// PickupRequest books a courier pickup window.
type PickupRequest struct {
	Date    time.Time
	MinHour string // HH:MM
	MaxHour string // HH:MM
}

// ServiceType is a carrier service code with its description.
type ServiceType struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}
