package legacy

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/cttgateway/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const (
	// ProductionEndpoint is the live ClientsIntegrationService.
	ProductionEndpoint = "https://iberws.cttexpress.com/IntegrationClientsService/ClientsIntegrationService.svc"

	// TestEndpoint is the carrier's integration test environment.
	TestEndpoint = "https://iberwstest.cttexpress.com/IntegrationClientsService/ClientsIntegrationService.svc"

	serviceNamespace = "http://tempuri.org/"
	actionPrefix     = serviceNamespace + "IClientsIntegrationService/"
)

// SOAPAPIClient is the production implementation of APIClient.
type SOAPAPIClient struct {
	endpoint    string
	credentials Credentials
	httpClient  *http.Client
	logger      *otelzap.Logger
	debug       bool
}

// SOAPAPIClientConfig holds configuration for the SOAP client.
type SOAPAPIClientConfig struct {
	Endpoint    string
	Credentials Credentials
	Timeout     time.Duration
	// Logger and Debug enable request/response payload dumps.
	Logger *otelzap.Logger
	Debug  bool
}

// NewSOAPAPIClient creates a new SOAP API client.
func NewSOAPAPIClient(cfg SOAPAPIClientConfig) *SOAPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = TestEndpoint
	}

	return &SOAPAPIClient{
		endpoint:    endpoint,
		credentials: cfg.Credentials,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: cfg.Logger,
		debug:  cfg.Debug,
	}
}

// ValidateUser calls ValidateUser.
func (c *SOAPAPIClient) ValidateUser(ctx context.Context) ([]ErrorResult, error) {
	body, err := c.buildEnvelope("ValidateUser", `<ValidateUser xmlns="http://tempuri.org/">
      {{template "credentials" .}}
    </ValidateUser>`, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	env, err := c.call(ctx, "ValidateUser", body)
	if err != nil {
		return nil, err
	}
	if env.Body.ValidateUserResponse == nil {
		return nil, missingPayload("ValidateUser")
	}
	return toErrorResults(env.Body.ValidateUserResponse.Result.Errors), nil
}

// GetServiceTypes calls GetServiceTypes.
func (c *SOAPAPIClient) GetServiceTypes(ctx context.Context) ([]ServiceTypeEntry, error) {
	body, err := c.buildEnvelope("GetServiceTypes", `<GetServiceTypes xmlns="http://tempuri.org/">
      {{template "credentials" .}}
    </GetServiceTypes>`, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	env, err := c.call(ctx, "GetServiceTypes", body)
	if err != nil {
		return nil, err
	}
	resp := env.Body.GetServiceTypesResponse
	if resp == nil {
		return nil, missingPayload("GetServiceTypes")
	}
	if err := checkErrors(resp.Result.Errors); err != nil {
		return nil, err
	}

	types := make([]ServiceTypeEntry, len(resp.Result.ServiceTypes))
	for i, st := range resp.Result.ServiceTypes {
		types[i] = ServiceTypeEntry{Code: st.Code, Description: st.Description}
	}
	return types, nil
}

// ManifestShipping calls ManifestShipping.
func (c *SOAPAPIClient) ManifestShipping(ctx context.Context, data *ShippingData) (*ManifestResult, error) {
	body, err := c.buildEnvelope("ManifestShipping", manifestShippingTemplate, data)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, raw, err := c.do(ctx, "ManifestShipping", body)
	if err != nil {
		return nil, err
	}
	if resp.ManifestShippingResponse == nil {
		return nil, missingPayload("ManifestShipping")
	}
	result := resp.ManifestShippingResponse.Result
	if err := checkErrors(result.Errors); err != nil {
		return nil, err
	}
	return &ManifestResult{
		ShippingCode: strings.TrimSpace(result.ShippingCode),
		RawResponse:  raw,
	}, nil
}

// CancelShipping calls CancelShipping. An empty result is success.
func (c *SOAPAPIClient) CancelShipping(ctx context.Context, shippingCode string) error {
	body, err := c.buildEnvelope("CancelShipping", `<CancelShipping xmlns="http://tempuri.org/">
      {{template "credentials" .}}
      <shippingCode>{{x .Data}}</shippingCode>
    </CancelShipping>`, shippingCode)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	env, err := c.call(ctx, "CancelShipping", body)
	if err != nil {
		return err
	}
	if env.Body.CancelShippingResponse == nil {
		return nil
	}
	return checkErrors(env.Body.CancelShippingResponse.Result.Errors)
}

// GetDocumentsV2 calls GetDocumentsV2.
func (c *SOAPAPIClient) GetDocumentsV2(ctx context.Context, req *DocumentsRequest) ([]DocumentEntry, error) {
	body, err := c.buildEnvelope("GetDocumentsV2", `<GetDocumentsV2 xmlns="http://tempuri.org/">
      {{template "credentials" .}}
      <shippingCode>{{x .Data.ShippingCode}}</shippingCode>
      <documentKindCode>{{x .Data.DocumentKindCode}}</documentKindCode>
      <documentModelCode>{{x .Data.DocumentModelCode}}</documentModelCode>
      <offset>{{.Data.Offset}}</offset>
    </GetDocumentsV2>`, req)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	env, err := c.call(ctx, "GetDocumentsV2", body)
	if err != nil {
		return nil, err
	}
	resp := env.Body.GetDocumentsV2Response
	if resp == nil {
		return nil, missingPayload("GetDocumentsV2")
	}
	if err := checkErrors(resp.Result.Errors); err != nil {
		return nil, err
	}

	return decodeDocuments(resp.Result.Documents)
}

// GetTracking calls GetTracking.
func (c *SOAPAPIClient) GetTracking(ctx context.Context, shippingCode string) ([]TrackingEntry, error) {
	body, err := c.buildEnvelope("GetTracking", `<GetTracking xmlns="http://tempuri.org/">
      {{template "credentials" .}}
      <shippingCode>{{x .Data}}</shippingCode>
    </GetTracking>`, shippingCode)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	env, err := c.call(ctx, "GetTracking", body)
	if err != nil {
		return nil, err
	}
	resp := env.Body.GetTrackingResponse
	if resp == nil {
		return nil, missingPayload("GetTracking")
	}
	if err := checkErrors(resp.Result.Errors); err != nil {
		return nil, err
	}

	entries := make([]TrackingEntry, len(resp.Result.Trackings))
	for i, tr := range resp.Result.Trackings {
		entries[i] = TrackingEntry(tr)
	}
	return entries, nil
}

// ReportShipping calls ReportShipping.
func (c *SOAPAPIClient) ReportShipping(ctx context.Context, req *ReportRequest) ([]DocumentEntry, error) {
	body, err := c.buildEnvelope("ReportShipping", `<ReportShipping xmlns="http://tempuri.org/">
      {{template "credentials" .}}
      <platform>{{x .Data.Platform}}</platform>
      <documentTypeCode>{{x .Data.DocumentTypeCode}}</documentTypeCode>
      <fromDate>{{date .Data.From}}</fromDate>
      <toDate>{{date .Data.To}}</toDate>
    </ReportShipping>`, req)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	env, err := c.call(ctx, "ReportShipping", body)
	if err != nil {
		return nil, err
	}
	resp := env.Body.ReportShippingResponse
	if resp == nil {
		return nil, missingPayload("ReportShipping")
	}
	if err := checkErrors(resp.Result.Errors); err != nil {
		return nil, err
	}
	return decodeDocuments(resp.Result.Documents)
}

// CreateRequest calls CreateRequest.
func (c *SOAPAPIClient) CreateRequest(ctx context.Context, req *PickupData) (string, error) {
	body, err := c.buildEnvelope("CreateRequest", `<CreateRequest xmlns="http://tempuri.org/">
      {{template "credentials" .}}
      <requestDate>{{date .Data.Date}}</requestDate>
      <minHour>{{x .Data.MinHour}}</minHour>
      <maxHour>{{x .Data.MaxHour}}</maxHour>
    </CreateRequest>`, req)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	env, err := c.call(ctx, "CreateRequest", body)
	if err != nil {
		return "", err
	}
	resp := env.Body.CreateRequestResponse
	if resp == nil {
		return "", missingPayload("CreateRequest")
	}
	if err := checkErrors(resp.Result.Errors); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Result.RequestCode), nil
}

// ============================================================================
// SOAP Request Helpers
// ============================================================================

func (c *SOAPAPIClient) call(ctx context.Context, action string, body []byte) (*soapEnvelope, error) {
	b, _, err := c.do(ctx, action, body)
	if err != nil {
		return nil, err
	}
	return &soapEnvelope{Body: *b}, nil
}

func (c *SOAPAPIClient) do(ctx context.Context, action string, body []byte) (*soapBody, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", actionPrefix+action)

	c.dump("SOAP request", action, body)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, shipper.NewRemoteError("HTTP_ERROR", action+" request failed").WithCause(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, shipper.NewRemoteError("READ_ERROR", "reading "+action+" response").WithCause(err)
	}
	c.dump("SOAP response", action, data)

	var env soapEnvelope
	parseErr := xml.Unmarshal(data, &env)
	if parseErr == nil && env.Body.Fault != nil {
		return nil, nil, shipper.NewShipperError(shipper.KindCarrierRejected,
			env.Body.Fault.Code, env.Body.Fault.String).WithStatusCode(resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, shipper.NewRemoteError(fmt.Sprintf("HTTP_%d", resp.StatusCode),
			truncate(string(data))).WithStatusCode(resp.StatusCode)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &soapBody{}, data, nil
	}
	if parseErr != nil {
		return nil, nil, shipper.NewRemoteError("PARSE_ERROR", "failed to parse "+action+" response").WithCause(parseErr)
	}
	return &env.Body, data, nil
}

func (c *SOAPAPIClient) dump(msg, action string, payload []byte) {
	if !c.debug || c.logger == nil {
		return
	}
	c.logger.Debug(msg, zap.String("action", action), zap.ByteString("payload", payload))
}

// ============================================================================
// SOAP Request Builders
// ============================================================================

const soapEnvelopeTemplate = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
  <soap:Header>
    <RequestReference xmlns="http://tempuri.org/">{{.RequestRef}}</RequestReference>
  </soap:Header>
  <soap:Body>
    {{.Body}}
  </soap:Body>
</soap:Envelope>`

const credentialsTemplate = `{{define "credentials"}}<credentials>
        <UserName>{{x .Creds.UserName}}</UserName>
        <Password>{{x .Creds.Password}}</Password>
        <ClientCode>{{x .Creds.ClientCode}}</ClientCode>
        <AgencyCode>{{x .Creds.AgencyCode}}</AgencyCode>
        <ContractCode>{{x .Creds.ContractCode}}</ContractCode>
      </credentials>{{end}}`

const manifestShippingTemplate = `<ManifestShipping xmlns="http://tempuri.org/">
      {{template "credentials" .}}
      <shippingData>
        <ClientReference>{{x .Data.ClientReference}}</ClientReference>
        <ClientDepartmentCode xsi:nil="true"/>
        <ItemsCount>{{.Data.ItemsCount}}</ItemsCount>
        <IsClientPodScanRequired xsi:nil="true"/>
        <RecipientAddress>{{x .Data.RecipientAddress}}</RecipientAddress>
        <RecipientCountry>{{x .Data.RecipientCountry}}</RecipientCountry>
        {{nillable "RecipientEmail" .Data.RecipientEmail}}
        <RecipientSMS xsi:nil="true"/>
        {{nillable "RecipientMobile" .Data.RecipientMobile}}
        <RecipientName>{{x .Data.RecipientName}}</RecipientName>
        {{nillable "RecipientPhone" .Data.RecipientPhone}}
        <RecipientPostalCode>{{x .Data.RecipientPostalCode}}</RecipientPostalCode>
        <RecipientTown>{{x .Data.RecipientTown}}</RecipientTown>
        <RefundValue xsi:nil="true"/>
        <HasReturn xsi:nil="true"/>
        <IsSaturdayDelivery xsi:nil="true"/>
        <SenderAddress>{{x .Data.SenderAddress}}</SenderAddress>
        <SenderName>{{x .Data.SenderName}}</SenderName>
        <SenderPhone>{{x .Data.SenderPhone}}</SenderPhone>
        <SenderPostalCode>{{x .Data.SenderPostalCode}}</SenderPostalCode>
        <SenderTown>{{x .Data.SenderTown}}</SenderTown>
        <ShippingComments xsi:nil="true"/>
        <ShippingTypeCode>{{x .Data.ShippingTypeCode}}</ShippingTypeCode>
        <Weight>{{.Data.Weight}}</Weight>
        <PodScanInstructions xsi:nil="true"/>
        <IsFragile xsi:nil="true"/>
        <RefundTypeCode xsi:nil="true"/>
        <CreatedProcessCode>{{x .Data.CreatedProcessCode}}</CreatedProcessCode>
        <HasControl xsi:nil="true"/>
        <HasFinalManagement xsi:nil="true"/>
      </shippingData>
    </ManifestShipping>`

var templateFuncs = template.FuncMap{
	"x": escape,
	"nillable": func(name, value string) string {
		if value == "" {
			return "<" + name + ` xsi:nil="true"/>`
		}
		return "<" + name + ">" + escape(value) + "</" + name + ">"
	},
	"date": func(t time.Time) string {
		return t.Format("2006-01-02")
	},
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func (c *SOAPAPIClient) buildEnvelope(name, bodyTemplate string, data interface{}) ([]byte, error) {
	bodyTmpl, err := template.New(name).Funcs(templateFuncs).Parse(credentialsTemplate)
	if err != nil {
		return nil, err
	}
	if _, err := bodyTmpl.Parse(bodyTemplate); err != nil {
		return nil, err
	}

	var bodyBuf bytes.Buffer
	if err := bodyTmpl.Execute(&bodyBuf, struct {
		Creds Credentials
		Data  interface{}
	}{c.credentials, data}); err != nil {
		return nil, err
	}

	envTmpl, err := template.New("envelope").Parse(soapEnvelopeTemplate)
	if err != nil {
		return nil, err
	}

	envData := struct {
		RequestRef string
		Body       string
	}{
		RequestRef: uuid.NewString(),
		Body:       bodyBuf.String(),
	}

	var envBuf bytes.Buffer
	if err := envTmpl.Execute(&envBuf, envData); err != nil {
		return nil, err
	}

	return envBuf.Bytes(), nil
}

// ============================================================================
// SOAP Response Parsers - XML Types
// ============================================================================

type soapEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    soapBody `xml:"Body"`
}

type soapBody struct {
	Fault                    *soapFault                `xml:"Fault,omitempty"`
	ValidateUserResponse     *validateUserResponse     `xml:"ValidateUserResponse,omitempty"`
	GetServiceTypesResponse  *getServiceTypesResponse  `xml:"GetServiceTypesResponse,omitempty"`
	ManifestShippingResponse *manifestShippingResponse `xml:"ManifestShippingResponse,omitempty"`
	CancelShippingResponse   *cancelShippingResponse   `xml:"CancelShippingResponse,omitempty"`
	GetDocumentsV2Response   *getDocumentsV2Response   `xml:"GetDocumentsV2Response,omitempty"`
	GetTrackingResponse      *getTrackingResponse      `xml:"GetTrackingResponse,omitempty"`
	ReportShippingResponse   *reportShippingResponse   `xml:"ReportShippingResponse,omitempty"`
	CreateRequestResponse    *createRequestResponse    `xml:"CreateRequestResponse,omitempty"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

type errorResult struct {
	ErrorCode    string `xml:"ErrorCode"`
	ErrorMessage string `xml:"ErrorMessage"`
}

type resultErrors struct {
	Errors []errorResult `xml:"ErrorCodes>ErrorResult"`
}

type validateUserResponse struct {
	Result resultErrors `xml:"ValidateUserResult"`
}

type getServiceTypesResponse struct {
	Result struct {
		resultErrors
		ServiceTypes []soapServiceType `xml:"ServiceTypes>ServiceType"`
	} `xml:"GetServiceTypesResult"`
}

type soapServiceType struct {
	Code        string `xml:"Code"`
	Description string `xml:"Description"`
}

type manifestShippingResponse struct {
	Result struct {
		resultErrors
		ShippingCode string `xml:"ShippingData>ShippingCode"`
	} `xml:"ManifestShippingResult"`
}

type cancelShippingResponse struct {
	Result resultErrors `xml:"CancelShippingResult"`
}

type soapDocument struct {
	FileName    string `xml:"FileName"`
	FileContent string `xml:"FileContent"` // base64
}

type getDocumentsV2Response struct {
	Result struct {
		resultErrors
		Documents []soapDocument `xml:"Documents>Document"`
	} `xml:"GetDocumentsV2Result"`
}

type soapTracking struct {
	StatusDateTime      string `xml:"StatusDateTime"`
	StatusCode          string `xml:"StatusCode"`
	StatusDescription   string `xml:"StatusDescription"`
	IncidentCode        string `xml:"IncidentCode"`
	IncidentDescription string `xml:"IncidentDescription"`
}

type getTrackingResponse struct {
	Result struct {
		resultErrors
		Trackings []soapTracking `xml:"Trackings>Tracking"`
	} `xml:"GetTrackingResult"`
}

type reportShippingResponse struct {
	Result struct {
		resultErrors
		Documents []soapDocument `xml:"Documents>Document"`
	} `xml:"ReportShippingResult"`
}

type createRequestResponse struct {
	Result struct {
		resultErrors
		RequestCode string `xml:"RequestCode"`
	} `xml:"CreateRequestResult"`
}

// ============================================================================
// Helper Functions
// ============================================================================

func toErrorResults(in []errorResult) []ErrorResult {
	out := make([]ErrorResult, len(in))
	for i, e := range in {
		out[i] = ErrorResult{ErrorCode: strings.TrimSpace(e.ErrorCode), ErrorMessage: e.ErrorMessage}
	}
	return out
}

func checkErrors(in []errorResult) error {
	return CheckErrors(toErrorResults(in))
}

// CheckErrors converts a response error list into a carrier_rejected error.
// Entries without a code are ignored.
func CheckErrors(list []ErrorResult) error {
	msgs := make([]shipper.CarrierMessage, len(list))
	for i, e := range list {
		msgs[i] = shipper.CarrierMessage{Code: e.ErrorCode, Message: e.ErrorMessage}
	}
	return shipper.CheckCarrierMessages(msgs)
}

func decodeDocuments(in []soapDocument) ([]DocumentEntry, error) {
	docs := make([]DocumentEntry, 0, len(in))
	for _, d := range in {
		content, err := decodeContent(d.FileContent)
		if err != nil {
			return nil, err
		}
		docs = append(docs, DocumentEntry{FileName: d.FileName, Content: content})
	}
	return docs, nil
}

func decodeContent(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, shipper.NewRemoteError("DECODE_ERROR", "failed to decode document content").WithCause(err)
	}
	return data, nil
}

func missingPayload(action string) error {
	return shipper.NewRemoteError("PARSE_ERROR", "no "+action+" payload in response")
}

func truncate(s string) string {
	const max = 512
	if len(s) > max {
		return s[:max]
	}
	return s
}

var _ APIClient = (*SOAPAPIClient)(nil)
