package gateway_test

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/tournevent/cttgateway/pkg/gateway"
	"github.com/tournevent/cttgateway/pkg/shipper"
	"github.com/tournevent/cttgateway/pkg/shipper/legacy"
	shippermock "github.com/tournevent/cttgateway/pkg/shipper/mock"
	"github.com/tournevent/cttgateway/pkg/shipper/rest"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func soapAccount(id, customer string) *shipper.CarrierAccount {
	return &shipper.CarrierAccount{
		ID:       id,
		Protocol: shipper.ProtocolSOAP,
		SOAP: shipper.SOAPCredentials{
			User: "user", Password: "secret",
			Customer: customer, Agency: "008000", Contract: "1",
		},
		ServiceType: "19H",
	}
}

func restAccount(id string) *shipper.CarrierAccount {
	return &shipper.CarrierAccount{
		ID:       id,
		Protocol: shipper.ProtocolREST,
		REST: shipper.RESTCredentials{
			ClientID: "client", ClientSecret: "secret",
			Username: "user", Password: "pass", ClientCenterCode: "CC01",
		},
		ServiceType: "C24",
	}
}

// mockFactory hands out one recording mock per account.
type mockFactory struct {
	mu      sync.Mutex
	builds  int
	clients map[string]*shippermock.Client
}

func newMockFactory() *mockFactory {
	return &mockFactory{clients: make(map[string]*shippermock.Client)}
}

func (f *mockFactory) client(account *shipper.CarrierAccount) *shippermock.Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clients[account.ID]
	if !ok {
		c = shippermock.New(account.Protocol)
		f.clients[account.ID] = c
	}
	return c
}

func (f *mockFactory) build(account *shipper.CarrierAccount) (shipper.Shipper, error) {
	f.mu.Lock()
	f.builds++
	f.mu.Unlock()
	return f.client(account), nil
}

func (f *mockFactory) calls(operation string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.clients {
		n += c.Calls(operation)
	}
	return n
}

type sinkMock struct {
	mock.Mock
}

func (m *sinkMock) Publish(ctx context.Context, change gateway.StateChange) error {
	return m.Called(ctx, change).Error(0)
}

type recorder struct {
	mu       sync.Mutex
	requests map[string]int
	errors   map[string]int
}

func (r *recorder) RecordRequest(operation, protocol, status string, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[operation+"/"+protocol+"/"+status]++
}

func (r *recorder) RecordError(protocol, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors[protocol+"/"+kind]++
}

type GatewaySuite struct {
	suite.Suite
	registry *shipper.Registry
	factory  *mockFactory
	sink     *sinkMock
	metrics  *recorder
	gw       *gateway.Gateway
}

func (s *GatewaySuite) SetupTest() {
	s.registry = shipper.NewRegistry()
	s.Require().NoError(s.registry.Register(soapAccount("soap-a", "000123")))
	s.Require().NoError(s.registry.Register(restAccount("rest-a")))

	s.factory = newMockFactory()
	s.sink = &sinkMock{}
	s.metrics = &recorder{requests: map[string]int{}, errors: map[string]int{}}
	s.gw = gateway.New(s.registry, s.factory.build, gateway.Config{}, otelzap.New(zap.NewNop()),
		gateway.WithStateSink(s.sink),
		gateway.WithRecorder(s.metrics),
	)
}

func (s *GatewaySuite) TestSend_MadridScenario() {
	gw := gateway.New(s.registry, gateway.NewFactory(gateway.AdapterConfig{UseMock: true}, otelzap.New(zap.NewNop())),
		gateway.Config{}, otelzap.New(zap.NewNop()))

	shipment := &gateway.Shipment{
		Name:         "WH/OUT/0001",
		OrderName:    "S0001",
		Sender:       shipper.Party{Name: "Warehouse", City: "Getafe", PostalCode: "28901"},
		Recipient:    shipper.Party{Name: "Ana", City: "Madrid", PostalCode: "28001", Address: "Gran Via 1"},
		Weight:       2.5,
		PackageCount: 1,
	}

	for _, id := range []string{"soap-a", "rest-a"} {
		shipment.TrackingRef = ""
		result, err := gw.Send(context.Background(), id, shipment)
		s.Require().NoError(err, id)

		s.NotEmpty(result.TrackingCode, id)
		s.Equal(result.TrackingCode, shipment.TrackingRef, id)
		s.Equal(gateway.DefaultPrice, result.Price, id)
		s.Require().Len(result.Attachments, 1, id)
		s.NotEmpty(result.Attachments[0].Content, id)
		s.Equal("ctt_label_"+result.TrackingCode+".pdf", result.Attachments[0].Filename, id)
	}
}

func (s *GatewaySuite) TestSend_AppendsTrackingRef() {
	shipment := &gateway.Shipment{Name: "WH/OUT/0002", TrackingRef: "0082000000000000000A"}

	result, err := s.gw.Send(context.Background(), "soap-a", shipment)
	s.Require().NoError(err)
	s.Equal("0082000000000000000A,"+result.TrackingCode, shipment.TrackingRef)
	s.Equal(1, s.metrics.requests["send/SOAP/success"])
}

func (s *GatewaySuite) TestSend_UsesRateFunc() {
	gw := gateway.New(s.registry, s.factory.build, gateway.Config{}, otelzap.New(zap.NewNop()),
		gateway.WithRateFunc(func(_ *shipper.CarrierAccount, sh *gateway.Shipment) float64 {
			return 3.5 * float64(sh.PackageCount)
		}))

	shipment := &gateway.Shipment{Name: "WH/OUT/0003", PackageCount: 2}
	result, err := gw.Send(context.Background(), "soap-a", shipment)
	s.Require().NoError(err)
	s.Equal(7.0, result.Price)
	s.Equal(7.0, shipment.Price)
}

func (s *GatewaySuite) TestSend_LabelFailureKeepsResult() {
	account, _ := s.registry.Get("soap-a")
	s.factory.client(account).OnGetLabel = func(context.Context, string, shipper.LabelSpec) ([]shipper.Document, error) {
		return nil, shipper.NewRemoteError("HTTP_503", "unavailable")
	}

	shipment := &gateway.Shipment{Name: "WH/OUT/0004"}
	result, err := s.gw.Send(context.Background(), "soap-a", shipment)
	s.Require().Error(err)
	s.True(errors.Is(err, shipper.ErrRemoteFailure))
	s.Require().NotNil(result)
	s.NotEmpty(result.TrackingCode)
	s.Equal(result.TrackingCode, shipment.TrackingRef)
	s.Equal(1, s.metrics.errors["SOAP/remote_failure"])
}

func (s *GatewaySuite) TestSend_WithoutCodeSkipsLabel() {
	account, _ := s.registry.Get("soap-a")
	client := s.factory.client(account)
	client.OnCreateShipment = func(context.Context, *shipper.ShipmentRequest) (*shipper.ShipmentResult, error) {
		return &shipper.ShipmentResult{}, nil
	}

	shipment := &gateway.Shipment{Name: "WH/OUT/0005", TrackingRef: "X"}
	result, err := s.gw.Send(context.Background(), "soap-a", shipment)
	s.Require().NoError(err)
	s.Empty(result.TrackingCode)
	s.Equal("X", shipment.TrackingRef)
	s.Equal(0, client.Calls("GetLabel"))
}

func (s *GatewaySuite) TestSend_UnknownAccount() {
	_, err := s.gw.Send(context.Background(), "missing", &gateway.Shipment{})
	s.True(errors.Is(err, shipper.ErrAccountNotFound))
}

func (s *GatewaySuite) TestCancel_EmptyRefMakesNoCalls() {
	for _, ref := range []string{"", "  ", ",, ,"} {
		ok, err := s.gw.Cancel(context.Background(), "soap-a", ref)
		s.NoError(err)
		s.False(ok)
	}
	s.Equal(0, s.factory.builds)
	s.Equal(0, s.factory.calls("CancelShipment"))
}

func (s *GatewaySuite) TestCancel_EveryCode() {
	ok, err := s.gw.Cancel(context.Background(), "rest-a", "A, B")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(2, s.factory.calls("CancelShipment"))
}

func (s *GatewaySuite) TestCancel_Rejected() {
	account, _ := s.registry.Get("rest-a")
	s.factory.client(account).OnCancelShipment = func(context.Context, string) error {
		return shipper.CheckCarrierMessages([]shipper.CarrierMessage{{Code: "E1", Message: "already delivered"}})
	}

	ok, err := s.gw.Cancel(context.Background(), "rest-a", "A")
	s.False(ok)
	s.True(errors.Is(err, shipper.ErrCarrierRejected))
}

func (s *GatewaySuite) TestUpdateTrackingState_RESTCanceled() {
	t1 := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(3 * time.Hour)
	account, _ := s.registry.Get("rest-a")
	var tracked string
	s.factory.client(account).OnGetTracking = func(_ context.Context, code string) ([]shipper.TrackingEvent, error) {
		tracked = code
		return []shipper.TrackingEvent{
			{Time: &t2, StatusCode: "3000", StatusDescription: "Anulado"},
			{Time: &t1, StatusCode: "0000", StatusDescription: "Grabado"},
		}, nil
	}
	s.sink.On("Publish", mock.Anything, mock.MatchedBy(func(c gateway.StateChange) bool {
		return c.TrackingCode == "B" && c.State == shipper.StateCanceled && c.StatusCode == "3000"
	})).Return(nil).Once()

	update, err := s.gw.UpdateTrackingState(context.Background(), "rest-a", "A,B")
	s.Require().NoError(err)

	s.Equal("B", tracked)
	s.Equal(shipper.StateCanceled, update.State)
	s.Equal([]string{
		"2024-05-02 09:00:00 - [0000] Grabado",
		"2024-05-02 12:00:00 - [3000] Anulado",
	}, update.History)
	s.Equal("2024-05-02 12:00:00 - [3000] Anulado", update.Current)
	s.sink.AssertExpectations(s.T())
}

func (s *GatewaySuite) TestUpdateTrackingState_UntimedLatestEventWins() {
	t1 := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	account, _ := s.registry.Get("rest-a")
	s.factory.client(account).OnGetTracking = func(context.Context, string) ([]shipper.TrackingEvent, error) {
		return []shipper.TrackingEvent{
			{Time: &t1, StatusCode: "0000", StatusDescription: "Grabado"},
			{StatusCode: "3000", StatusDescription: "Anulado"},
		}, nil
	}
	s.sink.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()

	update, err := s.gw.UpdateTrackingState(context.Background(), "rest-a", "B")
	s.Require().NoError(err)
	s.Equal(shipper.StateCanceled, update.State)
	s.Equal("n/a - [3000] Anulado", update.Current)
}

func (s *GatewaySuite) TestUpdateTrackingState_SinkFailureIsNotFatal() {
	s.sink.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

	update, err := s.gw.UpdateTrackingState(context.Background(), "soap-a", "A")
	s.Require().NoError(err)
	s.Equal(shipper.StateRecorded, update.State)
	s.sink.AssertExpectations(s.T())
}

func (s *GatewaySuite) TestUpdateTrackingState_EmptyRef() {
	update, err := s.gw.UpdateTrackingState(context.Background(), "soap-a", "")
	s.NoError(err)
	s.Nil(update)
	s.Equal(0, s.factory.builds)
}

func (s *GatewaySuite) TestUpdateTrackingState_NotRecognized() {
	gw := gateway.New(s.registry, s.factory.build, gateway.Config{
		RecognizedStates: []shipper.DeliveryState{shipper.StateDelivered},
	}, otelzap.New(zap.NewNop()))

	update, err := gw.UpdateTrackingState(context.Background(), "soap-a", "A")
	s.True(errors.Is(err, gateway.ErrStateNotRecognized))
	s.Require().NotNil(update)
	s.Equal(shipper.StateRecorded, update.State)
}

func (s *GatewaySuite) TestBulkTracking_LegacyUnsupported() {
	gw := gateway.New(s.registry, gateway.NewFactory(gateway.AdapterConfig{UseMock: true}, otelzap.New(zap.NewNop())),
		gateway.Config{}, otelzap.New(zap.NewNop()))

	_, err := gw.BulkTracking(context.Background(), "soap-a", &shipper.BulkTrackingQuery{})
	s.True(errors.Is(err, shipper.ErrUnsupportedOperation))

	page, err := gw.BulkTracking(context.Background(), "rest-a", &shipper.BulkTrackingQuery{From: time.Now()})
	s.Require().NoError(err)
	s.False(page.HasMore)
}

func (s *GatewaySuite) TestLabel_ByteIdenticalAcrossProtocols() {
	content := []byte("%PDF-1.4 same label for both protocols")
	logger := otelzap.New(zap.NewNop())

	legacyAPI := legacy.NewMockAPIClient()
	legacyAPI.OnGetDocumentsV2 = func(context.Context, *legacy.DocumentsRequest) ([]legacy.DocumentEntry, error) {
		return []legacy.DocumentEntry{{FileName: "whatever.pdf", Content: content}}, nil
	}
	restAPI := rest.NewMockAPIClient()
	restAPI.OnGetLabels = func(context.Context, string, rest.LabelParams) (*rest.LabelResponse, error) {
		resp := &rest.LabelResponse{}
		resp.Data = append(resp.Data, struct {
			Label string `json:"label"`
		}{Label: base64.StdEncoding.EncodeToString(content)})
		return resp, nil
	}

	factory := func(a *shipper.CarrierAccount) (shipper.Shipper, error) {
		if a.Protocol == shipper.ProtocolREST {
			return rest.NewWithAPIClient(rest.Config{Account: a}, restAPI, logger), nil
		}
		return legacy.NewWithAPIClient(legacy.Config{Account: a}, legacyAPI, logger), nil
	}
	gw := gateway.New(s.registry, factory, gateway.Config{}, logger)

	fromLegacy, err := gw.Label(context.Background(), "soap-a", "0082A")
	s.Require().NoError(err)
	fromREST, err := gw.Label(context.Background(), "rest-a", "0081B")
	s.Require().NoError(err)

	s.Require().Len(fromLegacy, 1)
	s.Require().Len(fromREST, 1)
	s.Equal(fromLegacy[0].Content, fromREST[0].Content)
	s.Equal("ctt_label_0082A.pdf", fromLegacy[0].Filename)
	s.Equal("ctt_label_0081B.pdf", fromREST[0].Filename)
}

func (s *GatewaySuite) TestLabel_EmptyIsNotAnError() {
	account, _ := s.registry.Get("soap-a")
	s.factory.client(account).OnGetLabel = func(context.Context, string, shipper.LabelSpec) ([]shipper.Document, error) {
		return nil, nil
	}

	attachments, err := s.gw.Label(context.Background(), "soap-a", "0082A")
	s.NoError(err)
	s.Empty(attachments)
}

func (s *GatewaySuite) TestAdaptersAreMemoized() {
	for i := 0; i < 3; i++ {
		_, err := s.gw.Label(context.Background(), "soap-a", "0082A")
		s.Require().NoError(err)
	}
	s.Equal(1, s.factory.builds)
}

func (s *GatewaySuite) TestValidateAccount() {
	s.NoError(s.gw.ValidateAccount(context.Background(), "soap-a"))
	s.NoError(s.gw.ValidateAccount(context.Background(), "rest-a"))

	bad := soapAccount("soap-bad", "000999")
	bad.ServiceType = "ZZZ"
	s.Require().NoError(s.registry.Register(bad))
	err := s.gw.ValidateAccount(context.Background(), "soap-bad")
	s.True(errors.Is(err, shipper.ErrValidation))
}

func (s *GatewaySuite) TestValidateAccount_CredentialsRejected() {
	account, _ := s.registry.Get("soap-a")
	s.factory.client(account).OnValidateUser = func(context.Context) error {
		return shipper.CheckCarrierMessages([]shipper.CarrierMessage{{Code: "1", Message: "invalid user"}})
	}

	err := s.gw.ValidateAccount(context.Background(), "soap-a")
	s.True(errors.Is(err, shipper.ErrCarrierRejected))
}

func (s *GatewaySuite) TestRequestPickup() {
	code, err := s.gw.RequestPickup(context.Background(), "soap-a", &shipper.PickupRequest{
		Date: time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC), MinHour: "09:00", MaxHour: "14:00",
	})
	s.Require().NoError(err)
	s.Equal("PICKUP-20240503", code)
}

func (s *GatewaySuite) TestServiceTypes_RESTCatalogue() {
	types, err := s.gw.ServiceTypes(context.Background(), "rest-a")
	s.Require().NoError(err)
	s.Equal(shipper.RESTServices, types)
}

func (s *GatewaySuite) TestInvalidAccountIsRejectedBeforeCarrierCalls() {
	soapAcct, _ := s.registry.Get("soap-a")
	soapAcct.SOAP.Password = ""
	restAcct, _ := s.registry.Get("rest-a")
	restAcct.REST.ClientSecret = ""

	ctx := context.Background()
	operations := []struct {
		name string
		call func() error
	}{
		{"send", func() error {
			_, err := s.gw.Send(ctx, "soap-a", &gateway.Shipment{Name: "WH/OUT/0009"})
			return err
		}},
		{"cancel", func() error {
			_, err := s.gw.Cancel(ctx, "soap-a", "A")
			return err
		}},
		{"label", func() error {
			_, err := s.gw.Label(ctx, "soap-a", "0082A")
			return err
		}},
		{"tracking", func() error {
			_, err := s.gw.UpdateTrackingState(ctx, "rest-a", "B")
			return err
		}},
		{"bulk tracking", func() error {
			_, err := s.gw.BulkTracking(ctx, "rest-a", &shipper.BulkTrackingQuery{From: time.Now()})
			return err
		}},
		{"manifest", func() error {
			_, err := s.gw.PullManifests(ctx, gateway.ManifestQuery{From: time.Now(), AccountIDs: []string{"soap-a"}})
			return err
		}},
		{"pickup", func() error {
			_, err := s.gw.RequestPickup(ctx, "soap-a", &shipper.PickupRequest{Date: time.Now()})
			return err
		}},
		{"service types", func() error {
			_, err := s.gw.ServiceTypes(ctx, "soap-a")
			return err
		}},
		{"validate", func() error {
			return s.gw.ValidateAccount(ctx, "rest-a")
		}},
	}

	for _, op := range operations {
		s.Run(op.name, func() {
			err := op.call()
			s.True(errors.Is(err, shipper.ErrValidation), "%v", err)
		})
	}
	s.Equal(0, s.factory.builds)
}

func TestGatewaySuite(t *testing.T) {
	suite.Run(t, new(GatewaySuite))
}

func (s *GatewaySuite) TestLabel_RESTIsAlwaysPDF() {
	account, _ := s.registry.Get("rest-a")
	account.DocumentFormat = shipper.DocumentPNG

	attachments, err := s.gw.Label(context.Background(), "rest-a", "0081B")
	s.Require().NoError(err)
	s.Require().Len(attachments, 1)
	s.Equal("ctt_label_0081B.pdf", attachments[0].Filename)
}
