package gateway_test

import (
	"context"
	"errors"
	"time"

	"github.com/tournevent/cttgateway/pkg/gateway"
	"github.com/tournevent/cttgateway/pkg/shipper"
)

func (s *GatewaySuite) registerManifestAccounts() {
	twin := soapAccount("soap-b", "000123")
	twin.ServiceType = "48H"
	s.Require().NoError(s.registry.Register(twin))
	s.Require().NoError(s.registry.Register(soapAccount("soap-c", "000456")))
}

func (s *GatewaySuite) TestPullManifests_DeduplicatesAccounts() {
	s.registerManifestAccounts()
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)

	sets, err := s.gw.PullManifests(context.Background(), gateway.ManifestQuery{
		From: from, To: to, Format: shipper.ManifestPDF,
	})
	s.Require().NoError(err)

	s.Equal(2, s.factory.calls("Manifest"))
	s.Require().Len(sets, 2)
	s.Equal("soap-a", sets[0].AccountID)
	s.Equal("soap-c", sets[1].AccountID)
	s.Require().Len(sets[0].Attachments, 1)
	s.Equal("0001231008000-20240501-20240503.pdf", sets[0].Attachments[0].Filename)
	s.Equal("0004561008000-20240501-20240503.pdf", sets[1].Attachments[0].Filename)
}

func (s *GatewaySuite) TestPullManifests_ExplicitFilter() {
	s.registerManifestAccounts()

	sets, err := s.gw.PullManifests(context.Background(), gateway.ManifestQuery{
		From:       time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		AccountIDs: []string{"soap-b", "soap-a"},
	})
	s.Require().NoError(err)
	s.Require().Len(sets, 1)
	s.Equal(1, s.factory.calls("Manifest"))
	s.Equal("0001231008000-20240501-20240501.xlsx", sets[0].Attachments[0].Filename)
}

func (s *GatewaySuite) TestPullManifests_RESTUnsupported() {
	_, err := s.gw.PullManifests(context.Background(), gateway.ManifestQuery{
		From:       time.Now(),
		AccountIDs: []string{"rest-a"},
	})
	s.True(errors.Is(err, shipper.ErrUnsupportedOperation))
	s.Equal(0, s.factory.calls("Manifest"))
}

func (s *GatewaySuite) TestPullManifests_InvalidRange() {
	_, err := s.gw.PullManifests(context.Background(), gateway.ManifestQuery{
		From: time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	s.True(errors.Is(err, shipper.ErrValidation))
}

func (s *GatewaySuite) TestPullManifests_ErrorStopsPull() {
	account, _ := s.registry.Get("soap-a")
	s.factory.client(account).OnManifest = func(context.Context, *shipper.ManifestRequest) ([]shipper.Document, error) {
		return nil, shipper.NewRemoteError("HTTP_500", "boom")
	}

	_, err := s.gw.PullManifests(context.Background(), gateway.ManifestQuery{From: time.Now()})
	s.True(errors.Is(err, shipper.ErrRemoteFailure))
}
