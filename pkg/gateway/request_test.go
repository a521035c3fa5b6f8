package gateway_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/cttgateway/pkg/gateway"
	"github.com/tournevent/cttgateway/pkg/shipper"
)

func TestBuildRequest_Defaults(t *testing.T) {
	now := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	account := soapAccount("soap-a", "000123")
	account.ServiceType = ""
	account.DefaultPackageCount = 3

	req := gateway.BuildRequest(account, &gateway.Shipment{
		Name:      "WH/OUT/0001",
		OrderName: "S0001",
		Recipient: shipper.Party{City: "Madrid"},
		Weight:    2.5,
	}, now)

	assert.Equal(t, "S0001-WH/OUT/0001", req.Reference)
	assert.Equal(t, 3, req.PackageCount)
	assert.Equal(t, 2.5, req.Weight)
	assert.Equal(t, "19H", req.ServiceType)
	assert.Equal(t, now, req.ShippingDate)
	assert.Equal(t, "ES", req.Recipient.Country)
	assert.Equal(t, "ES", req.Sender.Country)
}

func TestBuildRequest_AccountOverrides(t *testing.T) {
	account := restAccount("rest-a")
	account.WeightOverride = true
	account.DefaultWeight = 1.2
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	req := gateway.BuildRequest(account, &gateway.Shipment{
		Name:         "WH/OUT/0002",
		Weight:       9,
		PackageCount: 2,
		ShippingDate: date,
		Recipient:    shipper.Party{Country: "PT"},
	}, time.Now())

	assert.Equal(t, "WH/OUT/0002", req.Reference)
	assert.Equal(t, 1.2, req.Weight)
	assert.Equal(t, 2, req.PackageCount)
	assert.Equal(t, "C24", req.ServiceType)
	assert.Equal(t, date, req.ShippingDate)
	assert.Equal(t, "PT", req.Recipient.Country)
}

func TestBuildRequest_NoPackageDefault(t *testing.T) {
	req := gateway.BuildRequest(soapAccount("a", "1"), &gateway.Shipment{}, time.Now())
	assert.Equal(t, 1, req.PackageCount)
}

func TestTrackingRef(t *testing.T) {
	assert.Equal(t, "A", gateway.AppendTrackingRef("", "A"))
	assert.Equal(t, "A,B", gateway.AppendTrackingRef("A", "B"))
	assert.Equal(t, "A", gateway.AppendTrackingRef("A", ""))
	assert.Equal(t, []string{"A", "B"}, gateway.TrackingCodes(" A ,,B"))
	assert.Empty(t, gateway.TrackingCodes(""))
}

func TestTrackingLink(t *testing.T) {
	assert.Equal(t, "https://www.cttexpress.com/localizador-de-envios/?sc=0082123",
		gateway.TrackingLink("0082123"))
}

func TestFormatEvent(t *testing.T) {
	at := time.Date(2024, 5, 2, 9, 30, 5, 0, time.UTC)

	assert.Equal(t, "2024-05-02 09:30:05 - [1] En tránsito",
		gateway.FormatEvent(shipper.TrackingEvent{Time: &at, StatusCode: "1", StatusDescription: "En tránsito"}))
	assert.Equal(t, "2024-05-02 09:30:05 - [4] Incidencia (13) - Ausente",
		gateway.FormatEvent(shipper.TrackingEvent{
			Time: &at, StatusCode: "4", StatusDescription: "Incidencia",
			IncidentCode: "13", IncidentDescription: "Ausente",
		}))
	assert.Equal(t, "n/a - [0] Grabado",
		gateway.FormatEvent(shipper.TrackingEvent{StatusCode: "0", StatusDescription: "Grabado"}))
}

func TestSortEvents(t *testing.T) {
	t1 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t2.Add(time.Hour)
	events := []shipper.TrackingEvent{
		{Time: &t2, StatusCode: "middle"},
		{Time: &t3, StatusCode: "late"},
		{Time: &t1, StatusCode: "early"},
	}

	sorted := gateway.SortEvents(events)
	require.Len(t, sorted, 3)
	assert.Equal(t, "early", sorted[0].StatusCode)
	assert.Equal(t, "middle", sorted[1].StatusCode)
	assert.Equal(t, "late", sorted[2].StatusCode)
	assert.Equal(t, "middle", events[0].StatusCode)
}

func TestSortEvents_UntimedKeepsCarrierOrder(t *testing.T) {
	t1 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	events := []shipper.TrackingEvent{
		{Time: &t2, StatusCode: "late"},
		{Time: &t1, StatusCode: "early"},
		{StatusCode: "untimed"},
	}

	sorted := gateway.SortEvents(events)
	require.Len(t, sorted, 3)
	assert.Equal(t, "late", sorted[0].StatusCode)
	assert.Equal(t, "early", sorted[1].StatusCode)
	assert.Equal(t, "untimed", sorted[2].StatusCode)
}

func TestNormalizeLabel(t *testing.T) {
	docs := []shipper.Document{
		{Name: "empty.pdf"},
		{Name: "first.png", Content: []byte("one")},
		{Name: "second.png", Content: []byte("two")},
	}

	got := gateway.NormalizeLabel("0082", shipper.DocumentPNG, docs)
	require.Len(t, got, 1)
	assert.Equal(t, "ctt_label_0082.png", got[0].Filename)
	assert.Equal(t, []byte("one"), got[0].Content)

	assert.Empty(t, gateway.NormalizeLabel("0082", shipper.DocumentPDF, nil))
}

func TestManifestFilename(t *testing.T) {
	account := soapAccount("a", "000123")
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "0001231008000-20240501-20240531.xlsx",
		gateway.ManifestFilename(account, from, to, shipper.ManifestXLSX, 0))
	assert.Equal(t, "0001231008000-20240501-20240531-2.pdf",
		gateway.ManifestFilename(account, from, to, shipper.ManifestPDF, 2))
}
