package gateway

import (
	"strings"
	"time"

	"github.com/tournevent/cttgateway/pkg/shipper"
)

const defaultCountry = "ES"

// DefaultPrice is the shipping price charged when no RateFunc is configured.
const DefaultPrice = 7.0

// Shipment is the host shipment record the gateway reads and writes back.
type Shipment struct {
	// Name is the host reference of the shipment, e.g. a picking name.
	Name string
	// OrderName prefixes the carrier reference when set.
	OrderName string

	Sender       shipper.Party
	Recipient    shipper.Party
	Weight       float64 // kg
	PackageCount int
	ShippingDate time.Time

	// TrackingRef collects every tracking code assigned to the shipment,
	// separated by commas.
	TrackingRef string
	Price       float64
}

// RateFunc prices a shipment for an account.
type RateFunc func(account *shipper.CarrierAccount, s *Shipment) float64

// FixedRate returns a RateFunc charging price for every shipment.
func FixedRate(price float64) RateFunc {
	return func(*shipper.CarrierAccount, *Shipment) float64 { return price }
}

// BuildRequest converts a host shipment into a carrier request using the
// account defaults.
func BuildRequest(account *shipper.CarrierAccount, s *Shipment, now time.Time) *shipper.ShipmentRequest {
	reference := s.Name
	if s.OrderName != "" {
		reference = s.OrderName + "-" + s.Name
	}

	packages := s.PackageCount
	if packages <= 0 {
		packages = account.DefaultPackageCount
	}
	if packages <= 0 {
		packages = 1
	}

	weight := s.Weight
	if account.WeightOverride {
		weight = account.DefaultWeight
	}

	service := strings.TrimSpace(account.ServiceType)
	if service == "" {
		service = shipper.DefaultService(account.Protocol)
	}

	date := s.ShippingDate
	if date.IsZero() {
		date = now
	}

	return &shipper.ShipmentRequest{
		Reference:    reference,
		Sender:       withCountry(s.Sender),
		Recipient:    withCountry(s.Recipient),
		Weight:       weight,
		PackageCount: packages,
		ServiceType:  service,
		ShippingDate: date,
	}
}

func withCountry(p shipper.Party) shipper.Party {
	if p.Country == "" {
		p.Country = defaultCountry
	}
	return p
}

// AppendTrackingRef adds code to a comma separated tracking reference.
func AppendTrackingRef(ref, code string) string {
	if code == "" {
		return ref
	}
	if ref == "" {
		return code
	}
	return ref + "," + code
}

// TrackingCodes splits a tracking reference into its codes.
func TrackingCodes(ref string) []string {
	var codes []string
	for _, c := range strings.Split(ref, ",") {
		if c = strings.TrimSpace(c); c != "" {
			codes = append(codes, c)
		}
	}
	return codes
}
