package shipper

import (
	"strconv"
	"strings"
)

// Normalizer rewrites a raw carrier status code into the table key form.
type Normalizer func(code string) string

// Translator maps native carrier status codes onto DeliveryState.
// The tables are fixed; only the normalizers can be replaced.
type Translator struct {
	legacy     map[string]DeliveryState
	rest       map[string]DeliveryState
	normLegacy Normalizer
	normREST   Normalizer
}

var legacyStates = map[string]DeliveryState{
	"0":  StateRecorded,  // pending network entry
	"1":  StateInTransit, // in transit
	"2":  StateInTransit, // out for delivery
	"3":  StateDelivered,
	"4":  StateIncidence,
	"5":  StateIncidence, // return
	"6":  StateInTransit, // collect at agency
	"7":  StateIncidence, // rerouted
	"8":  StateIncidence, // not done
	"9":  StateIncidence, // returned
	"10": StateInTransit, // customs
	"11": StateInTransit, // at agency
	"12": StateDelivered, // partial delivery
	"13": StateIncidence,
	"50": StateIncidence,
	"51": StateIncidence,
	"70": StateIncidence,
	"71": StateIncidence,
	"90": StateCanceled,
	"91": StateInTransit, // reactivated
	"99": StateInTransit, // composite
}

var restStates = map[string]DeliveryState{
	"0000": StateRecorded,
	"0500": StateRecorded,
	"1000": StateInTransit,
	"1100": StateInTransit,
	"1200": StateInTransit,
	"1500": StateInTransit,
	"1600": StateInTransit,
	"2000": StateDelivered,
	"2100": StateDelivered,
	"3000": StateCanceled,
	"4000": StateIncidence,
	"4100": StateIncidence,
	"5000": StateIncidence,
}

// NewTranslator returns a translator with the built-in tables and normalizers.
func NewTranslator() *Translator {
	return &Translator{
		legacy:     legacyStates,
		rest:       restStates,
		normLegacy: TrimLeadingZeros,
		normREST:   PadFourDigits,
	}
}

// WithNormalizer returns a copy of t using fn for the given protocol.
func (t *Translator) WithNormalizer(protocol Protocol, fn Normalizer) *Translator {
	c := *t
	switch protocol {
	case ProtocolSOAP:
		c.normLegacy = fn
	case ProtocolREST:
		c.normREST = fn
	}
	return &c
}

// Translate maps a native code to a DeliveryState. Unknown codes, unknown
// protocols and empty codes all map to StateIncidence.
func (t *Translator) Translate(protocol Protocol, code string) DeliveryState {
	code = strings.TrimSpace(code)
	var (
		table map[string]DeliveryState
		norm  Normalizer
	)
	switch protocol {
	case ProtocolSOAP:
		table, norm = t.legacy, t.normLegacy
	case ProtocolREST:
		table, norm = t.rest, t.normREST
	default:
		return StateIncidence
	}
	if norm != nil {
		code = norm(code)
	}
	if state, ok := table[code]; ok {
		return state
	}
	return StateIncidence
}

var defaultTranslator = NewTranslator()

// Translate maps a native code with the default translator.
func Translate(protocol Protocol, code string) DeliveryState {
	return defaultTranslator.Translate(protocol, code)
}

// TrimLeadingZeros strips leading zeros, keeping a single "0" for all-zero codes.
func TrimLeadingZeros(code string) string {
	trimmed := strings.TrimLeft(code, "0")
	if trimmed == "" && code != "" {
		return "0"
	}
	return trimmed
}

// PadFourDigits left-pads numeric codes shorter than four digits with zeros.
// Non-numeric codes are returned unchanged.
func PadFourDigits(code string) string {
	if code == "" || len(code) >= 4 {
		return code
	}
	if _, err := strconv.Atoi(code); err != nil {
		return code
	}
	return strings.Repeat("0", 4-len(code)) + code
}
