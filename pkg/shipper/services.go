package shipper

// LegacyServices is the service catalogue of the legacy protocol.
var LegacyServices = []ServiceType{
	{"01V", "VALIJA UNITOQUE DIARIA"},
	{"02V", "VALIJA BITOQUE DIARIA"},
	{"03V", "VALIJA UNITOQUE 3 DIAS"},
	{"04V", "VALIJA BITOQUE 3 DÍAS"},
	{"10H", "10 HORAS"},
	{"13A", "13 HORAS ISLAS"},
	{"13H", "14 HORAS"},
	{"13M", "FRANCIA 13M"},
	{"13O", "OPTICA"},
	{"14H", "PREMIUM EMPRESAS 14h"},
	{"18M", "FRANCIA 18M"},
	{"19A", "CANARIAS DOCUMENTACIÓN"},
	{"19E", "24H E-COMMERCE"},
	{"19H", "24 HORAS"},
	{"48E", "48 E-COMMERCE"},
	{"48H", "48 HORAS"},
	{"48M", "48 CANARIAS MARITIMO"},
	{"48N", "48H"},
	{"48P", "48 E-COMMERCES"},
	{"63E", "RECOGERAN E-COMMERCE CANARIAS"},
	{"63P", "PUNTOS CERCANÍA"},
	{"63R", "RECOGERAN EN AGENCIA"},
	{"80I", "GLOBAL EXPRESS"},
	{"80R", "GLOBAL RECOGIDA INTERNACIONAL"},
	{"80T", "GLOBAL EXPRESS"},
	{"81I", "TERRESTRE ECONOMY"},
	{"81R", "RECOGIDA TERRESTRE ECONOMY"},
	{"81T", "TERRESTRE ECONOMY"},
	{"830", "8.30 HORAS"},
	{"93T", "TERRESTE E-COMMERCE"},
}

// RESTServices is the service catalogue of the REST protocol.
var RESTServices = []ServiceType{
	{"C24", "CTT 24"},
	{"C48", "CTT 48"},
	{"C14", "CTT 14"},
	{"C10", "CTT 10"},
	{"CCA24", "CTT CANARIAS AEREOS"},
	{"CCAE", "CTT CANARIAS DOCUMENTACIÓN"},
	{"CCAM", "CTT CANARIAS MARÍTIMO"},
	{"CBA24", "CTT BALEARES EXPRESS"},
	{"CBA48", "CTT BALEARES ECONOMY"},
	{"CIEX", "CTT INTERNACIONAL EXPRESS"},
	{"CIES", "CTT INTERNACIONAL ECONOMY"},
}

// Services returns the catalogue of the protocol.
func Services(protocol Protocol) []ServiceType {
	if protocol == ProtocolREST {
		return RESTServices
	}
	return LegacyServices
}

// DefaultService returns the service used when an account configures none.
func DefaultService(protocol Protocol) string {
	if protocol == ProtocolREST {
		return "C24"
	}
	return "19H"
}

// HasService reports whether code is part of the protocol catalogue.
func HasService(protocol Protocol, code string) bool {
	for _, s := range Services(protocol) {
		if s.Code == code {
			return true
		}
	}
	return false
}
