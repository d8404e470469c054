package cdek

// Operation names a carrier endpoint.
type Operation string

const (
	OpCalcPrice  Operation = "calc_price"
	OpCalcPrices Operation = "calc_prices"
	OpPvzList    Operation = "pvz_list"
	OpNewOrder   Operation = "new_order"
	OpStatus     Operation = "status"
)

// Operations lists every carrier operation in a stable order.
var Operations = []Operation{OpCalcPrice, OpCalcPrices, OpPvzList, OpNewOrder, OpStatus}

// Publicly documented CDEK integration test account.
const (
	SandboxLogin  = "z9GRRu7FxmO53CQ9cFfI6qiy32wpfTkd"
	SandboxSecret = "w24JTCv4MnAcuRTx0oHjHLDtyt3I6IBq"
)

// EndpointSet maps each operation to a fully-qualified URL.
type EndpointSet struct {
	urls map[Operation]string
}

// NewEndpointSet builds an endpoint set from explicit URLs.
// Operations missing from urls resolve to an empty string.
func NewEndpointSet(urls map[Operation]string) EndpointSet {
	m := make(map[Operation]string, len(urls))
	for op, u := range urls {
		m[op] = u
	}
	return EndpointSet{urls: m}
}

// ProductionEndpoints returns the live CDEK endpoints.
func ProductionEndpoints() EndpointSet {
	return NewEndpointSet(map[Operation]string{
		OpCalcPrice:  "https://api.cdek.ru/calculator/calculate_price_by_json.php",
		OpCalcPrices: "https://api.cdek.ru/calculator/calculate_tarifflist.php",
		OpPvzList:    "https://integration.cdek.ru/pvzlist/v1/xml",
		OpNewOrder:   "https://integration.cdek.ru/new_orders.php",
		OpStatus:     "https://integration.cdek.ru/status_report_h.php",
	})
}

// SandboxEndpoints returns the CDEK test-environment endpoints.
func SandboxEndpoints() EndpointSet {
	return NewEndpointSet(map[Operation]string{
		OpCalcPrice:  "https://api.edu.cdek.ru/calculator/calculate_price_by_json.php",
		OpCalcPrices: "https://api.edu.cdek.ru/calculator/calculate_tarifflist.php",
		OpPvzList:    "https://integration.edu.cdek.ru/pvzlist/v1/xml",
		OpNewOrder:   "https://integration.edu.cdek.ru/new_orders.php",
		OpStatus:     "https://integration.edu.cdek.ru/status_report_h.php",
	})
}

// URL returns the endpoint for op.
func (s EndpointSet) URL(op Operation) string {
	return s.urls[op]
}
