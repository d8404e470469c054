package cdek

// BuildStatusDocument builds the StatusReport document with full history
// for each queried order.
func BuildStatusDocument(queries []StatusQuery, auth XMLAuth) (Element, error) {
	if err := ValidateStatusQueries(queries); err != nil {
		return Element{}, err
	}

	orders := make([]Element, len(queries))
	for i, q := range queries {
		orders[i] = E("Order", OptionalAttrs(
			A("DispatchNumber", q.DispatchNumber),
			A("Number", q.Number),
		))
	}

	attrs := append(auth.attrs(), A("ShowHistory", "1"))
	return E("StatusReport", attrs, orders...), nil
}
