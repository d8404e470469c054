package cdek

import (
	"strconv"
	"time"
)

// xmlRequestField is the form field that carries XML documents.
const xmlRequestField = "xml_request"

const xmlDateLayout = "2006-01-02"

// XMLAuth is the account block stamped on every XML request.
type XMLAuth struct {
	Account string
	Secure  string
	Date    time.Time
}

func (a XMLAuth) attrs() []Attr {
	return []Attr{
		A("Date", a.Date.Format(xmlDateLayout)),
		A("Account", a.Account),
		A("Secure", a.Secure),
	}
}

// BuildOrderDocument builds the DeliveryRequest document for a single order.
func BuildOrderDocument(order *Order, auth XMLAuth) (Element, error) {
	if err := ValidateOrder(order); err != nil {
		return Element{}, err
	}

	orderAttrs := []Attr{
		A("Number", order.Number),
		A("SendCityCode", strconv.Itoa(order.SenderCityID)),
		A("RecCityCode", strconv.Itoa(order.ReceiverCityID)),
		A("RecipientName", order.RecipientName),
		A("Phone", order.Phone),
		A("TariffTypeCode", strconv.Itoa(order.TariffTypeCode)),
	}
	orderAttrs = append(orderAttrs, OptionalAttrs(
		A("RecipientEmail", order.RecipientEmail),
		A("Comment", order.Comment),
	)...)

	children := make([]Element, 0, len(order.Packages)+1)
	children = append(children, addressElement(order.Address))
	for i, pkg := range order.Packages {
		children = append(children, packageElement(i+1, pkg))
	}

	rootAttrs := append([]Attr{A("Number", order.Number)}, auth.attrs()...)
	rootAttrs = append(rootAttrs, A("OrderCount", "1"))

	return E("DeliveryRequest", rootAttrs,
		E("Order", orderAttrs, children...),
	), nil
}

func addressElement(addr Address) Element {
	if addr.IsPickupPoint() {
		return E("Address", []Attr{A("PvzCode", addr.PvzCode)})
	}
	return E("Address", OptionalAttrs(
		A("Street", addr.Street),
		A("House", addr.House),
		A("Flat", addr.Flat),
	))
}

// Packages are numbered from 1 and the number doubles as the barcode.
func packageElement(seq int, pkg Package) Element {
	number := strconv.Itoa(seq)
	items := make([]Element, len(pkg.Items))
	for i, item := range pkg.Items {
		items[i] = E("Item", []Attr{
			A("Amount", strconv.Itoa(item.Amount)),
			A("WareKey", item.WareKey),
			A("Cost", item.Cost.String()),
			A("Payment", item.Payment.String()),
			A("Weight", formatFloat(item.Weight)),
			A("Comment", item.Comment),
		})
	}
	return E("Package", []Attr{
		A("Number", number),
		A("BarCode", number),
		A("Weight", formatFloat(pkg.Weight)),
		A("SizeA", formatFloat(pkg.Length)),
		A("SizeB", formatFloat(pkg.Width)),
		A("SizeC", formatFloat(pkg.Height)),
	}, items...)
}
