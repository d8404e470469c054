package cdek

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// checkStatus classifies any non-2xx answer as a connection error before
// the body is looked at.
func checkStatus(op Operation, resp *Response) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ConnectionError{Operation: op, StatusCode: resp.StatusCode, Body: resp.Body}
	}
	return nil
}

// ============================================================================
// JSON (calculator)
// ============================================================================

type jsonEnvelope struct {
	Error  json.RawMessage `json:"error"`
	Result json.RawMessage `json:"result"`
}

// decodeEnvelope returns the result member of a calculator answer, or an
// ApplicationError when the error member is truthy.
func decodeEnvelope(op Operation, body []byte) (json.RawMessage, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &MalformedResponseError{Operation: op, Body: body, Cause: err}
	}

	if truthy(env.Error) {
		details, _ := parseErrorDetails(env.Error)
		return nil, &ApplicationError{
			Operation: op,
			Details:   details,
			Payload:   body,
		}
	}

	if isNull(env.Result) {
		return nil, &MalformedResponseError{Operation: op, Body: body, Cause: errors.New("missing result")}
	}
	return env.Result, nil
}

// truthy follows the calculator's loose notion of an error flag: null,
// false, zero, "" and empty containers are all "no error".
func truthy(raw json.RawMessage) bool {
	if isNull(raw) {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return true
	}
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// parseErrorDetails accepts an array of entries or a single entry.
func parseErrorDetails(raw json.RawMessage) ([]ErrorDetail, error) {
	var list []ErrorDetail
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var single ErrorDetail
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, err
	}
	return []ErrorDetail{single}, nil
}

// flexInt decodes numbers that the calculator sometimes sends as strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("integer %q: %w", s, err)
	}
	*f = flexInt(n)
	return nil
}

type serviceChargeJSON struct {
	ID    flexInt         `json:"id"`
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
	Rate  decimal.Decimal `json:"rate"`
}

type priceResultJSON struct {
	TariffID          flexInt             `json:"tariffId"`
	Price             *decimal.Decimal    `json:"price"`
	PriceByCurrency   decimal.Decimal     `json:"priceByCurrency"`
	Currency          string              `json:"currency"`
	DeliveryPeriodMin flexInt             `json:"deliveryPeriodMin"`
	DeliveryPeriodMax flexInt             `json:"deliveryPeriodMax"`
	DeliveryDateMin   string              `json:"deliveryDateMin"`
	DeliveryDateMax   string              `json:"deliveryDateMax"`
	Services          []serviceChargeJSON `json:"services"`
}

func (r priceResultJSON) toModel(decimalPlaces int32) *PriceResult {
	res := &PriceResult{
		TariffID:          int(r.TariffID),
		Price:             r.Price.Round(decimalPlaces),
		PriceByCurrency:   r.PriceByCurrency,
		Currency:          r.Currency,
		DeliveryPeriodMin: int(r.DeliveryPeriodMin),
		DeliveryPeriodMax: int(r.DeliveryPeriodMax),
		DeliveryDateMin:   r.DeliveryDateMin,
		DeliveryDateMax:   r.DeliveryDateMax,
	}
	for _, s := range r.Services {
		res.Services = append(res.Services, ServiceCharge{
			ID:    int(s.ID),
			Title: s.Title,
			Price: s.Price,
			Rate:  s.Rate,
		})
	}
	return res
}

func decodePriceResult(raw json.RawMessage) (priceResultJSON, error) {
	var r priceResultJSON
	if err := json.Unmarshal(raw, &r); err != nil {
		return r, err
	}
	if r.Price == nil {
		return r, errors.New("result has no price")
	}
	return r, nil
}

// ParsePriceResponse normalizes a single-tariff calculator answer. The
// price is rounded to decimalPlaces.
func ParsePriceResponse(body []byte, decimalPlaces int32) (*PriceResult, error) {
	raw, err := decodeEnvelope(OpCalcPrice, body)
	if err != nil {
		return nil, err
	}
	r, err := decodePriceResult(raw)
	if err != nil {
		return nil, &MalformedResponseError{Operation: OpCalcPrice, Body: body, Cause: err}
	}
	return r.toModel(decimalPlaces), nil
}

type tariffEntryJSON struct {
	TariffID flexInt         `json:"tariffId"`
	Status   bool            `json:"status"`
	Result   json.RawMessage `json:"result"`
}

// ParsePricesResponse normalizes a tariff-list calculator answer. Only
// feasible entries are decoded and rounded; infeasible entries keep their
// raw result.
func ParsePricesResponse(body []byte, decimalPlaces int32) ([]TariffOutcome, error) {
	raw, err := decodeEnvelope(OpCalcPrices, body)
	if err != nil {
		return nil, err
	}

	var entries []tariffEntryJSON
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, &MalformedResponseError{Operation: OpCalcPrices, Body: body, Cause: err}
	}

	outcomes := make([]TariffOutcome, len(entries))
	for i, e := range entries {
		outcome := TariffOutcome{
			TariffID: int(e.TariffID),
			Status:   e.Status,
			Raw:      append([]byte(nil), e.Result...),
		}

		if e.Status {
			r, err := decodePriceResult(e.Result)
			if err != nil {
				return nil, &MalformedResponseError{
					Operation: OpCalcPrices,
					Body:      body,
					Cause:     fmt.Errorf("tariff %d: %w", e.TariffID, err),
				}
			}
			outcome.Result = r.toModel(decimalPlaces)
			if outcome.TariffID == 0 {
				outcome.TariffID = outcome.Result.TariffID
			}
		} else {
			outcome.Errors = infeasibleErrors(e.Result)
		}

		outcomes[i] = outcome
	}
	return outcomes, nil
}

func infeasibleErrors(raw json.RawMessage) []ErrorDetail {
	if isNull(raw) {
		return nil
	}
	var wrapped struct {
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil || isNull(wrapped.Errors) {
		return nil
	}
	details, _ := parseErrorDetails(wrapped.Errors)
	return details
}

// alignOutcomes orders outcomes like the requested tariff list. Every
// requested tariff must be answered exactly once.
func alignOutcomes(requested []TariffPriority, outcomes []TariffOutcome, body []byte) ([]TariffOutcome, error) {
	if len(outcomes) != len(requested) {
		return nil, &MalformedResponseError{
			Operation: OpCalcPrices,
			Body:      body,
			Cause:     fmt.Errorf("requested %d tariffs, got %d results", len(requested), len(outcomes)),
		}
	}

	used := make([]bool, len(outcomes))
	aligned := make([]TariffOutcome, 0, len(requested))
	for _, t := range requested {
		found := false
		for i, o := range outcomes {
			if !used[i] && o.TariffID == t.ID {
				used[i] = true
				aligned = append(aligned, o)
				found = true
				break
			}
		}
		if !found {
			return nil, &MalformedResponseError{
				Operation: OpCalcPrices,
				Body:      body,
				Cause:     fmt.Errorf("no result for tariff %d", t.ID),
			}
		}
	}
	return aligned, nil
}

// ============================================================================
// XML (integration)
// ============================================================================

// ParseOrderResponse normalizes a new_orders answer. The first child of the
// root describes the order; an ErrorCode attribute there is a carrier error.
func ParseOrderResponse(body []byte) (*OrderAcknowledgement, error) {
	doc, err := ParseElement(body)
	if err != nil {
		return nil, &MalformedResponseError{Operation: OpNewOrder, Body: body, Cause: err}
	}

	children := doc.Children()
	if len(children) == 0 {
		return nil, &MalformedResponseError{Operation: OpNewOrder, Body: body, Cause: errors.New("response has no order element")}
	}

	first := children[0]
	if appErr := xmlApplicationError(OpNewOrder, first, body); appErr != nil {
		return nil, appErr
	}

	number, _ := first.Attr("Number")
	dispatch, _ := first.Attr("DispatchNumber")
	if dispatch == "" {
		return nil, &MalformedResponseError{Operation: OpNewOrder, Body: body, Cause: errors.New("order element has no DispatchNumber")}
	}

	return &OrderAcknowledgement{Number: number, DispatchNumber: dispatch}, nil
}

// ParseStatusResponse normalizes a status report. An ErrorCode on the root,
// or on any order element, is a carrier error.
func ParseStatusResponse(body []byte) ([]StatusRecord, error) {
	doc, err := ParseElement(body)
	if err != nil {
		return nil, &MalformedResponseError{Operation: OpStatus, Body: body, Cause: err}
	}
	if appErr := xmlApplicationError(OpStatus, doc, body); appErr != nil {
		return nil, appErr
	}

	var records []StatusRecord
	for _, order := range doc.Children() {
		if order.Name() != "Order" {
			continue
		}
		if appErr := xmlApplicationError(OpStatus, order, body); appErr != nil {
			return nil, appErr
		}

		number, _ := order.Attr("Number")
		dispatch, _ := order.Attr("DispatchNumber")
		events, err := statusEvents(order)
		if err != nil {
			return nil, &MalformedResponseError{Operation: OpStatus, Body: body, Cause: err}
		}

		records = append(records, StatusRecord{
			Number:         number,
			DispatchNumber: dispatch,
			Events:         events,
		})
	}
	return records, nil
}

// statusEvents prefers the Status/State history and falls back to the
// current Status when the report carries no history.
func statusEvents(order Element) ([]StatusEvent, error) {
	events := []StatusEvent{}
	for _, status := range order.Children() {
		if status.Name() != "Status" {
			continue
		}

		history := false
		for _, state := range status.Children() {
			if state.Name() != "State" {
				continue
			}
			history = true
			ev, err := statusEvent(state)
			if err != nil {
				return nil, err
			}
			events = append(events, ev)
		}

		if !history {
			if _, ok := status.Attr("Code"); !ok {
				continue
			}
			ev, err := statusEvent(status)
			if err != nil {
				return nil, err
			}
			events = append(events, ev)
		}
	}
	return events, nil
}

func statusEvent(el Element) (StatusEvent, error) {
	date, _ := el.Attr("Date")
	rawCode, _ := el.Attr("Code")
	description, _ := el.Attr("Description")
	cityCode, _ := el.Attr("CityCode")
	cityName, _ := el.Attr("CityName")

	code, err := strconv.Atoi(strings.TrimSpace(rawCode))
	if err != nil {
		return StatusEvent{}, fmt.Errorf("status code %q: %w", rawCode, err)
	}

	return StatusEvent{
		Date:        date,
		Code:        code,
		Description: description,
		CityCode:    cityCode,
		CityName:    cityName,
	}, nil
}

func xmlApplicationError(op Operation, el Element, body []byte) error {
	code, ok := el.Attr("ErrorCode")
	if !ok {
		return nil
	}
	msg, _ := el.Attr("Msg")
	return &ApplicationError{
		Operation: op,
		Code:      code,
		Message:   msg,
		Payload:   body,
	}
}

// ParsePickupPoints maps every child of the listing root to a PickupPoint.
// The listing has no error form; anything that parses is a listing.
func ParsePickupPoints(body []byte) ([]PickupPoint, error) {
	doc, err := ParseElement(body)
	if err != nil {
		return nil, &MalformedResponseError{Operation: OpPvzList, Body: body, Cause: err}
	}

	children := doc.Children()
	points := make([]PickupPoint, 0, len(children))
	for _, el := range children {
		p, err := pickupPoint(el)
		if err != nil {
			return nil, &MalformedResponseError{Operation: OpPvzList, Body: body, Cause: err}
		}
		points = append(points, p)
	}
	return points, nil
}

func pickupPoint(el Element) (PickupPoint, error) {
	attr := func(name string) string {
		v, _ := el.Attr(name)
		return v
	}

	lat, err := parseCoordinate(attr("coordY"))
	if err != nil {
		return PickupPoint{}, fmt.Errorf("pickup point %s latitude: %w", attr("Code"), err)
	}
	lon, err := parseCoordinate(attr("coordX"))
	if err != nil {
		return PickupPoint{}, fmt.Errorf("pickup point %s longitude: %w", attr("Code"), err)
	}
	cod, _ := strconv.ParseBool(attr("AllowedCod"))

	return PickupPoint{
		Code:           attr("Code"),
		Name:           attr("Name"),
		City:           attr("City"),
		Address:        attr("Address"),
		AddressComment: attr("AddressComment"),
		Note:           attr("Note"),
		Phone:          attr("Phone"),
		Latitude:       lat,
		Longitude:      lon,
		Type:           attr("Type"),
		CashOnDelivery: cod,
	}, nil
}

func parseCoordinate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
