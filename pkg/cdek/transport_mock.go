package cdek

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockTransport is a Transport for tests and offline runs. Without an OnDo
// hook it answers every operation with a canned successful response.
type MockTransport struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnDo func(ctx context.Context, req *Request) (*Response, error)

	mu       sync.Mutex
	requests []*Request
}

// NewMockTransport creates a mock transport with default behavior.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// Requests returns the requests seen so far.
func (m *MockTransport) Requests() []*Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Request(nil), m.requests...)
}

// LastRequest returns the most recent request, or nil.
func (m *MockTransport) LastRequest() *Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// Do records the request and returns the hook's or the canned response.
func (m *MockTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.SimulateLatency > 0 {
		select {
		case <-time.After(m.SimulateLatency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.SimulateErrors {
		return nil, errors.New("simulated transport error")
	}

	if m.OnDo != nil {
		return m.OnDo(ctx, req)
	}

	return cannedResponse(req), nil
}

// StaticResponse returns an OnDo hook that always answers with status and body.
func StaticResponse(status int, body string) func(context.Context, *Request) (*Response, error) {
	return func(context.Context, *Request) (*Response, error) {
		return &Response{StatusCode: status, Header: http.Header{}, Body: []byte(body)}, nil
	}
}

func cannedResponse(req *Request) *Response {
	ok := func(body string) *Response {
		return &Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: []byte(body)}
	}

	switch {
	case strings.Contains(req.URL, "calculate_tarifflist"):
		return ok(`{"result":[` +
			`{"tariffId":136,"status":true,"result":{"price":"1295.5","deliveryPeriodMin":1,"deliveryPeriodMax":2,"tariffId":136,"priceByCurrency":1295.5,"currency":"RUB"}},` +
			`{"tariffId":291,"status":false,"result":{"errors":[{"code":3,"text":"Невозможно осуществить доставку по этому направлению при заданных условиях"}]}}` +
			`]}`)
	case strings.Contains(req.URL, "calculate_price"):
		return ok(`{"result":{"price":"1295.5","deliveryPeriodMin":1,"deliveryPeriodMax":2,"deliveryDateMin":"2026-10-20","deliveryDateMax":"2026-10-21","tariffId":136,"priceByCurrency":1295.5,"currency":"RUB"}}`)
	case strings.Contains(req.URL, "pvzlist"):
		return ok(`<?xml version="1.0" encoding="UTF-8"?>
<PvzList>
<Pvz Code="NSK1" Name="Академгородок" City="Новосибирск" Address="ул. Ильича, 6" AddressComment="" Note="" Phone="+73833194660" coordX="83.109318" coordY="54.838455" Type="PVZ" AllowedCod="true"/>
</PvzList>`)
	case strings.Contains(req.URL, "new_orders"):
		var number string
		if doc, err := ParseElement([]byte(req.Form.Get(xmlRequestField))); err == nil {
			number, _ = doc.Attr("Number")
		}
		return okXML(E("response", nil,
			E("Order", []Attr{
				A("Number", number),
				A("DispatchNumber", fmt.Sprintf("%d", uuid.New().ID())),
				A("Msg", "Добавлен заказ"),
			}),
			E("Order", []Attr{A("Msg", "Добавлено заказов 1")}),
		))
	case strings.Contains(req.URL, "status_report"):
		var orders []Element
		if doc, err := ParseElement([]byte(req.Form.Get(xmlRequestField))); err == nil {
			for _, q := range doc.Children() {
				number, _ := q.Attr("Number")
				dispatch, _ := q.Attr("DispatchNumber")
				orders = append(orders, E("Order", []Attr{A("Number", number), A("DispatchNumber", dispatch)},
					E("Status", []Attr{A("Date", "2026-10-18T10:00:00+03:00"), A("Code", "1"), A("Description", "Создан")},
						E("State", []Attr{A("Date", "2026-10-18T10:00:00+03:00"), A("Code", "1"), A("Description", "Создан")}),
					),
				))
			}
		}
		return okXML(E("StatusReport", nil, orders...))
	default:
		return &Response{StatusCode: http.StatusNotFound, Header: http.Header{}, Body: []byte("not found")}
	}
}

func okXML(doc Element) *Response {
	body, err := doc.Marshal()
	if err != nil {
		return &Response{StatusCode: http.StatusInternalServerError, Header: http.Header{}, Body: []byte(err.Error())}
	}
	return &Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: body}
}

var _ Transport = (*MockTransport)(nil)
