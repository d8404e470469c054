// Package cdek provides integration with the CDEK shipping API: the JSON
// tariff calculator and the XML integration endpoints for pickup points,
// orders and status reports.
//
// A Client holds only immutable configuration and is safe for concurrent
// use. Every operation performs exactly one round trip and never retries.
package cdek

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/tournevent/cdek/pkg/cdek"

// Config holds CDEK client configuration. Either Login and Secret or
// Sandbox must be set, not both.
type Config struct {
	Login   string
	Secret  string
	Sandbox bool
	Timeout time.Duration
}

// Client is the CDEK API client.
type Client struct {
	login     string
	secret    string
	sandbox   bool
	endpoints EndpointSet
	transport Transport
	logger    *otelzap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// New creates a client that talks to CDEK over HTTP.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) (*Client, error) {
	transport := NewHTTPTransport(HTTPTransportConfig{Timeout: cfg.Timeout})
	return NewWithTransport(cfg, transport, logger, tracer)
}

// NewWithTransport creates a client with a custom transport.
// This is useful for injecting mock transports in tests.
func NewWithTransport(cfg Config, transport Transport, logger *otelzap.Logger, tracer trace.Tracer) (*Client, error) {
	hasCredentials := cfg.Login != "" || cfg.Secret != ""

	c := &Client{
		transport: transport,
		logger:    logger,
		tracer:    tracer,
		now:       time.Now,
	}

	switch {
	case cfg.Sandbox && hasCredentials:
		return nil, ErrConflictingCredentials
	case cfg.Sandbox:
		c.login, c.secret, c.sandbox = SandboxLogin, SandboxSecret, true
		c.endpoints = SandboxEndpoints()
	case cfg.Login == "" || cfg.Secret == "":
		return nil, ErrMissingCredentials
	default:
		c.login, c.secret = cfg.Login, cfg.Secret
		c.endpoints = ProductionEndpoints()
	}

	if c.logger == nil {
		c.logger = otelzap.New(zap.NewNop())
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(instrumentationName)
	}
	return c, nil
}

// WithEndpoints returns a copy of the client bound to another endpoint set.
// The receiver is not modified.
func (c *Client) WithEndpoints(endpoints EndpointSet) *Client {
	cp := *c
	cp.endpoints = endpoints
	return &cp
}

// WithClock returns a copy of the client that reads the current time from now.
func (c *Client) WithClock(now func() time.Time) *Client {
	cp := *c
	cp.now = now
	return &cp
}

// Sandbox reports whether the client uses the test environment.
func (c *Client) Sandbox() bool {
	return c.sandbox
}

// Endpoint returns the URL used for op.
func (c *Client) Endpoint(op Operation) string {
	return c.endpoints.URL(op)
}

// CalculatePrice returns the price of the best matching tariff, rounded to
// decimalPlaces.
func (c *Client) CalculatePrice(ctx context.Context, req *PriceRequest, decimalPlaces int32) (*PriceResult, error) {
	ctx, span := c.startSpan(ctx, OpCalcPrice)
	defer span.End()

	if req != nil {
		c.logger.Ctx(ctx).Info("Calculating CDEK price",
			zap.Int("sender_city_id", req.SenderCityID),
			zap.Int("receiver_city_id", req.ReceiverCityID),
			zap.Int32("decimal_places", decimalPlaces),
		)
	}

	body, err := c.sendPrice(ctx, req, PriceModeSingle)
	if err != nil {
		return nil, c.fail(ctx, span, OpCalcPrice, err)
	}

	result, err := ParsePriceResponse(body, decimalPlaces)
	if err != nil {
		return nil, c.fail(ctx, span, OpCalcPrice, err)
	}

	span.SetAttributes(attribute.Int("cdek.tariff_id", result.TariffID))
	return result, nil
}

// CalculatePrices returns one outcome per requested tariff, in request
// order. Only feasible outcomes are rounded.
func (c *Client) CalculatePrices(ctx context.Context, req *PriceRequest, decimalPlaces int32) ([]TariffOutcome, error) {
	ctx, span := c.startSpan(ctx, OpCalcPrices)
	defer span.End()

	if req != nil {
		c.logger.Ctx(ctx).Info("Calculating CDEK tariff list",
			zap.Int("sender_city_id", req.SenderCityID),
			zap.Int("receiver_city_id", req.ReceiverCityID),
			zap.Int("tariff_count", len(req.TariffList)),
		)
	}

	body, err := c.sendPrice(ctx, req, PriceModeTariffList)
	if err != nil {
		return nil, c.fail(ctx, span, OpCalcPrices, err)
	}

	outcomes, err := ParsePricesResponse(body, decimalPlaces)
	if err != nil {
		return nil, c.fail(ctx, span, OpCalcPrices, err)
	}

	outcomes, err = alignOutcomes(req.TariffList, outcomes, body)
	if err != nil {
		return nil, c.fail(ctx, span, OpCalcPrices, err)
	}
	return outcomes, nil
}

// CalculatePriceAsInteger returns the integer part of the price rounded to
// zero decimal places.
func (c *Client) CalculatePriceAsInteger(ctx context.Context, req *PriceRequest) (int64, error) {
	result, err := c.CalculatePrice(ctx, req, 0)
	if err != nil {
		return 0, err
	}
	return result.Price.IntPart(), nil
}

// ListPickupPoints returns the pickup points of a city.
func (c *Client) ListPickupPoints(ctx context.Context, cityID int, cashOnDelivery bool) ([]PickupPoint, error) {
	ctx, span := c.startSpan(ctx, OpPvzList)
	defer span.End()

	c.logger.Ctx(ctx).Info("Listing CDEK pickup points",
		zap.Int("city_id", cityID),
		zap.Bool("cash_on_delivery", cashOnDelivery),
	)

	if cityID <= 0 {
		return nil, c.fail(ctx, span, OpPvzList, invalidRequest("city id must be positive"))
	}

	allowed := "0"
	if cashOnDelivery {
		allowed = "1"
	}

	body, err := c.send(ctx, OpPvzList, &Request{
		Method: http.MethodGet,
		URL:    c.endpoints.URL(OpPvzList),
		Query: url.Values{
			"cityid":     {strconv.Itoa(cityID)},
			"allowedcod": {allowed},
		},
	})
	if err != nil {
		return nil, c.fail(ctx, span, OpPvzList, err)
	}

	points, err := ParsePickupPoints(body)
	if err != nil {
		return nil, c.fail(ctx, span, OpPvzList, err)
	}

	span.SetAttributes(attribute.Int("cdek.pickup_point_count", len(points)))
	return points, nil
}

// CreateOrder registers a single order with the carrier.
func (c *Client) CreateOrder(ctx context.Context, order *Order) (*OrderAcknowledgement, error) {
	ctx, span := c.startSpan(ctx, OpNewOrder)
	defer span.End()

	if order != nil {
		c.logger.Ctx(ctx).Info("Creating CDEK order",
			zap.String("number", order.Number),
			zap.Int("tariff_type_code", order.TariffTypeCode),
			zap.Int("package_count", len(order.Packages)),
		)
	}

	doc, err := BuildOrderDocument(order, c.xmlAuth())
	if err != nil {
		return nil, c.fail(ctx, span, OpNewOrder, err)
	}

	body, err := c.sendXML(ctx, OpNewOrder, doc)
	if err != nil {
		return nil, c.fail(ctx, span, OpNewOrder, err)
	}

	ack, err := ParseOrderResponse(body)
	if err != nil {
		return nil, c.fail(ctx, span, OpNewOrder, err)
	}

	span.SetAttributes(attribute.String("cdek.dispatch_number", ack.DispatchNumber))
	c.logger.Ctx(ctx).Info("CDEK order created",
		zap.String("number", ack.Number),
		zap.String("dispatch_number", ack.DispatchNumber),
	)
	return ack, nil
}

// CheckOrderStatus returns the status history of each queried order.
func (c *Client) CheckOrderStatus(ctx context.Context, queries []StatusQuery) ([]StatusRecord, error) {
	ctx, span := c.startSpan(ctx, OpStatus)
	defer span.End()

	c.logger.Ctx(ctx).Info("Checking CDEK order status",
		zap.Int("order_count", len(queries)),
	)

	doc, err := BuildStatusDocument(queries, c.xmlAuth())
	if err != nil {
		return nil, c.fail(ctx, span, OpStatus, err)
	}

	body, err := c.sendXML(ctx, OpStatus, doc)
	if err != nil {
		return nil, c.fail(ctx, span, OpStatus, err)
	}

	records, err := ParseStatusResponse(body)
	if err != nil {
		return nil, c.fail(ctx, span, OpStatus, err)
	}
	return records, nil
}

// ============================================================================
// Request helpers
// ============================================================================

func (c *Client) sendPrice(ctx context.Context, req *PriceRequest, mode PriceMode) ([]byte, error) {
	payload, err := BuildPricePayload(req, mode, c.now())
	if err != nil {
		return nil, err
	}
	payload.Sign(c.login, c.secret)

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal price payload: %w", err)
	}

	op := mode.Operation()
	return c.send(ctx, op, &Request{
		Method:      http.MethodPost,
		URL:         c.endpoints.URL(op),
		Body:        data,
		ContentType: "application/json; charset=utf-8",
	})
}

func (c *Client) sendXML(ctx context.Context, op Operation, doc Element) ([]byte, error) {
	data, err := doc.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s document: %w", op, err)
	}

	return c.send(ctx, op, &Request{
		Method: http.MethodPost,
		URL:    c.endpoints.URL(op),
		Form:   url.Values{xmlRequestField: {string(data)}},
	})
}

// send performs the round trip and applies the shared status check.
func (c *Client) send(ctx context.Context, op Operation, req *Request) ([]byte, error) {
	resp, err := c.transport.Do(ctx, req)
	if err != nil {
		return nil, &ConnectionError{Operation: op, Cause: err}
	}
	if err := checkStatus(op, resp); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// The XML endpoints authenticate with the account secret itself.
func (c *Client) xmlAuth() XMLAuth {
	return XMLAuth{
		Account: c.login,
		Secure:  c.secret,
		Date:    c.now(),
	}
}

func (c *Client) startSpan(ctx context.Context, op Operation) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "cdek."+string(op),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("cdek.operation", string(op)),
			attribute.Bool("cdek.sandbox", c.sandbox),
		),
	)
}

func (c *Client) fail(ctx context.Context, span trace.Span, op Operation, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.logger.Ctx(ctx).Error("CDEK API error",
		zap.String("operation", string(op)),
		zap.String("error_type", ErrorType(err)),
		zap.Error(err),
	)
	return err
}
