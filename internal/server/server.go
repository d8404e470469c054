package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tournevent/cdek/internal/telemetry"
	"github.com/tournevent/cdek/pkg/cdek"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultDecimalPlaces = 2
	maxDecimalPlaces     = 8
	maxBodyBytes         = 1 << 20
)

// Carrier is the subset of the CDEK client the HTTP API depends on.
type Carrier interface {
	CalculatePrice(ctx context.Context, req *cdek.PriceRequest, decimalPlaces int32) (*cdek.PriceResult, error)
	CalculatePrices(ctx context.Context, req *cdek.PriceRequest, decimalPlaces int32) ([]cdek.TariffOutcome, error)
	ListPickupPoints(ctx context.Context, cityID int, cashOnDelivery bool) ([]cdek.PickupPoint, error)
	CreateOrder(ctx context.Context, order *cdek.Order) (*cdek.OrderAcknowledgement, error)
	CheckOrderStatus(ctx context.Context, queries []cdek.StatusQuery) ([]cdek.StatusRecord, error)
}

var _ Carrier = (*cdek.Client)(nil)

// Server is the HTTP server for the CDEK bridge.
type Server struct {
	port     int
	carrier  Carrier
	logger   *otelzap.Logger
	metrics  *telemetry.Metrics
	registry *prometheus.Registry
}

// Config holds server configuration.
type Config struct {
	Port int
}

// New creates a new server instance with its own metrics registry.
func New(cfg Config, carrier Carrier, logger *otelzap.Logger) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Server{
		port:     cfg.Port,
		carrier:  carrier,
		logger:   logger,
		metrics:  telemetry.NewMetrics(registry),
		registry: registry,
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/price", s.handlePrice)
		r.Post("/prices", s.handlePrices)
		r.Get("/pickup-points", s.handlePickupPoints)
		r.Post("/orders", s.handleCreateOrder)
		r.Post("/status", s.handleStatus)
	})
	return r
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Ctx(r.Context()).Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// ============================================================================
// Handlers
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	places, err := decimalPlaces(r)
	if err != nil {
		s.writeError(w, cdek.OpCalcPrice, err)
		return
	}

	var req cdek.PriceRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, cdek.OpCalcPrice, err)
		return
	}

	s.call(w, r, cdek.OpCalcPrice, func(ctx context.Context) (any, error) {
		return s.carrier.CalculatePrice(ctx, &req, places)
	})
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	places, err := decimalPlaces(r)
	if err != nil {
		s.writeError(w, cdek.OpCalcPrices, err)
		return
	}

	var req cdek.PriceRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, cdek.OpCalcPrices, err)
		return
	}

	s.call(w, r, cdek.OpCalcPrices, func(ctx context.Context) (any, error) {
		outcomes, err := s.carrier.CalculatePrices(ctx, &req, places)
		if err != nil {
			return nil, err
		}
		return pricesResponse{Outcomes: outcomes}, nil
	})
}

func (s *Server) handlePickupPoints(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	cityID, err := strconv.Atoi(q.Get("city"))
	if err != nil {
		s.writeError(w, cdek.OpPvzList, fmt.Errorf("%w: city must be an integer", cdek.ErrInvalidRequest))
		return
	}

	cod := false
	if raw := q.Get("cod"); raw != "" {
		cod, err = strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, cdek.OpPvzList, fmt.Errorf("%w: cod must be a boolean", cdek.ErrInvalidRequest))
			return
		}
	}

	s.call(w, r, cdek.OpPvzList, func(ctx context.Context) (any, error) {
		points, err := s.carrier.ListPickupPoints(ctx, cityID, cod)
		if err != nil {
			return nil, err
		}
		return pickupPointsResponse{PickupPoints: points}, nil
	})
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var order cdek.Order
	if err := decodeBody(w, r, &order); err != nil {
		s.writeError(w, cdek.OpNewOrder, err)
		return
	}

	s.call(w, r, cdek.OpNewOrder, func(ctx context.Context) (any, error) {
		return s.carrier.CreateOrder(ctx, &order)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, cdek.OpStatus, err)
		return
	}

	s.call(w, r, cdek.OpStatus, func(ctx context.Context) (any, error) {
		records, err := s.carrier.CheckOrderStatus(ctx, req.Orders)
		if err != nil {
			return nil, err
		}
		return statusResponse{Orders: records}, nil
	})
}

// call runs one carrier operation, records it and writes the outcome.
func (s *Server) call(w http.ResponseWriter, r *http.Request, op cdek.Operation, fn func(context.Context) (any, error)) {
	start := time.Now()
	result, err := fn(r.Context())
	duration := time.Since(start)

	if err != nil {
		s.metrics.RecordRequest(string(op), "error", duration)
		s.metrics.RecordError(string(op), cdek.ErrorType(err))
		s.writeError(w, op, err)
		return
	}

	s.metrics.RecordRequest(string(op), "success", duration)
	writeJSON(w, http.StatusOK, result)
}

// ============================================================================
// Encoding
// ============================================================================

type pricesResponse struct {
	Outcomes []cdek.TariffOutcome `json:"outcomes"`
}

type pickupPointsResponse struct {
	PickupPoints []cdek.PickupPoint `json:"pickupPoints"`
}

type statusRequest struct {
	Orders []cdek.StatusQuery `json:"orders"`
}

type statusResponse struct {
	Orders []cdek.StatusRecord `json:"orders"`
}

type errorResponse struct {
	Error   string             `json:"error"`
	Type    string             `json:"type"`
	Code    string             `json:"code,omitempty"`
	Details []cdek.ErrorDetail `json:"details,omitempty"`
}

func decimalPlaces(r *http.Request) (int32, error) {
	raw := r.URL.Query().Get("decimals")
	if raw == "" {
		return defaultDecimalPlaces, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > maxDecimalPlaces {
		return 0, fmt.Errorf("%w: decimals must be an integer between 0 and %d", cdek.ErrInvalidRequest, maxDecimalPlaces)
	}
	return int32(n), nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", cdek.ErrInvalidRequest, err)
	}
	return nil
}

func (s *Server) writeError(w http.ResponseWriter, op cdek.Operation, err error) {
	resp := errorResponse{Error: err.Error(), Type: cdek.ErrorType(err)}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, cdek.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, cdek.ErrApplication):
		status = http.StatusUnprocessableEntity
		var appErr *cdek.ApplicationError
		if errors.As(err, &appErr) {
			resp.Code = appErr.Code
			resp.Details = appErr.Details
		}
	case errors.Is(err, cdek.ErrConnection), errors.Is(err, cdek.ErrMalformedResponse):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("Carrier call failed",
			zap.String("operation", string(op)),
			zap.Error(err),
		)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
