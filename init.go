package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tournevent/cdek/internal/config"
	"github.com/tournevent/cdek/internal/telemetry"
	"github.com/tournevent/cdek/pkg/cdek"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("sandbox") {
		cfg.CDEKSandbox = sandboxFlag
	}
	return cfg, nil
}

func initTracer(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return func(context.Context) error { return nil }, nil
	}

	_, shutdown, err := telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version, cfg.Attributes()...)
	return shutdown, err
}

func initClient(cfg *config.Config, logger *otelzap.Logger) (*cdek.Client, error) {
	client, err := cdek.New(cfg.CDEK(), logger, otel.Tracer(cfg.ServiceName))
	if err != nil {
		return nil, fmt.Errorf("creating cdek client: %w", err)
	}
	if client.Sandbox() {
		logger.Warn("Using the CDEK test environment")
	}
	return client, nil
}

// commandClient wires config, logging and the client for one-shot commands.
func commandClient(cmd *cobra.Command) (*cdek.Client, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	logger, err := telemetry.NewCLILogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	client, err := initClient(cfg, logger)
	if err != nil {
		logger.Sync()
		return nil, nil, err
	}
	return client, func() { logger.Sync() }, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readOrder(path string) (*cdek.Order, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening order file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var order cdek.Order
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&order); err != nil {
		return nil, fmt.Errorf("decoding order: %w", err)
	}
	return &order, nil
}

func logStartup(logger *otelzap.Logger, cfg *config.Config) {
	logger.Info("Starting CDEK bridge",
		zap.Int("port", cfg.Port),
		zap.String("version", cfg.Version),
		zap.Bool("sandbox", cfg.CDEKSandbox),
	)
}
