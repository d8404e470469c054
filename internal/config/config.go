package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/tournevent/cdek/pkg/cdek"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// CDEK
	CDEKLogin   string        `envconfig:"CDEK_LOGIN"`
	CDEKSecret  string        `envconfig:"CDEK_SECRET"`
	CDEKSandbox bool          `envconfig:"CDEK_SANDBOX" default:"false"`
	CDEKTimeout time.Duration `envconfig:"CDEK_TIMEOUT" default:"30s"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"cdek-bridge"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// CDEK returns the carrier client configuration.
func (c *Config) CDEK() cdek.Config {
	return cdek.Config{
		Login:   c.CDEKLogin,
		Secret:  c.CDEKSecret,
		Sandbox: c.CDEKSandbox,
		Timeout: c.CDEKTimeout,
	}
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.Bool("cdek.sandbox", c.CDEKSandbox),
	}
}
