package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/cdek/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.CDEKTimeout)
	assert.False(t, cfg.CDEKSandbox)
	assert.Equal(t, "cdek-bridge", cfg.ServiceName)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CDEK_LOGIN", "login")
	t.Setenv("CDEK_SECRET", "secret")
	t.Setenv("CDEK_TIMEOUT", "5s")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	c := cfg.CDEK()
	assert.Equal(t, "login", c.Login)
	assert.Equal(t, "secret", c.Secret)
	assert.Equal(t, 5*time.Second, c.Timeout)
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("CDEK_SANDBOX", "maybe")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestConfig_Attributes(t *testing.T) {
	cfg := &config.Config{ServiceName: "svc", Version: "1.2.3", CDEKSandbox: true}

	attrs := cfg.Attributes()
	require.Len(t, attrs, 3)
	assert.Equal(t, "svc", attrs[0].Value.AsString())
	assert.True(t, attrs[2].Value.AsBool())
}
