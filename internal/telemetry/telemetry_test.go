package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, "caseflowd", cfg.ServiceName)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.Sampling.Rate)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 15*time.Second, cfg.Metrics.ExportInterval)
	assert.Equal(t, 5*time.Second, cfg.Shutdown.Timeout)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{Enabled: true}
		cfg.ApplyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid enabled config",
			mutate: func(*Config) {},
		},
		{
			name: "disabled skips validation",
			mutate: func(cfg *Config) {
				cfg.Enabled = false
				cfg.Endpoint = ""
			},
		},
		{
			name:    "missing endpoint",
			mutate:  func(cfg *Config) { cfg.Endpoint = "" },
			wantErr: "endpoint is required",
		},
		{
			name:    "missing service name",
			mutate:  func(cfg *Config) { cfg.ServiceName = "" },
			wantErr: "service_name is required",
		},
		{
			name: "insecure remote endpoint",
			mutate: func(cfg *Config) {
				cfg.Endpoint = "collector.example.com:4317"
			},
			wantErr: "insecure connections to remote endpoints",
		},
		{
			name:    "sampling rate out of range",
			mutate:  func(cfg *Config) { cfg.Sampling.Rate = 1.5 },
			wantErr: "sampling.rate",
		},
		{
			name: "non-positive export interval",
			mutate: func(cfg *Config) {
				cfg.Metrics.ExportInterval = -time.Second
			},
			wantErr: "export_interval",
		},
		{
			name:    "non-positive shutdown timeout",
			mutate:  func(cfg *Config) { cfg.Shutdown.Timeout = 0 },
			wantErr: "shutdown.timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestIsLocalEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		local    bool
	}{
		{"localhost:4317", true},
		{"127.0.0.1:4317", true},
		{"127.1.2.3:4317", true},
		{"[::1]:4317", true},
		{"::1", true},
		{"collector.example.com:4317", false},
		{"10.0.0.5:4317", false},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			cfg := &Config{Endpoint: tt.endpoint}
			assert.Equal(t, tt.local, cfg.isLocalEndpoint())
		})
	}
}

func TestNewDisabled(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	tel, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, tel)

	assert.False(t, tel.IsEnabled())
	assert.True(t, tel.Health().Healthy)
	assert.False(t, tel.Health().Degraded)

	// Falls back to the global no-op providers.
	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))

	assert.NoError(t, tel.ForceFlush(context.Background()))
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.False(t, tel.Health().Healthy)
}

func TestNewEnabled(t *testing.T) {
	cfg := &Config{Enabled: true}
	cfg.ApplyDefaults()

	// OTLP gRPC exporters connect lazily, so New succeeds without a
	// collector listening on the endpoint.
	tel, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, tel)

	assert.True(t, tel.IsEnabled())
	assert.False(t, tel.Health().Degraded)
	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = tel.Shutdown(ctx)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := &Config{Enabled: true, Endpoint: "remote.example.com:4317", Insecure: true}
	cfg.ServiceName = "caseflowd"
	cfg.ServiceVersion = "0.1.0"
	cfg.Sampling.Rate = 1.0
	cfg.Shutdown.Timeout = time.Second

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid telemetry config")
}

func TestNilTelemetryIsSafe(t *testing.T) {
	var tel *Telemetry

	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.NoError(t, tel.ForceFlush(context.Background()))
	assert.False(t, tel.IsEnabled())
	assert.True(t, tel.Health().Degraded)
}
