package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/pushbox/internal/instrumentation"
)

func TestNewMetricsServerDefaults(t *testing.T) {
	config := instrumentation.DefaultConfig()
	config.Enabled = true
	config.MetricsExporter = instrumentation.ExporterPrometheus

	provider, err := instrumentation.NewProvider(context.Background(), config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	srv, err := NewMetricsServer(MetricsServerConfig{
		InstrumentationProvider: provider,
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultMetricsAddr, srv.Addr())
}

func TestNewMetricsServerRequiresProvider(t *testing.T) {
	_, err := NewMetricsServer(MetricsServerConfig{Addr: ":9191"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instrumentation provider is required")
}

func TestNewMetricsServerRequiresEnabledProvider(t *testing.T) {
	config := instrumentation.DefaultConfig()
	config.Enabled = false

	provider, err := instrumentation.NewProvider(context.Background(), config)
	require.NoError(t, err)

	_, err = NewMetricsServer(MetricsServerConfig{
		InstrumentationProvider: provider,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not enabled")
}
