package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teemow/pushbox/internal/instrumentation"
)

const (
	// DefaultMetricsAddr is the default bind address for the metrics server.
	DefaultMetricsAddr = ":9090"

	// DefaultShutdownTimeout bounds graceful server shutdown.
	DefaultShutdownTimeout = 30 * time.Second

	defaultMetricsReadTimeout  = 10 * time.Second
	defaultMetricsWriteTimeout = 10 * time.Second
	defaultMetricsIdleTimeout  = 60 * time.Second
)

// MetricsServerConfig holds configuration for the metrics server.
type MetricsServerConfig struct {
	// Addr is the bind address, e.g. ":9090".
	Addr string

	// InstrumentationProvider provides the Prometheus exporter.
	InstrumentationProvider *instrumentation.Provider
}

// MetricsServer serves Prometheus metrics on a dedicated port, keeping
// operational metrics off the application listener.
type MetricsServer struct {
	httpServer *http.Server
	addr       string
}

// NewMetricsServer creates a metrics server exposing /metrics.
func NewMetricsServer(config MetricsServerConfig) (*MetricsServer, error) {
	if config.Addr == "" {
		config.Addr = DefaultMetricsAddr
	}
	if config.InstrumentationProvider == nil {
		return nil, fmt.Errorf("instrumentation provider is required for metrics server")
	}
	if !config.InstrumentationProvider.Enabled() {
		return nil, fmt.Errorf("instrumentation provider is not enabled")
	}

	return &MetricsServer{addr: config.Addr}, nil
}

// Start runs the metrics server. Blocks until the server stops.
func (s *MetricsServer) Start() error {
	mux := http.NewServeMux()

	// The OpenTelemetry prometheus exporter registers with the global
	// Prometheus registry, which promhttp.Handler exposes.
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: defaultMetricsReadTimeout,
		WriteTimeout:      defaultMetricsWriteTimeout,
		IdleTimeout:       defaultMetricsIdleTimeout,
	}

	slog.Info("starting metrics server", "addr", s.addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the metrics server.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		slog.Info("shutting down metrics server")
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Addr returns the configured bind address.
func (s *MetricsServer) Addr() string {
	return s.addr
}
