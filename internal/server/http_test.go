package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/teemow/pushbox/internal/checkpoint"
	"github.com/teemow/pushbox/internal/instrumentation"
	"github.com/teemow/pushbox/internal/mcp/oauth"
	"github.com/teemow/pushbox/internal/webhook"
)

func TestValidateHTTPSRequirement(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{name: "https production", baseURL: "https://mcp.example.com", wantErr: false},
		{name: "http localhost", baseURL: "http://localhost:8080", wantErr: false},
		{name: "http loopback", baseURL: "http://127.0.0.1:8080", wantErr: false},
		{name: "http ipv6 loopback", baseURL: "http://[::1]:8080", wantErr: false},
		{name: "http production", baseURL: "http://mcp.example.com", wantErr: true},
		{name: "unsupported scheme", baseURL: "ftp://mcp.example.com", wantErr: true},
		{name: "empty", baseURL: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateHTTPSRequirement(tt.baseURL)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func newTestHTTPServer(t *testing.T) *OAuthHTTPServer {
	t.Helper()

	oauthHandler, err := oauth.NewHandler(oauth.Config{
		Resource:         "http://localhost:8080",
		UserInfoEndpoint: "http://127.0.0.1:1/userinfo",
	}, nil)
	require.NoError(t, err)

	pipeline := webhook.NewPipeline(nil, nil, checkpoint.NewMemoryStore(), "proj", nil, nil)
	webhookHandler := webhook.NewHandler(pipeline, nil)

	mcpSrv := mcpserver.NewMCPServer("pushbox", "test")
	healthChecker := NewHealthChecker(newTestServerContext(t))

	srv, err := NewOAuthHTTPServer(mcpSrv, oauthHandler, webhookHandler, healthChecker, HTTPServerConfig{
		BaseURL: "http://localhost:8080",
	})
	require.NoError(t, err)
	return srv
}

func TestHTTPServerRoutes(t *testing.T) {
	handler := newTestHTTPServer(t).Handler()

	t.Run("resource metadata is public", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/oauth-protected-resource", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("mcp requires bearer token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "resource_metadata")
	})

	t.Run("webhook is outside oauth middleware", func(t *testing.T) {
		// GET is rejected by the webhook handler itself, not by a 401
		// from the OAuth layer.
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, WebhookPath, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("health endpoints are public", func(t *testing.T) {
		for _, path := range []string{"/healthz", "/readyz", "/healthz/detailed"} {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusOK, rec.Code, "path %s", path)
		}
	})
}

func TestHTTPServerRecordsRequestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")
	metrics, err := instrumentation.NewMetrics(meter, false)
	require.NoError(t, err)

	srv := newTestHTTPServer(t)
	srv.SetMetrics(metrics)
	handler := srv.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	names := make(map[string]bool)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["http_requests_total"])
	assert.True(t, names["http_request_duration_seconds"])
}

func TestNewOAuthHTTPServerRequiresOAuthHandler(t *testing.T) {
	_, err := NewOAuthHTTPServer(mcpserver.NewMCPServer("pushbox", "test"), nil, nil, nil, HTTPServerConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oauth handler")
}

func TestHTTPServerStartRejectsInsecureBaseURL(t *testing.T) {
	oauthHandler, err := oauth.NewHandler(oauth.Config{Resource: "http://mcp.example.com"}, nil)
	require.NoError(t, err)

	srv, err := NewOAuthHTTPServer(mcpserver.NewMCPServer("pushbox", "test"), oauthHandler, nil, nil, HTTPServerConfig{
		BaseURL: "http://mcp.example.com",
	})
	require.NoError(t, err)

	err = srv.Start(":0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTPS")
}
