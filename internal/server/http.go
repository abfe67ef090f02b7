package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/pushbox/internal/instrumentation"
	"github.com/teemow/pushbox/internal/mcp/oauth"
	"github.com/teemow/pushbox/internal/webhook"
)

// WebhookPath is where Pub/Sub push deliveries arrive.
const WebhookPath = "/notifications/gmail"

// HTTPServerConfig holds configuration for the OAuth-enabled HTTP server.
type HTTPServerConfig struct {
	// BaseURL is the externally visible base URL of this server.
	BaseURL string

	// DisableStreaming turns off streaming responses on the MCP endpoint.
	DisableStreaming bool
}

// OAuthHTTPServer serves the MCP endpoint behind Google token validation
// and the Pub/Sub webhook with its own service account verification.
type OAuthHTTPServer struct {
	mcpServer      *mcpserver.MCPServer
	oauthHandler   *oauth.Handler
	webhookHandler *webhook.Handler
	healthChecker  *HealthChecker
	httpServer     *http.Server
	config         HTTPServerConfig
	metrics        *instrumentation.Metrics
}

// NewOAuthHTTPServer creates the HTTP transport. webhookHandler and
// healthChecker may be nil, their routes are then not mounted.
func NewOAuthHTTPServer(
	mcpServer *mcpserver.MCPServer,
	oauthHandler *oauth.Handler,
	webhookHandler *webhook.Handler,
	healthChecker *HealthChecker,
	config HTTPServerConfig,
) (*OAuthHTTPServer, error) {
	if oauthHandler == nil {
		return nil, fmt.Errorf("oauth handler is required")
	}

	return &OAuthHTTPServer{
		mcpServer:      mcpServer,
		oauthHandler:   oauthHandler,
		webhookHandler: webhookHandler,
		healthChecker:  healthChecker,
		config:         config,
	}, nil
}

// SetMetrics enables per-request metrics on all routes.
func (s *OAuthHTTPServer) SetMetrics(metrics *instrumentation.Metrics) {
	s.metrics = metrics
}

// Handler builds the full route table.
func (s *OAuthHTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	// Protected Resource Metadata (RFC 9728) tells MCP clients where to
	// authenticate.
	mux.HandleFunc("/.well-known/oauth-protected-resource", s.oauthHandler.ServeProtectedResourceMetadata)

	// MCP endpoint behind bearer token validation. Forwarded Google access
	// tokens are captured for later API use.
	var streamable http.Handler
	if s.config.DisableStreaming {
		streamable = mcpserver.NewStreamableHTTPServer(s.mcpServer,
			mcpserver.WithEndpointPath("/mcp"),
			mcpserver.WithDisableStreaming(true),
		)
	} else {
		streamable = mcpserver.NewStreamableHTTPServer(s.mcpServer,
			mcpserver.WithEndpointPath("/mcp"),
		)
	}

	mcpHandler := oauth.ForwardedTokenMiddleware(s.oauthHandler.Store(), nil)(streamable)
	mux.Handle("/mcp", s.oauthHandler.ValidateGoogleToken(mcpHandler))

	// The webhook authenticates deliveries itself (Pub/Sub push tokens are
	// service account JWTs, not user tokens), so it sits outside the OAuth
	// middleware.
	if s.webhookHandler != nil {
		mux.Handle(WebhookPath, s.webhookHandler)
	}

	if s.healthChecker != nil {
		s.healthChecker.RegisterHealthEndpoints(mux)
	}

	if s.metrics != nil {
		return s.instrumentHTTP(mux)
	}
	return mux
}

// statusRecorder captures the response status for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *OAuthHTTPServer) instrumentHTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		s.metrics.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, recorder.status, time.Since(start))
	})
}

// Start runs the HTTP server. Blocks until the server stops.
func (s *OAuthHTTPServer) Start(addr string) error {
	if err := validateHTTPSRequirement(s.config.BaseURL); err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *OAuthHTTPServer) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// validateHTTPSRequirement enforces HTTPS for OAuth 2.1. HTTP is allowed
// for loopback addresses only.
func validateHTTPSRequirement(baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	switch u.Scheme {
	case "https":
		return nil
	case "http":
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return fmt.Errorf("OAuth 2.1 requires HTTPS for production (got %s), use HTTPS or localhost for development", baseURL)
		}
		return nil
	default:
		return fmt.Errorf("invalid URL scheme %q, must be http (localhost only) or https", u.Scheme)
	}
}
