package oauth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/teemow/pushbox/internal/logging"
)

// googleUserInfoEndpoint is where opaque access tokens are validated.
const googleUserInfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"

// defaultHTTPTimeout bounds userinfo round trips.
const defaultHTTPTimeout = 10 * time.Second

// Config holds the OAuth adapter configuration.
type Config struct {
	// Resource is the MCP server resource identifier (RFC 8707), the base
	// URL of this server.
	Resource string

	// AuthorizationServers lists the authorization servers advertised in
	// the protected resource metadata. Defaults to [Resource].
	AuthorizationServers []string

	// SupportedScopes are the Google API scopes this server understands.
	SupportedScopes []string

	// UserInfoEndpoint overrides the Google userinfo URL. Tests only.
	UserInfoEndpoint string

	// HTTPClient is used for userinfo requests. Defaults to a client with
	// a 10 second timeout.
	HTTPClient *http.Client

	// Logger for structured logging. Defaults to an adapter over
	// slog.Default.
	Logger logging.Logger
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Resource == "" {
		return fmt.Errorf("resource identifier is required")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if len(c.AuthorizationServers) == 0 {
		c.AuthorizationServers = []string{c.Resource}
	}
	if c.UserInfoEndpoint == "" {
		c.UserInfoEndpoint = googleUserInfoEndpoint
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if c.Logger == nil {
		c.Logger = logging.DefaultLogger()
	}
}
