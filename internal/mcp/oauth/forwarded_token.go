package oauth

import (
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/giantswarm/mcp-oauth/storage"

	"github.com/teemow/pushbox/internal/logging"
)

const (
	// ForwardedAccessTokenHeader carries the user's Google access token
	// when an upstream aggregator terminates the OAuth flow and forwards
	// identity plus token to this server.
	ForwardedAccessTokenHeader = "X-Google-Access-Token"

	// ForwardedRefreshTokenHeader optionally carries a refresh token for
	// long-running sessions.
	ForwardedRefreshTokenHeader = "X-Google-Refresh-Token"

	// ForwardedTokenExpiryHeader optionally carries the access token
	// expiry in RFC 3339 form. Without it a one hour expiry is assumed.
	ForwardedTokenExpiryHeader = "X-Google-Token-Expiry"

	// Google access tokens typically expire after one hour.
	defaultForwardedTokenExpiry = time.Hour
)

// ForwardedTokenMiddleware stores forwarded Google access tokens for the
// authenticated user. It must run after the validation middleware; requests
// without an authenticated user or without the header pass through
// untouched.
func ForwardedTokenMiddleware(store storage.TokenStore, logger logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userInfo, ok := GetUserFromContext(r.Context())
			if !ok || userInfo == nil || userInfo.Email == "" {
				next.ServeHTTP(w, r)
				return
			}

			accessToken := r.Header.Get(ForwardedAccessTokenHeader)
			if accessToken == "" {
				next.ServeHTTP(w, r)
				return
			}

			expiry := time.Now().Add(defaultForwardedTokenExpiry)
			if raw := r.Header.Get(ForwardedTokenExpiryHeader); raw != "" {
				parsed, err := time.Parse(time.RFC3339, raw)
				if err != nil {
					logger.Warn("ignoring unparseable forwarded token expiry",
						"component", "oauth",
						"value", raw,
					)
				} else {
					expiry = parsed
				}
			}

			token := &oauth2.Token{
				AccessToken:  accessToken,
				RefreshToken: r.Header.Get(ForwardedRefreshTokenHeader),
				TokenType:    "Bearer",
				Expiry:       expiry,
			}

			if err := store.SaveToken(r.Context(), userInfo.Email, token); err != nil {
				logger.Warn("failed to save forwarded token",
					"component", "oauth",
					"error", err,
				)
			}

			next.ServeHTTP(w, r)
		})
	}
}
