package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	mcpoauth "github.com/giantswarm/mcp-oauth"
	"github.com/giantswarm/mcp-oauth/providers"
)

type contextKey string

const (
	userContextKey  contextKey = "oauth_user"
	tokenContextKey contextKey = "google_token"
)

// ValidateGoogleToken validates the bearer token on each request against
// Google's userinfo endpoint. On success the identity and token are placed
// in the request context and the token is saved in the store keyed by the
// user's email.
func (h *Handler) ValidateGoogleToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accessToken, err := extractBearerToken(r)
		if err != nil {
			h.unauthorized(w, "invalid_token", err.Error())
			return
		}

		userInfo, err := h.fetchUserInfo(r.Context(), accessToken)
		if err != nil {
			h.logger.Warn("token validation failed",
				"component", "oauth",
				"error", err,
			)
			h.unauthorized(w, "invalid_token", actionableAuthError(err))
			return
		}

		token := &oauth2.Token{
			AccessToken: accessToken,
			TokenType:   "Bearer",
		}

		// Persist the token so Google API clients can be built for this
		// user outside the request path (push deliveries, watch renewal).
		if err := h.store.SaveToken(r.Context(), userInfo.Email, token); err != nil {
			h.logger.Warn("failed to save validated token",
				"component", "oauth",
				"error", err,
			)
		}

		ctx := context.WithValue(r.Context(), userContextKey, userInfo)
		ctx = context.WithValue(ctx, tokenContextKey, token)
		ctx = mcpoauth.ContextWithUserInfo(ctx, &providers.UserInfo{
			Email: userInfo.Email,
			Name:  userInfo.Name,
		})

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserFromContext returns the validated Google identity, if any.
func GetUserFromContext(ctx context.Context) (*GoogleUserInfo, bool) {
	userInfo, ok := ctx.Value(userContextKey).(*GoogleUserInfo)
	return userInfo, ok
}

// GetGoogleTokenFromContext returns the validated Google token, if any.
func GetGoogleTokenFromContext(ctx context.Context) (*oauth2.Token, bool) {
	token, ok := ctx.Value(tokenContextKey).(*oauth2.Token)
	return token, ok
}

// ContextWithUser places an identity in the context the same way the
// middleware does. Intended for tests and the stdio transport.
func ContextWithUser(ctx context.Context, userInfo *GoogleUserInfo) context.Context {
	return context.WithValue(ctx, userContextKey, userInfo)
}

func extractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("Authorization header is not a bearer token")
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", fmt.Errorf("bearer token is empty")
	}
	return token, nil
}

func (h *Handler) unauthorized(w http.ResponseWriter, errorCode, description string) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(
		`Bearer realm=%q, resource_metadata="/.well-known/oauth-protected-resource", error=%q`,
		h.config.Resource, errorCode,
	))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:            errorCode,
		ErrorDescription: description,
	})
}

// actionableAuthError maps upstream validation failures to guidance the MCP
// client can show the user.
func actionableAuthError(err error) string {
	msg := err.Error()

	switch {
	case strings.Contains(msg, "status 401"), strings.Contains(msg, "status 403"):
		return "Google token is invalid or expired, re-authenticate through your MCP client"
	case strings.Contains(msg, "status 429"):
		return "Google API rate limit exceeded, retry shortly"
	case strings.Contains(msg, "failed to reach"):
		return "unable to verify token with Google, retry shortly"
	default:
		return "token validation failed, re-authenticate through your MCP client"
	}
}
