package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/giantswarm/mcp-oauth/storage"
	"github.com/giantswarm/mcp-oauth/storage/memory"

	"github.com/teemow/pushbox/internal/logging"
)

// Handler validates bearer tokens for the MCP transport and serves the
// protected resource metadata.
type Handler struct {
	config Config
	store  storage.TokenStore
	logger logging.Logger
}

// NewHandler creates a Handler. With a nil store, validated tokens are kept
// in an in-memory store.
func NewHandler(config Config, store storage.TokenStore) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid oauth config: %w", err)
	}
	config.applyDefaults()

	if store == nil {
		store = memory.New()
	}

	return &Handler{
		config: config,
		store:  store,
		logger: config.Logger,
	}, nil
}

// Store returns the token store holding validated Google tokens.
func (h *Handler) Store() storage.TokenStore {
	return h.store
}

// ServeProtectedResourceMetadata serves the RFC 9728 metadata document at
// /.well-known/oauth-protected-resource.
func (h *Handler) ServeProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	metadata := ProtectedResourceMetadata{
		Resource:               h.config.Resource,
		AuthorizationServers:   h.config.AuthorizationServers,
		BearerMethodsSupported: []string{"header"},
		ScopesSupported:        h.config.SupportedScopes,
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if err := json.NewEncoder(w).Encode(metadata); err != nil {
		h.logger.Error("failed to encode resource metadata", "error", err)
	}
}

// fetchUserInfo validates an access token against the userinfo endpoint and
// returns the associated identity.
func (h *Handler) fetchUserInfo(ctx context.Context, accessToken string) (*GoogleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.config.UserInfoEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := h.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach userinfo endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("userinfo request failed with status %d", resp.StatusCode)
	}

	var userInfo GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo response: %w", err)
	}
	if userInfo.Email == "" {
		return nil, fmt.Errorf("userinfo response carries no email")
	}

	return &userInfo, nil
}
