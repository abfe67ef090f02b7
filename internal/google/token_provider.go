package google

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// TokenProvider is an interface for providing OAuth tokens for Google APIs.
// This abstraction allows different token sources (file-based, OAuth store,
// per-request bearer) to be plugged in.
type TokenProvider interface {
	// GetTokenForAccount retrieves an OAuth token for the specified account
	GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error)

	// HasTokenForAccount checks if a token exists for the specified account
	HasTokenForAccount(account string) bool
}

// FileTokenProvider provides tokens from disk files (for STDIO transport).
type FileTokenProvider struct{}

// NewFileTokenProvider creates a new file-based token provider.
func NewFileTokenProvider() *FileTokenProvider {
	return &FileTokenProvider{}
}

// GetTokenForAccount retrieves a token from disk for the specified account.
func (p *FileTokenProvider) GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error) {
	ts, err := GetTokenSourceForAccount(ctx, account)
	if err != nil {
		return nil, err
	}

	token, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to get token from file: %w", err)
	}

	return token, nil
}

// HasTokenForAccount checks if a token file exists for the specified account.
func (p *FileTokenProvider) HasTokenForAccount(account string) bool {
	return HasTokenForAccount(account)
}

// StaticTokenProvider serves one fixed access token for every account. It
// backs clients built from a bearer token carried on an individual request,
// where no refresh token is available.
type StaticTokenProvider struct {
	token *oauth2.Token
}

// NewStaticTokenProvider wraps a raw access token in a provider.
func NewStaticTokenProvider(accessToken string) *StaticTokenProvider {
	return &StaticTokenProvider{
		token: &oauth2.Token{
			AccessToken: accessToken,
			TokenType:   "Bearer",
		},
	}
}

// GetTokenForAccount returns the wrapped token regardless of account.
func (p *StaticTokenProvider) GetTokenForAccount(_ context.Context, _ string) (*oauth2.Token, error) {
	if p.token == nil || p.token.AccessToken == "" {
		return nil, fmt.Errorf("no access token configured")
	}
	return p.token, nil
}

// HasTokenForAccount reports whether a token was configured.
func (p *StaticTokenProvider) HasTokenForAccount(_ string) bool {
	return p.token != nil && p.token.AccessToken != ""
}
