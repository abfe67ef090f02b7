package oauth

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/giantswarm/mcp-oauth/storage"
)

// TokenProvider adapts an mcp-oauth token store to the google.TokenProvider
// interface. Accounts are user email addresses.
type TokenProvider struct {
	store storage.TokenStore
}

// NewTokenProvider creates a TokenProvider backed by the given store.
func NewTokenProvider(store storage.TokenStore) *TokenProvider {
	return &TokenProvider{store: store}
}

// GetTokenForAccount returns the stored Google token for the account.
func (p *TokenProvider) GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error) {
	return p.store.GetToken(ctx, account)
}

// HasTokenForAccount reports whether a token is stored for the account.
func (p *TokenProvider) HasTokenForAccount(account string) bool {
	_, err := p.store.GetToken(context.Background(), account)
	return err == nil
}

// SaveToken stores a Google token for the account. Used when tokens are
// refreshed or forwarded by an upstream aggregator.
func (p *TokenProvider) SaveToken(ctx context.Context, account string, token *oauth2.Token) error {
	return p.store.SaveToken(ctx, account, token)
}
