package google

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const oobRedirectURL = "urn:ietf:wg:oauth:2.0:oob"

var (
	oauthClientID     = os.Getenv("GOOGLE_CLIENT_ID")
	oauthClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
)

var accountNameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// SetOAuthClient overrides the OAuth client credentials. Called from command
// setup when credentials come from flags instead of the environment.
func SetOAuthClient(clientID, clientSecret string) {
	if clientID != "" {
		oauthClientID = clientID
	}
	if clientSecret != "" {
		oauthClientSecret = clientSecret
	}
}

// GetOAuthConfig returns the OAuth2 configuration for all Google services.
func GetOAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     oauthClientID,
		ClientSecret: oauthClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  oobRedirectURL,
		Scopes:       DefaultOAuthScopes,
	}
}

// validateAccountName ensures the account name is safe to embed in a file
// name. Only alphanumerics, hyphens and underscores are allowed.
func validateAccountName(account string) error {
	if account == "" {
		return fmt.Errorf("account name cannot be empty")
	}
	if !accountNameRe.MatchString(account) {
		return fmt.Errorf("invalid account name %q: only letters, digits, hyphens and underscores are allowed", account)
	}
	return nil
}

// getTokenFilePath returns the token file path for an account.
func getTokenFilePath(account string) string {
	cacheDir := filepath.Join(userCacheDir(), "pushbox")
	return filepath.Join(cacheDir, fmt.Sprintf("google-%s.token", account))
}

// HasTokenForAccount checks if a stored OAuth token exists for the account.
func HasTokenForAccount(account string) bool {
	if err := validateAccountName(account); err != nil {
		return false
	}
	_, err := os.ReadFile(getTokenFilePath(account))
	return err == nil
}

// HasToken checks if a stored OAuth token exists for the default account.
func HasToken() bool {
	return HasTokenForAccount("default")
}

// GetAuthURL returns the OAuth URL for user authorization.
func GetAuthURL() string {
	return GetOAuthConfig().AuthCodeURL("state")
}

// SaveTokenForAccount exchanges an authorization code for tokens and stores
// them for the given account.
func SaveTokenForAccount(ctx context.Context, account, authCode string) error {
	if err := validateAccountName(account); err != nil {
		return err
	}

	conf := GetOAuthConfig()
	t, err := conf.Exchange(ctx, authCode)
	if err != nil {
		return fmt.Errorf("failed to exchange auth code: %w", err)
	}

	tokenFile := getTokenFilePath(account)
	if err := os.MkdirAll(filepath.Dir(tokenFile), 0700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tokenData := t.AccessToken + " " + t.RefreshToken
	if err := os.WriteFile(tokenFile, []byte(tokenData), 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}

// SaveToken exchanges an authorization code and stores the token for the
// default account.
func SaveToken(ctx context.Context, authCode string) error {
	return SaveTokenForAccount(ctx, "default", authCode)
}

// GetTokenSourceForAccount returns an OAuth2 token source backed by the
// stored token of an account. The token is validated before being returned.
func GetTokenSourceForAccount(ctx context.Context, account string) (oauth2.TokenSource, error) {
	if err := validateAccountName(account); err != nil {
		return nil, err
	}

	slurp, err := os.ReadFile(getTokenFilePath(account))
	if err != nil {
		return nil, fmt.Errorf("no valid Google OAuth token found for account %s", account)
	}

	f := strings.Fields(strings.TrimSpace(string(slurp)))
	if len(f) != 2 {
		return nil, fmt.Errorf("invalid token format for account %s", account)
	}

	conf := GetOAuthConfig()
	ts := conf.TokenSource(ctx, &oauth2.Token{
		AccessToken:  f[0],
		TokenType:    "Bearer",
		RefreshToken: f[1],
		Expiry:       time.Unix(1, 0),
	})

	if _, err := ts.Token(); err != nil {
		return nil, fmt.Errorf("cached token for account %s is invalid: %w", account, err)
	}

	return ts, nil
}

// NewHTTPClient builds an authenticated HTTP client from a token source.
// The client is pinned to HTTP/1.1 to avoid HTTP/2 protocol errors against
// the Google API frontends.
func NewHTTPClient(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	client := oauth2.NewClient(ctx, ts)

	transport := client.Transport.(*oauth2.Transport)
	transport.Base = &http.Transport{
		ForceAttemptHTTP2: false,
	}

	return client
}

// GetAuthenticationErrorMessage returns a user-facing message explaining how
// to authenticate an account.
func GetAuthenticationErrorMessage(account string) string {
	return fmt.Sprintf("no Google OAuth token for account %q; run 'pushbox auth' to complete the OAuth flow for this account", account)
}

func userCacheDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Caches")
	case "windows":
		for _, ev := range []string{"TEMP", "TMP"} {
			if v := os.Getenv(ev); v != "" {
				return v
			}
		}
		panic("No Windows TEMP or TMP environment variables found")
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return xdg
	}
	return filepath.Join(homeDir(), ".cache")
}

func homeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
	}
	return os.Getenv("HOME")
}
