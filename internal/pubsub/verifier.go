package pubsub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	// GoogleJWKSEndpoint publishes the rotating keys Google signs push
	// identity tokens with.
	GoogleJWKSEndpoint = "https://www.googleapis.com/oauth2/v3/certs"

	// clockSkewTolerance is the acceptable skew for expiry/issued-at checks.
	clockSkewTolerance = 60 * time.Second

	// jwksMinRefreshInterval bounds how often the key cache re-fetches.
	jwksMinRefreshInterval = 15 * time.Minute
)

// acceptedIssuers are the two canonical issuer strings Google uses. The
// broker is inconsistent about the scheme-qualified form, so both pass.
var acceptedIssuers = []string{
	"https://accounts.google.com",
	"accounts.google.com",
}

// ErrUnauthenticated marks any token rejection: signature, issuer, audience,
// signer identity or expiry. Callers map it to a 401 response.
var ErrUnauthenticated = errors.New("unauthenticated")

// Claims is the verified claim set of a push identity token. Instances are
// only ever produced by Verifier.Verify; nothing may be trusted from an
// unverified decode.
type Claims struct {
	Issuer        string
	Audience      []string
	Subject       string
	Email         string
	EmailVerified bool
	Expiry        time.Time
}

// KeySetSource supplies the signing keys used to verify identity tokens.
type KeySetSource interface {
	KeySet(ctx context.Context) (jwk.Set, error)
}

// jwksSource fetches and caches a JWKS endpoint using jwk.Cache, which
// handles refresh scheduling from HTTP cache headers.
type jwksSource struct {
	cache    *jwk.Cache
	endpoint string
}

// NewGoogleKeySource returns a KeySetSource backed by Google's JWKS
// endpoint. The provided context bounds the lifetime of the background
// refresher.
func NewGoogleKeySource(ctx context.Context) (KeySetSource, error) {
	return NewJWKSKeySource(ctx, GoogleJWKSEndpoint)
}

// NewJWKSKeySource returns a cached KeySetSource for an arbitrary JWKS URL.
func NewJWKSKeySource(ctx context.Context, endpoint string) (KeySetSource, error) {
	cache := jwk.NewCache(ctx)
	if err := cache.Register(endpoint, jwk.WithMinRefreshInterval(jwksMinRefreshInterval)); err != nil {
		return nil, fmt.Errorf("failed to register JWKS endpoint %s: %w", endpoint, err)
	}
	return &jwksSource{cache: cache, endpoint: endpoint}, nil
}

func (s *jwksSource) KeySet(ctx context.Context) (jwk.Set, error) {
	set, err := s.cache.Get(ctx, s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch signing keys from %s: %w", s.endpoint, err)
	}
	return set, nil
}

// StaticKeySource wraps a fixed key set. Used in tests and air-gapped setups.
type StaticKeySource struct {
	Set jwk.Set
}

func (s StaticKeySource) KeySet(_ context.Context) (jwk.Set, error) {
	return s.Set, nil
}

// Verifier validates inbound push identity tokens against Google's signing
// keys and the configured audience prefix.
type Verifier struct {
	keys           KeySetSource
	audiencePrefix string
	logger         *slog.Logger
}

// NewVerifier creates a token verifier. audiencePrefix is the expected
// audience of inbound tokens, matched by URL-prefix policy.
func NewVerifier(keys KeySetSource, audiencePrefix string, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		keys:           keys,
		audiencePrefix: audiencePrefix,
		logger:         logger,
	}
}

// Verify validates rawToken and returns its claims. expectedSignerEmail is
// the service account the token must be issued for; a mismatch, or an
// email_verified claim that is not true, is a rejection.
//
// Rejections wrap ErrUnauthenticated. A signing-key fetch failure is a
// transient upstream error, not a rejection, and is returned unwrapped so
// callers can signal the broker to retry.
func (v *Verifier) Verify(ctx context.Context, rawToken, expectedSignerEmail string) (*Claims, error) {
	if rawToken == "" {
		return nil, rejection("missing bearer token")
	}

	keySet, err := v.keys.KeySet(ctx)
	if err != nil {
		return nil, err
	}

	raw := []byte(rawToken)

	// Pin the algorithm before signature verification. Google only signs
	// push identity tokens with RS256; anything else is forged or mangled.
	msg, err := jws.Parse(raw)
	if err != nil {
		return nil, rejection("malformed token")
	}
	for _, sig := range msg.Signatures() {
		if sig.ProtectedHeaders().Algorithm() != jwa.RS256 {
			return nil, rejection(fmt.Sprintf("unexpected signing algorithm %q", sig.ProtectedHeaders().Algorithm()))
		}
	}

	token, err := jwt.Parse(raw,
		jwt.WithKeySet(keySet),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(clockSkewTolerance),
	)
	if err != nil {
		return nil, rejection(fmt.Sprintf("signature or time validation failed: %v", err))
	}

	issuer := token.Issuer()
	if !issuerAccepted(issuer) {
		return nil, rejection(fmt.Sprintf("unexpected issuer %q", issuer))
	}

	audiences := token.Audience()
	if !anyAudienceMatches(audiences, v.audiencePrefix) {
		return nil, rejection("audience does not match expected prefix")
	}

	email := stringClaim(token, "email")
	if email == "" || email != expectedSignerEmail {
		v.logger.Warn("push token signer mismatch",
			slog.String("expected_domain", domainOf(expectedSignerEmail)),
			slog.String("got_domain", domainOf(email)))
		return nil, rejection("token not issued for expected signer")
	}
	if !boolClaim(token, "email_verified") {
		return nil, rejection("signer email not verified")
	}

	return &Claims{
		Issuer:        issuer,
		Audience:      audiences,
		Subject:       token.Subject(),
		Email:         email,
		EmailVerified: true,
		Expiry:        token.Expiration(),
	}, nil
}

// DeriveSignerEmail builds the expected signer service account for a tenant
// server: "<server>@<project>.iam.gserviceaccount.com".
func DeriveSignerEmail(serverName, project string) string {
	return fmt.Sprintf("%s@%s.iam.gserviceaccount.com", serverName, project)
}

func issuerAccepted(issuer string) bool {
	for _, accepted := range acceptedIssuers {
		if issuer == accepted {
			return true
		}
	}
	return false
}

// stringClaim reads a private claim as a string, returning "" when absent or
// of another type.
func stringClaim(token jwt.Token, name string) string {
	value, ok := token.Get(name)
	if !ok {
		return ""
	}
	s, _ := value.(string)
	return s
}

// boolClaim reads a private claim as a boolean, accepting both boolean true
// and the string "true"; token issuers are inconsistent about the type.
func boolClaim(token jwt.Token, name string) bool {
	value, ok := token.Get(name)
	if !ok {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return false
	}
}

func domainOf(email string) string {
	for i := 0; i < len(email); i++ {
		if email[i] == '@' {
			return email[i+1:]
		}
	}
	return ""
}

func rejection(reason string) error {
	return fmt.Errorf("%w: %s", ErrUnauthenticated, reason)
}
