package oauth

// ProtectedResourceMetadata is the OAuth 2.0 Protected Resource Metadata
// document (RFC 9728).
type ProtectedResourceMetadata struct {
	Resource             string   `json:"resource"`
	AuthorizationServers []string `json:"authorization_servers"`

	// BearerMethodsSupported lists the ways bearer tokens can be sent
	// (RFC 6750). This server accepts header transport only.
	BearerMethodsSupported []string `json:"bearer_methods_supported,omitempty"`

	ScopesSupported []string `json:"scopes_supported,omitempty"`
}

// GoogleUserInfo is the response from Google's userinfo endpoint.
type GoogleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// ErrorResponse is an OAuth error response body (RFC 6749 section 5.2).
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}
