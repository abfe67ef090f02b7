package google

// DefaultOAuthScopes are the Google OAuth scopes required for full
// functionality. They are used consistently across all OAuth configurations.
//
// The scopes provide access to:
//   - Gmail: read, modify, send, and mailbox watch registration
//   - Google Calendar: full access
//   - OpenID Connect user info (account identification)
var DefaultOAuthScopes = []string{
	// OpenID Connect scopes (required for user info)
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",

	// Gmail scopes
	"https://mail.google.com/", // Full Gmail access (includes send)
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.modify",
	"https://www.googleapis.com/auth/gmail.send",

	// Google Calendar scope
	"https://www.googleapis.com/auth/calendar",
}
