package pubsub

import (
	"net/url"
	"strings"
)

// audienceMatches reports whether a claimed audience satisfies the configured
// audience prefix.
//
// When both values parse as absolute URLs the match is structural: the
// origins (scheme, host, port) must be equal case-insensitively, and the
// claimed path must equal the prefix path or be a strict sub-path of it. A
// claimed audience carrying a query string or fragment never matches; those
// forms are ambiguous equivalents that token issuers do not produce.
//
// When either side is not a well-formed absolute URL, the check degrades to
// a plain string-prefix comparison.
func audienceMatches(claimed, prefix string) bool {
	claimedURL, errClaimed := url.Parse(claimed)
	prefixURL, errPrefix := url.Parse(prefix)

	wellFormed := errClaimed == nil && errPrefix == nil &&
		claimedURL.Scheme != "" && claimedURL.Host != "" &&
		prefixURL.Scheme != "" && prefixURL.Host != ""
	if !wellFormed {
		return strings.HasPrefix(claimed, prefix)
	}

	if claimedURL.RawQuery != "" || claimedURL.Fragment != "" {
		return false
	}

	if !strings.EqualFold(claimedURL.Scheme, prefixURL.Scheme) {
		return false
	}
	if !strings.EqualFold(claimedURL.Host, prefixURL.Host) {
		return false
	}

	claimedPath := claimedURL.EscapedPath()
	prefixPath := prefixURL.EscapedPath()
	return claimedPath == prefixPath || strings.HasPrefix(claimedPath, prefixPath+"/")
}

// anyAudienceMatches reports whether any element of a (possibly multi-valued)
// audience claim satisfies the prefix policy.
func anyAudienceMatches(audiences []string, prefix string) bool {
	for _, aud := range audiences {
		if audienceMatches(aud, prefix) {
			return true
		}
	}
	return false
}
