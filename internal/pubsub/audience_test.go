package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAudienceMatches(t *testing.T) {
	const prefix = "https://host.example.com/mcp"

	tests := []struct {
		name    string
		claimed string
		want    bool
	}{
		{
			name:    "exact match",
			claimed: "https://host.example.com/mcp",
			want:    true,
		},
		{
			name:    "sub-path match",
			claimed: "https://host.example.com/mcp/notifications/gmail",
			want:    true,
		},
		{
			name:    "host case is insignificant",
			claimed: "https://HOST.example.com/mcp",
			want:    true,
		},
		{
			name:    "scheme case is insignificant",
			claimed: "HTTPS://host.example.com/mcp",
			want:    true,
		},
		{
			name:    "path segment prefix is not a sub-path",
			claimed: "https://host.example.com/mcpx",
			want:    false,
		},
		{
			name:    "different host",
			claimed: "https://other.example.com/mcp",
			want:    false,
		},
		{
			name:    "different scheme",
			claimed: "http://host.example.com/mcp",
			want:    false,
		},
		{
			name:    "different port",
			claimed: "https://host.example.com:8443/mcp",
			want:    false,
		},
		{
			name:    "query string never matches",
			claimed: "https://host.example.com/mcp?x=1",
			want:    false,
		},
		{
			name:    "fragment never matches",
			claimed: "https://host.example.com/mcp#frag",
			want:    false,
		},
		{
			name:    "shorter path",
			claimed: "https://host.example.com/",
			want:    false,
		},
		{
			name:    "empty claimed audience",
			claimed: "",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, audienceMatches(tt.claimed, prefix))
		})
	}
}

func TestAudienceMatchesNonURLFallback(t *testing.T) {
	// Opaque audiences degrade to plain string-prefix comparison.
	assert.True(t, audienceMatches("my-service-audience", "my-service"))
	assert.False(t, audienceMatches("other-audience", "my-service"))
}

func TestAnyAudienceMatches(t *testing.T) {
	const prefix = "https://host.example.com/mcp"

	assert.True(t, anyAudienceMatches([]string{
		"https://unrelated.example.com/",
		"https://host.example.com/mcp/push",
	}, prefix))

	assert.False(t, anyAudienceMatches([]string{
		"https://unrelated.example.com/",
	}, prefix))

	assert.False(t, anyAudienceMatches(nil, prefix))
}
