package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{
			name:  "empty email",
			email: "",
			want:  "",
		},
		{
			name:  "normal email is hashed with prefix",
			email: "alice@example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnonymizeEmail(tt.email)
			if tt.email == "" {
				assert.Equal(t, tt.want, got)
				return
			}
			assert.NotContains(t, got, tt.email)
			assert.Contains(t, got, "user:")
			// Stable across calls so log lines can be correlated
			assert.Equal(t, got, AnonymizeEmail(tt.email))
		})
	}
}

func TestAnonymizeEmailDistinct(t *testing.T) {
	a := AnonymizeEmail("a@x.com")
	b := AnonymizeEmail("b@x.com")
	assert.NotEqual(t, a, b)
}

func TestSanitizeToken(t *testing.T) {
	assert.Equal(t, "<empty>", SanitizeToken(""))
	got := SanitizeToken("super-secret-token")
	assert.NotContains(t, got, "super-secret")
	assert.Equal(t, "[token:18 chars]", got)
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{name: "normal email", email: "alice@example.com", want: "example.com"},
		{name: "empty", email: "", want: ""},
		{name: "not an email", email: "not-an-email", want: ""},
		{name: "multiple at signs", email: "a@b@c", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDomain(tt.email))
		})
	}
}

func TestErrNilIsOmittable(t *testing.T) {
	attr := Err(nil)
	// Empty group attrs are dropped by slog handlers
	assert.Equal(t, "", attr.Key)
}
