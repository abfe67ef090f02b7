package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/pushbox/internal/checkpoint"
)

func TestProjectFromTopic(t *testing.T) {
	tests := []struct {
		name     string
		topic    string
		expected string
	}{
		{
			name:     "fully qualified topic",
			topic:    "projects/my-project/topics/gmail-push",
			expected: "my-project",
		},
		{
			name:     "empty string",
			topic:    "",
			expected: "",
		},
		{
			name:     "bare topic name",
			topic:    "gmail-push",
			expected: "",
		},
		{
			name:     "subscription path",
			topic:    "projects/my-project/subscriptions/gmail-push",
			expected: "",
		},
		{
			name:     "missing topic segment",
			topic:    "projects/my-project/topics",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, projectFromTopic(tt.topic))
		})
	}
}

func TestBuildCheckpointStore(t *testing.T) {
	store, err := buildCheckpointStore("memory", "", "", 0)
	require.NoError(t, err)
	assert.IsType(t, &checkpoint.MemoryStore{}, store)

	store, err = buildCheckpointStore("", "", "", 0)
	require.NoError(t, err)
	assert.IsType(t, &checkpoint.MemoryStore{}, store)

	store, err = buildCheckpointStore("redis", "localhost:6379", "", 0)
	require.NoError(t, err)
	assert.IsType(t, &checkpoint.RedisStore{}, store)

	_, err = buildCheckpointStore("etcd", "", "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported checkpoint backend")
}

func TestResolveBaseURL(t *testing.T) {
	t.Setenv("MCP_BASE_URL", "")

	assert.Equal(t, "https://mcp.example.com", resolveBaseURL("https://mcp.example.com", ":8080"))
	assert.Equal(t, "http://localhost:8080", resolveBaseURL("", ":8080"))
	assert.Equal(t, "http://127.0.0.1:9000", resolveBaseURL("", "127.0.0.1:9000"))

	t.Setenv("MCP_BASE_URL", "https://env.example.com")
	assert.Equal(t, "https://env.example.com", resolveBaseURL("", ":8080"))
}
