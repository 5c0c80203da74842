package tools

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReflectSchemaBraveArgs(t *testing.T) {
	schema := ReflectSchema(&BraveSearchArgs{})

	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, props, "query")
	assert.Contains(t, props, "count")
	assert.Contains(t, props, "freshness")

	required, ok := schema["required"].([]interface{})
	require.True(t, ok)
	assert.Contains(t, required, "query")
}

func TestDecodeArgs(t *testing.T) {
	var parsed BraveSearchArgs
	err := decodeArgs(map[string]interface{}{
		"query": "rust",
		"count": float64(5),
	}, &parsed)

	require.NoError(t, err)
	assert.Equal(t, "rust", parsed.Query)
	assert.Equal(t, 5, parsed.Count)
}

func TestBraveSearchRequiresAPIKey(t *testing.T) {
	t.Setenv("BRAVE_API_KEY", "")
	os.Unsetenv("BRAVE_API_KEY")

	_, err := NewBraveSearchTool()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigMissing))
}

func TestGitHubToolsRequireConfig(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	os.Unsetenv("GITHUB_TOKEN")

	_, err := NewGitHubTools()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigMissing))

	t.Setenv("GITHUB_TOKEN", "tok")
	t.Setenv("GITHUB_ORG", "acme")
	t.Setenv("GITHUB_REPO", "widgets")

	created, err := NewGitHubTools()
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, "fetch_pull_request", created[0].GetName())
	assert.Equal(t, "get_pull_request_diff", created[1].GetName())
}

func TestToolErrorFormat(t *testing.T) {
	err := NewConfigMissingError("brave_search", "BRAVE_API_KEY")
	assert.Equal(t, "[brave_search:create] BRAVE_API_KEY must be set: required configuration missing", err.Error())
}
