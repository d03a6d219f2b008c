package gemini

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveModel(t *testing.T) {
	require.Equal(t, "gemini-2.5-pro", ResolveModel("gemini-2.5-pro"))
	require.Equal(t, "gemini-2.0-flash", ResolveModel("google/gemini-2.0-flash"))
	require.Equal(t, DefaultModel, ResolveModel("anthropic/claude-3.5-sonnet"))
	require.Equal(t, DefaultModel, ResolveModel(""))
}

func TestToContentsKeepsTurnRoles(t *testing.T) {
	contents := toContents([]Turn{
		{Text: "Who signed up?"},
		{Text: "Jane Doe.", Model: true},
		{Text: "Write her a welcome."},
	})

	require.Len(t, contents, 3)
	require.Equal(t, "user", contents[0].Role)
	require.Equal(t, "model", contents[1].Role)
	require.Equal(t, "user", contents[2].Role)
	require.Equal(t, "Jane Doe.", contents[1].Parts[0].Text)
}
