package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv_ReadsVariables(t *testing.T) {
	t.Setenv("CONVERGE_DB", "/var/lib/converge/runs.db")
	t.Setenv("CONVERGE_TEMPLATES", "/etc/converge/templates")

	env, err := LoadEnv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/converge/runs.db", env.Database)
	assert.Equal(t, "/etc/converge/templates", env.Templates)
}

func TestLoadEnv_EmptyByDefault(t *testing.T) {
	t.Setenv("CONVERGE_DB", "")
	t.Setenv("CONVERGE_TEMPLATES", "")

	env, err := LoadEnv(context.Background())
	require.NoError(t, err)
	assert.Empty(t, env.Database)
	assert.Empty(t, env.Templates)
}
