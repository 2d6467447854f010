package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClient_DefaultsAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, "client.env")
	require.NoError(t, os.WriteFile(env, []byte("QUORIDOR_MAX_RETRY=32\n"), 0o600))

	t.Setenv("QUORIDOR_BASE_URL", "http://game.test:9000")
	t.Setenv("QUORIDOR_TOKEN_FILE", filepath.Join(dir, "token"))
	t.Setenv("QUORIDOR_MAX_RETRY", "")
	os.Unsetenv("QUORIDOR_MAX_RETRY")

	c, err := LoadClient(env)
	require.NoError(t, err)
	assert.Equal(t, "http://game.test:9000", c.BaseURL)
	assert.Equal(t, 32*time.Second, c.MaxRetryDelay)
	assert.Equal(t, filepath.Join(dir, "token"), c.TokenFile)
}

func TestLoadClient_MissingDotEnvIsFine(t *testing.T) {
	t.Setenv("QUORIDOR_TOKEN_FILE", filepath.Join(t.TempDir(), "token"))
	t.Setenv("QUORIDOR_BASE_URL", "")
	t.Setenv("QUORIDOR_MAX_RETRY", "")

	c, err := LoadClient(filepath.Join(t.TempDir(), "nope.env"))
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080", c.BaseURL)
	assert.Equal(t, 64*time.Second, c.MaxRetryDelay)
}

func TestLoadServer_RequiresSecret(t *testing.T) {
	t.Setenv("QUORIDOR_JWT_SECRET", "")
	_, err := LoadServer(filepath.Join(t.TempDir(), "nope.env"))
	require.Error(t, err)

	t.Setenv("QUORIDOR_JWT_SECRET", "super-secret")
	t.Setenv("QUORIDOR_AFK_TIMEOUT", "2m")
	s, err := LoadServer(filepath.Join(t.TempDir(), "nope.env"))
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, s.AFKTimeout)
	assert.Equal(t, ":8080", s.Addr)
}
