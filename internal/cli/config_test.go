package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chemvis/internal/client"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, client.DefaultConfig(), cfg)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "cfg", "config.yaml")

	require.NoError(t, SaveConfig(client.Config{
		BaseURL:        "http://plant:9000",
		Username:       "operator",
		Password:       "pw",
		Timeout:        5 * time.Second,
		RetryMax:       1,
		RetryBaseDelay: 250 * time.Millisecond,
	}, path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://plant:9000", cfg.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryBaseDelay)

	t.Setenv("CHEMVIS_BASE_URL", "http://other:8080")
	t.Setenv("CHEMVIS_RETRY_MAX", "7")
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://other:8080", cfg.BaseURL)
	assert.Equal(t, 7, cfg.RetryMax)
	assert.Equal(t, "operator", cfg.Username)
}

func TestLoadConfig_DefaultPathIsOptionalButRead(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	def := client.DefaultConfig()
	def.BaseURL = "http://from-home:8080"
	require.NoError(t, SaveConfig(def, filepath.Join(home, ".chemvis", "config.yaml")))

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "http://from-home:8080", cfg.BaseURL)
}

func TestSaveConfig_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, SaveConfig(client.DefaultConfig(), path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "timeout: 30s")
	assert.NotContains(t, string(b), "password")
}
