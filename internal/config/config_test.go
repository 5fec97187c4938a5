package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(DefaultMaxUploadBytes), cfg.Server.MaxUploadBytes)
	assert.Equal(t, StorageDriverMemory, cfg.Storage.Driver)
	assert.Equal(t, DefaultHistoryCapacity, cfg.Storage.Capacity)
	assert.False(t, cfg.Auth.Enabled())
	assert.Equal(t, ":8080", cfg.Server.Address())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
  read_timeout: 5s
storage:
  driver: file
  path: /tmp/chemvis/history.json
  capacity: 3
logging:
  level: debug
`)

	t.Setenv("CHEMVIS_SERVER_PORT", "9191")
	t.Setenv("CHEMVIS_STORAGE_CAPACITY", "7")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port, "env overrides file")
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout, "file overrides default")
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout, "default kept")
	assert.Equal(t, StorageDriverFile, cfg.Storage.Driver)
	assert.Equal(t, "/tmp/chemvis/history.json", cfg.Storage.Path)
	assert.Equal(t, 7, cfg.Storage.Capacity)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_ConfigFileEnv(t *testing.T) {
	path := writeConfigFile(t, "storage:\n  capacity: 2\n")
	t.Setenv(ConfigFileEnv, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Storage.Capacity)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("explicit file missing", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfigFile(t, "server: [unclosed"))
		assert.Error(t, err)
	})

	t.Run("bad env value", func(t *testing.T) {
		t.Setenv(ConfigFileEnv, "")
		t.Setenv("CHEMVIS_SERVER_PORT", "not-a-port")
		_, err := Load("")
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "port out of range", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
		{name: "zero capacity", mutate: func(c *Config) { c.Storage.Capacity = 0 }, wantErr: true},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "mongo" }, wantErr: true},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Storage.Driver = StorageDriverPostgres }, wantErr: true},
		{
			name: "postgres with dsn",
			mutate: func(c *Config) {
				c.Storage.Driver = StorageDriverPostgres
				c.Storage.DSN = "postgres://localhost/chemvis"
			},
		},
		{name: "file without path", mutate: func(c *Config) { c.Storage.Driver = StorageDriverFile; c.Storage.Path = "" }, wantErr: true},
		{name: "username without hash", mutate: func(c *Config) { c.Auth.Username = "operator" }, wantErr: true},
		{name: "unknown log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: true},
		{name: "ping slower than pong", mutate: func(c *Config) { c.WebSocket.PingPeriod = 2 * time.Minute }, wantErr: true},
		{name: "zero upload limit", mutate: func(c *Config) { c.Server.MaxUploadBytes = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_Normalises(t *testing.T) {
	cfg := Default()
	cfg.Logging.Output = "stdout"
	cfg.Auth.Username = "operator"
	cfg.Auth.PasswordHash = "$2a$10$abcdefghijklmnopqrstuv"

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "console", cfg.Logging.Output)
	assert.Equal(t, AppName, cfg.Auth.Realm)
}
