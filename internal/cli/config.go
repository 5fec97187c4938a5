package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"chemvis/internal/client"
)

// EnvPrefix prefixes every client environment variable, e.g. CHEMVIS_BASE_URL
const EnvPrefix = "CHEMVIS"

// fileConfig is the on-disk form; durations are written as "30s"
type fileConfig struct {
	BaseURL        string `yaml:"base_url"`
	Username       string `yaml:"username,omitempty"`
	Password       string `yaml:"password,omitempty"`
	Timeout        string `yaml:"timeout"`
	RetryMax       int    `yaml:"retry_max"`
	RetryBaseDelay string `yaml:"retry_base_delay"`
}

// DefaultConfigPath returns ~/.chemvis/config.yaml
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".chemvis", "config.yaml"), nil
}

// LoadConfig reads the client configuration.
// Precedence: env > config file > defaults. Flags are applied by the caller.
func LoadConfig(cfgFile string) (client.Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := client.DefaultConfig()
	v.SetDefault("base_url", def.BaseURL)
	v.SetDefault("username", "")
	v.SetDefault("password", "")
	v.SetDefault("timeout", def.Timeout)
	v.SetDefault("retry_max", def.RetryMax)
	v.SetDefault("retry_base_delay", def.RetryBaseDelay)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return client.Config{}, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else if path, err := DefaultConfigPath(); err == nil {
		v.AddConfigPath(filepath.Dir(path))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	var c client.Config
	if err := v.Unmarshal(&c); err != nil {
		return client.Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// SaveConfig writes c as YAML, creating the parent directory
func SaveConfig(c client.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	b, err := yaml.Marshal(fileConfig{
		BaseURL:        c.BaseURL,
		Username:       c.Username,
		Password:       c.Password,
		Timeout:        c.Timeout.String(),
		RetryMax:       c.RetryMax,
		RetryBaseDelay: c.RetryBaseDelay.String(),
	})
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}

	// The file may hold a password.
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return strings.Repeat("*", 8)
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "none"
	}
	return d.String()
}
