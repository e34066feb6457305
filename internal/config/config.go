package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider configures one planning backend, overriding or extending the
// built-in catalog entry of the same name.
type Provider struct {
	Adapter    string   `yaml:"adapter,omitempty"`
	Model      string   `yaml:"model_name,omitempty"`
	BaseURL    string   `yaml:"api_base,omitempty"`
	APIKey     string   `yaml:"api_key,omitempty"`
	Command    []string `yaml:"command,omitempty"`
	WorkingDir string   `yaml:"working_dir,omitempty"`
}

// Session configures durable session storage
type Session struct {
	StorageDir    string `yaml:"storage_dir"`
	ExpireSeconds int    `yaml:"expire_seconds"`
}

// Output configures artifact persistence
type Output struct {
	Dir            string `yaml:"dir"`
	SaveScreenshot bool   `yaml:"save_screenshot"`
}

// Device configures the adb transport
type Device struct {
	ADBPath string `yaml:"adb_path"`
}

// Config is the full configuration surface consumed by the control plane
type Config struct {
	DefaultProvider            string              `yaml:"default_provider"`
	TapOnlyMode                bool                `yaml:"tap_only_mode"`
	DefaultDeviceID            string              `yaml:"default_device_id"`
	DefaultMaxSteps            int                 `yaml:"default_max_steps"`
	DefaultOperationTimeoutSec int                 `yaml:"default_operation_timeout_sec"`
	Session                    Session             `yaml:"session"`
	Output                     Output              `yaml:"output"`
	Device                     Device              `yaml:"device"`
	Providers                  map[string]Provider `yaml:"providers"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".guiagent")
	return &Config{
		DefaultProvider:            "local",
		TapOnlyMode:                false,
		DefaultMaxSteps:            20,
		DefaultOperationTimeoutSec: 120,
		Session: Session{
			StorageDir:    filepath.Join(base, "sessions"),
			ExpireSeconds: 3600,
		},
		Output: Output{
			Dir:            filepath.Join(base, "outputs"),
			SaveScreenshot: true,
		},
		Device: Device{ADBPath: "adb"},
	}
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".guiagent", "config.yaml")
}

// Load reads the configuration at path, expanding ${ENV_VAR} placeholders
// in the raw text before parsing. An empty path means DefaultPath; a
// missing file yields the defaults rather than an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(expandEnv(data), cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

var envPlaceholderRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} with the environment value, or an empty
// string when the variable is unset.
func expandEnv(data []byte) []byte {
	return envPlaceholderRe.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envPlaceholderRe.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// OperationTimeout returns the configured default deadline, zero when
// unset.
func (c *Config) OperationTimeout() time.Duration {
	if c.DefaultOperationTimeoutSec <= 0 {
		return 0
	}
	return time.Duration(c.DefaultOperationTimeoutSec) * time.Second
}

// SessionTTL returns the staleness window for session selection and
// pruning, zero when disabled.
func (c *Config) SessionTTL() time.Duration {
	if c.Session.ExpireSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Session.ExpireSeconds) * time.Second
}

// SessionDBPath returns the SQLite file location under the storage dir.
func (c *Config) SessionDBPath() string {
	return filepath.Join(c.Session.StorageDir, "sessions.db")
}
