package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/idna"
	"gopkg.in/yaml.v3"
)

// Session store backends.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// Config holds all arvore configuration.
type Config struct {
	// Remote family-tree API
	API APIConfig `yaml:"api"`

	// Persistent session store (token, user id, username)
	Session SessionConfig `yaml:"session"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Terminal UI
	UI UIConfig `yaml:"ui"`
}

// APIConfig configures the remote REST API.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	// Empty means no timeout: a hung call keeps the spinner up until the user leaves.
	Timeout string `yaml:"timeout"`
}

// SessionConfig configures where the session survives between runs.
type SessionConfig struct {
	Backend string `yaml:"backend"` // sqlite, file, memory
	Path    string `yaml:"path"`
	Watch   bool   `yaml:"watch"` // re-check the token when another process rewrites the store
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Categories map[string]bool `yaml:"categories"`
	JSONFormat bool            `yaml:"json_format"`
	Dir        string          `yaml:"dir"`
}

// UIConfig configures the TUI.
type UIConfig struct {
	Theme string `yaml:"theme"` // light, dark, auto
}

// HomeDir returns ~/.arvore, falling back to ./.arvore when no home is known.
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".arvore"
	}
	return filepath.Join(home, ".arvore")
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return filepath.Join(HomeDir(), "config.yaml")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	base := HomeDir()
	return &Config{
		API: APIConfig{
			BaseURL: "http://127.0.0.1:8000/api/",
		},
		Session: SessionConfig{
			Backend: BackendSQLite,
			Path:    DefaultSessionPath(BackendSQLite),
			Watch:   true,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   filepath.Join(base, "logs"),
		},
		UI: UIConfig{
			Theme: "auto",
		},
	}
}

// DefaultSessionPath returns where a backend keeps the session when no path
// is configured.
func DefaultSessionPath(backend string) string {
	switch backend {
	case BackendFile:
		return filepath.Join(HomeDir(), "session.json")
	case BackendSQLite:
		return filepath.Join(HomeDir(), "session.db")
	}
	return ""
}

// Load loads configuration from a YAML file and applies environment
// overrides. A missing file yields defaults. The result is not validated:
// callers apply their own overrides first and then call Validate.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Session.Path = ""

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if cfg.Session.Path == "" {
		cfg.Session.Path = DefaultSessionPath(cfg.Session.Backend)
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ARVORE_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("ARVORE_SESSION_BACKEND"); v != "" {
		c.Session.Backend = v
	}
	if v := os.Getenv("ARVORE_SESSION_PATH"); v != "" {
		c.Session.Path = v
	}
	if v := os.Getenv("ARVORE_DEBUG"); v == "1" || strings.EqualFold(v, "true") {
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
	}
	if v := os.Getenv("ARVORE_THEME"); v != "" {
		c.UI.Theme = v
	}
}

// Validate checks values that would otherwise fail later in confusing ways.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api.base_url %q", c.API.BaseURL)
	}
	if _, err := idna.Lookup.ToASCII(u.Hostname()); err != nil {
		return fmt.Errorf("invalid api.base_url host %q: %w", u.Hostname(), err)
	}
	switch c.Session.Backend {
	case BackendSQLite, BackendFile:
		if c.Session.Path == "" {
			return fmt.Errorf("session.path required for %s backend", c.Session.Backend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown session.backend %q", c.Session.Backend)
	}
	if c.API.Timeout != "" {
		if _, err := time.ParseDuration(c.API.Timeout); err != nil {
			return fmt.Errorf("invalid api.timeout %q: %w", c.API.Timeout, err)
		}
	}
	return nil
}

// GetAPITimeout returns the HTTP timeout; zero means none.
func (c *Config) GetAPITimeout() time.Duration {
	if c.API.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// NormalizedBaseURL returns the API base URL with exactly one trailing slash.
// Internationalized host names are converted to their ASCII form.
func (c *Config) NormalizedBaseURL() string {
	base := strings.TrimRight(c.API.BaseURL, "/") + "/"
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	host, err := idna.Lookup.ToASCII(u.Hostname())
	if err != nil || host == u.Hostname() {
		return base
	}
	if port := u.Port(); port != "" {
		host += ":" + port
	}
	u.Host = host
	return u.String()
}
