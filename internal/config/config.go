// Package config loads client configuration from a YAML file and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// FileName is the name of the persisted configuration file inside the config directory.
	FileName = "config.yaml"

	// SecretsFileName holds the remembered username and bearer token.
	SecretsFileName = "secrets.json"

	// StateFileName holds process-wide session state such as the cached flow schema.
	StateFileName = "state.json"

	defaultTimeout = 60 * time.Second
)

// APIConfig is the `api` section of the configuration file.
type APIConfig struct {
	URL string `yaml:"url,omitempty"`
}

// File is the on-disk layout of config.yaml.
type File struct {
	API       APIConfig `yaml:"api"`
	Namespace string    `yaml:"namespace,omitempty"`
}

// Config holds the effective client configuration.
type Config struct {
	Dir string

	// APIURL is the server base URL as entered by the user, before /api/v1 normalization.
	APIURL    string
	Namespace string

	LogLevel  string
	LogFormat string

	// Locked hosts never prompt for the server URL.
	Locked  bool
	Timeout time.Duration

	file File
}

// DefaultDir returns the default configuration directory.
func DefaultDir() string {
	if dir := os.Getenv("KESTRAFS_CONFIG_DIR"); dir != "" {
		return dir
	}
	base, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "kestrafs")
}

// Load reads config.yaml from dir (missing file is not an error) and applies
// environment overrides.
func Load(dir string) (*Config, error) {
	if dir == "" {
		dir = DefaultDir()
	}

	cfg := &Config{Dir: dir}

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg.file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", FileName, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", FileName, err)
	}

	cfg.APIURL = envOr("KESTRA_API_URL", cfg.file.API.URL)
	cfg.Namespace = envOr("KESTRA_NAMESPACE", cfg.file.Namespace)
	cfg.LogLevel = envOr("KESTRAFS_LOG_LEVEL", "info")
	cfg.LogFormat = envOr("KESTRAFS_LOG_FORMAT", "console")
	cfg.Locked = envBool("KESTRAFS_LOCKED", false)
	cfg.Timeout = envDuration("KESTRAFS_TIMEOUT", defaultTimeout)

	return cfg, nil
}

// ServerURL returns the configured server URL as entered by the user.
func (c *Config) ServerURL() string {
	return c.APIURL
}

// SetAPIURL updates the server URL and persists it.
func (c *Config) SetAPIURL(url string) error {
	c.APIURL = url
	c.file.API.URL = url
	return c.Save()
}

// SetNamespace updates the default namespace and persists it.
func (c *Config) SetNamespace(ns string) error {
	c.Namespace = ns
	c.file.Namespace = ns
	return c.Save()
}

// Save writes config.yaml atomically.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.Dir, 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(&c.file)
	if err != nil {
		return err
	}

	path := filepath.Join(c.Dir, FileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// SecretsPath returns the path of the credential store file.
func (c *Config) SecretsPath() string {
	return filepath.Join(c.Dir, SecretsFileName)
}

// StatePath returns the path of the session state file.
func (c *Config) StatePath() string {
	return filepath.Join(c.Dir, StateFileName)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
