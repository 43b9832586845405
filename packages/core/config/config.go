package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config represents the apicase configuration
type Config struct {
	Timeout         int               `json:"timeout,omitempty" yaml:"timeout,omitempty" toml:"timeout,omitempty"` // milliseconds
	FollowRedirects *bool             `json:"followRedirects,omitempty" yaml:"followRedirects,omitempty" toml:"followRedirects,omitempty"`
	MaxRedirects    int               `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty" toml:"maxRedirects,omitempty"`
	ValidateSSL     *bool             `json:"validateSSL,omitempty" yaml:"validateSSL,omitempty" toml:"validateSSL,omitempty"`
	Proxy           string            `json:"proxy,omitempty" yaml:"proxy,omitempty" toml:"proxy,omitempty"`
	Headers         map[string]string `json:"headers,omitempty" yaml:"headers,omitempty" toml:"headers,omitempty"`       // Default headers for all requests
	Variables       map[string]string `json:"variables,omitempty" yaml:"variables,omitempty" toml:"variables,omitempty"` // {{name}} values
	EnvFile         string            `json:"envFile,omitempty" yaml:"envFile,omitempty" toml:"envFile,omitempty"`
	Output          string            `json:"output,omitempty" yaml:"output,omitempty" toml:"output,omitempty"`
	NoColor         *bool             `json:"noColor,omitempty" yaml:"noColor,omitempty" toml:"noColor,omitempty"`
	Verbose         *bool             `json:"verbose,omitempty" yaml:"verbose,omitempty" toml:"verbose,omitempty"`
	History         string            `json:"history,omitempty" yaml:"history,omitempty" toml:"history,omitempty"` // SQLite path
	Telemetry       *Telemetry        `json:"telemetry,omitempty" yaml:"telemetry,omitempty" toml:"telemetry,omitempty"`
}

// Telemetry configures OTLP span export.
type Telemetry struct {
	Endpoint    string            `json:"endpoint,omitempty" yaml:"endpoint,omitempty" toml:"endpoint,omitempty"`
	Insecure    *bool             `json:"insecure,omitempty" yaml:"insecure,omitempty" toml:"insecure,omitempty"`
	ServiceName string            `json:"serviceName,omitempty" yaml:"serviceName,omitempty" toml:"serviceName,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty" toml:"headers,omitempty"`
}

// boolPtr returns a pointer to a bool value
func boolPtr(b bool) *bool {
	return &b
}

// BoolPtr is exported version of boolPtr for external use
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetTimeout returns the request timeout, defaulting to 30 seconds
func (c *Config) GetTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeoutMs * time.Millisecond
	}
	return time.Duration(c.Timeout) * time.Millisecond
}

// GetTelemetryInsecure reports whether the OTLP connection skips TLS.
func (c *Config) GetTelemetryInsecure() bool {
	if c.Telemetry == nil {
		return false
	}
	return getBool(c.Telemetry.Insecure, false)
}

// ConfigFilenames contains the possible config file names, in lookup order
var ConfigFilenames = []string{
	".apicase.json",
	"apicase.json",
	".apicase.yaml",
	".apicase.yml",
	".apicase.toml",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	return DefaultConfig(), nil
}

type format int

const (
	formatJSON format = iota
	formatYAML
	formatTOML
)

func formatFor(path string) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML
	case ".toml":
		return formatTOML
	default:
		return formatJSON
	}
}

// loadConfigFromFile loads configuration from a specific file. Values absent
// from the file keep their defaults.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	switch formatFor(path) {
	case formatYAML:
		err = yaml.Unmarshal(data, config)
	case formatTOML:
		err = toml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return config, nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.EnvFile != "" {
		result.EnvFile = other.EnvFile
	}
	if other.Output != "" {
		result.Output = other.Output
	}
	if other.History != "" {
		result.History = other.History
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}

	result.Headers = mergeMaps(c.Headers, other.Headers)
	result.Variables = mergeMaps(c.Variables, other.Variables)

	if other.Telemetry != nil {
		t := Telemetry{}
		if c.Telemetry != nil {
			t = *c.Telemetry
		}
		if other.Telemetry.Endpoint != "" {
			t.Endpoint = other.Telemetry.Endpoint
		}
		if other.Telemetry.Insecure != nil {
			t.Insecure = other.Telemetry.Insecure
		}
		if other.Telemetry.ServiceName != "" {
			t.ServiceName = other.Telemetry.ServiceName
		}
		t.Headers = mergeMaps(t.Headers, other.Telemetry.Headers)
		result.Telemetry = &t
	}

	return &result
}

func mergeMaps(base, other map[string]string) map[string]string {
	if len(other) == 0 {
		return base
	}
	merged := make(map[string]string, len(base)+len(other))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// SaveConfig saves the configuration to a file, in the format given by its extension
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	switch formatFor(path) {
	case formatYAML:
		data, err = yaml.Marshal(c)
	case formatTOML:
		data, err = toml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
