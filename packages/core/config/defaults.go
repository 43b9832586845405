package config

const (
	DefaultTimeoutMs    = 30000
	DefaultMaxRedirects = 10
	DefaultOutput       = "console"
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:         DefaultTimeoutMs,
		FollowRedirects: boolPtr(true),
		MaxRedirects:    DefaultMaxRedirects,
		ValidateSSL:     boolPtr(true),
		Output:          DefaultOutput,
		NoColor:         boolPtr(false),
		Verbose:         boolPtr(false),
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.Timeout == defaults.Timeout &&
		c.GetFollowRedirects() == defaults.GetFollowRedirects() &&
		c.MaxRedirects == defaults.MaxRedirects &&
		c.GetValidateSSL() == defaults.GetValidateSSL() &&
		c.Proxy == "" &&
		len(c.Headers) == 0 &&
		len(c.Variables) == 0 &&
		c.EnvFile == "" &&
		c.Output == defaults.Output &&
		c.GetNoColor() == defaults.GetNoColor() &&
		c.GetVerbose() == defaults.GetVerbose() &&
		c.History == "" &&
		c.Telemetry == nil
}
