package telemetry

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	envEndpoint    = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envInsecure    = "OTEL_EXPORTER_OTLP_INSECURE"
	envHeaders     = "OTEL_EXPORTER_OTLP_HEADERS"
	envService     = "OTEL_SERVICE_NAME"
	envDialTimeout = "APICASE_OTEL_DIAL_TIMEOUT"

	DefaultServiceName = "apicase"
)

type Config struct {
	Endpoint    string
	Insecure    bool
	ServiceName string
	Version     string
	DialTimeout time.Duration
	Headers     map[string]string
}

func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

// ConfigFromEnv reads the standard OTLP variables through getenv. Malformed
// values are ignored.
func ConfigFromEnv(getenv func(string) string) Config {
	cfg := Config{
		Endpoint:    strings.TrimSpace(getenv(envEndpoint)),
		ServiceName: strings.TrimSpace(getenv(envService)),
	}
	if v, err := strconv.ParseBool(strings.TrimSpace(getenv(envInsecure))); err == nil {
		cfg.Insecure = v
	}
	if d, err := time.ParseDuration(strings.TrimSpace(getenv(envDialTimeout))); err == nil {
		cfg.DialTimeout = d
	}
	if h, err := ParseHeaders(getenv(envHeaders)); err == nil {
		cfg.Headers = h
	}
	return cfg
}

// Merge fills empty fields of c from other.
func (c Config) Merge(other Config) Config {
	if c.Endpoint == "" {
		c.Endpoint = other.Endpoint
	}
	if !c.Insecure {
		c.Insecure = other.Insecure
	}
	if c.ServiceName == "" {
		c.ServiceName = other.ServiceName
	}
	if c.Version == "" {
		c.Version = other.Version
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = other.DialTimeout
	}
	if len(c.Headers) == 0 {
		c.Headers = other.Headers
	}
	return c
}

// ParseHeaders parses a comma separated list of key=value pairs. A blank
// input yields nil.
func ParseHeaders(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	headers := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid header %q: expected key=value", part)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("invalid header %q: empty key", part)
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers, nil
}
