// Package config provides the configuration system for tap-hookdeck.
// It defines a single Config structure covering the Hookdeck credentials,
// the incremental start date and the ambient settings of a run.
//
// The configuration is organized into logical sections:
//   - Connection: api_key, api_url, api_version, request_timeout, user_agent
//   - Incremental: start_date
//   - Log, Metrics, Tracing: observability
//   - Output: where Singer messages go and how they are compressed
//   - State: where bookmarks are persisted between runs
//   - Conformance: what to do with records that do not match their schema
//
// Example usage:
//
//	cfg, err := config.Load("config.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"net/url"
	"time"

	"github.com/ajitpratap0/tap-hookdeck/pkg/errors"
)

const (
	// DefaultAPIURL is the Hookdeck API host
	DefaultAPIURL = "https://api.hookdeck.com"
	// DefaultAPIVersion is the dated API version all stream paths live under
	DefaultAPIVersion = "2024-09-01"
	// DefaultRequestTimeout bounds a single page request
	DefaultRequestTimeout = 30 * time.Second
	// DefaultMetricsAddr is where /metrics is served when metrics are enabled
	DefaultMetricsAddr = ":9102"
)

// Conformance policies
const (
	OnErrorFail = "fail"
	OnErrorWarn = "warn"
)

// Config is the complete configuration of a tap run.
type Config struct {
	// APIKey authenticates every request as a bearer token
	APIKey string `mapstructure:"api_key" yaml:"api_key" json:"api_key"`
	// StartDate is the earliest datetime to get data from (RFC 3339 or YYYY-MM-DD)
	StartDate string `mapstructure:"start_date" yaml:"start_date,omitempty" json:"start_date,omitempty"`

	APIURL         string        `mapstructure:"api_url" yaml:"api_url" json:"api_url"`
	APIVersion     string        `mapstructure:"api_version" yaml:"api_version" json:"api_version"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout" json:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent" json:"user_agent"`

	Log         LogConfig         `mapstructure:"log" yaml:"log" json:"log"`
	Metrics     MetricsConfig     `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
	Tracing     TracingConfig     `mapstructure:"tracing" yaml:"tracing" json:"tracing"`
	Output      OutputConfig      `mapstructure:"output" yaml:"output" json:"output"`
	State       StateConfig       `mapstructure:"state" yaml:"state" json:"state"`
	Conformance ConformanceConfig `mapstructure:"conformance" yaml:"conformance" json:"conformance"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level" json:"level"`
	Encoding    string `mapstructure:"encoding" yaml:"encoding" json:"encoding"`
	Development bool   `mapstructure:"development" yaml:"development" json:"development"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr" json:"listen_addr"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate" json:"sample_rate"`
}

// OutputConfig selects the Singer message sink. An empty Path means stdout.
type OutputConfig struct {
	Path        string `mapstructure:"path" yaml:"path" json:"path"`
	Compression string `mapstructure:"compression" yaml:"compression" json:"compression"`
}

// StateConfig selects the bookmark store, e.g. file:///var/lib/tap/state.json,
// s3://bucket/key, gs://bucket/object or postgres://user@host/db.
type StateConfig struct {
	URI string `mapstructure:"uri" yaml:"uri" json:"uri"`
}

// ConformanceConfig decides whether a non-conforming record aborts the sync.
type ConformanceConfig struct {
	OnError string `mapstructure:"on_error" yaml:"on_error" json:"on_error"`
}

// NewConfig creates a Config with defaults applied and no credentials.
func NewConfig() *Config {
	return &Config{
		APIURL:         DefaultAPIURL,
		APIVersion:     DefaultAPIVersion,
		RequestTimeout: DefaultRequestTimeout,
		Log: LogConfig{
			Level:    "info",
			Encoding: "json",
		},
		Metrics: MetricsConfig{
			ListenAddr: DefaultMetricsAddr,
		},
		Tracing: TracingConfig{
			SampleRate: 1.0,
		},
		Output: OutputConfig{
			Compression: "none",
		},
		Conformance: ConformanceConfig{
			OnError: OnErrorFail,
		},
	}
}

// Validate checks required fields and value ranges. A missing api_key is a
// config error; the tap refuses to start without it.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return errors.New(errors.ErrorTypeConfig, "api_key is required")
	}
	if _, err := c.StartTime(); err != nil {
		return err
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.Newf(errors.ErrorTypeConfig, "api_url %q is not an absolute URL", c.APIURL)
	}
	if c.APIVersion == "" {
		return errors.New(errors.ErrorTypeConfig, "api_version is required")
	}
	if c.RequestTimeout <= 0 {
		return errors.New(errors.ErrorTypeConfig, "request_timeout must be positive")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return errors.New(errors.ErrorTypeConfig, "tracing.sample_rate must be between 0 and 1")
	}
	switch c.Conformance.OnError {
	case OnErrorFail, OnErrorWarn:
	default:
		return errors.Newf(errors.ErrorTypeConfig, "conformance.on_error must be %q or %q, got %q",
			OnErrorFail, OnErrorWarn, c.Conformance.OnError)
	}
	return nil
}

// StartTime parses start_date. It returns nil when no start date is configured.
func (c *Config) StartTime() (*time.Time, error) {
	if c.StartDate == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, c.StartDate); err == nil {
			return &t, nil
		}
	}
	return nil, errors.Newf(errors.ErrorTypeConfig, "start_date %q is not a valid datetime", c.StartDate)
}

// BaseURL joins api_url and api_version, e.g. https://api.hookdeck.com/2024-09-01.
func (c *Config) BaseURL() string {
	u, err := url.JoinPath(c.APIURL, c.APIVersion)
	if err != nil {
		return c.APIURL + "/" + c.APIVersion
	}
	return u
}

// Redacted returns a copy that is safe to log.
func (c *Config) Redacted() Config {
	out := *c
	if out.APIKey != "" {
		out.APIKey = "********"
	}
	return out
}
