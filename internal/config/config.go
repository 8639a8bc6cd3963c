// Package config loads and validates the run configuration. Every
// recognized option is enumerated here and defaulted at load time; all
// validation happens once at this boundary so later stages never fail on
// bad settings.
package config

import (
	"fmt"
	"time"

	"github.com/koding/multiconfig"
)

const DefaultGatewayPath = "/cgi-bin/parameters"

// EnvPrefix is the prefix for environment overrides, e.g. APSMON_HOST.
const EnvPrefix = "APSMON"

// freqFields are the PVOutput extended parameter slots a frequency
// reading may be mapped to.
var freqFields = []string{"v7", "v8", "v9", "v10", "v11", "v12"}

// Config is the full run configuration, normally read from a JSON file.
type Config struct {
	Host           string `json:"host"`
	Path           string `json:"path" default:"/cgi-bin/parameters"`
	TimeoutSeconds int    `json:"timeout_seconds" default:"5"`

	// ScaleMissing extrapolates total power when fewer than ExpectedCount
	// panels report.
	ScaleMissing  bool `json:"scale_missing"`
	ExpectedCount *int `json:"expected_count"`

	PVOutput PVOutput `json:"pvoutput"`
}

// PVOutput configures the optional status upload.
type PVOutput struct {
	Publish     bool   `json:"publish"`
	APIKey      string `json:"api_key"`
	SystemID    string `json:"system_id"`
	SendVoltage bool   `json:"send_voltage" default:"true"`
	SendTemp    bool   `json:"send_temp" default:"true"`
	SendFreq    bool   `json:"send_freq"`
	FreqField   string `json:"freq_field" default:"v8"`
}

// ConfigError reports a missing or invalid setting.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %v", e.Reason, e.Err)
	}
	return "config: " + e.Reason
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Load reads the JSON config at path, applies defaults and APSMON_*
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	loader := multiconfig.MultiLoader(
		&multiconfig.TagLoader{},
		&multiconfig.JSONLoader{Path: path},
		&multiconfig.EnvironmentLoader{Prefix: EnvPrefix},
	)

	cfg := &Config{}
	if err := loader.Load(cfg); err != nil {
		return nil, &ConfigError{Reason: "load " + path, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded settings. It is called by Load; callers
// constructing a Config directly should call it themselves.
func (c *Config) Validate() error {
	if c.Host == "" {
		return &ConfigError{Field: "host", Reason: "is required"}
	}
	if c.TimeoutSeconds <= 0 {
		return &ConfigError{Field: "timeout_seconds", Reason: "must be a positive integer"}
	}
	if c.ExpectedCount != nil && *c.ExpectedCount <= 0 {
		return &ConfigError{Field: "expected_count", Reason: "must be a positive integer when set"}
	}
	if c.ScaleMissing && c.ExpectedCount == nil {
		return &ConfigError{Field: "expected_count", Reason: "is required when scale_missing is enabled"}
	}
	if c.PVOutput.Publish {
		if c.PVOutput.APIKey == "" {
			return &ConfigError{Field: "pvoutput.api_key", Reason: "is required when publish is enabled"}
		}
		if c.PVOutput.SystemID == "" {
			return &ConfigError{Field: "pvoutput.system_id", Reason: "is required when publish is enabled"}
		}
	}
	if c.PVOutput.SendFreq && !validFreqField(c.PVOutput.FreqField) {
		return &ConfigError{Field: "pvoutput.freq_field", Reason: "must be one of v7 through v12"}
	}
	return nil
}

// URL is the gateway endpoint. The embedded web server speaks plain HTTP.
func (c *Config) URL() string {
	return "http://" + c.Host + c.Path
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func validFreqField(field string) bool {
	for _, f := range freqFields {
		if field == f {
			return true
		}
	}
	return false
}
