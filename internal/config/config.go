package config

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/harun/relaycat/internal/logger"
	"github.com/harun/relaycat/pkg/relay"
)

const (
	// DefaultConnectTimeoutMS matches relay.DefaultConnectTimeout
	DefaultConnectTimeoutMS = 10000
	MinConnectTimeoutMS     = 1
	MaxConnectTimeoutMS     = 600000
)

// Config represents the resolved relaycat configuration
type Config struct {
	// Stream keeps sessions listening after terminal envelopes
	Stream bool `json:"stream" mapstructure:"stream"`

	// Unique drops payloads already printed by any relay
	Unique bool `json:"unique" mapstructure:"unique"`

	// ConnectTimeoutMS bounds the handshake and each non-streaming read
	ConnectTimeoutMS int `json:"connect_timeout_ms" mapstructure:"connect_timeout_ms"`

	// OmitEOSE suppresses EOSE envelopes from the output
	OmitEOSE bool `json:"omit_eose" mapstructure:"omit_eose"`

	// ValidateInput checks stdin lines before connecting
	ValidateInput bool `json:"validate_input" mapstructure:"validate_input"`

	// MetricsAddr serves /metrics when set
	MetricsAddr string `json:"metrics_addr" mapstructure:"metrics_addr"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	File   string `json:"file" mapstructure:"file"`
	Pretty bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Stream:           false,
		Unique:           false,
		ConnectTimeoutMS: DefaultConnectTimeoutMS,
		OmitEOSE:         true,
		ValidateInput:    false,
		Logging: LoggingConfig{
			Level:  "warn",
			Pretty: true,
		},
	}
}

// RunConfig converts the configuration into the value shared by every session
func (c *Config) RunConfig() relay.RunConfig {
	return relay.RunConfig{
		Stream:         c.Stream,
		ConnectTimeout: time.Duration(c.ConnectTimeoutMS) * time.Millisecond,
		OmitEOSE:       c.OmitEOSE,
		Unique:         c.Unique,
	}
}

// LoggerConfig returns the logger settings, console output included
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:   c.Logging.Level,
		File:    c.Logging.File,
		Console: true,
		Pretty:  c.Logging.Pretty,
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	return errors.Join(NewValidator().ValidateConfig(c)...)
}
