package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateConnectTimeout validates the connect timeout in milliseconds
func (v *Validator) ValidateConnectTimeout(ms int) error {
	if ms < MinConnectTimeoutMS || ms > MaxConnectTimeoutMS {
		return fmt.Errorf("connect timeout must be between %d and %d ms, got %d", MinConnectTimeoutMS, MaxConnectTimeoutMS, ms)
	}
	return nil
}

// ValidateMetricsAddr validates the metrics listen address
func (v *Validator) ValidateMetricsAddr(addr string) error {
	if addr == "" {
		return nil // Metrics disabled
	}

	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid metrics address %q: %w", addr, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("invalid metrics port %q", port)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidateConnectTimeout(cfg.ConnectTimeoutMS); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateMetricsAddr(cfg.MetricsAddr); err != nil {
		errors = append(errors, err)
	}

	return errors
}
