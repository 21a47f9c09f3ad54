package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps command-line flags to configuration keys
var flagKeys = map[string]string{
	"stream":          "stream",
	"unique":          "unique",
	"connect-timeout": "connect_timeout_ms",
	"validate-input":  "validate_input",
	"metrics-addr":    "metrics_addr",
	"log-level":       "logging.level",
	"log-file":        "logging.file",
}

// Loader handles configuration loading. Precedence is flags, then
// RELAYCAT_* environment variables, then the config file, then defaults.
type Loader struct {
	configPath string
	flags      *pflag.FlagSet
}

// NewLoader creates a new config loader. An empty path means the default
// location, which may be absent.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// WithFlags layers the given command-line flags over the other sources
func (l *Loader) WithFlags(flags *pflag.FlagSet) *Loader {
	l.flags = flags
	return l
}

// Load resolves and validates the configuration
func (l *Loader) Load() (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix("RELAYCAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := l.readConfigFile(v); err != nil {
		return nil, err
	}

	if l.flags != nil {
		for name, key := range flagKeys {
			flag := l.flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// --show-eose is the inverse of omit_eose
	if l.flags != nil && l.flags.Changed("show-eose") {
		show, err := l.flags.GetBool("show-eose")
		if err != nil {
			return nil, fmt.Errorf("failed to read show-eose flag: %w", err)
		}
		cfg.OmitEOSE = !show
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (l *Loader) readConfigFile(v *viper.Viper) error {
	configPath := l.configPath
	explicit := configPath != ""
	if !explicit {
		configPath = l.GetConfigPath()
		if configPath == "" {
			return nil
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if explicit {
			return fmt.Errorf("config file not found: %s", configPath)
		}
		return nil
	}

	v.SetConfigFile(configPath)
	if filepath.Ext(configPath) == "" {
		v.SetConfigType("json")
	}

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".relaycat", "relaycat.json")
}

// setDefaults registers every key so environment variables are seen by Unmarshal
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("stream", cfg.Stream)
	v.SetDefault("unique", cfg.Unique)
	v.SetDefault("connect_timeout_ms", cfg.ConnectTimeoutMS)
	v.SetDefault("omit_eose", cfg.OmitEOSE)
	v.SetDefault("validate_input", cfg.ValidateInput)
	v.SetDefault("metrics_addr", cfg.MetricsAddr)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.pretty", cfg.Logging.Pretty)
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}
