// Package config loads and validates the store configuration. All lookup
// happens here, once, at load time: the stores themselves never consult the
// environment.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ConfigurationError reports settings missing or invalid at construction.
// Always fatal: nothing touches the backing store until the config is whole.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// Config is the explicit configuration for the persistence layer.
type Config struct {
	// Driver selects the backing store: "rest" (remote) or "sqlite" (local).
	Driver string `mapstructure:"driver" yaml:"driver"`
	// Endpoint is the remote store's base URL (rest driver).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	// Credential is the remote store's access key (rest driver).
	Credential string `mapstructure:"credential" yaml:"credential"`
	// Path is the database file location (sqlite driver).
	Path string `mapstructure:"path" yaml:"path"`

	Verbose bool `mapstructure:"verbose" yaml:"verbose"`
}

// Load reads crewstore.yaml from dir (when present) merged with CREWSTORE_*
// environment variables, applies defaults, and validates the result.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName("crewstore")
	v.SetConfigType("yaml")
	return load(v)
}

// LoadFile is Load for an explicit config file path.
func LoadFile(file string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(file)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("CREWSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"driver", "endpoint", "credential", "path", "verbose"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	v.SetDefault("driver", "rest")
	v.SetDefault("path", "./crewstore.db")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the config for use. Missing endpoint or credential on the
// rest driver is fatal before any table probe runs.
func (c *Config) Validate() error {
	switch c.Driver {
	case "rest":
		if c.Endpoint == "" {
			return &ConfigurationError{Field: "endpoint", Reason: "required for the rest driver"}
		}
		if c.Credential == "" {
			return &ConfigurationError{Field: "credential", Reason: "required for the rest driver"}
		}
	case "sqlite", "":
		if c.Path == "" {
			return &ConfigurationError{Field: "path", Reason: "required for the sqlite driver"}
		}
	default:
		return &ConfigurationError{Field: "driver", Reason: fmt.Sprintf("unknown driver %q", c.Driver)}
	}
	return nil
}
