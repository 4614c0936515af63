// Package config loads, defaults, and validates the server configuration
// from file, environment, and built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete server configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DAVSHARE_*)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains the HTTP listener settings
	Server ServerConfig `mapstructure:"server"`

	// Storage configures the served filesystem subtree
	Storage StorageConfig `mapstructure:"storage"`

	// Store specifies the user/rule/share persistence backend
	Store StoreConfig `mapstructure:"store"`

	// Shares controls share-link housekeeping
	Shares SharesConfig `mapstructure:"shares"`

	// Metrics toggles Prometheus metrics collection
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Admin optionally seeds an administrator account at startup
	Admin AdminConfig `mapstructure:"admin"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains the HTTP listener settings.
type ServerConfig struct {
	// Host is the listen address
	Host string `mapstructure:"host" validate:"required"`

	// Port is the listen port
	Port int `mapstructure:"port" validate:"required,gt=0,lte=65535"`

	// ReadTimeout bounds how long reading a request may take
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"required,gt=0"`

	// WriteTimeout bounds how long writing a response may take
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"required,gt=0"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// RateLimit throttles anonymous share access
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig throttles the public share endpoints to slow down token
// guessing. Zero disables limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate across all clients
	RequestsPerSecond uint `mapstructure:"requests_per_second"`

	// Burst is the number of requests that may exceed the sustained rate
	// momentarily
	Burst uint `mapstructure:"burst"`
}

// StorageConfig configures the served filesystem subtree.
type StorageConfig struct {
	// Root is the directory all WebDAV and share paths resolve under
	Root string `mapstructure:"root" validate:"required"`
}

// StoreConfig specifies the persistence backend for users, permission
// rules, and share links. Only the section matching the selected type is
// used.
type StoreConfig struct {
	// Type specifies which store implementation to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" validate:"required,oneof=memory badger"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger BadgerConfig `mapstructure:"badger"`
}

// BadgerConfig contains BadgerDB-specific settings.
type BadgerConfig struct {
	// Path is the database directory
	Path string `mapstructure:"path"`

	// GCInterval is how often value-log garbage collection runs
	// Zero disables the GC loop
	GCInterval time.Duration `mapstructure:"gc_interval"`
}

// SharesConfig controls share-link housekeeping.
type SharesConfig struct {
	// CleanupInterval is how often expired share links are swept
	// Zero disables the sweep
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// MetricsConfig toggles Prometheus metrics collection.
type MetricsConfig struct {
	// Enabled turns on the registry and the /metrics endpoint
	Enabled bool `mapstructure:"enabled"`
}

// AdminConfig optionally seeds an administrator account at startup. The
// account is created only if the username does not already exist; both
// fields must be set for seeding to happen.
type AdminConfig struct {
	// Username of the seeded administrator
	Username string `mapstructure:"username"`

	// Password of the seeded administrator
	Password string `mapstructure:"password"`

	// DisplayName of the seeded administrator
	DisplayName string `mapstructure:"display_name"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns the loaded and validated configuration.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file
// settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the DAVSHARE_ prefix with underscores,
	// e.g. DAVSHARE_LOGGING_LEVEL=DEBUG.
	v.SetEnvPrefix("DAVSHARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Viper only binds environment variables for keys it already knows
	// about, so every key gets a registered default.
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.rate_limit.requests_per_second", 0)
	v.SetDefault("server.rate_limit.burst", 0)
	v.SetDefault("storage.root", "/srv/davshare")
	v.SetDefault("store.type", "memory")
	v.SetDefault("store.badger.path", "/var/lib/davshare/db")
	v.SetDefault("store.badger.gc_interval", 5*time.Minute)
	v.SetDefault("shares.cleanup_interval", time.Hour)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("admin.username", "")
	v.SetDefault("admin.password", "")
	v.SetDefault("admin.display_name", "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. A missing file
// is not an error; defaults apply.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "davshare")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "davshare")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
