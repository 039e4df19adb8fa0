// Package config implements the persistence core's layered configuration:
// FCREPO_* environment variables, then a YAML config file, then defaults,
// loaded via github.com/spf13/viper with a github.com/mitchellh/mapstructure
// decode hook for time.Duration, grounded on the teacher's
// pkg/config/config.go.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fcrepo/ocfl-persistence/pkg/persist"
)

// Config is the persistence core's full static configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (FCREPO_*) (highest priority)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
//
// No command-line flag is bound to a field; the CLI's --config flag only
// selects the file. Environment variables override keys present in the
// config file; when no config file is found, Load returns the defaults
// without consulting the environment.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics contains Prometheus metrics server configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Session contains the Storage Session / Session Manager settings.
	Session SessionConfig `mapstructure:"session" yaml:"session"`

	// Index selects and configures the Fedora<->OCFL Index backend.
	Index IndexConfig `mapstructure:"index" yaml:"index"`

	// ObjectStore configures the filesystem-rooted OCFL Object Store
	// Adapter and its optional S3 content offload.
	ObjectStore ObjectStoreConfig `mapstructure:"object_store" yaml:"object_store"`

	// ShutdownTimeout is defaulted and validated as positive; the serve
	// command does not read it.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output: DEBUG, INFO, WARN, ERROR.
	Level string `mapstructure:"level" yaml:"level"`
	// Format is the log output format: text or json.
	Format string `mapstructure:"format" yaml:"format"`
	// Output is where logs are written: stdout, stderr, or a file path.
	Output string `mapstructure:"output" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string  `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool    `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}

// SessionConfig governs the Storage Session / Session Manager.
type SessionConfig struct {
	// CommitModeDefault is the default Object Sub-Session commit mode:
	// MUTABLE_HEAD or NEW_VERSION.
	CommitModeDefault string `mapstructure:"commit_mode_default" yaml:"commit_mode_default"`

	// StagingRoot is defaulted and validated as non-empty, but no other
	// package reads it and no per-session staging directory is created;
	// staged content lives in a .staging directory inside each OCFL
	// object's directory under the object store root.
	StagingRoot string `mapstructure:"staging_root" yaml:"staging_root"`

	// RollbackDrainTimeout bounds how long Rollback waits for in-flight
	// persists to drain before a pre-commit rollback.
	RollbackDrainTimeout time.Duration `mapstructure:"rollback_drain_timeout" yaml:"rollback_drain_timeout"`

	// OrphanTimeout is how long a session may sit in OPEN, PREPARE_FAILED,
	// or COMMIT_FAILED before the Session Manager's reaper rolls it back.
	OrphanTimeout time.Duration `mapstructure:"orphan_timeout" yaml:"orphan_timeout"`

	// ReapSweepInterval is how often the reaper goroutine sweeps.
	ReapSweepInterval time.Duration `mapstructure:"reap_sweep_interval" yaml:"reap_sweep_interval"`
}

// ParsedCommitMode returns the session's configured default commit mode.
func (c SessionConfig) ParsedCommitMode() (persist.CommitMode, error) {
	return persist.ParseCommitMode(c.CommitModeDefault)
}

// IndexConfig selects and configures the Fedora<->OCFL Index backend.
type IndexConfig struct {
	// Backend selects the FOI implementation: memory, badger, or postgres.
	Backend string `mapstructure:"backend" yaml:"backend"`

	// BadgerPath is the BadgerDB data directory, used when Backend == badger.
	BadgerPath string `mapstructure:"badger_path" yaml:"badger_path"`

	// Postgres configures the postgres.Config connection, used when
	// Backend == postgres.
	Postgres PostgresIndexConfig `mapstructure:"postgres" yaml:"postgres"`
}

// PostgresIndexConfig mirrors pkg/index/postgres.Config's mapstructure
// shape so it can be embedded in the top-level YAML document.
type PostgresIndexConfig struct {
	Host                string        `mapstructure:"host" yaml:"host"`
	Port                int           `mapstructure:"port" yaml:"port"`
	Database            string        `mapstructure:"database" yaml:"database"`
	User                string        `mapstructure:"user" yaml:"user"`
	Password            string        `mapstructure:"password" yaml:"password"`
	SSLMode             string        `mapstructure:"ssl_mode" yaml:"ssl_mode"`
	MaxConns            int32         `mapstructure:"max_conns" yaml:"max_conns"`
	MinConns            int32         `mapstructure:"min_conns" yaml:"min_conns"`
	MaxConnLifetime     time.Duration `mapstructure:"max_conn_lifetime" yaml:"max_conn_lifetime"`
	MaxConnIdleTime     time.Duration `mapstructure:"max_conn_idle_time" yaml:"max_conn_idle_time"`
	HealthCheckPeriod   time.Duration `mapstructure:"health_check_period" yaml:"health_check_period"`
	ConnectTimeout      time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	QueryTimeout        time.Duration `mapstructure:"query_timeout" yaml:"query_timeout"`
	AutoMigrate         bool          `mapstructure:"auto_migrate" yaml:"auto_migrate"`
}

// ObjectStoreConfig configures the filesystem OCFL Object Store Adapter
// and its optional S3 binary content offload.
type ObjectStoreConfig struct {
	// Root is the OSA filesystem root: one subdirectory per OCFL object.
	Root string `mapstructure:"root" yaml:"root"`

	// S3Offload optionally offloads binary content above ThresholdBytes
	// to an S3-compatible object store.
	S3Offload S3OffloadConfig `mapstructure:"s3_offload" yaml:"s3_offload"`
}

// S3OffloadConfig configures large-binary-content offload to S3.
type S3OffloadConfig struct {
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
	Bucket         string `mapstructure:"bucket" yaml:"bucket"`
	Prefix         string `mapstructure:"prefix" yaml:"prefix"`
	Region         string `mapstructure:"region" yaml:"region"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint"`
	ThresholdBytes int64  `mapstructure:"threshold_bytes" yaml:"threshold_bytes"`
}

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// SaveConfig writes cfg to path as YAML, restricted to owner read/write
// since object-store and postgres credentials may be present.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("FCREPO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks composes the custom mapstructure decode hooks this
// config needs beyond viper's built-in string/int/bool conversions.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(durationDecodeHook())
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fcrepo-persist")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "fcrepo-persist")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
