package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ApplyDefaults fills in any unspecified configuration fields with
// sensible defaults, leaving explicit values untouched.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applySessionDefaults(&cfg.Session)
	applyIndexDefaults(&cfg.Index)
	applyObjectStoreDefaults(&cfg.ObjectStore)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applySessionDefaults(cfg *SessionConfig) {
	if cfg.CommitModeDefault == "" {
		cfg.CommitModeDefault = "NEW_VERSION"
	}
	if cfg.StagingRoot == "" {
		cfg.StagingRoot = filepath.Join(os.TempDir(), "fcrepo-persist", "staging")
	}
	if cfg.RollbackDrainTimeout == 0 {
		cfg.RollbackDrainTimeout = 30 * time.Second
	}
	if cfg.OrphanTimeout == 0 {
		cfg.OrphanTimeout = time.Hour
	}
	if cfg.ReapSweepInterval == 0 {
		cfg.ReapSweepInterval = time.Minute
	}
}

func applyIndexDefaults(cfg *IndexConfig) {
	if cfg.Backend == "" {
		cfg.Backend = "badger"
	}
	if cfg.BadgerPath == "" {
		cfg.BadgerPath = filepath.Join(os.TempDir(), "fcrepo-persist", "foi-badger")
	}
	if cfg.Backend == "postgres" {
		applyPostgresDefaults(&cfg.Postgres)
	}
}

func applyPostgresDefaults(cfg *PostgresIndexConfig) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.Database == "" {
		cfg.Database = "foi"
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.MaxConns == 0 {
		cfg.MaxConns = 10
	}
	if cfg.MinConns == 0 {
		cfg.MinConns = 2
	}
	if cfg.MaxConnLifetime == 0 {
		cfg.MaxConnLifetime = time.Hour
	}
	if cfg.MaxConnIdleTime == 0 {
		cfg.MaxConnIdleTime = 30 * time.Minute
	}
	if cfg.HealthCheckPeriod == 0 {
		cfg.HealthCheckPeriod = time.Minute
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 10 * time.Second
	}
}

func applyObjectStoreDefaults(cfg *ObjectStoreConfig) {
	if cfg.Root == "" {
		cfg.Root = filepath.Join(os.TempDir(), "fcrepo-persist", "ocfl-root")
	}
	if cfg.S3Offload.Enabled && cfg.S3Offload.ThresholdBytes == 0 {
		cfg.S3Offload.ThresholdBytes = 10 << 20 // 10 MiB
	}
}

// GetDefaultConfig returns a Config with every default applied, useful
// for generating a sample config file or as a test fixture.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
