package config

import (
	"fmt"

	"github.com/fcrepo/ocfl-persistence/pkg/persist"
)

// Validate structurally checks cfg after ApplyDefaults has run: required
// fields, enum membership, and positive durations, hand-written in the
// teacher's style rather than through a struct-tag validator library (see
// DESIGN.md) since the remaining check set is small and enum-shaped.
func Validate(cfg *Config) error {
	if err := validateLogging(cfg.Logging); err != nil {
		return err
	}
	if err := validateSession(cfg.Session); err != nil {
		return err
	}
	if err := validateIndex(cfg.Index); err != nil {
		return err
	}
	if cfg.ObjectStore.Root == "" {
		return fmt.Errorf("object_store.root is required")
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}
	return nil
}

func validateLogging(cfg LoggingConfig) error {
	switch cfg.Level {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("logging.level must be one of DEBUG, INFO, WARN, ERROR, got %q", cfg.Level)
	}
	switch cfg.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", cfg.Format)
	}
	return nil
}

func validateSession(cfg SessionConfig) error {
	if _, err := persist.ParseCommitMode(cfg.CommitModeDefault); err != nil {
		return fmt.Errorf("session.commit_mode_default: %w", err)
	}
	if cfg.StagingRoot == "" {
		return fmt.Errorf("session.staging_root is required")
	}
	if cfg.RollbackDrainTimeout <= 0 {
		return fmt.Errorf("session.rollback_drain_timeout must be positive")
	}
	if cfg.OrphanTimeout <= 0 {
		return fmt.Errorf("session.orphan_timeout must be positive")
	}
	return nil
}

func validateIndex(cfg IndexConfig) error {
	switch cfg.Backend {
	case "memory", "badger":
	case "postgres":
		if cfg.Postgres.Database == "" {
			return fmt.Errorf("index.postgres.database is required when index.backend is postgres")
		}
	default:
		return fmt.Errorf("index.backend must be one of memory, badger, postgres, got %q", cfg.Backend)
	}
	return nil
}
