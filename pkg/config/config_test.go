package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "NEW_VERSION", cfg.Session.CommitModeDefault)
	assert.Equal(t, "badger", cfg.Index.Backend)
	assert.NotEmpty(t, cfg.ObjectStore.Root)
	require.NoError(t, Validate(cfg))
}

func TestApplyDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{Level: "debug", Format: "json", Output: "/tmp/fcrepo.log"},
		Session: SessionConfig{CommitModeDefault: "MUTABLE_HEAD"},
		Index:   IndexConfig{Backend: "memory"},
	}
	ApplyDefaults(cfg)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/tmp/fcrepo.log", cfg.Logging.Output)
	assert.Equal(t, "MUTABLE_HEAD", cfg.Session.CommitModeDefault)
	assert.Equal(t, "memory", cfg.Index.Backend)
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "TRACE"
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsUnknownIndexBackend(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Index.Backend = "sqlite"
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsPostgresWithoutDatabase(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Index.Backend = "postgres"
	cfg.Index.Postgres.Database = ""
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsBadCommitMode(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Session.CommitModeDefault = "SOMETHING_ELSE"
	assert.Error(t, Validate(cfg))
}
