package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fcrepo/ocfl-persistence/internal/logger"
	"github.com/fcrepo/ocfl-persistence/internal/telemetry"
	"github.com/fcrepo/ocfl-persistence/pkg/config"
	"github.com/fcrepo/ocfl-persistence/pkg/index"
	"github.com/fcrepo/ocfl-persistence/pkg/index/badger"
	"github.com/fcrepo/ocfl-persistence/pkg/index/memory"
	"github.com/fcrepo/ocfl-persistence/pkg/index/postgres"
	"github.com/fcrepo/ocfl-persistence/pkg/metrics"
	metricsprom "github.com/fcrepo/ocfl-persistence/pkg/metrics/prometheus"
	"github.com/fcrepo/ocfl-persistence/pkg/ocfl"
	ocfls3 "github.com/fcrepo/ocfl-persistence/pkg/ocfl/s3"
	"github.com/fcrepo/ocfl-persistence/pkg/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the persistence core server",
	Long: `Run the persistence core: load configuration, build the configured
Fedora<->OCFL Index and Object Store Adapter backends, start the Session
Manager reaper and Prometheus metrics server, and block until a shutdown
signal arrives.

Examples:
  # Serve with default config location
  fcrepo-persist serve

  # Serve with a custom config file
  fcrepo-persist serve --config /etc/fcrepo-persist/config.yaml`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "fcrepo-persist",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	idx, closeIdx, err := buildIndex(ctx, cfg.Index)
	if err != nil {
		return fmt.Errorf("failed to build index backend: %w", err)
	}
	defer closeIdx()

	sessionMetrics := metrics.SessionMetrics(metrics.NewNoopSessionMetrics())
	storeMetrics := metrics.StoreMetrics(metrics.NewNoopStoreMetrics())
	if cfg.Metrics.Enabled {
		sessionMetrics = metricsprom.NewSessionMetrics()
		storeMetrics = metricsprom.NewStoreMetrics("filesystem")
	}

	osa, err := buildObjectStore(ctx, cfg.ObjectStore, storeMetrics)
	if err != nil {
		return fmt.Errorf("failed to build object store: %w", err)
	}

	commitMode, err := cfg.Session.ParsedCommitMode()
	if err != nil {
		return fmt.Errorf("invalid session configuration: %w", err)
	}

	mgr := session.NewManager(osa, idx, session.Config{
		CommitModeDefault:    commitMode,
		RollbackDrainTimeout: cfg.Session.RollbackDrainTimeout,
	}, slog.Default(),
		session.WithOrphanTimeout(cfg.Session.OrphanTimeout),
		session.WithSweepInterval(cfg.Session.ReapSweepInterval),
		session.WithSessionMetrics(sessionMetrics),
	)
	mgr.Start(ctx)
	defer mgr.Stop()

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port})
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				logger.Error("metrics server error", "error", err)
			}
		}()
		logger.Info("metrics server enabled", "port", metricsServer.Port())
	} else {
		logger.Info("metrics collection disabled")
	}

	logger.Info("persistence core ready",
		"index_backend", cfg.Index.Backend,
		"object_store_root", cfg.ObjectStore.Root,
		"commit_mode_default", cfg.Session.CommitModeDefault)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("server is running, press Ctrl+C to stop")
	<-sigChan
	signal.Stop(sigChan)
	logger.Info("shutdown signal received, initiating graceful shutdown")
	cancel()

	return nil
}

// buildIndex constructs the configured Fedora<->OCFL Index backend and
// returns a close function to release its resources.
func buildIndex(ctx context.Context, cfg config.IndexConfig) (index.Index, func(), error) {
	switch cfg.Backend {
	case "memory":
		idx := memory.New()
		return idx, func() { _ = idx.Close() }, nil
	case "badger":
		idx, err := badger.Open(cfg.BadgerPath)
		if err != nil {
			return nil, func() {}, err
		}
		return idx, func() { _ = idx.Close() }, nil
	case "postgres":
		pgCfg := &postgres.Config{
			Host:              cfg.Postgres.Host,
			Port:              cfg.Postgres.Port,
			Database:          cfg.Postgres.Database,
			User:              cfg.Postgres.User,
			Password:          cfg.Postgres.Password,
			SSLMode:           cfg.Postgres.SSLMode,
			MaxConns:          cfg.Postgres.MaxConns,
			MinConns:          cfg.Postgres.MinConns,
			MaxConnLifetime:   cfg.Postgres.MaxConnLifetime,
			MaxConnIdleTime:   cfg.Postgres.MaxConnIdleTime,
			HealthCheckPeriod: cfg.Postgres.HealthCheckPeriod,
			ConnectTimeout:    cfg.Postgres.ConnectTimeout,
			QueryTimeout:      cfg.Postgres.QueryTimeout,
			AutoMigrate:       cfg.Postgres.AutoMigrate,
		}
		idx, err := postgres.Open(ctx, pgCfg, slog.Default())
		if err != nil {
			return nil, func() {}, err
		}
		return idx, func() { _ = idx.Close() }, nil
	default:
		return nil, func() {}, fmt.Errorf("unknown index backend %q", cfg.Backend)
	}
}

// buildObjectStore constructs the filesystem-rooted Object Store Adapter,
// wiring an S3 offload backend when configured.
func buildObjectStore(ctx context.Context, cfg config.ObjectStoreConfig, storeMetrics metrics.StoreMetrics) (ocfl.ObjectStore, error) {
	opts := []ocfl.Option{ocfl.WithStoreMetrics(storeMetrics)}
	if cfg.S3Offload.Enabled {
		offload, err := ocfls3.Open(ctx, ocfls3.Config{
			Bucket:         cfg.S3Offload.Bucket,
			Prefix:         cfg.S3Offload.Prefix,
			Region:         cfg.S3Offload.Region,
			Endpoint:       cfg.S3Offload.Endpoint,
			ThresholdBytes: cfg.S3Offload.ThresholdBytes,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open S3 offload backend: %w", err)
		}
		opts = append(opts, ocfl.WithOffload(offload, cfg.S3Offload.ThresholdBytes))
	}
	return ocfl.NewFSStore(cfg.Root, opts...)
}
