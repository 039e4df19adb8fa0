// Package postgres implements the Fedora↔OCFL Index over PostgreSQL for
// deployments sharing one index across repository nodes.
//
// Grounded on the teacher's pkg/metadata/store/postgres (pgxpool
// connection pool bootstrap, statement_timeout wiring, structured
// startup logging) and its golang-migrate-based migration runner.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fcrepo/ocfl-persistence/pkg/persist"
)

// Store is a PostgreSQL-backed Fedora↔OCFL Index.
type Store struct {
	pool   *pgxpool.Pool
	config *Config
	logger *slog.Logger

	mu  sync.Mutex
	txs map[string]pgx.Tx
}

// Open creates a connection pool from cfg, optionally runs the embedded
// schema migrations, and returns a ready Store.
func Open(ctx context.Context, cfg *Config, logger *slog.Logger) (*Store, error) {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := createConnectionPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := runMigrations(ctx, cfg.ConnectionString(), logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run FOI migrations: %w", err)
		}
	} else {
		logger.Info("auto_migrate disabled, skipping FOI schema migration")
	}

	return &Store{
		pool:   pool,
		config: cfg,
		logger: logger,
		txs:    make(map[string]pgx.Tx),
	}, nil
}

func (s *Store) txFor(ctx context.Context, sessionID string) (pgx.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[sessionID]
	if ok {
		return tx, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, persist.NewIndexError("", "failed to begin FOI transaction", err)
	}
	s.txs[sessionID] = tx
	return tx, nil
}

func (s *Store) takeTx(sessionID string) (pgx.Tx, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[sessionID]
	if ok {
		delete(s.txs, sessionID)
	}
	return tx, ok
}

const selectMappingSQL = `SELECT ocfl_id, root_rid, is_ag_root FROM foi_mappings WHERE rid = $1`

func scanMapping(row pgx.Row, rid persist.RID) (persist.Mapping, error) {
	var m persist.Mapping
	m.RID = rid
	if err := row.Scan(&m.OCFLID, &m.RootRID, &m.IsAGRoot); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return persist.Mapping{}, persist.NewNotFoundError(string(rid), "no FOI mapping")
		}
		return persist.Mapping{}, persist.NewIndexError(string(rid), "postgres scan failed", err)
	}
	return m, nil
}

// Get implements index.Index.
func (s *Store) Get(ctx context.Context, sessionID string, rid persist.RID) (persist.Mapping, error) {
	if sessionID != "" {
		s.mu.Lock()
		tx, ok := s.txs[sessionID]
		s.mu.Unlock()
		if ok {
			return scanMapping(tx.QueryRow(ctx, selectMappingSQL, string(rid)), rid)
		}
	}
	return scanMapping(s.pool.QueryRow(ctx, selectMappingSQL, string(rid)), rid)
}

// Add implements index.Index.
func (s *Store) Add(ctx context.Context, sessionID string, rid persist.RID, ocflID string, rootRID persist.RID) error {
	if sessionID == "" {
		return persist.NewInvalidArgumentError("Add requires a non-empty session id")
	}

	tx, err := s.txFor(ctx, sessionID)
	if err != nil {
		return err
	}

	isAGRoot := rid == rootRID
	_, err = tx.Exec(ctx, `
		INSERT INTO foi_mappings (rid, ocfl_id, root_rid, is_ag_root, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (rid) DO UPDATE SET
			ocfl_id = EXCLUDED.ocfl_id,
			root_rid = EXCLUDED.root_rid,
			is_ag_root = EXCLUDED.is_ag_root,
			updated_at = now()
	`, string(rid), ocflID, string(rootRID), isAGRoot)
	if err != nil {
		return persist.NewIndexError(string(rid), "postgres upsert failed", err)
	}
	return nil
}

// Remove implements index.Index.
func (s *Store) Remove(ctx context.Context, sessionID string, rid persist.RID) error {
	if sessionID == "" {
		return persist.NewInvalidArgumentError("Remove requires a non-empty session id")
	}

	tx, err := s.txFor(ctx, sessionID)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM foi_mappings WHERE rid = $1`, string(rid)); err != nil {
		return persist.NewIndexError(string(rid), "postgres delete failed", err)
	}
	return nil
}

// Commit implements index.Index.
func (s *Store) Commit(ctx context.Context, sessionID string) error {
	tx, ok := s.takeTx(sessionID)
	if !ok {
		return nil
	}
	if err := tx.Commit(ctx); err != nil {
		return persist.NewIndexError("", "postgres commit failed", err)
	}
	return nil
}

// Rollback implements index.Index.
func (s *Store) Rollback(ctx context.Context, sessionID string) error {
	tx, ok := s.takeTx(sessionID)
	if !ok {
		return nil
	}
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return persist.NewIndexError("", "postgres rollback failed", err)
	}
	return nil
}

// Healthcheck implements index.Index.
func (s *Store) Healthcheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return persist.NewIOError("", "postgres healthcheck failed", err)
	}
	return nil
}

// Close implements index.Index.
func (s *Store) Close() error {
	s.mu.Lock()
	for _, tx := range s.txs {
		_ = tx.Rollback(context.Background())
	}
	s.txs = make(map[string]pgx.Tx)
	s.mu.Unlock()

	s.pool.Close()
	return nil
}
