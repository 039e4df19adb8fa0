// Package badger provides the default single-node embedded-KV
// implementation of the Fedora↔OCFL Index, backed by
// github.com/dgraph-io/badger/v4.
//
// Grounded on the teacher's pkg/metadata/store/badger transaction
// wrapper: one badger.Txn per logical transaction, held open across
// Add/Remove calls and finalized by Commit/Rollback. Badger's own MVCC
// gives read-your-own-writes for free: reads made through a session's
// open Txn see both the committed index and that session's own pending
// writes, while reads made without a session (or under a different
// session) only ever see committed data until Commit() lands.
package badger

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/fcrepo/ocfl-persistence/internal/telemetry"
	"github.com/fcrepo/ocfl-persistence/pkg/metrics"
	"github.com/fcrepo/ocfl-persistence/pkg/persist"
)

const keyPrefix = "foi:"

func keyFor(rid persist.RID) []byte {
	return []byte(keyPrefix + string(rid))
}

// Store is a BadgerDB-backed Fedora↔OCFL Index.
type Store struct {
	db      *badgerdb.DB
	metrics metrics.StoreMetrics

	mu   sync.Mutex
	txns map[string]*badgerdb.Txn
}

// Option configures a Store.
type Option func(*Store)

// WithStoreMetrics attaches a StoreMetrics collector. Unset, the store
// records no metrics.
func WithStoreMetrics(storeMetrics metrics.StoreMetrics) Option {
	return func(s *Store) { s.metrics = storeMetrics }
}

// Open opens (creating if absent) a BadgerDB index at dir.
func Open(dir string, opts ...Option) (*Store, error) {
	badgerOpts := badgerdb.DefaultOptions(dir)
	badgerOpts.Logger = nil

	db, err := badgerdb.Open(badgerOpts)
	if err != nil {
		return nil, persist.NewIOError("", "failed to open badger index", err)
	}

	s := &Store{
		db:      db,
		metrics: metrics.NewNoopStoreMetrics(),
		txns:    make(map[string]*badgerdb.Txn),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) txnFor(sessionID string) *badgerdb.Txn {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn, ok := s.txns[sessionID]
	if !ok {
		txn = s.db.NewTransaction(true)
		s.txns[sessionID] = txn
	}
	return txn
}

func (s *Store) takeTxn(sessionID string) (*badgerdb.Txn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn, ok := s.txns[sessionID]
	if ok {
		delete(s.txns, sessionID)
	}
	return txn, ok
}

func decodeMapping(val []byte) (persist.Mapping, error) {
	var m persist.Mapping
	if err := json.Unmarshal(val, &m); err != nil {
		return persist.Mapping{}, err
	}
	return m, nil
}

func getFrom(getter func([]byte) (*badgerdb.Item, error), rid persist.RID) (persist.Mapping, error) {
	item, err := getter(keyFor(rid))
	if err == badgerdb.ErrKeyNotFound {
		return persist.Mapping{}, persist.NewNotFoundError(string(rid), "no FOI mapping")
	}
	if err != nil {
		return persist.Mapping{}, persist.NewIndexError(string(rid), "badger get failed", err)
	}

	var m persist.Mapping
	err = item.Value(func(val []byte) error {
		decoded, decErr := decodeMapping(val)
		if decErr != nil {
			return decErr
		}
		m = decoded
		return nil
	})
	if err != nil {
		return persist.Mapping{}, persist.NewIndexError(string(rid), "badger decode failed", err)
	}
	return m, nil
}

// Get implements index.Index.
func (s *Store) Get(ctx context.Context, sessionID string, rid persist.RID) (mapping persist.Mapping, err error) {
	_, span := telemetry.StartIndexSpan(ctx, telemetry.SpanIndexGet, string(rid), telemetry.IndexBackend("badger"))
	defer span.End()

	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		s.metrics.RecordOperation("Get", time.Since(start), err)
	}()

	if sessionID != "" {
		s.mu.Lock()
		txn, ok := s.txns[sessionID]
		s.mu.Unlock()
		if ok {
			return getFrom(txn.Get, rid)
		}
	}

	var m persist.Mapping
	var getErr error
	err = s.db.View(func(txn *badgerdb.Txn) error {
		m, getErr = getFrom(txn.Get, rid)
		return nil
	})
	if err != nil {
		return persist.Mapping{}, persist.NewIndexError(string(rid), "badger view failed", err)
	}
	return m, getErr
}

// Add implements index.Index.
func (s *Store) Add(ctx context.Context, sessionID string, rid persist.RID, ocflID string, rootRID persist.RID) (err error) {
	_, span := telemetry.StartIndexSpan(ctx, telemetry.SpanIndexAdd, string(rid),
		telemetry.IndexBackend("badger"), telemetry.OCFLObjectID(ocflID))
	defer span.End()

	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		s.metrics.RecordOperation("Add", time.Since(start), err)
	}()

	if sessionID == "" {
		return persist.NewInvalidArgumentError("Add requires a non-empty session id")
	}

	m := persist.Mapping{RID: rid, OCFLID: ocflID, RootRID: rootRID, IsAGRoot: rid == rootRID}
	data, err := json.Marshal(m)
	if err != nil {
		return persist.NewInvalidArgumentError("failed to encode FOI mapping: " + err.Error())
	}

	txn := s.txnFor(sessionID)
	if err := txn.Set(keyFor(rid), data); err != nil {
		return persist.NewIndexError(string(rid), "badger set failed", err)
	}
	return nil
}

// Remove implements index.Index.
func (s *Store) Remove(ctx context.Context, sessionID string, rid persist.RID) (err error) {
	_, span := telemetry.StartIndexSpan(ctx, telemetry.SpanIndexRemove, string(rid), telemetry.IndexBackend("badger"))
	defer span.End()

	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		s.metrics.RecordOperation("Remove", time.Since(start), err)
	}()

	if sessionID == "" {
		return persist.NewInvalidArgumentError("Remove requires a non-empty session id")
	}

	txn := s.txnFor(sessionID)
	if err := txn.Delete(keyFor(rid)); err != nil && err != badgerdb.ErrKeyNotFound {
		return persist.NewIndexError(string(rid), "badger delete failed", err)
	}
	return nil
}

// Commit implements index.Index.
func (s *Store) Commit(ctx context.Context, sessionID string) (err error) {
	_, span := telemetry.StartSessionSpan(ctx, telemetry.SpanIndexCommit, sessionID, telemetry.IndexBackend("badger"))
	defer span.End()

	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		s.metrics.RecordOperation("Commit", time.Since(start), err)
	}()

	txn, ok := s.takeTxn(sessionID)
	if !ok {
		return nil
	}
	if err := txn.Commit(); err != nil {
		return persist.NewIndexError("", "badger commit failed", err)
	}
	return nil
}

// Rollback implements index.Index.
func (s *Store) Rollback(ctx context.Context, sessionID string) (err error) {
	_, span := telemetry.StartSessionSpan(ctx, telemetry.SpanIndexRollback, sessionID, telemetry.IndexBackend("badger"))
	defer span.End()

	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		s.metrics.RecordOperation("Rollback", time.Since(start), err)
	}()

	txn, ok := s.takeTxn(sessionID)
	if !ok {
		return nil
	}
	txn.Discard()
	return nil
}

// Healthcheck implements index.Index.
func (s *Store) Healthcheck(_ context.Context) error {
	err := s.db.View(func(*badgerdb.Txn) error { return nil })
	if err != nil {
		return persist.NewIOError("", "badger healthcheck failed", err)
	}
	return nil
}

// Close implements index.Index.
func (s *Store) Close() error {
	s.mu.Lock()
	for _, txn := range s.txns {
		txn.Discard()
	}
	s.txns = make(map[string]*badgerdb.Txn)
	s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return persist.NewIOError("", "failed to close badger index", err)
	}
	return nil
}
