// Package session implements the transactional facade over the Object
// Store Adapter and Fedora-OCFL Index: the Object Sub-Session staging
// model, the Persister Dispatch table, the Storage Session two-phase
// commit/rollback state machine, and the Session Manager registry.
//
// Grounded on original_source's OCFLPersistentStorageSession.java for the
// state machine and two-phase commit sequencing, restructured per the
// static-dispatch and arrival-counter redesign decisions recorded in
// DESIGN.md; ambient style (locking, logging) from the teacher's
// pkg/metadata MetadataService.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fcrepo/ocfl-persistence/internal/telemetry"
	"github.com/fcrepo/ocfl-persistence/pkg/index"
	"github.com/fcrepo/ocfl-persistence/pkg/metrics"
	"github.com/fcrepo/ocfl-persistence/pkg/ocfl"
	"github.com/fcrepo/ocfl-persistence/pkg/persist"
)

// State is the Storage Session's lifecycle state, per the state machine
// in the transactional core design.
type State int

const (
	StateOpen State = iota + 1
	StateCommitStarted
	StatePrepareFailed
	StateCommitted
	StateCommitFailed
	StateRollingBack
	StateRolledBack
	StateRollbackFailed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateCommitStarted:
		return "COMMIT_STARTED"
	case StatePrepareFailed:
		return "PREPARE_FAILED"
	case StateCommitted:
		return "COMMITTED"
	case StateCommitFailed:
		return "COMMIT_FAILED"
	case StateRollingBack:
		return "ROLLING_BACK"
	case StateRolledBack:
		return "ROLLED_BACK"
	case StateRollbackFailed:
		return "ROLLBACK_FAILED"
	default:
		return "UNKNOWN"
	}
}

// Config governs a single Session's commit behavior.
type Config struct {
	ID                     string
	CommitModeDefault      persist.CommitMode
	RollbackDrainTimeout   time.Duration
	ReadOnly               bool
}

// Session is the Storage Session: the transactional facade a caller drives
// through Persist/Prepare-and-Commit/Rollback. A zero-id Session (ID == "")
// is the read-only fast path: Persist fails, Commit/Rollback are no-ops.
type Session struct {
	id       string
	readOnly bool
	osa      ocfl.ObjectStore
	index    index.Index
	dispatch map[persist.OperationKind]Persister

	commitModeDefault    persist.CommitMode
	rollbackDrainTimeout time.Duration

	inflight *arrivalCounter
	logger   *slog.Logger
	metrics  metrics.SessionMetrics

	mu       sync.Mutex
	state    State
	oss      map[string]*objectSubSession // ocfl object id -> sub-session
	purged   map[string]struct{}          // ocfl object ids requested for Purge this session
	committed map[string]*objectSubSession // sub-sessions that reached ossCommitted, for rollback
}

// New constructs a Session bound to osa and idx. cfg.ID == "" produces a
// read-only session. sessionMetrics may be nil, in which case metrics
// collection is a no-op.
func New(cfg Config, osa ocfl.ObjectStore, idx index.Index, logger *slog.Logger, sessionMetrics metrics.SessionMetrics) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if sessionMetrics == nil {
		sessionMetrics = metrics.NewNoopSessionMetrics()
	}
	drain := cfg.RollbackDrainTimeout
	if drain <= 0 {
		drain = 30 * time.Second
	}
	mode := cfg.CommitModeDefault
	if mode == 0 {
		mode = persist.NewVersion
	}

	return &Session{
		id:                   cfg.ID,
		readOnly:             cfg.ReadOnly || cfg.ID == "",
		osa:                  osa,
		index:                idx,
		dispatch:             buildDispatch(),
		commitModeDefault:    mode,
		rollbackDrainTimeout: drain,
		inflight:             newArrivalCounter(),
		logger:               logger.With("session_id", cfg.ID),
		metrics:              sessionMetrics,
		state:                StateOpen,
		oss:                  make(map[string]*objectSubSession),
		purged:               make(map[string]struct{}),
		committed:            make(map[string]*objectSubSession),
	}
}

// ID returns the session's transaction id, or "" for the read-only session.
func (s *Session) ID() string { return s.id }

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Persist routes op to the single persister registered for its kind. Fails
// immediately for a read-only session or a session not in StateOpen.
func (s *Session) Persist(ctx context.Context, op persist.Operation) error {
	if s.readOnly {
		return persist.NewInvalidStateError("session is read-only")
	}

	s.mu.Lock()
	if s.state != StateOpen {
		state := s.state
		s.mu.Unlock()
		return persist.NewInvalidStateError(fmt.Sprintf("session is %s, not OPEN", state))
	}
	s.mu.Unlock()

	done := s.inflight.register()
	defer done()

	// Re-check under lock: state may have flipped to COMMIT_STARTED
	// between the unlock above and register(); the in-flight counter
	// only protects Commit's drain, not this race, so re-validate.
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state != StateOpen {
		return persist.NewInvalidStateError(fmt.Sprintf("session is %s, not OPEN", state))
	}

	p, ok := s.dispatch[op.Kind()]
	if !ok {
		return persist.NewUnsupportedError("no persister registered for operation kind " + op.Kind().String())
	}

	ctx, span := telemetry.StartSessionSpan(ctx, telemetry.SpanPersist, s.id,
		telemetry.OperationKind(op.Kind().String()), telemetry.ResourceID(string(op.Resource())))
	defer span.End()

	start := time.Now()
	err := p.Stage(ctx, s, op)
	s.metrics.RecordPersist(op.Kind().String(), time.Since(start), err)
	if err != nil {
		telemetry.RecordError(ctx, err)
		s.logger.Error("persist failed", "kind", op.Kind().String(), "rid", string(op.Resource()), "error", err)
		return err
	}
	return nil
}

// GetHeaders reads a resource's header sidecar, optionally at a historical
// version.
func (s *Session) GetHeaders(ctx context.Context, rid persist.RID, version string) (persist.Header, error) {
	mapping, err := s.index.Get(ctx, s.id, rid)
	if err != nil {
		return persist.Header{}, err
	}
	subpath := resourceSubpath(mapping, rid)

	rc, err := s.readFromOSSOrOSA(ctx, mapping.OCFLID, headerSidecarPath(subpath), version)
	if err != nil {
		return persist.Header{}, err
	}
	defer rc.Close()

	return unmarshalHeader(rc)
}

// GetTriples reads a resource's RDF body.
func (s *Session) GetTriples(ctx context.Context, rid persist.RID, version string) ([]byte, error) {
	return s.getBody(ctx, rid, version)
}

// GetBinary reads a resource's binary body.
func (s *Session) GetBinary(ctx context.Context, rid persist.RID, version string) (io.ReadCloser, error) {
	mapping, err := s.index.Get(ctx, s.id, rid)
	if err != nil {
		return nil, err
	}
	subpath := resourceSubpath(mapping, rid)
	return s.readFromOSSOrOSA(ctx, mapping.OCFLID, subpath, version)
}

func (s *Session) getBody(ctx context.Context, rid persist.RID, version string) ([]byte, error) {
	mapping, err := s.index.Get(ctx, s.id, rid)
	if err != nil {
		return nil, err
	}
	subpath := resourceSubpath(mapping, rid)
	rc, err := s.readFromOSSOrOSA(ctx, mapping.OCFLID, subpath, version)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (s *Session) readFromOSSOrOSA(ctx context.Context, ocflID, subpath, version string) (io.ReadCloser, error) {
	s.mu.Lock()
	oss, ok := s.oss[ocflID]
	s.mu.Unlock()
	if ok && version == "" {
		return oss.Read(ctx, subpath, version)
	}
	return s.osa.Read(ctx, ocflID, subpath, version)
}

// ListVersions returns the OCFL version ids of the object backing rid.
func (s *Session) ListVersions(ctx context.Context, rid persist.RID) ([]string, error) {
	mapping, err := s.index.Get(ctx, s.id, rid)
	if err != nil {
		return nil, err
	}
	return s.osa.ListVersions(ctx, mapping.OCFLID)
}

// resourceSubpath derives the logical in-object path for rid: the fixed
// name "resource" for an atomic resource or AG root, or the suffix after
// the root for an AG child.
func resourceSubpath(mapping persist.Mapping, rid persist.RID) string {
	if mapping.RootRID == rid || mapping.RootRID == "" {
		return "resource"
	}
	root := string(mapping.RootRID)
	full := string(rid)
	if len(full) > len(root)+1 && full[:len(root)] == root {
		return full[len(root)+1:]
	}
	return full
}

// subSessionFor returns the session's existing sub-session for ocflID, or
// creates one using the session's default commit mode.
func (s *Session) subSessionFor(ocflID string) (*objectSubSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if oss, ok := s.oss[ocflID]; ok {
		return oss, nil
	}
	oss := newObjectSubSession(ocflID, s.commitModeDefault, s.osa)
	s.oss[ocflID] = oss
	return oss, nil
}

// resolveForCreate allocates or resolves the OCFL object id and root RID
// for a newly created resource. Archival-group children resolve the
// parent's OCFL id and root; everything else mints a fresh OCFL id equal
// to its own RID.
func (s *Session) resolveForCreate(ctx context.Context, rid, parent persist.RID, model persist.InteractionModel) (ocflID string, rootRID persist.RID, subpath string, err error) {
	if _, getErr := s.index.Get(ctx, s.id, rid); getErr == nil {
		return "", "", "", persist.NewAlreadyExistsError(string(rid), "resource already exists")
	}

	if parent == "" {
		return string(rid), rid, "resource", nil
	}

	parentMapping, getErr := s.index.Get(ctx, s.id, parent)
	if getErr != nil {
		return "", "", "", persist.NewInvalidArgumentError("parent archival group does not exist: " + string(parent))
	}
	if !parentMapping.IsAGRoot {
		return "", "", "", persist.NewInvalidArgumentError("parent is not an archival group root: " + string(parent))
	}

	subpath = resourceSubpath(persist.Mapping{RootRID: parentMapping.RootRID}, rid)
	return parentMapping.OCFLID, parentMapping.RootRID, subpath, nil
}

// resolveForUpdate resolves an existing resource's mapping, in-object
// subpath, sub-session, and current header.
func (s *Session) resolveForUpdate(ctx context.Context, rid persist.RID) (mapping persist.Mapping, subpath string, oss *objectSubSession, header persist.Header, err error) {
	mapping, err = s.index.Get(ctx, s.id, rid)
	if err != nil {
		return
	}
	subpath = resourceSubpath(mapping, rid)

	oss, err = s.subSessionFor(mapping.OCFLID)
	if err != nil {
		return
	}

	rc, readErr := oss.Read(ctx, headerSidecarPath(subpath), "")
	if readErr != nil {
		if rc, readErr = s.osa.Read(ctx, mapping.OCFLID, headerSidecarPath(subpath), ""); readErr != nil {
			err = readErr
			return
		}
	}
	defer rc.Close()
	header, err = unmarshalHeader(rc)
	return
}

// ossSorted returns the session's sub-sessions ordered by OCFL object id,
// the deterministic total order the two-phase commit visits them in.
func (s *Session) ossSorted() []*objectSubSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.oss))
	for id := range s.oss {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*objectSubSession, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.oss[id])
	}
	return out
}
