package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fcrepo/ocfl-persistence/pkg/index"
	"github.com/fcrepo/ocfl-persistence/pkg/metrics"
	"github.com/fcrepo/ocfl-persistence/pkg/ocfl"
)

// entry pairs a live Session with the last time it was touched, so the
// reaper can identify sessions abandoned past orphanTimeout.
type entry struct {
	session    *Session
	lastTouch  time.Time
}

// Manager is the Session Manager: a process-wide registry of live
// Sessions keyed by transaction id, enforcing a single live session per
// id and reaping sessions left OPEN past a configured timeout. The reaper
// runs on a ticker goroutine, grounded on the teacher's
// pkg/cache/flusher background-sweep pattern.
type Manager struct {
	osa   ocfl.ObjectStore
	index index.Index

	defaultCfg Config
	logger     *slog.Logger

	orphanTimeout time.Duration
	sweepInterval time.Duration

	metrics metrics.SessionMetrics

	mu       sync.Mutex
	sessions map[string]*entry

	reaped uint64 // count of sessions reaped, mirrored into m.metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithOrphanTimeout overrides the default 1-hour orphan reap threshold.
func WithOrphanTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.orphanTimeout = d }
}

// WithSweepInterval overrides the default 1-minute reaper sweep interval.
func WithSweepInterval(d time.Duration) ManagerOption {
	return func(m *Manager) { m.sweepInterval = d }
}

// WithSessionMetrics attaches a SessionMetrics collector. Unset, the
// Manager and the Sessions it creates record no metrics.
func WithSessionMetrics(sessionMetrics metrics.SessionMetrics) ManagerOption {
	return func(m *Manager) { m.metrics = sessionMetrics }
}

// NewManager constructs a Manager. Call Start to begin the reaper
// goroutine; Stop to shut it down gracefully.
func NewManager(osa ocfl.ObjectStore, idx index.Index, defaultCfg Config, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		osa:           osa,
		index:         idx,
		defaultCfg:    defaultCfg,
		logger:        logger,
		orphanTimeout: time.Hour,
		sweepInterval: time.Minute,
		metrics:       metrics.NewNoopSessionMetrics(),
		sessions:      make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the existing live session for id, or creates one. id == ""
// returns a fresh transient read-only session (never registered, never
// reaped). Concurrent Get(id) calls for the same non-empty id return the
// same *Session instance.
func (m *Manager) Get(id string) *Session {
	if id == "" {
		return New(Config{ID: "", ReadOnly: true}, m.osa, m.index, m.logger, m.metrics)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.sessions[id]; ok {
		e.lastTouch = time.Now()
		return e.session
	}

	cfg := m.defaultCfg
	cfg.ID = id
	s := New(cfg, m.osa, m.index, m.logger, m.metrics)
	m.sessions[id] = &entry{session: s, lastTouch: time.Now()}
	m.metrics.SetActiveSessions(len(m.sessions))
	return s
}

// Release removes id from the registry once its session has reached a
// terminal state (COMMITTED, ROLLED_BACK, ROLLBACK_FAILED). The caller is
// expected to call this after Commit/Rollback returns.
func (m *Manager) Release(id string) {
	if id == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	m.metrics.SetActiveSessions(len(m.sessions))
}

// Start begins the reaper goroutine. Safe to call once; a second call
// without Stop leaks a goroutine, matching the teacher's flusher contract.
func (m *Manager) Start(ctx context.Context) {
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.logger.Info("session manager reaper started",
		"sweep_interval", m.sweepInterval, "orphan_timeout", m.orphanTimeout)

	m.wg.Add(1)
	go m.run()
}

// Stop cancels the reaper and blocks until it exits, performing one final
// sweep first.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *Manager) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			m.sweep()
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep rolls back and evicts every registered session whose state is
// OPEN, PREPARE_FAILED, or COMMIT_FAILED and whose last touch is older
// than orphanTimeout.
func (m *Manager) sweep() {
	cutoff := time.Now().Add(-m.orphanTimeout)

	m.mu.Lock()
	var stale []*entry
	for id, e := range m.sessions {
		if e.lastTouch.After(cutoff) {
			continue
		}
		switch e.session.State() {
		case StateOpen, StatePrepareFailed, StateCommitFailed:
			stale = append(stale, e)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, e := range stale {
		if err := e.session.Rollback(context.Background()); err != nil {
			m.logger.Warn("reaper rollback failed for orphaned session",
				"session_id", e.session.ID(), "error", err)
		}
		e.session.Close()
		m.mu.Lock()
		m.reaped++
		activeSessions := len(m.sessions)
		m.mu.Unlock()
		m.metrics.RecordReaped()
		m.metrics.SetActiveSessions(activeSessions)
		m.logger.Info("reaped orphaned session", "session_id", e.session.ID())
	}
}

// ReapedCount returns the number of sessions the reaper has evicted since
// Start, for the pkg/metrics Prometheus counter to sample.
func (m *Manager) ReapedCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reaped
}
