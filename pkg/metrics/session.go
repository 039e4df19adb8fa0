package metrics

import "time"

// SessionMetrics provides observability for the Storage Session / Session
// Manager layer: persists dispatched by operation kind, commit and
// rollback outcomes, and the population of live sessions.
//
// This interface is optional - a nil-safe no-op implementation is used
// when metrics are disabled, so callers never need to check IsEnabled
// themselves.
type SessionMetrics interface {
	// RecordPersist records one dispatched Persist call.
	//
	// Parameters:
	//   - kind: the operation kind (e.g. "CreateRdfSource", "DeleteResource")
	//   - duration: time taken by the persister
	//   - err: non-nil if the persister returned an error
	RecordPersist(kind string, duration time.Duration, err error)

	// RecordCommit records the terminal outcome of a Commit call.
	//
	// Parameters:
	//   - outcome: "committed", "prepare_failed", or "commit_failed"
	//   - duration: total time spent in Commit
	RecordCommit(outcome string, duration time.Duration)

	// RecordRollback records the terminal outcome of a Rollback call.
	//
	// Parameters:
	//   - outcome: "rolled_back" or "rollback_failed"
	//   - reason: a short machine-readable reason, empty on success
	RecordRollback(outcome string, reason string)

	// SetActiveSessions updates the current count of live sessions held
	// by the Session Manager.
	SetActiveSessions(count int)

	// RecordReaped records that the Session Manager's reaper rolled back
	// and closed one orphaned session.
	RecordReaped()
}

// NewNoopSessionMetrics returns a SessionMetrics implementation whose
// methods are all no-ops, for use when metrics collection is disabled.
func NewNoopSessionMetrics() SessionMetrics {
	return noopSessionMetrics{}
}

type noopSessionMetrics struct{}

func (noopSessionMetrics) RecordPersist(kind string, duration time.Duration, err error) {}
func (noopSessionMetrics) RecordCommit(outcome string, duration time.Duration)           {}
func (noopSessionMetrics) RecordRollback(outcome string, reason string)                  {}
func (noopSessionMetrics) SetActiveSessions(count int)                                   {}
func (noopSessionMetrics) RecordReaped()                                                 {}
