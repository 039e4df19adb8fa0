package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fcrepo/ocfl-persistence/internal/telemetry"
	"github.com/fcrepo/ocfl-persistence/pkg/persist"
)

// commitOutcome maps a terminal session State to the metrics label used
// for that outcome.
func commitOutcome(state State) string {
	switch state {
	case StateCommitted:
		return "committed"
	case StatePrepareFailed:
		return "prepare_failed"
	default:
		return "commit_failed"
	}
}

// Commit runs the two-phase commit: drain in-flight persists, snapshot the
// sub-session registry in deterministic OCFL-object-id order, prepare all,
// commit all (tracking a committed set for rollback), commit the index,
// then clean up. A read-only session's Commit is a no-op.
func (s *Session) Commit(ctx context.Context) (err error) {
	if s.readOnly {
		return nil
	}

	ctx, span := telemetry.StartSessionSpan(ctx, telemetry.SpanSessionCommit, s.id)
	defer span.End()

	start := time.Now()
	defer func() {
		s.mu.Lock()
		state := s.state
		s.mu.Unlock()
		span.SetAttributes(telemetry.State(state.String()))
		if err != nil {
			telemetry.RecordError(ctx, err)
		}
		s.metrics.RecordCommit(commitOutcome(state), time.Since(start))
	}()

	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.state = StateCommitFailed
			s.mu.Unlock()
			err = persist.NewCommitFailedError(s.id, fmt.Sprintf("panic during commit: %v", r), nil)
		}
	}()

	s.mu.Lock()
	if s.state != StateOpen {
		state := s.state
		s.mu.Unlock()
		return persist.NewInvalidStateError(fmt.Sprintf("cannot commit from state %s", state))
	}
	s.state = StateCommitStarted
	s.mu.Unlock()

	if err := s.inflight.awaitZero(ctx); err != nil {
		s.mu.Lock()
		s.state = StateCommitFailed
		s.mu.Unlock()
		return persist.NewCommitFailedError(s.id, "commit cancelled while draining in-flight persists", err)
	}

	ordered := s.ossSorted()

	for _, oss := range ordered {
		if err := oss.Prepare(ctx); err != nil {
			s.mu.Lock()
			s.state = StatePrepareFailed
			s.mu.Unlock()
			s.logger.Error("prepare failed", "ocfl_id", oss.ocflID, "error", err)
			return err
		}
	}

	for _, oss := range ordered {
		if err := oss.Commit(ctx); err != nil {
			s.mu.Lock()
			s.state = StateCommitFailed
			s.mu.Unlock()
			s.logger.Error("commit failed", "ocfl_id", oss.ocflID, "error", err)
			return err
		}
		s.mu.Lock()
		s.committed[oss.ocflID] = oss
		s.mu.Unlock()
		oss.Close()
	}

	s.mu.Lock()
	purged := make([]string, 0, len(s.purged))
	for id := range s.purged {
		purged = append(purged, id)
	}
	s.mu.Unlock()
	for _, id := range purged {
		if err := s.osa.Purge(ctx, id); err != nil {
			s.mu.Lock()
			s.state = StateCommitFailed
			s.mu.Unlock()
			return persist.NewCommitFailedError(id, "failed to purge OCFL object", err)
		}
	}

	if err := s.index.Commit(ctx, s.id); err != nil {
		// OSA has already committed; the index is now out of sync with
		// the store. Surface a partial-commit condition rather than
		// silently succeeding, per the fixed OSA-before-FOI commit order.
		s.mu.Lock()
		s.state = StateCommitFailed
		s.mu.Unlock()
		return persist.NewCommitFailedError(s.id, "partial commit: OSA committed but FOI commit failed", err)
	}

	s.mu.Lock()
	s.state = StateCommitted
	s.mu.Unlock()
	return nil
}

// Rollback undoes a session's pending or partially-committed work. Valid
// from OPEN, PREPARE_FAILED, or COMMIT_FAILED. Sub-sessions already
// committed in NEW_VERSION mode are reverted via the OSA; sub-sessions
// committed in MUTABLE_HEAD mode cannot be undone and are recorded as
// rollback failures. A read-only session's Rollback is a no-op.
func (s *Session) Rollback(ctx context.Context) (err error) {
	if s.readOnly {
		return nil
	}

	ctx, span := telemetry.StartSessionSpan(ctx, telemetry.SpanSessionRollback, s.id)
	defer span.End()

	var reason string
	attempted := false
	defer func() {
		if !attempted {
			return
		}
		s.mu.Lock()
		final := s.state
		s.mu.Unlock()
		outcome := "rolled_back"
		if final == StateRollbackFailed {
			outcome = "rollback_failed"
		}
		span.SetAttributes(telemetry.State(final.String()))
		if reason != "" {
			span.SetAttributes(telemetry.Reason(reason))
		}
		s.metrics.RecordRollback(outcome, reason)
	}()

	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.state = StateRollbackFailed
			s.mu.Unlock()
			reason = "panic"
			err = persist.NewRollbackFailedError(s.id, fmt.Sprintf("panic during rollback: %v", r), nil)
		}
	}()

	s.mu.Lock()
	state := s.state
	commitStarted := state != StateOpen
	if state != StateOpen && state != StatePrepareFailed && state != StateCommitFailed {
		s.mu.Unlock()
		return persist.NewInvalidStateError(fmt.Sprintf("cannot roll back from state %s", state))
	}
	s.mu.Unlock()
	attempted = true

	if !commitStarted {
		if ok := s.inflight.awaitZeroBounded(s.rollbackDrainTimeout); !ok {
			s.mu.Lock()
			s.state = StateRollbackFailed
			s.mu.Unlock()
			reason = "drain timeout"
			return persist.NewTimeoutError("rollback drain timed out waiting for in-flight persists")
		}
	}

	s.mu.Lock()
	s.state = StateRollingBack
	notCommitted := make([]*objectSubSession, 0, len(s.oss))
	for id, oss := range s.oss {
		if _, ok := s.committed[id]; !ok {
			notCommitted = append(notCommitted, oss)
		}
	}
	committed := make([]*objectSubSession, 0, len(s.committed))
	for _, oss := range s.committed {
		committed = append(committed, oss)
	}
	s.mu.Unlock()

	for _, oss := range notCommitted {
		oss.Close()
	}

	var failures []string
	for _, oss := range committed {
		if revertErr := oss.Revert(ctx); revertErr != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", oss.ocflID, revertErr))
		}
		oss.Close()
	}

	if err := s.index.Rollback(ctx, s.id); err != nil {
		failures = append(failures, fmt.Sprintf("FOI rollback: %v", err))
	}

	if len(failures) > 0 {
		reason = failures[0]
	}

	s.mu.Lock()
	if len(failures) > 0 {
		s.state = StateRollbackFailed
	} else {
		s.state = StateRolledBack
	}
	s.mu.Unlock()

	if len(failures) > 0 {
		return persist.NewRollbackFailedError(s.id, "rollback incomplete: "+strings.Join(failures, "; "), nil)
	}
	return nil
}

// Close releases every sub-session the session holds, regardless of
// terminal state. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	sessions := make([]*objectSubSession, 0, len(s.oss))
	for _, oss := range s.oss {
		sessions = append(sessions, oss)
	}
	s.mu.Unlock()

	for _, oss := range sessions {
		oss.Close()
	}
}
