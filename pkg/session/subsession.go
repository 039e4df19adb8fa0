package session

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/fcrepo/ocfl-persistence/pkg/ocfl"
	"github.com/fcrepo/ocfl-persistence/pkg/persist"
)

// ossState is the Object Sub-Session's own small lifecycle, nested inside
// the storage session's larger state machine.
type ossState int

const (
	ossOpen ossState = iota
	ossPrepared
	ossCommitted
	ossClosed
)

// objectSubSession accumulates every staged write/delete targeted at one
// OCFL object during a storage session, and drives that object's OSA
// Prepare/Commit/Close lifecycle. Last writer wins per subpath: a later
// StageWrite or StageDelete at the same subpath replaces the earlier one.
type objectSubSession struct {
	mu sync.Mutex

	ocflID string
	mode   persist.CommitMode
	store  ocfl.ObjectStore

	state     ossState
	pending   map[string][]byte // subpath -> staged bytes, nil means staged delete
	priorHead string            // head version before Prepare, recorded for Revert
}

func newObjectSubSession(ocflID string, mode persist.CommitMode, store ocfl.ObjectStore) *objectSubSession {
	return &objectSubSession{
		ocflID:  ocflID,
		mode:    mode,
		store:   store,
		pending: make(map[string][]byte),
	}
}

// StageWrite stages bytes at subpath, replacing any earlier staged op there.
func (o *objectSubSession) StageWrite(subpath string, data []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	o.pending[subpath] = cp
}

// StageDelete marks subpath for removal, discarding any staged write there.
func (o *objectSubSession) StageDelete(subpath string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending[subpath] = nil
}

// Read returns staged bytes for subpath if present; otherwise delegates to
// the OSA (version == "" reads the object's current durable head).
func (o *objectSubSession) Read(ctx context.Context, subpath, version string) (io.ReadCloser, error) {
	o.mu.Lock()
	data, staged := o.pending[subpath]
	o.mu.Unlock()

	if staged {
		if data == nil {
			return nil, persist.NewNotFoundError(subpath, "subpath staged for deletion")
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return o.store.Read(ctx, o.ocflID, subpath, version)
}

// Prepare flushes the pending set into the OSA's staging area and asks it
// to validate and materialize a prospective commit.
func (o *objectSubSession) Prepare(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != ossOpen {
		return persist.NewInvalidStateError("object sub-session is not open")
	}

	if versions, err := o.store.ListVersions(ctx, o.ocflID); err == nil && len(versions) > 0 {
		o.priorHead = versions[len(versions)-1]
	}

	for subpath, data := range o.pending {
		if data == nil {
			if err := o.store.Delete(ctx, o.ocflID, subpath); err != nil {
				return persist.NewPrepareFailedError(o.ocflID, "stage delete failed", err)
			}
			continue
		}
		if err := o.store.Write(ctx, o.ocflID, subpath, bytes.NewReader(data)); err != nil {
			return persist.NewPrepareFailedError(o.ocflID, "stage write failed", err)
		}
	}

	if err := o.store.Prepare(ctx, o.ocflID); err != nil {
		return persist.NewPrepareFailedError(o.ocflID, "OSA prepare failed", err)
	}

	o.state = ossPrepared
	return nil
}

// Commit promotes the prepared set via the OSA.
func (o *objectSubSession) Commit(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != ossPrepared {
		return persist.NewInvalidStateError("object sub-session is not prepared")
	}

	if err := o.store.Commit(ctx, o.ocflID, o.mode); err != nil {
		return persist.NewCommitFailedError(o.ocflID, "OSA commit failed", err)
	}

	o.state = ossCommitted
	return nil
}

// Revert attempts to undo a NEW_VERSION commit already applied to this
// object, restoring it to the version that was head before this
// sub-session's Prepare ran. Returns an error (never panics) if the mode is
// MUTABLE_HEAD or the OSA cannot revert.
func (o *objectSubSession) Revert(ctx context.Context) error {
	if o.mode == persist.MutableHead {
		return persist.NewRollbackFailedError(o.ocflID, "mutable head commit cannot be reverted", nil)
	}
	if err := o.store.Revert(ctx, o.ocflID, o.priorHead); err != nil {
		return persist.NewRollbackFailedError(o.ocflID, "adapter revert failed", err)
	}
	return nil
}

// Close releases the sub-session. Safe whether or not Commit ran; discards
// any pending work that was never prepared/committed.
func (o *objectSubSession) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = ossClosed
	o.pending = nil
}
