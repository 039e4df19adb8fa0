// Package index implements the Fedora↔OCFL Index (FOI): the persistent,
// bidirectional map from a logical resource id to the OCFL object that
// physically stores it and the RID that roots that object.
//
// Import graph: index <- session
package index

import (
	"context"

	"github.com/fcrepo/ocfl-persistence/pkg/persist"
)

// Index resolves resource identifiers to OCFL objects and participates in
// the storage session's two-phase commit. Writes made through Add/Remove
// are staged under a session id and only become visible to Get (for other
// sessions) once Commit is called for that session id.
//
// Implementations must be safe for concurrent use by multiple goroutines
// across multiple sessions; staged deltas belonging to different session
// ids are independent of one another.
type Index interface {
	// Get resolves rid to its Mapping, reading the committed index plus
	// the named session's own pending delta (so a session observes its
	// own uncommitted writes). sessionID may be empty for a read-only
	// lookup against only the committed index. Returns a *persist.Error
	// with persist.ErrNotFound if no mapping exists.
	Get(ctx context.Context, sessionID string, rid persist.RID) (persist.Mapping, error)

	// Add stages rid -> (ocflID, rootRID) under sessionID. Visible to
	// Get calls made with the same sessionID immediately; visible
	// process-wide only after Commit(sessionID).
	Add(ctx context.Context, sessionID string, rid persist.RID, ocflID string, rootRID persist.RID) error

	// Remove stages removal of rid's mapping under sessionID.
	Remove(ctx context.Context, sessionID string, rid persist.RID) error

	// Commit applies sessionID's staged delta atomically to the
	// committed index and discards the staged delta. A session with no
	// staged delta commits as a no-op.
	Commit(ctx context.Context, sessionID string) error

	// Rollback discards sessionID's staged delta without applying it.
	Rollback(ctx context.Context, sessionID string) error

	// Healthcheck verifies the backend is reachable and operational.
	Healthcheck(ctx context.Context) error

	// Close releases any resources held by the backend.
	Close() error
}
