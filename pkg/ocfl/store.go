// Package ocfl implements the Object Store Adapter (OSA): an abstract,
// content-addressed OCFL object store. A filesystem-rooted backend lays
// out the bit-exact OCFL directory structure on local disk; the optional
// pkg/ocfl/s3 backend offloads large binary content bytes above a
// configured size threshold.
//
// Grounded on the teacher's pkg/content ContentStore interface and its
// cache-then-backend layering, adapted from a flat content-id keyspace
// to OCFL's per-object, per-version, per-path address space.
package ocfl

import (
	"context"
	"io"

	"github.com/fcrepo/ocfl-persistence/pkg/persist"
)

// ObjectStore is the Object Store Adapter. An OCFL object is identified
// by its OCFL object id (distinct from a Fedora RID: many RIDs may map
// to one OCFL object via the Fedora↔OCFL Index). All paths are logical
// paths within the object's current version state.
//
// Implementations must serialize concurrent writers to the same object
// id (the filesystem backend does this with an flock per object
// directory); callers still own coarser-grained session semantics.
type ObjectStore interface {
	// Contains reports whether an OCFL object with this id exists.
	Contains(ctx context.Context, id string) (bool, error)

	// HasStagedChanges reports whether id has an open staging area with
	// pending writes/deletes that have not yet been committed or purged;
	// a prepared but uncommitted set still counts.
	HasStagedChanges(ctx context.Context, id string) (bool, error)

	// Read opens the content at subpath. version == "" reads the head
	// (the mutable head if present, else the most recent version).
	// Returns a *persist.Error with persist.ErrNotFound if id, subpath,
	// or version does not exist.
	Read(ctx context.Context, id, subpath, version string) (io.ReadCloser, error)

	// Write stages bytes from r at subpath within id's staging area.
	// Idempotent per (id, subpath): a later Write or Delete to the same
	// subpath replaces the earlier staged op.
	Write(ctx context.Context, id, subpath string, r io.Reader) error

	// Delete stages removal of subpath within id's staging area.
	Delete(ctx context.Context, id, subpath string) error

	// ListVersions returns the version ids (e.g. "v1", "v2") of id in
	// ascending order.
	ListVersions(ctx context.Context, id string) ([]string, error)

	// Prepare validates id's pending staged set (digests, required
	// sidecars, inventory integrity) and materializes the prospective
	// inventory and content into a temporary area, without making it
	// visible. Crash-safe: a crash between Prepare and Commit leaves the
	// durable layout untouched.
	Prepare(ctx context.Context, id string) error

	// Commit promotes id's prepared set. For persist.NewVersion the
	// filesystem backend moves the prepared content into the object's
	// content directory, writes the new version directory's inventory
	// copy in place (the version directory is not renamed into place),
	// and makes the version visible by atomically replacing the root
	// inventory; for persist.MutableHead it writes the prepared inventory
	// as the mutable head inventory.
	Commit(ctx context.Context, id string, mode persist.CommitMode) error

	// Revert undoes the most recent NEW_VERSION commit of id, restoring
	// the inventory HEAD pointer to toVersion and removing the version
	// directory written after it. Only valid when nothing has observed
	// the reverted version outside this process (single-process
	// concurrency model). Returns persist.ErrUnsupported if the backend
	// cannot revert (e.g. a replicated or read-only adapter).
	Revert(ctx context.Context, id, toVersion string) error

	// Purge removes the object (all versions) from the store entirely.
	Purge(ctx context.Context, id string) error

	// Healthcheck verifies the backend is reachable and operational.
	Healthcheck(ctx context.Context) error
}
