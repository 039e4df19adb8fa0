package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for persistence-core operations, following
// OpenTelemetry semantic conventions where applicable.
const (
	// ========================================================================
	// Session / transaction attributes
	// ========================================================================
	AttrSessionID     = "session.id"
	AttrOperationKind = "session.operation_kind" // Dispatched Persist operation kind
	AttrResourceID    = "fcrepo.resource_id"      // Fedora resource identifier (RID)
	AttrCommitMode    = "session.commit_mode"     // MUTABLE_HEAD or NEW_VERSION
	AttrState         = "session.state"
	AttrReason        = "session.reason" // Short machine-readable failure reason

	// ========================================================================
	// OCFL object store attributes
	// ========================================================================
	AttrOCFLObjectID = "ocfl.object_id"
	AttrOCFLVersion  = "ocfl.version"
	AttrDigest       = "ocfl.digest"
	AttrSubpath      = "ocfl.subpath"

	// ========================================================================
	// Backend identification
	// ========================================================================
	AttrIndexBackend = "foi.backend"  // memory, badger, postgres
	AttrStoreType    = "osa.backend"  // filesystem, s3

	// ========================================================================
	// Object storage offload (S3) attributes
	// ========================================================================
	AttrBucket     = "storage.bucket"
	AttrKey        = "storage.key"
	AttrRegion     = "storage.region"
	AttrAttempt    = "storage.attempt"
	AttrMaxRetries = "storage.max_retries"
)

// Span names for persistence-core operations.
const (
	// Root span for a dispatched Persist operation
	SpanPersist = "session.persist"

	// Session lifecycle spans
	SpanSessionPrepare  = "session.prepare"
	SpanSessionCommit   = "session.commit"
	SpanSessionRollback = "session.rollback"
	SpanSessionReap     = "session.reap"

	// FOI spans
	SpanIndexGet    = "index.get"
	SpanIndexAdd    = "index.add"
	SpanIndexRemove = "index.remove"
	SpanIndexCommit   = "index.commit"
	SpanIndexRollback = "index.rollback"

	// OSA spans
	SpanStorePrepare = "store.prepare"
	SpanStoreCommit  = "store.commit"
	SpanStoreRevert  = "store.revert"
	SpanStorePurge   = "store.purge"

	// S3 offload spans
	SpanOffloadPut = "offload.put"
	SpanOffloadGet = "offload.get"
)

// SessionID returns an attribute for a Storage Session / transaction id.
func SessionID(id string) attribute.KeyValue {
	return attribute.String(AttrSessionID, id)
}

// OperationKind returns an attribute for the dispatched Persist operation kind.
func OperationKind(kind string) attribute.KeyValue {
	return attribute.String(AttrOperationKind, kind)
}

// ResourceID returns an attribute for a Fedora resource identifier.
func ResourceID(rid string) attribute.KeyValue {
	return attribute.String(AttrResourceID, rid)
}

// CommitMode returns an attribute for a sub-session's commit mode.
func CommitMode(mode string) attribute.KeyValue {
	return attribute.String(AttrCommitMode, mode)
}

// State returns an attribute for a session's lifecycle state.
func State(state string) attribute.KeyValue {
	return attribute.String(AttrState, state)
}

// Reason returns an attribute for a short machine-readable failure reason.
func Reason(r string) attribute.KeyValue {
	return attribute.String(AttrReason, r)
}

// OCFLObjectID returns an attribute for an OCFL object identifier.
func OCFLObjectID(id string) attribute.KeyValue {
	return attribute.String(AttrOCFLObjectID, id)
}

// OCFLVersion returns an attribute for an OCFL version id.
func OCFLVersion(v string) attribute.KeyValue {
	return attribute.String(AttrOCFLVersion, v)
}

// Digest returns an attribute for a content digest.
func Digest(d string) attribute.KeyValue {
	return attribute.String(AttrDigest, d)
}

// Subpath returns an attribute for a logical in-object path.
func Subpath(p string) attribute.KeyValue {
	return attribute.String(AttrSubpath, p)
}

// IndexBackend returns an attribute for the FOI backend name.
func IndexBackend(backend string) attribute.KeyValue {
	return attribute.String(AttrIndexBackend, backend)
}

// StoreType returns an attribute for the OSA backend name.
func StoreType(t string) attribute.KeyValue {
	return attribute.String(AttrStoreType, t)
}

// Bucket returns an attribute for an S3 bucket name.
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StorageKey returns an attribute for an S3 object key.
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// Region returns an attribute for a cloud region.
func Region(region string) attribute.KeyValue {
	return attribute.String(AttrRegion, region)
}

// Attempt returns an attribute for a retry attempt number.
func Attempt(n int) attribute.KeyValue {
	return attribute.Int(AttrAttempt, n)
}

// MaxRetries returns an attribute for the maximum retry attempts.
func MaxRetries(n int) attribute.KeyValue {
	return attribute.Int(AttrMaxRetries, n)
}

// StartSessionSpan starts a span for a session-lifecycle operation
// (prepare, commit, rollback, reap), tagging it with the session id.
func StartSessionSpan(ctx context.Context, name, sessionID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{SessionID(sessionID)}
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, name, trace.WithAttributes(allAttrs...))
}

// StartIndexSpan starts a span for a Fedora↔OCFL Index operation.
func StartIndexSpan(ctx context.Context, name string, rid string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{ResourceID(rid)}
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, name, trace.WithAttributes(allAttrs...))
}

// StartStoreSpan starts a span for an Object Store Adapter operation.
func StartStoreSpan(ctx context.Context, name string, ocflObjectID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{OCFLObjectID(ocflObjectID)}
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, name, trace.WithAttributes(allAttrs...))
}
