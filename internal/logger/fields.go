package logger

import (
	"log/slog"
)

// Standard field keys for structured logging, used consistently across
// the persistence core for log aggregation and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Session / Transaction
	// ========================================================================
	KeySessionID     = "session_id"     // Storage Session / transaction id
	KeyOperationKind = "operation_kind" // Persist operation kind (CreateRdfSource, etc.)
	KeyResourceID    = "resource_id"    // Fedora resource identifier (RID)
	KeyCommitMode    = "commit_mode"    // MUTABLE_HEAD or NEW_VERSION
	KeyState         = "state"          // Session lifecycle state

	// ========================================================================
	// OCFL Object Store
	// ========================================================================
	KeyOCFLObjectID = "ocfl_object_id" // OCFL object identifier
	KeyOCFLVersion  = "ocfl_version"   // OCFL version id (v1, v2, ...)
	KeyDigest       = "digest"         // Content digest (sha256 hex)
	KeySubpath      = "subpath"        // Logical in-object path

	// ========================================================================
	// FOI / Index Backend
	// ========================================================================
	KeyIndexBackend = "index_backend" // FOI backend: memory, badger, postgres
	KeyStoreType    = "store_type"    // OSA backend: filesystem, s3

	// ========================================================================
	// Object Storage Offload (S3)
	// ========================================================================
	KeyBucket     = "bucket"      // S3 bucket name
	KeyKey        = "key"         // S3 object key
	KeyRegion     = "region"      // Cloud region
	KeyAttempt    = "attempt"     // Retry attempt number
	KeyMaxRetries = "max_retries" // Maximum retry attempts

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrorCode  = "error_code"  // Structured error code
	KeyPath       = "path"        // Filesystem path (OSA root, staging dir)
	KeySize       = "size"        // Byte size
	KeyReason     = "reason"      // Short machine-readable failure reason
)

// TraceID returns a slog.Attr for OpenTelemetry trace ID.
func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

// SpanID returns a slog.Attr for OpenTelemetry span ID.
func SpanID(id string) slog.Attr { return slog.String(KeySpanID, id) }

// SessionID returns a slog.Attr for the Storage Session / transaction id.
func SessionID(id string) slog.Attr { return slog.String(KeySessionID, id) }

// OperationKind returns a slog.Attr for the dispatched Persist operation kind.
func OperationKind(kind string) slog.Attr { return slog.String(KeyOperationKind, kind) }

// ResourceID returns a slog.Attr for a Fedora resource identifier.
func ResourceID(rid string) slog.Attr { return slog.String(KeyResourceID, rid) }

// CommitMode returns a slog.Attr for the sub-session's commit mode.
func CommitMode(mode string) slog.Attr { return slog.String(KeyCommitMode, mode) }

// State returns a slog.Attr for a session's lifecycle state.
func State(state string) slog.Attr { return slog.String(KeyState, state) }

// OCFLObjectID returns a slog.Attr for an OCFL object identifier.
func OCFLObjectID(id string) slog.Attr { return slog.String(KeyOCFLObjectID, id) }

// OCFLVersion returns a slog.Attr for an OCFL version id.
func OCFLVersion(v string) slog.Attr { return slog.String(KeyOCFLVersion, v) }

// Digest returns a slog.Attr for a content digest.
func Digest(d string) slog.Attr { return slog.String(KeyDigest, d) }

// Subpath returns a slog.Attr for a logical in-object path.
func Subpath(p string) slog.Attr { return slog.String(KeySubpath, p) }

// IndexBackend returns a slog.Attr for the FOI backend name.
func IndexBackend(backend string) slog.Attr { return slog.String(KeyIndexBackend, backend) }

// StoreType returns a slog.Attr for the OSA backend name.
func StoreType(t string) slog.Attr { return slog.String(KeyStoreType, t) }

// Bucket returns a slog.Attr for an S3 bucket name.
func Bucket(name string) slog.Attr { return slog.String(KeyBucket, name) }

// Key returns a slog.Attr for an S3 object key.
func Key(k string) slog.Attr { return slog.String(KeyKey, k) }

// Region returns a slog.Attr for a cloud region.
func Region(r string) slog.Attr { return slog.String(KeyRegion, r) }

// Attempt returns a slog.Attr for a retry attempt number.
func Attempt(n int) slog.Attr { return slog.Int(KeyAttempt, n) }

// MaxRetries returns a slog.Attr for the maximum retry attempts.
func MaxRetries(n int) slog.Attr { return slog.Int(KeyMaxRetries, n) }

// DurationMs returns a slog.Attr for duration in milliseconds.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns a slog.Attr for an error, or a no-op attr if err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a structured error code.
func ErrorCode(code string) slog.Attr { return slog.String(KeyErrorCode, code) }

// Path returns a slog.Attr for a filesystem path.
func Path(p string) slog.Attr { return slog.String(KeyPath, p) }

// Size returns a slog.Attr for a byte size.
func Size(s int64) slog.Attr { return slog.Int64(KeySize, s) }

// Reason returns a slog.Attr for a short machine-readable failure reason.
func Reason(r string) slog.Attr { return slog.String(KeyReason, r) }
