package metrics

import "time"

// StoreMetrics provides observability for a Fedora<->OCFL Index (FOI)
// or Object Store Adapter (OSA) backend: per-operation latency and
// outcome, labeled by the backend implementation that created it
// ("memory", "badger", "postgres", "filesystem", "s3").
//
// This interface is optional - a nil-safe no-op implementation is used
// when metrics are disabled.
type StoreMetrics interface {
	// RecordOperation records one completed backend operation.
	//
	// Parameters:
	//   - operation: operation name (e.g. "Get", "Commit", "Prepare", "Revert")
	//   - duration: time taken
	//   - err: non-nil if the operation failed
	RecordOperation(operation string, duration time.Duration, err error)
}

// NewNoopStoreMetrics returns a StoreMetrics implementation whose
// methods are all no-ops.
func NewNoopStoreMetrics() StoreMetrics {
	return noopStoreMetrics{}
}

type noopStoreMetrics struct{}

func (noopStoreMetrics) RecordOperation(operation string, duration time.Duration, err error) {}
