package ocfl

import (
	"context"
	"io"
)

// BlobBackend stores and retrieves the binary content bytes addressed by
// an OCFL content digest. FSStore keeps local content under its own root
// without going through this interface; pkg/ocfl/s3 provides the
// implementation FSStore uses for offloading large binary payloads,
// selected per-write by size against a configured threshold.
type BlobBackend interface {
	// Put stores size bytes read from r under digest and returns a
	// locator the backend can later resolve with Get. For S3 the locator
	// is the object key.
	Put(ctx context.Context, digest string, r io.Reader, size int64) (locator string, err error)

	// Get opens the content previously stored at locator.
	Get(ctx context.Context, locator string) (io.ReadCloser, error)

	// Delete removes the content at locator. Idempotent.
	Delete(ctx context.Context, locator string) error
}
