package crawler

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Fetcher retrieves the security.txt body for a single domain.
type Fetcher interface {
	Fetch(ctx context.Context, domain string) (FetchResult, error)
}

// BlobStore writes a domain's raw bytes and returns a URI for the stored object.
type BlobStore interface {
	PutObject(ctx context.Context, name string, data []byte) (string, error)
}

// Recorder is the fan-in point every finished work item reports to.
type Recorder interface {
	Record(succeeded bool)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewRunID() (uuid.UUID, error)
}

// Hasher computes a content digest of a stored body.
type Hasher interface {
	Hash(data []byte) (string, error)
}
