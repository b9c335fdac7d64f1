package crawl

import (
	"context"
	"errors"
	"time"
)

// ErrEndOfPosts is returned by PostCursor.Next when the listing is
// exhausted.
var ErrEndOfPosts = errors.New("no more posts")

// ErrResultNotFound is returned by ResultStore.Get for unknown task ids.
var ErrResultNotFound = errors.New("work result not found")

// PlatformClient retrieves author data from one social platform. It owns
// retrieval and pagination only; filtering and limiting belong to the
// worker. Failures carry an Error kind mapped from the upstream signal.
type PlatformClient interface {
	// Name returns the platform path segment used in storage keys.
	Name() string
	FetchProfile(ctx context.Context, target Target) (AuthorRecord, error)
	FetchPosts(ctx context.Context, target Target) (PostCursor, error)
}

// PostCursor walks a potentially paginated post listing lazily.
type PostCursor interface {
	Next(ctx context.Context) (RawPost, error)
}

// ObjectStore persists crawl output under relative POSIX-style keys.
// Backends create intermediate directories transparently and overwrite on
// repeated writes to the same key; overwriting is the idempotency
// mechanism, not an error.
type ObjectStore interface {
	// WriteJSON serializes v and stores it under key, returning the
	// backend-specific location.
	WriteJSON(ctx context.Context, v any, key string) (string, error)
	// WriteFile stores the file at srcPath under key.
	WriteFile(ctx context.Context, srcPath, key string) (string, error)
	// List returns the keys under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Queue provides enqueue/dequeue semantics for crawl units with
// at-least-once delivery.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// ResultStore records terminal work results, keyed by task id.
type ResultStore interface {
	Put(ctx context.Context, res WorkResult) error
	Get(ctx context.Context, taskID string) (WorkResult, error)
}

// Clock returns the current time (substitutable for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces task handles.
type IDGenerator interface {
	NewID() (string, error)
}
