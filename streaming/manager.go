package streaming

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Manager.Lookup for ids that were never created,
// have expired, or were evicted. It is a normal outcome, not a fault: after
// eviction a stream behaves exactly as if it never existed.
var ErrNotFound = errors.New("streaming: stream not found")

// Stream is the handle a producer and its readers share. Exactly one
// producer appends; readers only snapshot and subscribe.
type Stream interface {
	// Append records an event. ErrClosed once the stream has a terminal event.
	Append(ev Event) error
	// SnapshotAndSubscribe atomically returns history plus a live tail.
	SnapshotAndSubscribe() ([]Event, *Subscription)
	// Closed reports whether a terminal event has been appended.
	Closed() bool
}

// Manager owns the stream id namespace: creation, lookup and disposal.
// Implementations must be safe for concurrent callers and must never hand
// out the same id twice. Retention policy (TTL, capacity, external storage)
// is an implementation concern hidden behind this interface.
type Manager interface {
	// Create allocates a fresh id with an empty stream and registers it.
	Create(ctx context.Context) (id string, s Stream, err error)
	// Lookup resolves an id. ErrNotFound for unknown or evicted streams.
	Lookup(ctx context.Context, id string) (Stream, error)
	// Close releases all resources. Pending subscriptions are not awaited.
	Close() error
}
