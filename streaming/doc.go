// Package streaming implements durable, replayable chunk streams for flow
// executions.
//
// A Buffer is an append-only, totally ordered sequence of events produced by
// exactly one writer (the flow run) and consumed by any number of readers.
// Readers attach through SnapshotAndSubscribe, which atomically returns the
// full history so far plus a live tail, so a reader never misses or
// duplicates an event regardless of when it attaches. A terminal event
// (result or error) closes the buffer; closed buffers are immutable.
//
// A Manager owns the id -> stream mapping. InMemoryStreamManager keeps
// everything in process memory with TTL-based eviction of finished streams;
// BadgerStreamManager additionally persists every event to BadgerDB so a
// finished stream can be replayed across process restarts.
package streaming
