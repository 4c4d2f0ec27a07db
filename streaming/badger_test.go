package streaming

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBadgerManager(t *testing.T) *BadgerStreamManager {
	t.Helper()
	m, err := NewBadgerStreamManager(BadgerStreamManagerOptions{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestBadgerStreamManager_ReplayAfterRetire(t *testing.T) {
	m := newTestBadgerManager(t)
	ctx := context.Background()

	id, stream, err := m.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, stream.Append(chunk("h")))
	require.NoError(t, stream.Append(chunk("i")))
	require.NoError(t, stream.Append(NewResultEvent(json.RawMessage(`"hi-done"`))))

	// The terminal event retires the live buffer; this lookup reads from the
	// database.
	m.mu.RLock()
	_, stillLive := m.live[id]
	m.mu.RUnlock()
	require.False(t, stillLive, "finished stream must be retired from the live map")

	replayed, err := m.Lookup(ctx, id)
	require.NoError(t, err)
	require.True(t, replayed.Closed())

	history, sub := replayed.SnapshotAndSubscribe()
	events := collect(t, history, sub)

	require.Len(t, events, 3)
	assert.Equal(t, KindChunk, events[0].Kind)
	assert.Equal(t, json.RawMessage(`"h"`), events[0].Data)
	assert.Equal(t, json.RawMessage(`"i"`), events[1].Data)
	assert.Equal(t, KindResult, events[2].Kind)
	assert.Equal(t, json.RawMessage(`"hi-done"`), events[2].Data)
}

func TestBadgerStreamManager_ReplayErrorEvent(t *testing.T) {
	m := newTestBadgerManager(t)
	ctx := context.Background()

	id, stream, err := m.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, stream.Append(chunk("1")))
	require.NoError(t, stream.Append(NewErrorEvent(ErrorDetail{
		Status:  "INTERNAL_SERVER_ERROR",
		Message: "stream flow error",
		Details: "streaming error",
	})))

	replayed, err := m.Lookup(ctx, id)
	require.NoError(t, err)

	history, sub := replayed.SnapshotAndSubscribe()
	events := collect(t, history, sub)

	require.Len(t, events, 2)
	terminal := events[1]
	require.Equal(t, KindError, terminal.Kind)
	require.NotNil(t, terminal.Error)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", terminal.Error.Status)
	assert.Equal(t, "stream flow error", terminal.Error.Message)
	assert.Equal(t, "streaming error", terminal.Error.Details)
}

func TestBadgerStreamManager_LookupUnknown(t *testing.T) {
	m := newTestBadgerManager(t)
	_, err := m.Lookup(context.Background(), "no-such-stream")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerStreamManager_InterruptedStreamSynthesizesError(t *testing.T) {
	m := newTestBadgerManager(t)
	ctx := context.Background()

	id, stream, err := m.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, stream.Append(chunk("partial")))

	// Simulate a producer crash: the live buffer disappears without a
	// terminal event ever being written.
	m.retire(id)

	replayed, err := m.Lookup(ctx, id)
	require.NoError(t, err)
	require.True(t, replayed.Closed())

	history, sub := replayed.SnapshotAndSubscribe()
	events := collect(t, history, sub)

	require.Len(t, events, 2)
	assert.Equal(t, json.RawMessage(`"partial"`), events[0].Data)
	terminal := events[1]
	require.Equal(t, KindError, terminal.Kind)
	require.NotNil(t, terminal.Error)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", terminal.Error.Status)
	assert.Equal(t, "stream interrupted before completion", terminal.Error.Details)
}

func TestBadgerStreamManager_LiveStreamServedFromMemory(t *testing.T) {
	m := newTestBadgerManager(t)
	ctx := context.Background()

	id, stream, err := m.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, stream.Append(chunk("a")))

	got, err := m.Lookup(ctx, id)
	require.NoError(t, err)
	assert.Same(t, stream, got)
}

func TestBadgerStreamManager_RequiresDir(t *testing.T) {
	_, err := NewBadgerStreamManager(BadgerStreamManagerOptions{})
	assert.Error(t, err)
}

func TestEventCodec_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
	}{
		{"chunk", NewChunkEvent(json.RawMessage(`{"message":"h"}`))},
		{"result", NewResultEvent(json.RawMessage(`"hi-done"`))},
		{"error with details", NewErrorEvent(ErrorDetail{
			Status:  "INTERNAL_SERVER_ERROR",
			Message: "stream flow error",
			Details: "streaming error",
		})},
		{"error without details", NewErrorEvent(ErrorDetail{
			Status:  "NOT_FOUND",
			Message: "flow not found",
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := encodeEvent(tt.ev)
			require.NoError(t, err)
			got, err := decodeEvent(data)
			require.NoError(t, err)
			assert.Equal(t, tt.ev, got)
		})
	}
}
