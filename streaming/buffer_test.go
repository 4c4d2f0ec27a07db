package streaming

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunk(s string) Event {
	return NewChunkEvent(json.RawMessage(fmt.Sprintf("%q", s)))
}

func collect(t *testing.T, history []Event, sub *Subscription) []Event {
	t.Helper()
	events := history
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out waiting for subscription to close")
		}
	}
}

func TestBuffer_AppendAfterTerminalFails(t *testing.T) {
	buf := NewBuffer()
	require.NoError(t, buf.Append(chunk("a")))
	require.NoError(t, buf.Append(NewResultEvent(json.RawMessage(`"done"`))))

	assert.True(t, buf.Closed())
	assert.ErrorIs(t, buf.Append(chunk("late")), ErrClosed)
	assert.ErrorIs(t, buf.Append(NewResultEvent(json.RawMessage(`"again"`))), ErrClosed)
	assert.Equal(t, 2, buf.Len())
}

func TestBuffer_ErrorEventIsTerminal(t *testing.T) {
	buf := NewBuffer()
	ev := NewErrorEvent(ErrorDetail{Status: "INTERNAL_SERVER_ERROR", Message: "stream flow error"})
	require.NoError(t, buf.Append(ev))

	assert.True(t, buf.Closed())
	_, ok := buf.ClosedAt()
	assert.True(t, ok)
}

func TestBuffer_SubscribeToClosedBufferReplaysHistory(t *testing.T) {
	buf := NewBuffer()
	require.NoError(t, buf.Append(chunk("a")))
	require.NoError(t, buf.Append(chunk("b")))
	require.NoError(t, buf.Append(NewResultEvent(json.RawMessage(`"out"`))))

	history, sub := buf.SnapshotAndSubscribe()
	events := collect(t, history, sub)

	require.Len(t, events, 3)
	assert.Equal(t, json.RawMessage(`"a"`), events[0].Data)
	assert.Equal(t, json.RawMessage(`"b"`), events[1].Data)
	assert.True(t, events[2].Terminal())
}

func TestBuffer_LiveTailAfterSnapshot(t *testing.T) {
	buf := NewBuffer()
	require.NoError(t, buf.Append(chunk("a")))

	history, sub := buf.SnapshotAndSubscribe()
	require.Len(t, history, 1)

	require.NoError(t, buf.Append(chunk("b")))
	require.NoError(t, buf.Append(NewResultEvent(json.RawMessage(`"out"`))))

	events := collect(t, history, sub)
	require.Len(t, events, 3)
	assert.Equal(t, json.RawMessage(`"a"`), events[0].Data)
	assert.Equal(t, json.RawMessage(`"b"`), events[1].Data)
	assert.Equal(t, KindResult, events[2].Kind)
}

// Subscribers that attach at arbitrary points while the producer is writing
// must each observe the complete sequence exactly once, in order.
func TestBuffer_ConcurrentSubscribersSeeFullSequence(t *testing.T) {
	const numChunks = 200
	const numSubscribers = 8

	buf := NewBuffer()
	results := make([][]Event, numSubscribers)

	var wg sync.WaitGroup
	for i := range numSubscribers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			time.Sleep(time.Duration(i) * time.Millisecond)
			history, sub := buf.SnapshotAndSubscribe()
			results[i] = collect(t, history, sub)
		}()
	}

	for i := range numChunks {
		require.NoError(t, buf.Append(chunk(fmt.Sprintf("c%d", i))))
		if i%50 == 0 {
			time.Sleep(time.Millisecond)
		}
	}
	require.NoError(t, buf.Append(NewResultEvent(json.RawMessage(`"final"`))))
	wg.Wait()

	for i, events := range results {
		require.Len(t, events, numChunks+1, "subscriber %d", i)
		for j := range numChunks {
			assert.Equal(t, json.RawMessage(fmt.Sprintf("%q", fmt.Sprintf("c%d", j))), events[j].Data, "subscriber %d event %d", i, j)
		}
		assert.True(t, events[numChunks].Terminal(), "subscriber %d", i)
	}
}

func TestSubscription_CancelStopsDelivery(t *testing.T) {
	buf := NewBuffer()
	_, sub := buf.SnapshotAndSubscribe()

	sub.Cancel()
	sub.Cancel() // idempotent

	require.NoError(t, buf.Append(chunk("a")))

	// The channel closes without delivering anything further.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-sub.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription channel did not close after Cancel")
		}
	}
}

func TestSubscription_CancelDoesNotAffectProducerOrOthers(t *testing.T) {
	buf := NewBuffer()
	_, cancelled := buf.SnapshotAndSubscribe()
	history, kept := buf.SnapshotAndSubscribe()

	cancelled.Cancel()

	require.NoError(t, buf.Append(chunk("a")))
	require.NoError(t, buf.Append(NewResultEvent(json.RawMessage(`"out"`))))

	events := collect(t, history, kept)
	require.Len(t, events, 2)
	assert.Equal(t, json.RawMessage(`"a"`), events[0].Data)
}
