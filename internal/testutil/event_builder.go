package testutil

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/flowmesh/streaming"
)

// ChunkEvent builds a chunk event from any JSON-marshalable value.
// Example:
//
//	ev := testutil.ChunkEvent("h")
//
// It panics on marshal failure; test fixtures must be marshalable.
func ChunkEvent(v any) streaming.Event {
	return streaming.NewChunkEvent(mustJSON(v))
}

// ResultEvent builds a terminal result event.
func ResultEvent(v any) streaming.Event {
	return streaming.NewResultEvent(mustJSON(v))
}

// ErrorEvent builds a terminal error event with the given status and detail.
func ErrorEvent(status, details string) streaming.Event {
	return streaming.NewErrorEvent(streaming.ErrorDetail{
		Status:  status,
		Message: "stream flow error",
		Details: details,
	})
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("testutil: marshal fixture: %v", err))
	}
	return data
}
