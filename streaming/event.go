package streaming

import "encoding/json"

// Kind discriminates the event union.
type Kind int8

const (
	// KindChunk is an intermediate value emitted during the run.
	KindChunk Kind = iota + 1
	// KindResult is the terminal successful value. At most one per stream.
	KindResult
	// KindError is the terminal failure. Mutually exclusive with KindResult.
	KindError
)

// String returns the kind name for logs.
func (k Kind) String() string {
	switch k {
	case KindChunk:
		return "chunk"
	case KindResult:
		return "result"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// ErrorDetail is the structured payload of a terminal error event. Its JSON
// shape is exactly what clients see in the error frame.
type ErrorDetail struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Event is one entry in a stream: a chunk, a result, or an error. Payloads
// are opaque raw JSON; the buffer imposes no semantics beyond total order.
type Event struct {
	Kind  Kind
	Data  json.RawMessage
	Error *ErrorDetail
}

// NewChunkEvent wraps an intermediate payload.
func NewChunkEvent(data json.RawMessage) Event {
	return Event{Kind: KindChunk, Data: data}
}

// NewResultEvent wraps the terminal successful payload.
func NewResultEvent(data json.RawMessage) Event {
	return Event{Kind: KindResult, Data: data}
}

// NewErrorEvent wraps the terminal failure.
func NewErrorEvent(detail ErrorDetail) Event {
	return Event{Kind: KindError, Error: &detail}
}

// Terminal reports whether the event closes its stream.
func (e Event) Terminal() bool {
	return e.Kind == KindResult || e.Kind == KindError
}
