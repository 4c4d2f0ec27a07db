package flow

import (
	"context"
	"encoding/json"

	"github.com/hupe1980/flowmesh/core"
)

// Emitter delivers one marshaled chunk to the transport. A nil Emitter
// means the execution is non-streaming.
type Emitter func(chunk json.RawMessage) error

// Action is the untyped view of a flow used by transports. DecodeInput is
// split from Execute so malformed input can be rejected before any
// execution side effects (goroutines, stream allocation) happen.
type Action interface {
	// Name returns the flow's registered name.
	Name() string

	// DecodeInput parses the raw JSON input into the flow's input type.
	// Failures are core.InvalidArgument errors.
	DecodeInput(raw json.RawMessage) (any, error)

	// Execute runs the flow once with an input previously produced by
	// DecodeInput. Chunks are forwarded to emit in emission order before
	// the user callback returns. The result is the marshaled final value.
	Execute(ctx context.Context, input any, emit Emitter) (json.RawMessage, error)
}

var _ Action = (*Flow[string, string, string])(nil)

// DecodeInput implements Action.
func (f *Flow[In, Out, S]) DecodeInput(raw json.RawMessage) (any, error) {
	var in In
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, core.NewError(core.InvalidArgument, "invalid input for flow %s: %v", f.name, err)
		}
	}
	return in, nil
}

// Execute implements Action.
func (f *Flow[In, Out, S]) Execute(ctx context.Context, input any, emit Emitter) (json.RawMessage, error) {
	var in In
	if input != nil {
		typed, ok := input.(In)
		if !ok {
			return nil, core.NewError(core.InvalidArgument, "wrong input type for flow %s", f.name)
		}
		in = typed
	}

	var cb StreamCallback[S]
	if emit != nil {
		cb = func(ctx context.Context, chunk S) error {
			data, err := json.Marshal(chunk)
			if err != nil {
				return core.NewError(core.Internal, "marshal chunk of flow %s: %v", f.name, err)
			}
			return emit(data)
		}
	}

	out, err := f.run(ctx, in, cb)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, core.NewError(core.Internal, "marshal result of flow %s: %v", f.name, err)
	}
	return data, nil
}
