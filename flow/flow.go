package flow

import (
	"context"
	"iter"
	"runtime/debug"

	"github.com/hupe1980/flowmesh/core"
	"github.com/hupe1980/flowmesh/logging"
)

// StreamCallback receives one intermediate value. A non-nil return tells
// user code that delivery failed (consumer gone, stream abandoned) and the
// run should stop early.
//
// It is an alias so flow bodies can be written with a plain function type
// for the callback parameter.
type StreamCallback[S any] = func(ctx context.Context, chunk S) error

// Func is a non-streaming flow body.
type Func[In, Out any] func(ctx context.Context, input In) (Out, error)

// StreamingFunc is a streaming flow body. cb is nil for non-streaming
// execution requests; bodies must tolerate that.
type StreamingFunc[In, Out, S any] func(ctx context.Context, input In, cb StreamCallback[S]) (Out, error)

// StreamingFlowValue is one element of the Stream iterator: either an
// intermediate chunk (Done false) or the final output (Done true).
type StreamingFlowValue[Out, S any] struct {
	Done   bool
	Output Out // valid if Done
	Stream S   // valid if !Done
}

// Flow is a named, typed unit of execution.
type Flow[In, Out, S any] struct {
	name   string
	fn     StreamingFunc[In, Out, S]
	logger logging.Logger
}

// New creates a flow. The logger may be nil.
func New[In, Out, S any](name string, fn StreamingFunc[In, Out, S], logger logging.Logger) *Flow[In, Out, S] {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Flow[In, Out, S]{name: name, fn: fn, logger: logger}
}

// Name returns the flow's registered name.
func (f *Flow[In, Out, S]) Name() string { return f.name }

// Run executes the flow without streaming; intermediate emissions are
// skipped and only the terminal outcome is produced.
func (f *Flow[In, Out, S]) Run(ctx context.Context, input In) (Out, error) {
	return f.run(ctx, input, nil)
}

// Stream executes the flow and yields every chunk in emission order followed
// by the final value. Stopping the iteration early cancels the run: the next
// callback invocation inside user code returns an error.
func (f *Flow[In, Out, S]) Stream(ctx context.Context, input In) iter.Seq2[*StreamingFlowValue[Out, S], error] {
	return func(yield func(*StreamingFlowValue[Out, S], error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		type item struct {
			val *StreamingFlowValue[Out, S]
			err error
		}
		ch := make(chan item)

		go func() {
			defer close(ch)
			out, err := f.run(ctx, input, func(ctx context.Context, chunk S) error {
				select {
				case ch <- item{val: &StreamingFlowValue[Out, S]{Stream: chunk}}:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})
			final := item{val: &StreamingFlowValue[Out, S]{Done: true, Output: out}}
			if err != nil {
				final = item{err: err}
			}
			select {
			case ch <- final:
			case <-ctx.Done():
			}
		}()

		for it := range ch {
			if !yield(it.val, it.err) {
				cancel()
				for range ch { // release the producer
				}
				return
			}
		}
	}
}

// run invokes the body exactly once with panic recovery. The recovered
// panic becomes a core Internal error so a faulting flow can never take the
// host process down.
func (f *Flow[In, Out, S]) run(ctx context.Context, input In, cb StreamCallback[S]) (out Out, err error) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("flow panicked", "flow", f.name, "recover", r, "stack", string(debug.Stack()))
			err = core.NewError(core.Internal, "flow %s panicked: %v", f.name, r)
		}
	}()
	return f.fn(ctx, input, cb)
}
