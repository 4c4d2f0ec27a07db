// Package flowmesh provides a high-level façade for defining generative-AI
// flows and serving them over HTTP with durable, replayable streaming. Most
// applications interact with this package by:
//  1. Creating a FlowMesh via New() (optionally overriding the logger)
//  2. Defining flows (DefineFlow, DefineStreamingFlow) and schemas
//  3. Mounting flows on an HTTP mux via Handler / HandlerFunc
//
// The façade delegates execution to the flow package and stream bookkeeping
// to the streaming package while keeping setup ergonomics concise. All
// defaults are safe for local development and testing; production
// deployments typically supply a durable stream manager and a structured
// logger.
package flowmesh

import (
	"context"

	"github.com/hupe1980/flowmesh/core"
	"github.com/hupe1980/flowmesh/flow"
	"github.com/hupe1980/flowmesh/logging"
)

// Options configures the FlowMesh instance.
type Options struct {
	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// FlowMesh is the high-level façade aggregating the flow registry and
// shared services.
type FlowMesh struct {
	reg    *core.Registry
	logger logging.Logger
}

// New creates a new FlowMesh instance with optional overrides.
func New(optFns ...func(o *Options)) *FlowMesh {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &FlowMesh{reg: core.NewRegistry(), logger: opts.Logger}
}

// Logger returns the configured logger.
func (m *FlowMesh) Logger() logging.Logger { return m.logger }

// Registry returns the underlying flow/schema registry.
func (m *FlowMesh) Registry() *core.Registry { return m.reg }

// DefineFlow registers a non-streaming flow under name. It panics if the
// name is already taken; flow definition happens at startup where a
// duplicate is a programming error.
func DefineFlow[In, Out any](m *FlowMesh, name string, fn flow.Func[In, Out]) *flow.Flow[In, Out, struct{}] {
	f := flow.New(name, func(ctx context.Context, input In, _ flow.StreamCallback[struct{}]) (Out, error) {
		return fn(ctx, input)
	}, m.logger)
	register(m, name, f)
	return f
}

// DefineStreamingFlow registers a streaming flow under name. The callback
// passed to fn is nil when the flow is executed non-streaming.
func DefineStreamingFlow[In, Out, S any](m *FlowMesh, name string, fn flow.StreamingFunc[In, Out, S]) *flow.Flow[In, Out, S] {
	f := flow.New(name, fn, m.logger)
	register(m, name, f)
	return f
}

// LookupFlow returns the untyped action registered under name, or nil.
func LookupFlow(m *FlowMesh, name string) flow.Action {
	if a, ok := m.reg.LookupFlow(name).(flow.Action); ok {
		return a
	}
	return nil
}

func register(m *FlowMesh, name string, a flow.Action) {
	if err := m.reg.RegisterFlow(name, a); err != nil {
		panic("flowmesh: " + err.Error())
	}
	m.logger.Debug("flow defined", "flow", name)
}
