package core

import (
	"context"
	"encoding/json"
	"fmt"
)

// ActionContext is request-scoped metadata injected before flow execution.
// Typical contents are authentication claims or tenant identifiers; the
// streaming core treats values as opaque.
type ActionContext map[string]any

// RequestData is the transport-neutral view of an inbound request handed to
// context providers. Input holds the raw JSON payload before flow input
// decoding.
type RequestData struct {
	Method  string
	Headers map[string][]string
	Input   json.RawMessage
}

// ContextProvider derives action context entries from a request. Providers
// are pure with respect to the request: they must not start flow execution
// or write to the response.
type ContextProvider func(ctx context.Context, req RequestData) (ActionContext, error)

type actionContextKey struct{}

// WithActionContext returns a child context carrying the action context.
func WithActionContext(ctx context.Context, ac ActionContext) context.Context {
	return context.WithValue(ctx, actionContextKey{}, ac)
}

// FromContext returns the action context attached to ctx, or nil.
func FromContext(ctx context.Context) ActionContext {
	ac, _ := ctx.Value(actionContextKey{}).(ActionContext)
	return ac
}

// ResolveContext runs the providers in order and merges their results
// left-to-right (later providers win on key collisions). Any provider error
// aborts resolution; flow execution must not start in that case.
func ResolveContext(ctx context.Context, providers []ContextProvider, req RequestData) (ActionContext, error) {
	merged := ActionContext{}
	for _, provider := range providers {
		ac, err := provider(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("context provider failed: %w", err)
		}
		for k, v := range ac {
			merged[k] = v
		}
	}
	return merged, nil
}
