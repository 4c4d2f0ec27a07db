// Package flow implements the typed flow executor for FlowMesh.
//
// A Flow wraps a user function that accepts an input and an optional "emit
// chunk" callback and returns a final value or an error. The executor
// guarantees:
//
//   - The function runs exactly once per execution request.
//   - Chunks are forwarded in emission order, synchronously: the callback
//     does not return to user code before the chunk has been handed off.
//   - A callback delivery failure (cancelled consumer, abandoned stream) is
//     returned to user code so it can stop early.
//   - Panics in user code are recovered and converted to internal errors;
//     they never crash the host process.
//   - Every execution yields exactly one terminal outcome: a value or an error.
//
// The untyped Action view lets transports run any flow with raw JSON
// payloads without knowing its type parameters.
package flow
