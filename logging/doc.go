// Package logging provides a minimal logging interface and adapters for FlowMesh.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the server, flow executor and stream managers use for
// observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - FlowMeshLogger with contextual helpers (component, flow, stream id)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	sm := streaming.NewInMemoryStreamManager(func(o *streaming.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor
// lock-in while supporting structured logging where available.
package logging
