// Package core contains the shared building blocks of FlowMesh: the error
// taxonomy used across flows and transports, the request-scoped action
// context injected by pluggable providers, and the registry that maps flow
// names and schema names to their definitions.
//
// The package is intentionally small and dependency-free so that higher
// layers (flow execution, streaming, HTTP serving) can all agree on the same
// vocabulary without import cycles.
package core
