// Package testutil provides small helpers shared by FlowMesh tests: SSE
// body parsing and fluent builders for stream events.
package testutil
