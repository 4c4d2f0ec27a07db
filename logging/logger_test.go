package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level LogLevel) (*FlowMeshLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	cfg.Output = &buf
	cfg.AddSource = false
	return NewLogger(cfg), &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var m map[string]any
		require.NoError(t, dec.Decode(&m))
		lines = append(lines, m)
	}
	return lines
}

func TestFlowMeshLogger_LevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(LogLevelWarn)

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("kept warn")
	logger.Error("kept error")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "kept warn", lines[0]["msg"])
	assert.Equal(t, "kept error", lines[1]["msg"])
}

func TestFlowMeshLogger_WithStreamContext(t *testing.T) {
	logger, buf := newBufferLogger(LogLevelInfo)

	logger.WithComponent("server").WithStream("chars", "stream-123").Info("frame written")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "server", lines[0]["component"])
	assert.Equal(t, "chars", lines[0]["flow"])
	assert.Equal(t, "stream-123", lines[0]["stream_id"])
}

func TestFlowMeshLogger_WithContextDoesNotMutateParent(t *testing.T) {
	logger, buf := newBufferLogger(LogLevelInfo)

	child := logger.WithContext("tenant", "acme")
	logger.Info("parent line")
	child.Info("child line")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], "tenant")
	assert.Equal(t, "acme", lines[1]["tenant"])
}

func TestFlowMeshLogger_LogFlowExecution(t *testing.T) {
	logger, buf := newBufferLogger(LogLevelInfo)

	logger.LogFlowExecution("chars", 5, 120*time.Millisecond, true, nil)
	logger.LogFlowExecution("chars", 1, time.Millisecond, false, errors.New("boom"))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "Flow execution completed", lines[0]["msg"])
	assert.Equal(t, float64(5), lines[0]["chunk_count"])
	assert.Equal(t, true, lines[0]["success"])
	assert.Equal(t, "Flow execution failed", lines[1]["msg"])
	assert.Equal(t, "boom", lines[1]["error"])
}

func TestFlowMeshLogger_LogStreamReplay(t *testing.T) {
	logger, buf := newBufferLogger(LogLevelInfo)

	logger.LogStreamReplay("stream-123", 7, 3*time.Millisecond)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "Stream replayed", lines[0]["msg"])
	assert.Equal(t, "stream-123", lines[0]["stream_id"])
	assert.Equal(t, float64(7), lines[0]["event_count"])
}

func TestFlowMeshLogger_ErrorWithStack(t *testing.T) {
	logger, buf := newBufferLogger(LogLevelInfo)

	logger.ErrorWithStack(errors.New("kaput"), "run failed")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "kaput", lines[0]["error"])
	assert.NotEmpty(t, lines[0]["stack_trace"])
}

func TestNoOpLogger(t *testing.T) {
	var l Logger = NoOpLogger{}
	// Must not panic; accepts any signature.
	l.Debug("d", "k", 1)
	l.Info("i")
	l.Warn("w")
	l.Error("e")
}

func TestStartTimer(t *testing.T) {
	logger, buf := newBufferLogger(LogLevelInfo)

	done := logger.StartTimer("replay")
	done()

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "replay", lines[0]["operation"])
}
