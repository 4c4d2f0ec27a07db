package flowmesh

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hupe1980/flowmesh/core"
	"github.com/hupe1980/flowmesh/flow"
	"github.com/hupe1980/flowmesh/logging"
	"github.com/hupe1980/flowmesh/streaming"
)

// serveDurableStream starts a recorded run: it registers a fresh stream,
// exposes its id in the response header before the first frame, launches
// the executor on its own goroutine, and attaches the originating
// connection as the first subscriber.
//
// The executor outlives the connection. Once an execution is accepted it
// runs to its terminal event no matter what happens to the client, so a
// later reattachment can always retrieve the full result.
func serveDurableStream(ctx context.Context, w http.ResponseWriter, r *http.Request, o handlerOptions, a flow.Action, input any) error {
	id, s, err := o.streamManager.Create(ctx)
	if err != nil {
		return core.NewError(core.Internal, "create stream: %v", err)
	}

	startDurableRun(ctx, a, input, id, s, o.logger)

	w.Header().Set(StreamIDHeader, id)
	return streamToClient(w, r, s)
}

// startDurableRun drives the executor for one stream. The run context keeps
// the request's values (action context) but sheds its cancellation, so a
// client disconnect never aborts the execution.
func startDurableRun(ctx context.Context, a flow.Action, input any, id string, s streaming.Stream, logger logging.Logger) {
	runCtx := context.WithoutCancel(ctx)

	go func() {
		start := time.Now()

		out, err := a.Execute(runCtx, input, func(chunk json.RawMessage) error {
			return s.Append(streaming.NewChunkEvent(chunk))
		})

		var terminal streaming.Event
		if err != nil {
			terminal = streaming.NewErrorEvent(wireError(err))
		} else {
			terminal = streaming.NewResultEvent(out)
		}
		if appendErr := s.Append(terminal); appendErr != nil {
			logger.Error("append terminal event failed", "flow", a.Name(), "stream_id", id, "error", appendErr)
		}

		logger.Debug("durable run finished",
			"flow", a.Name(),
			"stream_id", id,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err != nil,
		)
	}()
}
