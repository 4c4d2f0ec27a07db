package flowmesh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hupe1980/flowmesh/core"
	"github.com/hupe1980/flowmesh/flow"
	"github.com/hupe1980/flowmesh/logging"
	"github.com/hupe1980/flowmesh/streaming"
)

// StreamIDHeader carries the stream id: set on responses when a durable run
// starts, read from requests to reattach to an existing stream.
const StreamIDHeader = "X-Flowmesh-Stream-Id"

// HandlerOption configures Handler / HandlerFunc.
type HandlerOption func(o *handlerOptions)

type handlerOptions struct {
	providers     []core.ContextProvider
	streamManager streaming.Manager
	logger        logging.Logger
}

// WithContextProviders adds providers whose merged output is attached to the
// request context before flow execution. Providers run in order; later
// providers win on key collisions; any provider error aborts the request
// before execution starts.
func WithContextProviders(providers ...core.ContextProvider) HandlerOption {
	return func(o *handlerOptions) {
		o.providers = append(o.providers, providers...)
	}
}

// WithStreamManager enables durable streaming: runs are recorded in the
// manager, survive client disconnects, and can be replayed by presenting
// the stream id from the response header.
func WithStreamManager(sm streaming.Manager) HandlerOption {
	return func(o *handlerOptions) { o.streamManager = sm }
}

// WithHandlerLogger sets the logger used by the handler and durable runs.
func WithHandlerLogger(logger logging.Logger) HandlerOption {
	return func(o *handlerOptions) { o.logger = logger }
}

// requestBody is the JSON envelope of every request: {"data": <input>}.
type requestBody struct {
	Data json.RawMessage `json:"data"`
}

type chunkEnvelope struct {
	Message json.RawMessage `json:"message"`
}

type resultEnvelope struct {
	Result json.RawMessage `json:"result"`
}

type errorEnvelope struct {
	Error streaming.ErrorDetail `json:"error"`
}

// Handler returns an http.HandlerFunc serving the flow. Errors from
// non-streaming executions are written as structured error envelopes with
// the HTTP status mapped from the error category.
func Handler(a flow.Action, opts ...HandlerOption) http.HandlerFunc {
	hf := HandlerFunc(a, opts...)
	return func(w http.ResponseWriter, r *http.Request) {
		if err := hf(w, r); err != nil {
			writeErrorResponse(w, err)
		}
	}
}

// HandlerFunc is like Handler but returns errors to the caller instead of
// writing them, for integration with frameworks that have their own error
// rendering. Streaming executions never return flow errors: those are
// delivered in-band as error frames.
func HandlerFunc(a flow.Action, opts ...HandlerOption) func(http.ResponseWriter, *http.Request) error {
	o := handlerOptions{logger: logging.NoOpLogger{}}
	for _, opt := range opts {
		opt(&o)
	}

	return func(w http.ResponseWriter, r *http.Request) error {
		stream := wantsStream(r)

		// Reattachment: a request presenting a stream id only reads; it
		// never starts an execution and its input is ignored.
		if stream && o.streamManager != nil {
			if id := r.Header.Get(StreamIDHeader); id != "" {
				return replayStream(w, r, o, id)
			}
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			return core.NewError(core.InvalidArgument, "read request body: %v", err)
		}
		var req requestBody
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				return core.NewError(core.InvalidArgument, "invalid request body: %v", err)
			}
		}

		input, err := a.DecodeInput(req.Data)
		if err != nil {
			return err
		}

		reqData := core.RequestData{Method: r.Method, Headers: r.Header, Input: req.Data}
		actionCtx, err := core.ResolveContext(r.Context(), o.providers, reqData)
		if err != nil {
			return err
		}
		ctx := core.WithActionContext(r.Context(), actionCtx)

		if !stream {
			out, err := a.Execute(ctx, input, nil)
			if err != nil {
				o.logger.Debug("flow failed", "flow", a.Name(), "error", err)
				return err
			}
			w.Header().Set("Content-Type", "application/json")
			return json.NewEncoder(w).Encode(resultEnvelope{Result: out})
		}

		if o.streamManager != nil {
			return serveDurableStream(ctx, w, r, o, a, input)
		}
		return serveLiveStream(ctx, w, r, o, a, input)
	}
}

// wantsStream selects the streaming response mode: event-stream Accept
// header or an explicit stream=true query parameter.
func wantsStream(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		return true
	}
	return r.URL.Query().Get("stream") == "true"
}

// serveLiveStream runs the flow on the request goroutine, framing chunks as
// they are emitted. There is no buffer: a client disconnect propagates to
// user code as a callback error, aborting the run.
func serveLiveStream(ctx context.Context, w http.ResponseWriter, r *http.Request, o handlerOptions, a flow.Action, input any) error {
	setSSEHeaders(w)
	flusher, _ := w.(http.Flusher)

	emit := func(chunk json.RawMessage) error {
		if err := r.Context().Err(); err != nil {
			return err
		}
		return writeFrame(w, flusher, chunkEnvelope{Message: chunk})
	}

	out, err := a.Execute(ctx, input, emit)
	if err != nil {
		o.logger.Debug("streaming flow failed", "flow", a.Name(), "error", err)
		return writeFrame(w, flusher, errorEnvelope{Error: wireError(err)})
	}
	return writeFrame(w, flusher, resultEnvelope{Result: out})
}

// replayStream serves the buffered history (and live tail, if the run is
// still going) of an existing stream. An unknown or evicted id is a normal
// terminal state: 204, no body.
func replayStream(w http.ResponseWriter, r *http.Request, o handlerOptions, id string) error {
	s, err := o.streamManager.Lookup(r.Context(), id)
	if errors.Is(err, streaming.ErrNotFound) {
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
	if err != nil {
		return err
	}
	o.logger.Debug("stream reattached", "stream_id", id)
	return streamToClient(w, r, s)
}

// streamToClient frames history plus live tail until the terminal event has
// been written or the client goes away. A disconnect only detaches this
// reader; it never affects the producer.
func streamToClient(w http.ResponseWriter, r *http.Request, s streaming.Stream) error {
	setSSEHeaders(w)
	flusher, _ := w.(http.Flusher)

	history, sub := s.SnapshotAndSubscribe()
	defer sub.Cancel()

	for _, ev := range history {
		if err := writeEventFrame(w, flusher, ev); err != nil {
			return nil
		}
	}
	for {
		select {
		case <-r.Context().Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := writeEventFrame(w, flusher, ev); err != nil {
				return nil
			}
		}
	}
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// writeFrame writes one SSE frame (data line + blank line) and flushes so
// the client sees it immediately.
func writeFrame(w io.Writer, flusher http.Flusher, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	if flusher != nil {
		flusher.Flush()
	}
	return nil
}

func writeEventFrame(w io.Writer, flusher http.Flusher, ev streaming.Event) error {
	switch ev.Kind {
	case streaming.KindChunk:
		return writeFrame(w, flusher, chunkEnvelope{Message: ev.Data})
	case streaming.KindResult:
		return writeFrame(w, flusher, resultEnvelope{Result: ev.Data})
	case streaming.KindError:
		return writeFrame(w, flusher, errorEnvelope{Error: *ev.Error})
	default:
		return fmt.Errorf("unknown event kind %d", ev.Kind)
	}
}

// wireError converts an execution error into the frame body clients see.
// The message is a fixed marker; the category and the underlying message
// ride in status and details.
func wireError(err error) streaming.ErrorDetail {
	fe := core.ToError(err)
	return streaming.ErrorDetail{
		Status:  fe.Status.WireName(),
		Message: "stream flow error",
		Details: fe.Message,
	}
}

// writeErrorResponse renders a non-streaming error envelope with the HTTP
// status mapped from the error category.
func writeErrorResponse(w http.ResponseWriter, err error) {
	fe := core.ToError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(fe.HTTPStatus())
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"status":  fe.Status.WireName(),
			"message": fe.Message,
			"details": fe.Details,
		},
	})
}
