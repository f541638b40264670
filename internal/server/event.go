package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/conneroisu/stasis/internal/logging"
)

// Event is the per-request record handed to a Sink once the request ends.
// FilePath is empty when the request never resolved to a file. Bytes counts
// the file body actually sent, injection included; error pages count zero.
type Event struct {
	ID       string
	Method   string
	Route    string
	Status   int
	FilePath string
	Bytes    int64
	Duration time.Duration
}

// Sink receives request observability signals.
type Sink interface {
	// RequestDone is called exactly once per request.
	RequestDone(ctx context.Context, ev Event)
	// RequestError is called for unexpected failures, before RequestDone.
	RequestError(ctx context.Context, ev Event, err error)
}

// LogSink forwards signals to a structured logger.
type LogSink struct {
	Logger logging.Logger
}

func (s LogSink) RequestDone(ctx context.Context, ev Event) {
	fields := []interface{}{
		"request_id", ev.ID,
		"method", ev.Method,
		"route", ev.Route,
		"status", ev.Status,
		"duration", ev.Duration,
	}
	if ev.FilePath != "" {
		fields = append(fields, "file", ev.FilePath)
	}
	if ev.Status == http.StatusOK {
		fields = append(fields, "bytes", ev.Bytes)
	}
	s.Logger.Info(ctx, "file:done", fields...)
}

func (s LogSink) RequestError(ctx context.Context, ev Event, err error) {
	s.Logger.Error(ctx, err, "error",
		"request_id", ev.ID,
		"route", ev.Route,
		"file", ev.FilePath,
	)
}

// requestContext is threaded through one request's handling and owns its
// Event. It is never shared between requests.
type requestContext struct {
	ctx   context.Context
	start time.Time
	event Event
	w     *statusWriter
}

func newRequestContext(w http.ResponseWriter, r *http.Request) *requestContext {
	return &requestContext{
		ctx:   r.Context(),
		start: time.Now(),
		event: Event{
			ID:     uuid.NewString(),
			Method: r.Method,
			Route:  r.URL.Path,
		},
		w: &statusWriter{ResponseWriter: w},
	}
}

// finish stamps the final status and duration onto the event.
func (rc *requestContext) finish() Event {
	rc.event.Status = rc.w.Status()
	if rc.event.Status == 0 {
		rc.event.Status = http.StatusOK
	}
	rc.event.Duration = time.Since(rc.start)
	return rc.event
}

// statusWriter records what was sent so the event reflects the wire.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.written += int64(n)
	if err != nil {
		return n, &writeError{err: err}
	}
	return n, nil
}

// Status returns the status sent, or 0 if nothing has been written.
func (w *statusWriter) Status() int {
	return w.status
}

func (w *statusWriter) wroteHeader() bool {
	return w.status != 0
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// writeError marks a failure writing to the client, as opposed to reading
// the file.
type writeError struct {
	err error
}

func (e *writeError) Error() string { return "write to client: " + e.err.Error() }

func (e *writeError) Unwrap() error { return e.err }
