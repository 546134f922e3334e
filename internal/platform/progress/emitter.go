package progress

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// SSEEmitter writes events as Server-Sent Events frames, one "event:"/"data:"
// pair per event, flushing after each so the browser sees stages as they
// happen.
type SSEEmitter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEEmitter prepares the response for streaming and returns the emitter.
// Returns an error when the writer does not support flushing.
func NewSSEEmitter(w http.ResponseWriter) (*SSEEmitter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &SSEEmitter{w: w, flusher: flusher}, nil
}

// Emit writes one SSE frame. The SSE event name is the event type, so clients
// can attach listeners for "status", "error" and "done".
func (e *SSEEmitter) Emit(evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", evt.Type, data); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}

// BufferEmitter collects events in memory for clients that did not ask for a
// stream: the handler runs the pipeline, then replies once with the final
// event and the stage log.
type BufferEmitter struct {
	mu     sync.Mutex
	events []Event
}

// NewBufferEmitter returns an empty buffer.
func NewBufferEmitter() *BufferEmitter {
	return &BufferEmitter{}
}

// Emit appends the event to the buffer.
func (e *BufferEmitter) Emit(evt Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
	return nil
}

// Events returns a copy of everything emitted so far.
func (e *BufferEmitter) Events() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Event(nil), e.events...)
}

// Final returns the terminal event (done or error), or false when the
// pipeline has not finished.
func (e *BufferEmitter) Final() (Event, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.events) - 1; i >= 0; i-- {
		if e.events[i].Type == EventDone || e.events[i].Type == EventError {
			return e.events[i], true
		}
	}
	return Event{}, false
}
