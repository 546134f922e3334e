package progress

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSSEEmitterWritesFrames(t *testing.T) {
	rec := httptest.NewRecorder()
	emitter, err := NewSSEEmitter(rec)
	if err != nil {
		t.Fatalf("NewSSEEmitter error: %v", err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream content type, got %q", ct)
	}

	events := []Event{
		{Type: EventStatus, JobID: "job-1", Stage: StageExtract, Timestamp: time.Now().UTC()},
		{Type: EventDone, JobID: "job-1", Stage: StageDone, Timestamp: time.Now().UTC()},
	}
	for _, evt := range events {
		if err := emitter.Emit(evt); err != nil {
			t.Fatalf("Emit error: %v", err)
		}
	}

	body := rec.Body.String()
	frames := strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n")
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d: %q", len(frames), body)
	}
	if !strings.HasPrefix(frames[0], "event: status\ndata: ") {
		t.Errorf("unexpected first frame: %q", frames[0])
	}
	if !strings.HasPrefix(frames[1], "event: done\ndata: ") {
		t.Errorf("unexpected second frame: %q", frames[1])
	}
	if !strings.Contains(frames[0], `"stage":"extract"`) {
		t.Errorf("first frame missing stage payload: %q", frames[0])
	}
}

func TestSSEEmitterRequiresFlusher(t *testing.T) {
	// A writer type that hides the recorder's Flush method.
	if _, err := NewSSEEmitter(nonFlusher{httptest.NewRecorder()}); err == nil {
		t.Error("expected error for a writer without flush support")
	}
}

type nonFlusher struct {
	rec *httptest.ResponseRecorder
}

func (n nonFlusher) Header() http.Header         { return n.rec.Header() }
func (n nonFlusher) Write(b []byte) (int, error) { return n.rec.Write(b) }
func (n nonFlusher) WriteHeader(code int)        { n.rec.WriteHeader(code) }

func TestBufferEmitterCollectsEvents(t *testing.T) {
	buf := NewBufferEmitter()

	for _, stage := range []string{StageUpload, StageExtract, StageOpenAI} {
		if err := buf.Emit(Event{Type: EventStatus, Stage: stage}); err != nil {
			t.Fatalf("Emit error: %v", err)
		}
	}

	events := buf.Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[1].Stage != StageExtract {
		t.Errorf("expected second event stage extract, got %s", events[1].Stage)
	}

	if _, ok := buf.Final(); ok {
		t.Error("Final should report false before a terminal event")
	}

	if err := buf.Emit(Event{Type: EventDone, Stage: StageDone}); err != nil {
		t.Fatalf("Emit error: %v", err)
	}
	final, ok := buf.Final()
	if !ok {
		t.Fatal("expected a terminal event")
	}
	if final.Type != EventDone {
		t.Errorf("expected final type %s, got %s", EventDone, final.Type)
	}
}

func TestBufferEmitterFinalFindsError(t *testing.T) {
	buf := NewBufferEmitter()
	_ = buf.Emit(Event{Type: EventStatus, Stage: StageUpload})
	_ = buf.Emit(Event{Type: EventError, Stage: StageError, Message: "boom"})

	final, ok := buf.Final()
	if !ok {
		t.Fatal("expected a terminal event")
	}
	if final.Type != EventError || final.Message != "boom" {
		t.Errorf("unexpected final event %+v", final)
	}
}
