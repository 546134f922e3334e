// Package progress tracks the stages of an analysis job and pushes stage
// events to whoever is watching: an SSE stream, a buffered collector for the
// synchronous path, and websocket subscribers.
package progress

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Stages of an analysis job, in pipeline order.
const (
	StageUpload      = "upload"
	StageExtract     = "extract"
	StageOCR         = "ocr"
	StageOpenAI      = "openai"
	StagePostprocess = "postprocess"
	StageDBSave      = "db_save"
	StageDone        = "done"
	StageError       = "error"
)

// Event types pushed to listeners.
const (
	EventStatus      = "status"
	EventError       = "error"
	EventDone        = "done"
	EventViewerReady = "viewer_ready"
)

var stageOrder = map[string]int{
	StageUpload:      0,
	StageExtract:     1,
	StageOCR:         2,
	StageOpenAI:      3,
	StagePostprocess: 4,
	StageDBSave:      5,
	StageDone:        6,
}

// Event is one stage notification.
type Event struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic,omitempty"`
	JobID     string          `json:"job_id,omitempty"`
	Stage     string          `json:"stage,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Emitter receives the events of one job.
type Emitter interface {
	Emit(Event) error
}

// StageTiming records how long a stage ran.
type StageTiming struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration_ms"`
}

// MarshalJSON reports the duration in whole milliseconds.
func (s StageTiming) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Stage      string `json:"stage"`
		DurationMS int64  `json:"duration_ms"`
	}{s.Stage, s.Duration.Milliseconds()})
}

// Tracker enforces forward-only stage transitions for one job, records
// per-stage durations, and fans events out to the emitter and the hub topic
// "job:<id>". Safe for use from a single pipeline goroutine with concurrent
// readers.
type Tracker struct {
	jobID   string
	emitter Emitter
	hub     *Hub

	mu         sync.Mutex
	current    string
	stageStart time.Time
	timings    []StageTiming
	terminal   bool
}

// NewTracker creates a Tracker for one job. hub may be nil.
func NewTracker(jobID string, emitter Emitter, hub *Hub) *Tracker {
	return &Tracker{
		jobID:   jobID,
		emitter: emitter,
		hub:     hub,
	}
}

// Advance moves the job to the given stage and emits a status event.
// Transitions must move forward in pipeline order; anything else is an error
// and leaves the tracker unchanged. Stages may be skipped (ocr runs only for
// scanned documents).
func (t *Tracker) Advance(stage, message string) error {
	t.mu.Lock()

	if t.terminal {
		t.mu.Unlock()
		return fmt.Errorf("job %s already terminal", t.jobID)
	}

	order, ok := stageOrder[stage]
	if !ok || stage == StageDone {
		t.mu.Unlock()
		return fmt.Errorf("invalid stage %q", stage)
	}
	if t.current != "" && order <= stageOrder[t.current] {
		t.mu.Unlock()
		return fmt.Errorf("stage %q does not advance from %q", stage, t.current)
	}

	t.closeCurrentStage()
	t.current = stage
	t.stageStart = time.Now()
	t.mu.Unlock()

	t.publish(Event{
		Type:      EventStatus,
		JobID:     t.jobID,
		Stage:     stage,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

// Done marks the job finished, emitting a done event that carries the
// per-stage timings plus any result payload.
func (t *Tracker) Done(result any) error {
	t.mu.Lock()
	if t.terminal {
		t.mu.Unlock()
		return fmt.Errorf("job %s already terminal", t.jobID)
	}
	t.closeCurrentStage()
	t.current = StageDone
	t.terminal = true
	timings := append([]StageTiming(nil), t.timings...)
	t.mu.Unlock()

	payload := map[string]any{"timings": timings}
	if result != nil {
		payload["result"] = result
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal done payload: %w", err)
	}

	t.publish(Event{
		Type:      EventDone,
		JobID:     t.jobID,
		Stage:     StageDone,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	return nil
}

// Fail marks the job failed with a user-facing message. Terminal.
func (t *Tracker) Fail(message string) error {
	t.mu.Lock()
	if t.terminal {
		t.mu.Unlock()
		return fmt.Errorf("job %s already terminal", t.jobID)
	}
	t.closeCurrentStage()
	t.current = StageError
	t.terminal = true
	t.mu.Unlock()

	t.publish(Event{
		Type:      EventError,
		JobID:     t.jobID,
		Stage:     StageError,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

// Current returns the job's current stage.
func (t *Tracker) Current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Timings returns the recorded per-stage durations.
func (t *Tracker) Timings() []StageTiming {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]StageTiming(nil), t.timings...)
}

// closeCurrentStage records the elapsed time of the stage being left.
// Callers hold t.mu.
func (t *Tracker) closeCurrentStage() {
	if t.current == "" || t.current == StageDone || t.current == StageError {
		return
	}
	t.timings = append(t.timings, StageTiming{
		Stage:    t.current,
		Duration: time.Since(t.stageStart),
	})
}

func (t *Tracker) publish(evt Event) {
	if t.emitter != nil {
		// Listener failures never stop the pipeline.
		_ = t.emitter.Emit(evt)
	}
	if t.hub != nil {
		evt.Topic = JobTopic(t.jobID)
		t.hub.Broadcast(evt.Topic, evt)
	}
}

// JobTopic returns the hub topic carrying a job's events.
func JobTopic(jobID string) string {
	return "job:" + jobID
}

// SessionTopic returns the hub topic used for the viewer-tab handshake of a
// submission session.
func SessionTopic(sessionID string) string {
	return "session:" + sessionID
}
