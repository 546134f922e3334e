package progress

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

// collectEmitter records every emitted event for assertions.
type collectEmitter struct {
	events []Event
}

func (c *collectEmitter) Emit(evt Event) error {
	c.events = append(c.events, evt)
	return nil
}

func TestTrackerAdvancesThroughStages(t *testing.T) {
	sink := &collectEmitter{}
	tr := NewTracker("job-1", sink, nil)

	stages := []string{StageUpload, StageExtract, StageOCR, StageOpenAI, StagePostprocess, StageDBSave}
	for _, stage := range stages {
		if err := tr.Advance(stage, ""); err != nil {
			t.Fatalf("Advance(%s) error: %v", stage, err)
		}
	}

	if got := tr.Current(); got != StageDBSave {
		t.Errorf("expected current stage %s, got %s", StageDBSave, got)
	}
	if len(sink.events) != len(stages) {
		t.Fatalf("expected %d events, got %d", len(stages), len(sink.events))
	}
	for i, evt := range sink.events {
		if evt.Type != EventStatus {
			t.Errorf("event %d: expected type %s, got %s", i, EventStatus, evt.Type)
		}
		if evt.Stage != stages[i] {
			t.Errorf("event %d: expected stage %s, got %s", i, stages[i], evt.Stage)
		}
		if evt.JobID != "job-1" {
			t.Errorf("event %d: expected job id job-1, got %s", i, evt.JobID)
		}
	}
}

func TestTrackerRejectsBackwardTransition(t *testing.T) {
	tr := NewTracker("job-1", &collectEmitter{}, nil)

	if err := tr.Advance(StageOpenAI, ""); err != nil {
		t.Fatalf("Advance(openai) error: %v", err)
	}
	if err := tr.Advance(StageExtract, ""); err == nil {
		t.Error("expected error advancing backward from openai to extract")
	}
	if err := tr.Advance(StageOpenAI, ""); err == nil {
		t.Error("expected error re-entering the current stage")
	}
	if got := tr.Current(); got != StageOpenAI {
		t.Errorf("rejected transition changed current stage to %s", got)
	}
}

func TestTrackerAllowsSkippingOCR(t *testing.T) {
	sink := &collectEmitter{}
	tr := NewTracker("job-1", sink, nil)

	if err := tr.Advance(StageExtract, ""); err != nil {
		t.Fatalf("Advance(extract) error: %v", err)
	}
	if err := tr.Advance(StageOpenAI, ""); err != nil {
		t.Fatalf("Advance(openai) skipping ocr error: %v", err)
	}

	for _, timing := range tr.Timings() {
		if timing.Stage == StageOCR {
			t.Error("skipped ocr stage should not appear in timings")
		}
	}
}

func TestTrackerRejectsInvalidStage(t *testing.T) {
	tr := NewTracker("job-1", &collectEmitter{}, nil)

	if err := tr.Advance("reticulate", ""); err == nil {
		t.Error("expected error for unknown stage")
	}
	if err := tr.Advance(StageDone, ""); err == nil {
		t.Error("done must be reached via Done, not Advance")
	}
	if err := tr.Advance(StageError, ""); err == nil {
		t.Error("error must be reached via Fail, not Advance")
	}
}

func TestTrackerDoneCarriesTimings(t *testing.T) {
	sink := &collectEmitter{}
	tr := NewTracker("job-1", sink, nil)

	for _, stage := range []string{StageUpload, StageExtract, StageOpenAI} {
		if err := tr.Advance(stage, ""); err != nil {
			t.Fatalf("Advance(%s) error: %v", stage, err)
		}
	}
	if err := tr.Done(map[string]string{"report_id": "r-1"}); err != nil {
		t.Fatalf("Done error: %v", err)
	}

	last := sink.events[len(sink.events)-1]
	if last.Type != EventDone {
		t.Fatalf("expected final event %s, got %s", EventDone, last.Type)
	}

	var payload struct {
		Timings []struct {
			Stage      string `json:"stage"`
			DurationMS int64  `json:"duration_ms"`
		} `json:"timings"`
		Result map[string]string `json:"result"`
	}
	if err := json.Unmarshal(last.Data, &payload); err != nil {
		t.Fatalf("unmarshal done payload: %v", err)
	}
	if len(payload.Timings) != 3 {
		t.Fatalf("expected 3 stage timings, got %d", len(payload.Timings))
	}
	wantStages := []string{StageUpload, StageExtract, StageOpenAI}
	for i, timing := range payload.Timings {
		if timing.Stage != wantStages[i] {
			t.Errorf("timing %d: expected stage %s, got %s", i, wantStages[i], timing.Stage)
		}
	}
	if payload.Result["report_id"] != "r-1" {
		t.Errorf("expected result payload to carry report_id, got %v", payload.Result)
	}
}

func TestTrackerTerminalStatesAreFinal(t *testing.T) {
	tr := NewTracker("job-1", &collectEmitter{}, nil)

	if err := tr.Advance(StageUpload, ""); err != nil {
		t.Fatalf("Advance error: %v", err)
	}
	if err := tr.Fail("extraction produced no text"); err != nil {
		t.Fatalf("Fail error: %v", err)
	}

	if err := tr.Advance(StageExtract, ""); err == nil {
		t.Error("expected error advancing a failed job")
	}
	if err := tr.Done(nil); err == nil {
		t.Error("expected error completing a failed job")
	}
	if err := tr.Fail("again"); err == nil {
		t.Error("expected error failing a failed job")
	}
}

func TestTrackerFailEmitsUserMessage(t *testing.T) {
	sink := &collectEmitter{}
	tr := NewTracker("job-1", sink, nil)

	if err := tr.Fail("the document could not be read"); err != nil {
		t.Fatalf("Fail error: %v", err)
	}

	last := sink.events[len(sink.events)-1]
	if last.Type != EventError {
		t.Errorf("expected event type %s, got %s", EventError, last.Type)
	}
	if last.Message != "the document could not be read" {
		t.Errorf("unexpected message %q", last.Message)
	}
}

func TestTrackerBroadcastsOnJobTopic(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := &Client{
		ID:     "viewer",
		Topics: []string{JobTopic("job-1")},
		Send:   make(chan []byte, 16),
		hub:    hub,
	}
	hub.Register(client)

	tr := NewTracker("job-1", &collectEmitter{}, hub)
	if err := tr.Advance(StageUpload, "received"); err != nil {
		t.Fatalf("Advance error: %v", err)
	}

	select {
	case data := <-client.Send:
		var evt Event
		if err := json.Unmarshal(data, &evt); err != nil {
			t.Fatalf("unmarshal broadcast: %v", err)
		}
		if evt.Topic != JobTopic("job-1") {
			t.Errorf("expected topic %s, got %s", JobTopic("job-1"), evt.Topic)
		}
		if evt.Stage != StageUpload {
			t.Errorf("expected stage %s, got %s", StageUpload, evt.Stage)
		}
	default:
		t.Fatal("expected a broadcast on the job topic")
	}
}

func TestTopicHelpers(t *testing.T) {
	if got := JobTopic("abc"); got != "job:abc" {
		t.Errorf("JobTopic = %s", got)
	}
	if got := SessionTopic("xyz"); got != "session:xyz" {
		t.Errorf("SessionTopic = %s", got)
	}
}
