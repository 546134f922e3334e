package progress

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestHub() *Hub {
	return NewHub(zerolog.Nop())
}

func newTestClient(hub *Hub, topics ...string) *Client {
	return &Client{
		ID:     "client-" + topics[0],
		Topics: topics,
		Send:   make(chan []byte, 16),
		hub:    hub,
	}
}

func recvEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case data := <-c.Send:
		var evt Event
		if err := json.Unmarshal(data, &evt); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHubRegisterAndBroadcast(t *testing.T) {
	hub := newTestHub()
	a := newTestClient(hub, JobTopic("job-1"))
	b := newTestClient(hub, JobTopic("job-2"))
	hub.Register(a)
	hub.Register(b)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Broadcast(JobTopic("job-1"), Event{
		Type:      EventStatus,
		Topic:     JobTopic("job-1"),
		JobID:     "job-1",
		Stage:     StageExtract,
		Timestamp: time.Now().UTC(),
	})

	evt := recvEvent(t, a)
	if evt.Stage != StageExtract {
		t.Errorf("expected stage extract, got %s", evt.Stage)
	}

	select {
	case <-b.Send:
		t.Error("client on another topic should not receive the event")
	default:
	}
}

func TestHubUnregisterClosesSend(t *testing.T) {
	hub := newTestHub()
	c := newTestClient(hub, JobTopic("job-1"))
	hub.Register(c)
	hub.Unregister(c)

	if _, ok := <-c.Send; ok {
		t.Error("expected Send channel to be closed")
	}
	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients, got %d", got)
	}
	if got := hub.TopicCount(JobTopic("job-1")); got != 0 {
		t.Errorf("expected topic to be empty, got %d", got)
	}

	// Unregistering twice is a no-op.
	hub.Unregister(c)
}

func TestHubSubscribeUnsubscribe(t *testing.T) {
	hub := newTestHub()
	c := newTestClient(hub, JobTopic("job-1"))
	hub.Register(c)

	hub.Subscribe(c, []string{SessionTopic("sess-1")})
	if got := hub.TopicCount(SessionTopic("sess-1")); got != 1 {
		t.Fatalf("expected 1 subscriber after subscribe, got %d", got)
	}

	hub.Unsubscribe(c, []string{JobTopic("job-1")})
	if got := hub.TopicCount(JobTopic("job-1")); got != 0 {
		t.Errorf("expected 0 subscribers after unsubscribe, got %d", got)
	}

	hub.Broadcast(SessionTopic("sess-1"), Event{Type: EventStatus, Topic: SessionTopic("sess-1")})
	evt := recvEvent(t, c)
	if evt.Topic != SessionTopic("sess-1") {
		t.Errorf("expected session topic, got %s", evt.Topic)
	}
}

func TestHubProcessMessageSubscribe(t *testing.T) {
	hub := newTestHub()
	c := newTestClient(hub, JobTopic("job-1"))
	hub.Register(c)

	hub.ProcessMessage(c, ClientMessage{Action: "subscribe", Topics: []string{JobTopic("job-2")}})
	if got := hub.TopicCount(JobTopic("job-2")); got != 1 {
		t.Errorf("expected subscription to job-2, got %d subscribers", got)
	}

	hub.ProcessMessage(c, ClientMessage{Action: "unsubscribe", Topics: []string{JobTopic("job-2")}})
	if got := hub.TopicCount(JobTopic("job-2")); got != 0 {
		t.Errorf("expected unsubscription from job-2, got %d subscribers", got)
	}

	// Unknown actions are ignored.
	hub.ProcessMessage(c, ClientMessage{Action: "dance", Topics: []string{JobTopic("job-3")}})
	if got := hub.TopicCount(JobTopic("job-3")); got != 0 {
		t.Errorf("unknown action must not subscribe, got %d subscribers", got)
	}
}

func TestHubViewerReadyRelaysToSessionTopic(t *testing.T) {
	hub := newTestHub()

	// The submitting tab listens on its session topic for viewer handoff.
	submitter := newTestClient(hub, SessionTopic("sess-1"))
	hub.Register(submitter)

	// The viewer tab connects, subscribes, and announces readiness.
	viewer := newTestClient(hub, SessionTopic("sess-1"))
	hub.Register(viewer)
	hub.ProcessMessage(viewer, ClientMessage{Action: "viewer_ready", Topics: []string{SessionTopic("sess-1")}})

	evt := recvEvent(t, submitter)
	if evt.Type != EventViewerReady {
		t.Errorf("expected event type %s, got %s", EventViewerReady, evt.Type)
	}
	if evt.Topic != SessionTopic("sess-1") {
		t.Errorf("expected session topic, got %s", evt.Topic)
	}

	// The viewer itself is subscribed too and sees its own announcement.
	evt = recvEvent(t, viewer)
	if evt.Type != EventViewerReady {
		t.Errorf("viewer expected event type %s, got %s", EventViewerReady, evt.Type)
	}
}

func TestHubBroadcastSkipsFullBuffers(t *testing.T) {
	hub := newTestHub()
	stuck := &Client{
		ID:     "stuck",
		Topics: []string{JobTopic("job-1")},
		Send:   make(chan []byte), // unbuffered, never drained
		hub:    hub,
	}
	healthy := newTestClient(hub, JobTopic("job-1"))
	hub.Register(stuck)
	hub.Register(healthy)

	// Must not block even though one client cannot take the message.
	done := make(chan struct{})
	go func() {
		hub.Broadcast(JobTopic("job-1"), Event{Type: EventStatus, Topic: JobTopic("job-1")})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a full client buffer")
	}

	recvEvent(t, healthy)
}

func TestHubBroadcastAll(t *testing.T) {
	hub := newTestHub()
	a := newTestClient(hub, JobTopic("job-1"))
	b := newTestClient(hub, JobTopic("job-2"))
	hub.Register(a)
	hub.Register(b)

	hub.BroadcastAll(Event{Type: EventStatus, Message: "shutting down"})

	for _, c := range []*Client{a, b} {
		evt := recvEvent(t, c)
		if evt.Message != "shutting down" {
			t.Errorf("client %s: unexpected message %q", c.ID, evt.Message)
		}
	}
}
