package realtime

import (
	"testing"
	"time"

	"github.com/gdbrns/go-whatsapp-session-registry/pkg/session"
)

func TestSubscriberMatches(t *testing.T) {
	cases := []struct {
		name   string
		events []string
		event  string
		want   bool
	}{
		{"empty filter matches everything", nil, session.EventStatusChanged, true},
		{"listed event matches", []string{session.EventStatusChanged}, session.EventStatusChanged, true},
		{"unlisted event does not match", []string{session.EventStatusRemoved}, session.EventStatusChanged, false},
	}
	for _, tc := range cases {
		sub := Subscriber{Events: tc.events}
		if got := sub.matches(tc.event); got != tc.want {
			t.Fatalf("%s: matches(%q) = %v, want %v", tc.name, tc.event, got, tc.want)
		}
	}
}

func TestValidateCallbackURL(t *testing.T) {
	valid := []string{
		"https://hooks.example.com/whatsapp",
		"https://api.example.com:8443/events",
	}
	for _, u := range valid {
		if err := validateCallbackURL(u); err != nil {
			t.Fatalf("validateCallbackURL(%q) = %v, want nil", u, err)
		}
	}

	invalid := []string{
		"http://hooks.example.com/whatsapp",
		"https://localhost/hook",
		"https://127.0.0.1/hook",
		"https://0.0.0.0/hook",
		"https://192.168.1.10/hook",
		"https://10.0.0.5/hook",
		"https://172.16.0.1/hook",
		"ftp://example.com/hook",
	}
	for _, u := range invalid {
		if err := validateCallbackURL(u); err == nil {
			t.Fatalf("validateCallbackURL(%q) should fail", u)
		}
	}
}

func TestSignPayloadStable(t *testing.T) {
	payload := []byte(`{"event_type":"session.status_changed"}`)

	sig := signPayload(payload, "topsecret")
	if sig != signPayload(payload, "topsecret") {
		t.Fatalf("signature must be deterministic")
	}
	if sig[:7] != "sha256=" {
		t.Fatalf("signature prefix = %q, want sha256=", sig[:7])
	}
	if sig == signPayload(payload, "othersecret") {
		t.Fatalf("different secrets must yield different signatures")
	}
	if sig == signPayload([]byte(`{}`), "topsecret") {
		t.Fatalf("different payloads must yield different signatures")
	}
}

func TestSubscribeRejectsInvalidURL(t *testing.T) {
	e := NewEngine(Config{Enabled: false})
	defer e.Shutdown()

	if _, err := e.Subscribe("http://insecure.example.com", "s", nil); err == nil {
		t.Fatalf("plain HTTP subscription should be rejected")
	}
	if len(e.ListSubscribers()) != 0 {
		t.Fatalf("rejected subscription must not be stored")
	}
}

func TestSubscribeUnsubscribeLifecycle(t *testing.T) {
	e := NewEngine(Config{Enabled: false})
	defer e.Shutdown()

	sub, err := e.Subscribe("https://hooks.example.com/whatsapp", "s3cret", []string{session.EventStatusChanged})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if sub.ID == "" {
		t.Fatalf("subscriber should be assigned an id")
	}

	list := e.ListSubscribers()
	if len(list) != 1 || list[0].ID != sub.ID {
		t.Fatalf("unexpected subscriber list: %+v", list)
	}

	if err := e.Unsubscribe(sub.ID); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if err := e.Unsubscribe(sub.ID); err != ErrSubscriberNotFound {
		t.Fatalf("second unsubscribe = %v, want ErrSubscriberNotFound", err)
	}
}

func TestPublishDisabledEngineDropsSilently(t *testing.T) {
	e := NewEngine(Config{Enabled: false})
	defer e.Shutdown()

	if _, err := e.Subscribe("https://hooks.example.com/whatsapp", "s", nil); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	// Must return immediately without workers draining the queue.
	e.Publish(session.StatusEvent{EventType: session.EventStatusChanged, SessionID: "628111"})
}

func TestPublishNeverBlocksOnFullQueue(t *testing.T) {
	// No workers drain the queue here, so the second publish hits a full
	// channel and must drop instead of blocking.
	e := &Engine{
		cfg:         Config{Enabled: true, Workers: 0, RetryLimit: 1, QueueSize: 1},
		queue:       make(chan *deliveryTask, 1),
		subscribers: make(map[string]Subscriber),
	}
	e.subscribers["a"] = Subscriber{ID: "a", URL: "https://hooks.example.com"}

	done := make(chan struct{})
	go func() {
		e.Publish(session.StatusEvent{EventType: session.EventStatusChanged, SessionID: "1"})
		e.Publish(session.StatusEvent{EventType: session.EventStatusChanged, SessionID: "2"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publish blocked on a full queue")
	}
	if len(e.queue) != 1 {
		t.Fatalf("queue length = %d, want 1", len(e.queue))
	}
}

func TestPublishFiltersByEventType(t *testing.T) {
	e := &Engine{
		cfg:         Config{Enabled: true, QueueSize: 10},
		queue:       make(chan *deliveryTask, 10),
		subscribers: make(map[string]Subscriber),
	}
	e.subscribers["changed-only"] = Subscriber{
		ID:     "changed-only",
		URL:    "https://hooks.example.com/a",
		Events: []string{session.EventStatusChanged},
	}
	e.subscribers["removed-only"] = Subscriber{
		ID:     "removed-only",
		URL:    "https://hooks.example.com/b",
		Events: []string{session.EventStatusRemoved},
	}

	e.Publish(session.StatusEvent{EventType: session.EventStatusChanged, SessionID: "628111"})

	if len(e.queue) != 1 {
		t.Fatalf("queued tasks = %d, want 1", len(e.queue))
	}
	task := <-e.queue
	if task.subscriber.ID != "changed-only" {
		t.Fatalf("event routed to %q, want changed-only", task.subscriber.ID)
	}
}
