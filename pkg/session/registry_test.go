package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeCollaborator struct {
	initCalls    int
	destroyCalls int
	destroyErr   error
	sessions     []string
}

func (f *fakeCollaborator) Init(ctx context.Context) error { f.initCalls++; return nil }

func (f *fakeCollaborator) Destroy(ctx context.Context) error {
	f.destroyCalls++
	return f.destroyErr
}

func (f *fakeCollaborator) ListSessions(ctx context.Context) ([]string, error) {
	return f.sessions, nil
}

type capturingPublisher struct {
	events []StatusEvent
}

func (p *capturingPublisher) Publish(event StatusEvent) {
	p.events = append(p.events, event)
}

type panickingPublisher struct{}

func (panickingPublisher) Publish(StatusEvent) { panic("broadcast backend gone") }

func TestCollaboratorBeforeInstall(t *testing.T) {
	r := New()
	if _, err := r.Collaborator(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestSetCollaboratorFirstInstallWins(t *testing.T) {
	r := New()
	first := &fakeCollaborator{}
	second := &fakeCollaborator{}

	if got := r.SetCollaborator(first); got != Collaborator(first) {
		t.Fatalf("first install should return the installed handle")
	}
	if got := r.SetCollaborator(second); got != Collaborator(first) {
		t.Fatalf("second install should return the existing handle, not replace it")
	}

	handle, err := r.Collaborator()
	if err != nil {
		t.Fatalf("collaborator lookup: %v", err)
	}
	if handle != Collaborator(first) {
		t.Fatalf("installed handle changed unexpectedly")
	}
}

func TestTeardownThenSetInstallsNewHandle(t *testing.T) {
	r := New()
	first := &fakeCollaborator{}
	r.SetCollaborator(first)

	if err := r.Teardown(context.Background()); err != nil {
		t.Fatalf("teardown: %v", err)
	}
	if first.destroyCalls != 1 {
		t.Fatalf("destroy calls = %d, want 1", first.destroyCalls)
	}
	if _, err := r.Collaborator(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("handle should be absent after teardown, got %v", err)
	}

	second := &fakeCollaborator{}
	if got := r.SetCollaborator(second); got != Collaborator(second) {
		t.Fatalf("install after teardown should accept the new handle")
	}
}

func TestTeardownWithoutHandle(t *testing.T) {
	r := New()
	if err := r.Teardown(context.Background()); err != nil {
		t.Fatalf("teardown without a handle should be a no-op, got %v", err)
	}
}

func TestTeardownPropagatesDestroyError(t *testing.T) {
	r := New()
	boom := errors.New("store locked")
	r.SetCollaborator(&fakeCollaborator{destroyErr: boom})

	err := r.Teardown(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("teardown error = %v, want wrapped %v", err, boom)
	}
	// Handle is cleared even when destroy fails so a fresh install stays possible.
	if _, err := r.Collaborator(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("handle should be cleared after failed destroy, got %v", err)
	}
}

func TestRecordStatusMergesFields(t *testing.T) {
	r := New()
	r.RecordStatus("628111", Update{
		State:  StateQRPending,
		Fields: map[string]interface{}{FieldQR: "data:image/png;base64,AAAA", FieldQRWait: 60},
	})
	merged := r.RecordStatus("628111", Update{
		State:  StateConnected,
		Fields: map[string]interface{}{FieldPhone: "6281234567890"},
	})

	if merged.State != StateConnected {
		t.Fatalf("state = %v, want %v", merged.State, StateConnected)
	}
	if merged.Fields[FieldQR] != "data:image/png;base64,AAAA" {
		t.Fatalf("earlier field lost on merge: %v", merged.Fields)
	}
	if merged.Fields[FieldPhone] != "6281234567890" {
		t.Fatalf("new field missing after merge: %v", merged.Fields)
	}
}

func TestRecordStatusEmptyStateKeepsPrevious(t *testing.T) {
	r := New()
	r.RecordStatus("628111", Update{State: StateConnected})
	got := r.RecordStatus("628111", Update{Fields: map[string]interface{}{FieldPhone: "628111"}})
	if got.State != StateConnected {
		t.Fatalf("empty update state should keep %v, got %v", StateConnected, got.State)
	}
}

func TestRecordStatusErrorIsNotTerminal(t *testing.T) {
	r := New()
	r.RecordStatus("628111", Update{State: StateError, Fields: map[string]interface{}{FieldError: "stream replaced"}})
	got := r.RecordStatus("628111", Update{State: StateConnecting})
	if got.State != StateConnecting {
		t.Fatalf("session should be able to leave the error state, got %v", got.State)
	}
}

func TestGetStatusReturnsCopy(t *testing.T) {
	r := New()
	r.RecordStatus("628111", Update{
		State:  StateConnected,
		Fields: map[string]interface{}{FieldPhone: "628111"},
	})

	got, ok := r.GetStatus("628111")
	if !ok {
		t.Fatalf("status should exist")
	}
	got.Fields[FieldPhone] = "mutated"

	again, _ := r.GetStatus("628111")
	if again.Fields[FieldPhone] != "628111" {
		t.Fatalf("caller mutation leaked into the registry record")
	}
}

func TestRemoveStatusThenGetAbsent(t *testing.T) {
	r := New()
	r.RecordStatus("628111", Update{State: StateConnected})
	r.RemoveStatus("628111")
	if _, ok := r.GetStatus("628111"); ok {
		t.Fatalf("removed status should be absent")
	}
	// Removing again is a no-op.
	r.RemoveStatus("628111")
}

func TestListStatusesSorted(t *testing.T) {
	r := New()
	r.RecordStatus("b", Update{State: StateConnected})
	r.RecordStatus("a", Update{State: StateDisconnected})
	r.RecordStatus("c", Update{State: StateConnecting})

	got := r.ListStatuses()
	if len(got) != 3 {
		t.Fatalf("list length = %d, want 3", len(got))
	}
	for i, want := range []string{"a", "b", "c"} {
		if got[i].SessionID != want {
			t.Fatalf("list[%d] = %q, want %q", i, got[i].SessionID, want)
		}
	}
}

func TestPublisherReceivesMergedRecord(t *testing.T) {
	r := New()
	pub := &capturingPublisher{}
	r.SetPublisher(pub)

	r.RecordStatus("628111", Update{State: StateQRPending, Fields: map[string]interface{}{FieldQR: "qr"}})
	r.RecordStatus("628111", Update{State: StateConnected})

	if len(pub.events) != 2 {
		t.Fatalf("publish count = %d, want 2", len(pub.events))
	}
	last := pub.events[1]
	if last.EventType != EventStatusChanged {
		t.Fatalf("event type = %q, want %q", last.EventType, EventStatusChanged)
	}
	if last.Status.State != StateConnected {
		t.Fatalf("published state = %v, want %v", last.Status.State, StateConnected)
	}
	if last.Status.Fields[FieldQR] != "qr" {
		t.Fatalf("published record should carry the merged fields: %v", last.Status.Fields)
	}
}

func TestRemoveStatusPublishesRemovalOnce(t *testing.T) {
	r := New()
	pub := &capturingPublisher{}
	r.SetPublisher(pub)

	r.RecordStatus("628111", Update{State: StateConnected})
	r.RemoveStatus("628111")
	r.RemoveStatus("628111")

	var removals int
	for _, ev := range pub.events {
		if ev.EventType == EventStatusRemoved {
			removals++
		}
	}
	if removals != 1 {
		t.Fatalf("removal events = %d, want 1", removals)
	}
}

func TestPublisherPanicDoesNotPropagate(t *testing.T) {
	r := New()
	r.SetPublisher(panickingPublisher{})

	got := r.RecordStatus("628111", Update{State: StateConnected})
	if got.State != StateConnected {
		t.Fatalf("write should survive a panicking publisher, got %v", got.State)
	}
	if status, ok := r.GetStatus("628111"); !ok || status.State != StateConnected {
		t.Fatalf("record should be persisted despite the publish panic")
	}
}

func TestRecordStatusUpdatedAt(t *testing.T) {
	r := New()
	fixed := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	got := r.RecordStatus("628111", Update{State: StateConnected})
	if !got.UpdatedAt.Equal(fixed) {
		t.Fatalf("updated_at = %v, want %v", got.UpdatedAt, fixed)
	}
}
