package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gdbrns/go-whatsapp-session-registry/pkg/log"
)

// ErrNotInitialized is returned when the collaborator handle is accessed
// before one has been installed. The registry never constructs a collaborator
// implicitly because construction needs external configuration (storage path,
// credentials) it cannot synthesize.
var ErrNotInitialized = errors.New("messaging collaborator is not initialized")

// Collaborator is the narrow contract the registry holds on the messaging
// backend wrapper. Exactly one live handle exists per registry at a time.
type Collaborator interface {
	Init(ctx context.Context) error
	Destroy(ctx context.Context) error
	ListSessions(ctx context.Context) ([]string, error)
}

// Publisher is a real-time broadcast endpoint for status events. The registry
// only holds a back-reference; it never owns the publisher's lifecycle.
type Publisher interface {
	Publish(event StatusEvent)
}

// Registry owns the single live collaborator handle plus the in-memory map of
// session id to last-known status. All methods are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	handle    Collaborator
	statuses  map[string]Status
	publisher Publisher
	now       func() time.Time
}

func New() *Registry {
	return &Registry{
		statuses: make(map[string]Status),
		now:      time.Now,
	}
}

// SetCollaborator installs the process-wide collaborator handle. The first
// install wins: calling it again returns the already-installed handle instead
// of replacing it. Replacing requires an explicit Teardown first.
func (r *Registry) SetCollaborator(handle Collaborator) Collaborator {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handle != nil {
		return r.handle
	}
	r.handle = handle
	return handle
}

// Collaborator returns the installed handle, failing fast with
// ErrNotInitialized when none has been installed.
func (r *Registry) Collaborator() (Collaborator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.handle == nil {
		return nil, ErrNotInitialized
	}
	return r.handle, nil
}

// SetPublisher installs (or clears, when nil) the broadcast channel
// back-reference used to republish status changes.
func (r *Registry) SetPublisher(p Publisher) {
	r.mu.Lock()
	r.publisher = p
	r.mu.Unlock()
}

// RecordStatus shallow-merges update into the record for sessionID, creating
// the record on first update. The merged record is republished to the
// broadcast channel when one is installed; a publish failure is logged and
// never propagated, since a missed real-time update must not abort the write.
func (r *Registry) RecordStatus(sessionID string, update Update) Status {
	r.mu.Lock()
	record, ok := r.statuses[sessionID]
	if !ok {
		record = Status{SessionID: sessionID}
	}
	if update.State != "" {
		record.State = update.State
	}
	if len(update.Fields) > 0 {
		merged := make(map[string]interface{}, len(record.Fields)+len(update.Fields))
		for k, v := range record.Fields {
			merged[k] = v
		}
		for k, v := range update.Fields {
			merged[k] = v
		}
		record.Fields = merged
	}
	record.UpdatedAt = r.now()
	r.statuses[sessionID] = record
	snapshot := record.clone()
	publisher := r.publisher
	r.mu.Unlock()

	r.publish(publisher, StatusEvent{
		EventType: EventStatusChanged,
		SessionID: sessionID,
		Timestamp: snapshot.UpdatedAt,
		Status:    snapshot,
	})
	return snapshot
}

// GetStatus returns a copy of the record for sessionID. The second return is
// false when no record exists (never seen, or explicitly removed).
func (r *Registry) GetStatus(sessionID string) (Status, bool) {
	r.mu.RLock()
	record, ok := r.statuses[sessionID]
	r.mu.RUnlock()
	if !ok {
		return Status{}, false
	}
	return record.clone(), true
}

// ListStatuses returns copies of every record, ordered by session id.
func (r *Registry) ListStatuses() []Status {
	r.mu.RLock()
	out := make([]Status, 0, len(r.statuses))
	for _, record := range r.statuses {
		out = append(out, record.clone())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].SessionID < out[j].SessionID
	})
	return out
}

// RemoveStatus deletes the record for sessionID; a no-op when absent.
func (r *Registry) RemoveStatus(sessionID string) {
	r.mu.Lock()
	_, existed := r.statuses[sessionID]
	delete(r.statuses, sessionID)
	publisher := r.publisher
	now := r.now()
	r.mu.Unlock()

	if existed {
		r.publish(publisher, StatusEvent{
			EventType: EventStatusRemoved,
			SessionID: sessionID,
			Timestamp: now,
		})
	}
}

// Teardown asks the collaborator to release its resources, then clears the
// handle back to absent so a new one can be installed. Safe to call when no
// handle is installed. Not cancellable mid-flight: callers must await
// completion before installing a new collaborator.
func (r *Registry) Teardown(ctx context.Context) error {
	r.mu.RLock()
	handle := r.handle
	r.mu.RUnlock()
	if handle == nil {
		return nil
	}

	// Destroy runs outside the registry lock: collaborators report status
	// changes while disconnecting and those writes need the lock.
	destroyErr := handle.Destroy(ctx)

	r.mu.Lock()
	if r.handle == handle {
		r.handle = nil
	}
	r.mu.Unlock()

	if destroyErr != nil {
		return fmt.Errorf("collaborator destroy: %w", destroyErr)
	}
	return nil
}

// publish is fire-and-forget: it must neither block the caller's status write
// nor let a misbehaving publisher take the registry down.
func (r *Registry) publish(publisher Publisher, event StatusEvent) {
	if publisher == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			log.Print(nil).
				WithField("session_id", event.SessionID).
				Warn(fmt.Sprintf("status publish panicked: %v", rec))
		}
	}()
	publisher.Publish(event)
}
