package session

import "time"

// State is the last-known connection state reported for a session. The
// registry records whatever the collaborator reports; reconnect policy lives
// on the collaborator side, so error is not terminal and a later update can
// move a session back to connecting.
type State string

const (
	StateConnecting   State = "connecting"
	StateQRPending    State = "qr_pending"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateError        State = "error"
)

// Metadata field keys conventionally carried on status updates.
const (
	FieldQR     = "qr"
	FieldQRWait = "qr_timeout"
	FieldPhone  = "phone"
	FieldError  = "error"
)

// Status is the per-session record held by the registry. Fields is free-form
// metadata accumulated by shallow-merging successive updates.
type Status struct {
	SessionID string                 `json:"session_id"`
	State     State                  `json:"state,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func (s Status) clone() Status {
	out := s
	if s.Fields != nil {
		out.Fields = make(map[string]interface{}, len(s.Fields))
		for k, v := range s.Fields {
			out.Fields[k] = v
		}
	}
	return out
}

// Update is a partial status change. An empty State leaves the recorded state
// untouched; Fields overwrite same-named metadata and leave the rest alone.
type Update struct {
	State  State                  `json:"state,omitempty"`
	Fields map[string]interface{} `json:"fields,omitempty"`
}

// StatusEvent is the shape republished to the broadcast channel whenever a
// record changes.
type StatusEvent struct {
	EventType string    `json:"event_type"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
}

const (
	EventStatusChanged = "session.status_changed"
	EventStatusRemoved = "session.status_removed"
)
