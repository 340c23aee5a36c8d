package realtime

import (
	"time"
)

// Subscriber is a registered real-time callback endpoint. Deliveries are
// HMAC-SHA256 signed with the subscriber secret.
type Subscriber struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Secret    string    `json:"-"`
	Events    []string  `json:"events"`
	CreatedAt time.Time `json:"created_at"`
}

// matches reports whether the subscriber wants eventType. An empty filter
// subscribes to everything.
func (s Subscriber) matches(eventType string) bool {
	if len(s.Events) == 0 {
		return true
	}
	for _, evt := range s.Events {
		if evt == eventType {
			return true
		}
	}
	return false
}
