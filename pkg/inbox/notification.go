package inbox

import (
	"time"

	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// Notification is one entry in a user's in-app inbox. Its ID is the id of
// the job that produced it.
type Notification struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Type      string         `json:"type"`
	Priority  queue.Priority `json:"priority"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Members   []string       `json:"members,omitempty"`
	Read      bool           `json:"read"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
}

// IsExpired reports whether the notification expired at now.
func (n *Notification) IsExpired(now time.Time) bool {
	return n.ExpiresAt != nil && !now.Before(*n.ExpiresAt)
}

// MarkAsRead marks the notification as read at now. Already read
// notifications keep their original ReadAt.
func (n *Notification) MarkAsRead(now time.Time) {
	if n.Read {
		return
	}
	n.Read = true
	n.ReadAt = &now
}
