package inbox

import (
	"context"
	"time"
)

// Storage handles notification persistence and retrieval.
type Storage interface {
	// Create stores a new notification. It returns ErrDuplicateNotification
	// when a notification with the same id already exists for the user.
	Create(ctx context.Context, n Notification) error

	// Get retrieves a single notification.
	Get(ctx context.Context, userID, id string) (*Notification, error)

	// List returns notifications for a user, newest first.
	List(ctx context.Context, userID string, opts ListOptions) ([]Notification, error)

	// MarkRead marks notification(s) as read.
	MarkRead(ctx context.Context, userID string, at time.Time, ids ...string) error

	// Delete removes notification(s).
	Delete(ctx context.Context, userID string, ids ...string) error

	// CountUnread returns the number of unread, unexpired notifications.
	CountUnread(ctx context.Context, userID string, now time.Time) (int, error)
}

// ListOptions provides filtering and pagination options for listing notifications.
type ListOptions struct {
	Limit      int        // Maximum number of notifications to return (0 = no limit)
	Offset     int        // Number of notifications to skip for pagination
	OnlyUnread bool       // When true, only return unread notifications
	Types      []string   // If specified, only return notifications of these types
	Since      *time.Time // If specified, only return notifications created after this time
	Now        time.Time  // Expiry reference; zero means time.Now
}
