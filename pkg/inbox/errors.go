package inbox

import "errors"

var (
	ErrNotificationNotFound  = errors.New("inbox: notification not found")
	ErrDuplicateNotification = errors.New("inbox: notification already exists")
	ErrInvalidNotification   = errors.New("inbox: invalid notification")
	ErrStorageNil            = errors.New("inbox: storage is nil")
	ErrLiveDisabled          = errors.New("inbox: live updates are disabled")
)
