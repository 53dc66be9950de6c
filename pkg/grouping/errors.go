package grouping

import "errors"

// Grouping errors
var (
	ErrStoreNil        = errors.New("window store cannot be nil")
	ErrEnqueuerNil     = errors.New("enqueuer cannot be nil")
	ErrJobNil          = errors.New("job cannot be nil")
	ErrInvalidRule     = errors.New("invalid grouping rule")
	ErrWindowNotFound  = errors.New("group window not found")
	ErrWindowExists    = errors.New("open group window already exists")
	ErrWindowExpired   = errors.New("group window expired")
	ErrStateConflict   = errors.New("group window state changed concurrently")
	ErrAlreadyFlushed  = errors.New("group window already flushed")
	ErrFailedToFlush   = errors.New("failed to flush group window")
	ErrOfferContention = errors.New("too many concurrent changes to group window")
)
