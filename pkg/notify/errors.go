package notify

import "errors"

var (
	ErrQueueNil            = errors.New("queue cannot be nil")
	ErrInvalidRequest      = errors.New("invalid notification request")
	ErrSuppressed          = errors.New("notification suppressed by user preferences")
	ErrPreferenceLookup    = errors.New("failed to read user preferences")
	ErrTemplateNotFound    = errors.New("template not found")
	ErrRenderFailed        = errors.New("failed to render template")
	ErrRendererMissing     = errors.New("request has a template id but no renderer is configured")
	ErrSchedulerDisabled   = errors.New("scheduling is not configured")
	ErrDeadLettersDisabled = errors.New("dead letter sink is not configured")
)
