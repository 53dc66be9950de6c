package notify

import (
	"time"

	"github.com/dmitrymomot/notifykit/pkg/grouping"
	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// Request is a notification to send to one user.
type Request struct {
	// ID makes the submission idempotent. Empty means a random id.
	ID       string         `json:"id,omitempty"`
	UserID   string         `json:"user_id"`
	Type     string         `json:"type"`
	Priority queue.Priority `json:"priority,omitempty"`
	// Channels to deliver over. Empty means the orchestrator's defaults.
	Channels   []string          `json:"channels,omitempty"`
	Recipients map[string]string `json:"recipients,omitempty"`

	// TemplateID selects a template rendered with Vars. Without it Subject
	// and Body are used as is.
	TemplateID string         `json:"template_id,omitempty"`
	Vars       map[string]any `json:"vars,omitempty"`
	Subject    string         `json:"subject,omitempty"`
	Body       string         `json:"body,omitempty"`
	Data       map[string]any `json:"data,omitempty"`

	// NotBefore delays delivery. Delayed requests are never grouped.
	NotBefore   time.Time `json:"not_before,omitempty"`
	MaxAttempts int       `json:"max_attempts,omitempty"`
}

// ScheduleInput describes when a scheduled request fires.
// Exactly one of CronExpression and FireAt is set.
type ScheduleInput struct {
	ID             string     `json:"id,omitempty"`
	CronExpression string     `json:"cron_expression,omitempty"`
	FireAt         *time.Time `json:"fire_at,omitempty"`
	Timezone       string     `json:"timezone,omitempty"`
	SkipWeekends   bool       `json:"skip_weekends,omitempty"`
	SkipHolidays   bool       `json:"skip_holidays,omitempty"`
	HolidayRegion  string     `json:"holiday_region,omitempty"`
	MaxOccurrences *int       `json:"max_occurrences,omitempty"`
}

// Status is the observable state of a submitted notification.
type Status struct {
	JobID string      `json:"job_id"`
	State queue.State `json:"state"`
	// Job is the queued job. For a grouped member it is the digest once the
	// window has flushed, and nil before.
	Job *queue.Job `json:"job,omitempty"`
	// Window is set when the notification was merged into a group window.
	Window *grouping.Window `json:"window,omitempty"`
}
