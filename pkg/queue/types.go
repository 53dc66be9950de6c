package queue

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Priority represents job priority. Higher values are leased first.
type Priority int8

// Priority constants
const (
	PriorityLow      Priority = 25
	PriorityMedium   Priority = 50
	PriorityHigh     Priority = 75
	PriorityCritical Priority = 100
	PriorityDefault  Priority = PriorityMedium
)

// Priorities lists every priority tier from highest to lowest.
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

// Valid reports whether p is one of the known priority tiers.
func (p Priority) Valid() bool {
	return slices.Contains(Priorities, p)
}

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return fmt.Sprintf("priority(%d)", int8(p))
	}
}

// ParsePriority converts a priority name into a Priority.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return PriorityCritical, nil
	case "high":
		return PriorityHigh, nil
	case "medium", "":
		return PriorityMedium, nil
	case "low":
		return PriorityLow, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPriority, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, ErrInvalidPriority
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// State is the lifecycle state of a job.
type State string

const (
	// StatePending is a job that has been built but not handed to the queue,
	// e.g. a candidate held inside a grouping window.
	StatePending    State = "pending"
	StateScheduled  State = "scheduled"
	StateQueued     State = "queued"
	StateLeased     State = "leased"
	StateDelivering State = "delivering"
	StateSucceeded  State = "succeeded"
	// StateFailed marks a job on its way to the dead letter sink.
	// A job stays here only if recording the dead letter failed.
	StateFailed State = "failed"
	StateDead   State = "dead"
)

// Terminal reports whether no further automatic transition can happen.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateDead
}

// Active reports whether the job is currently held by a worker.
func (s State) Active() bool {
	return s == StateLeased || s == StateDelivering
}

// Payload is the rendered, addressable content of a notification.
type Payload struct {
	Subject  string         `json:"subject,omitempty"`
	Body     string         `json:"body,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Channels []string       `json:"channels"`
	// Recipients maps a channel name to its address (email, webhook URL, topic key).
	// Channels without an entry are addressed by the job's UserID.
	Recipients map[string]string `json:"recipients,omitempty"`
	// Members holds the ids of the jobs merged into a digest.
	Members []string `json:"members,omitempty"`
}

// Recipient returns the address for the given channel.
func (p Payload) Recipient(channel, fallback string) string {
	if r, ok := p.Recipients[channel]; ok && r != "" {
		return r
	}
	return fallback
}

// Job is the unit of work owned by the queue.
type Job struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Type           string     `json:"type"`
	Priority       Priority   `json:"priority"`
	Payload        Payload    `json:"payload"`
	State          State      `json:"state"`
	Attempt        int        `json:"attempt"`
	MaxAttempts    int        `json:"max_attempts"`
	NotBefore      time.Time  `json:"not_before"`
	LeaseOwner     string     `json:"lease_owner,omitempty"`
	LeaseExpiresAt *time.Time `json:"lease_expires_at,omitempty"`
	GroupKey       string     `json:"group_key,omitempty"`
	Delivered      []string   `json:"delivered,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.Payload.Channels = slices.Clone(j.Payload.Channels)
	c.Payload.Members = slices.Clone(j.Payload.Members)
	c.Delivered = slices.Clone(j.Delivered)
	if j.Payload.Data != nil {
		c.Payload.Data = make(map[string]any, len(j.Payload.Data))
		for k, v := range j.Payload.Data {
			c.Payload.Data[k] = v
		}
	}
	if j.Payload.Recipients != nil {
		c.Payload.Recipients = make(map[string]string, len(j.Payload.Recipients))
		for k, v := range j.Payload.Recipients {
			c.Payload.Recipients[k] = v
		}
	}
	if j.LeaseExpiresAt != nil {
		t := *j.LeaseExpiresAt
		c.LeaseExpiresAt = &t
	}
	return &c
}

// PendingChannels returns the payload channels not yet delivered.
func (j *Job) PendingChannels() []string {
	out := make([]string, 0, len(j.Payload.Channels))
	for _, ch := range j.Payload.Channels {
		if !slices.Contains(j.Delivered, ch) {
			out = append(out, ch)
		}
	}
	return out
}

// Less reports whether a must be leased before b:
// priority DESC, notBefore ASC, createdAt ASC, id ASC.
func Less(a, b *Job) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.NotBefore.Equal(b.NotBefore) {
		return a.NotBefore.Before(b.NotBefore)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Outcome is the result a worker reports for a leased job.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRetry
	OutcomeDead
	// OutcomeThrottle requeues the job after a fixed delay without
	// counting an attempt.
	OutcomeThrottle
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetry:
		return "retry"
	case OutcomeDead:
		return "dead"
	case OutcomeThrottle:
		return "throttle"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}
