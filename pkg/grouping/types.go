package grouping

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// WindowState is the lifecycle state of a group window.
type WindowState string

const (
	StateOpen     WindowState = "open"
	StateFlushing WindowState = "flushing"
	StateFlushed  WindowState = "flushed"
)

// Rule configures grouping for one notification type.
type Rule struct {
	// Window is how long a window stays open after its first member.
	Window time.Duration `yaml:"window" json:"window"`
	// Dimension names a payload data key that further splits the group key,
	// e.g. "post_id" to digest comments per post.
	Dimension string `yaml:"dimension,omitempty" json:"dimension,omitempty"`
}

// Validate checks the rule.
func (r Rule) Validate() error {
	if r.Window <= 0 {
		return fmt.Errorf("%w: window must be positive", ErrInvalidRule)
	}
	return nil
}

// Key derives the group key for job: user, type and the optional dimension.
func (r Rule) Key(job *queue.Job) string {
	parts := []string{job.UserID, job.Type}
	if r.Dimension != "" {
		v, ok := job.Payload.Data[r.Dimension]
		if !ok {
			v = ""
		}
		parts = append(parts, r.Dimension+"="+fmt.Sprint(v))
	}
	return strings.Join(parts, "|")
}

// Window is an aggregation bucket. Members keep insertion order.
type Window struct {
	ID          string      `json:"id"`
	GroupKey    string      `json:"group_key"`
	UserID      string      `json:"user_id"`
	Type        string      `json:"type"`
	WindowStart time.Time   `json:"window_start"`
	WindowEnd   time.Time   `json:"window_end"`
	Members     []queue.Job `json:"members"`
	State       WindowState `json:"state"`
	DigestJobID string      `json:"digest_job_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// MemberIDs returns member job ids in insertion order.
func (w *Window) MemberIDs() []string {
	ids := make([]string, len(w.Members))
	for i := range w.Members {
		ids[i] = w.Members[i].ID
	}
	return ids
}

// HasMember reports whether jobID was merged into the window.
func (w *Window) HasMember(jobID string) bool {
	for i := range w.Members {
		if w.Members[i].ID == jobID {
			return true
		}
	}
	return false
}

// Accepts reports whether the window takes new members at now.
func (w *Window) Accepts(now time.Time) bool {
	return w.State == StateOpen && now.Before(w.WindowEnd)
}

// Clone returns a deep copy of the window.
func (w *Window) Clone() *Window {
	c := *w
	c.Members = make([]queue.Job, len(w.Members))
	for i := range w.Members {
		c.Members[i] = *w.Members[i].Clone()
	}
	return &c
}

// Result describes what Offer did with a candidate.
type Result struct {
	// Merged is set when the candidate joined an existing open window.
	Merged bool
	// WindowOpened is set when the candidate seeded a new window.
	WindowOpened bool
	// Bypassed is set when the candidate went straight to the queue.
	Bypassed bool
	WindowID string
	GroupKey string
}
