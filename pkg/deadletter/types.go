package deadletter

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// recordNamespace seeds deterministic record ids.
var recordNamespace = uuid.MustParse("9c1d3c0e-6a39-4c55-9f0b-3f4e2d8a7b61")

// Record is a job that will not be retried automatically.
type Record struct {
	ID         string         `json:"id" bson:"_id"`
	JobID      string         `json:"job_id" bson:"job_id"`
	UserID     string         `json:"user_id" bson:"user_id"`
	Type       string         `json:"type" bson:"type"`
	Priority   queue.Priority `json:"priority" bson:"priority"`
	Attempt    int            `json:"attempt" bson:"attempt"`
	Reason     string         `json:"reason" bson:"reason"`
	Job        queue.Job      `json:"job" bson:"job"`
	FailedAt   time.Time      `json:"failed_at" bson:"failed_at"`
	ReplayedAt *time.Time     `json:"replayed_at,omitempty" bson:"replayed_at"`
}

// Replayed reports whether an operator already replayed the record.
func (r *Record) Replayed() bool {
	return r.ReplayedAt != nil
}

// RecordID derives the record id from the job id and the moment the job
// failed, so recording the same failure twice yields one record.
func RecordID(jobID string, failedAt time.Time) string {
	return uuid.NewSHA1(recordNamespace, []byte(jobID+"|"+strconv.FormatInt(failedAt.UnixNano(), 10))).String()
}

// Filter narrows List and Count. Zero values match everything; replayed
// records are excluded unless IncludeReplayed is set.
type Filter struct {
	JobID           string
	UserID          string
	Type            string
	IncludeReplayed bool
	Limit           int
}

// Storage persists dead letter records.
type Storage interface {
	// Append stores a record. Appending an existing id is a no-op.
	Append(ctx context.Context, rec *Record) error

	// Latest returns the newest record for jobID, or ErrRecordNotFound.
	// With pendingOnly set, replayed records are skipped.
	Latest(ctx context.Context, jobID string, pendingOnly bool) (*Record, error)

	// MarkReplayed sets ReplayedAt if the record was not replayed yet.
	// Returns ErrAlreadyReplayed otherwise.
	MarkReplayed(ctx context.Context, id string, at time.Time) error

	// List returns records newest first.
	List(ctx context.Context, filter Filter) ([]*Record, error)

	// Count returns the number of records matching filter.
	Count(ctx context.Context, filter Filter) (int, error)
}

// Reviver puts a dead job back in the queue. Implemented by *queue.Queue.
type Reviver interface {
	Revive(ctx context.Context, jobID string) (*queue.Job, error)
}
