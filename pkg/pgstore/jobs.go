package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/notifykit/pkg/pg"
	"github.com/dmitrymomot/notifykit/pkg/queue"
)

const jobColumns = `id, user_id, type, priority, payload, state, attempt, max_attempts,
	not_before, lease_owner, lease_expires_at, group_key, delivered, last_error,
	created_at, updated_at`

// QueueRepository implements queue.Repository on the notification_jobs table.
type QueueRepository struct {
	db DB
}

var _ queue.Repository = (*QueueRepository)(nil)

// NewQueueRepository creates a queue repository backed by db.
func NewQueueRepository(db DB) *QueueRepository {
	return &QueueRepository{db: db}
}

// Insert implements queue.Repository
func (r *QueueRepository) Insert(ctx context.Context, job *queue.Job) error {
	if job == nil {
		return queue.ErrJobNil
	}
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("encode payload of job %s: %w", job.ID, err)
	}

	_, err = r.db.Exec(ctx, `INSERT INTO notification_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		job.ID, job.UserID, job.Type, int16(job.Priority), payload, string(job.State),
		job.Attempt, job.MaxAttempts, utc(job.NotBefore), job.LeaseOwner,
		utcPtr(job.LeaseExpiresAt), job.GroupKey, nonNil(job.Delivered), job.LastError,
		utc(job.CreatedAt), utc(job.UpdatedAt))
	if pg.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", queue.ErrDuplicateJob, job.ID)
	}
	return err
}

// Get implements queue.Repository
func (r *QueueRepository) Get(ctx context.Context, id string) (*queue.Job, error) {
	job, err := scanJob(r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM notification_jobs WHERE id = $1`, id))
	if pg.IsNotFoundError(err) {
		return nil, fmt.Errorf("%w: %s", queue.ErrJobNotFound, id)
	}
	return job, err
}

// Lease implements queue.Repository. Rows locked by a concurrent lease are
// skipped rather than waited on.
func (r *QueueRepository) Lease(ctx context.Context, workerID string, limit int, now time.Time, leaseFor time.Duration) ([]*queue.Job, error) {
	if limit <= 0 {
		return nil, nil
	}
	now = now.UTC()

	rows, err := r.db.Query(ctx, `UPDATE notification_jobs AS j
		SET state = 'leased', lease_owner = $1, lease_expires_at = $2, updated_at = $3
		FROM (
			SELECT id FROM notification_jobs
			WHERE state IN ('queued', 'scheduled') AND not_before <= $3
			ORDER BY priority DESC, not_before, created_at, id
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		) AS c
		WHERE j.id = c.id
		RETURNING `+prefixed("j", jobColumns),
		workerID, now.Add(leaseFor), now, limit)
	if err != nil {
		return nil, err
	}
	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, err
	}
	// RETURNING does not preserve the subquery order.
	sort.Slice(jobs, func(i, k int) bool { return queue.Less(jobs[i], jobs[k]) })
	return jobs, nil
}

// CompareAndSwap implements queue.Repository
func (r *QueueRepository) CompareAndSwap(ctx context.Context, job *queue.Job, cond queue.Condition) error {
	if job == nil {
		return queue.ErrJobNil
	}
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("encode payload of job %s: %w", job.ID, err)
	}

	tag, err := r.db.Exec(ctx, `UPDATE notification_jobs SET
			user_id = $2, type = $3, priority = $4, payload = $5, state = $6,
			attempt = $7, max_attempts = $8, not_before = $9, lease_owner = $10,
			lease_expires_at = $11, group_key = $12, delivered = $13,
			last_error = $14, updated_at = $15
		WHERE id = $1
			AND (cardinality($16::text[]) = 0 OR state = ANY($16::text[]))
			AND ($17::text = '' OR lease_owner = $17::text)`,
		job.ID, job.UserID, job.Type, int16(job.Priority), payload, string(job.State),
		job.Attempt, job.MaxAttempts, utc(job.NotBefore), job.LeaseOwner,
		utcPtr(job.LeaseExpiresAt), job.GroupKey, nonNil(job.Delivered), job.LastError,
		utc(job.UpdatedAt), stateStrings(cond.States), cond.LeaseOwner)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	found, err := exists(ctx, r.db, `SELECT EXISTS (SELECT 1 FROM notification_jobs WHERE id = $1)`, job.ID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", queue.ErrJobNotFound, job.ID)
	}
	return fmt.Errorf("%w: job %s", queue.ErrStateConflict, job.ID)
}

// ReapExpired implements queue.Repository
func (r *QueueRepository) ReapExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.db.Exec(ctx, `UPDATE notification_jobs
		SET state = 'queued', lease_owner = '', lease_expires_at = NULL, updated_at = $1
		WHERE state IN ('leased', 'delivering') AND lease_expires_at < $1`, now.UTC())
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ListByState implements queue.Repository
func (r *QueueRepository) ListByState(ctx context.Context, state queue.State, limit int) ([]*queue.Job, error) {
	rows, err := r.db.Query(ctx, `SELECT `+jobColumns+` FROM notification_jobs
		WHERE state = $1 ORDER BY updated_at, id LIMIT $2`, string(state), limitArg(limit))
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

// Count implements queue.Repository
func (r *QueueRepository) Count(ctx context.Context, filter queue.CountFilter) (int, error) {
	var priority *int16
	if filter.Priority != nil {
		p := int16(*filter.Priority)
		priority = &p
	}

	var n int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM notification_jobs
		WHERE (cardinality($1::text[]) = 0 OR state = ANY($1::text[]))
			AND ($2::smallint IS NULL OR priority = $2)`,
		stateStrings(filter.States), priority).Scan(&n)
	return n, err
}

func scanJob(row pgx.Row) (*queue.Job, error) {
	var (
		job      queue.Job
		priority int16
		state    string
		payload  []byte
	)
	err := row.Scan(&job.ID, &job.UserID, &job.Type, &priority, &payload, &state,
		&job.Attempt, &job.MaxAttempts, &job.NotBefore, &job.LeaseOwner,
		&job.LeaseExpiresAt, &job.GroupKey, &job.Delivered, &job.LastError,
		&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &job.Payload); err != nil {
		return nil, fmt.Errorf("decode payload of job %s: %w", job.ID, err)
	}

	job.Priority = queue.Priority(priority)
	job.State = queue.State(state)
	job.NotBefore = utc(job.NotBefore)
	job.LeaseExpiresAt = utcPtr(job.LeaseExpiresAt)
	job.CreatedAt = utc(job.CreatedAt)
	job.UpdatedAt = utc(job.UpdatedAt)
	if len(job.Delivered) == 0 {
		job.Delivered = nil
	}
	return &job, nil
}

func collectJobs(rows pgx.Rows) ([]*queue.Job, error) {
	defer rows.Close()

	var jobs []*queue.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func stateStrings(states []queue.State) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}
