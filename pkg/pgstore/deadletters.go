package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/notifykit/pkg/deadletter"
	"github.com/dmitrymomot/notifykit/pkg/pg"
	"github.com/dmitrymomot/notifykit/pkg/queue"
)

const deadLetterColumns = `id, job_id, user_id, type, priority, attempt, reason, job,
	failed_at, replayed_at`

// DeadLetterStorage implements deadletter.Storage on the dead_letters table.
type DeadLetterStorage struct {
	db DB
}

var _ deadletter.Storage = (*DeadLetterStorage)(nil)

// NewDeadLetterStorage creates a dead letter storage backed by db.
func NewDeadLetterStorage(db DB) *DeadLetterStorage {
	return &DeadLetterStorage{db: db}
}

// Append implements deadletter.Storage
func (s *DeadLetterStorage) Append(ctx context.Context, rec *deadletter.Record) error {
	job, err := json.Marshal(rec.Job)
	if err != nil {
		return fmt.Errorf("encode dead letter %s: %w", rec.ID, err)
	}
	_, err = s.db.Exec(ctx, `INSERT INTO dead_letters (`+deadLetterColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.JobID, rec.UserID, rec.Type, int16(rec.Priority), rec.Attempt,
		rec.Reason, job, utc(rec.FailedAt), utcPtr(rec.ReplayedAt))
	return err
}

// Latest implements deadletter.Storage
func (s *DeadLetterStorage) Latest(ctx context.Context, jobID string, pendingOnly bool) (*deadletter.Record, error) {
	recs, err := s.List(ctx, deadletter.Filter{JobID: jobID, IncludeReplayed: !pendingOnly, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: job %s", deadletter.ErrRecordNotFound, jobID)
	}
	return recs[0], nil
}

// MarkReplayed implements deadletter.Storage
func (s *DeadLetterStorage) MarkReplayed(ctx context.Context, id string, at time.Time) error {
	tag, err := s.db.Exec(ctx, `UPDATE dead_letters SET replayed_at = $2
		WHERE id = $1 AND replayed_at IS NULL`, id, at.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	found, err := exists(ctx, s.db, `SELECT EXISTS (SELECT 1 FROM dead_letters WHERE id = $1)`, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", deadletter.ErrRecordNotFound, id)
	}
	return deadletter.ErrAlreadyReplayed
}

// List implements deadletter.Storage
func (s *DeadLetterStorage) List(ctx context.Context, filter deadletter.Filter) ([]*deadletter.Record, error) {
	where, args := deadLetterWhere(filter)
	rows, err := s.db.Query(ctx, `SELECT `+deadLetterColumns+` FROM dead_letters `+where+`
		ORDER BY failed_at DESC, id DESC
		LIMIT $5`, append(args, limitArg(filter.Limit))...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*deadletter.Record
	for rows.Next() {
		rec, err := scanDeadLetter(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Count implements deadletter.Storage
func (s *DeadLetterStorage) Count(ctx context.Context, filter deadletter.Filter) (int, error) {
	where, args := deadLetterWhere(filter)
	var n int
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM dead_letters `+where, args...).Scan(&n)
	return n, err
}

// deadLetterWhere binds the filter to parameters $1..$4.
func deadLetterWhere(f deadletter.Filter) (string, []any) {
	return `WHERE ($1::text = '' OR job_id = $1::text)
			AND ($2::text = '' OR user_id = $2::text)
			AND ($3::text = '' OR type = $3::text)
			AND ($4::boolean OR replayed_at IS NULL)`,
		[]any{f.JobID, f.UserID, f.Type, f.IncludeReplayed}
}

func scanDeadLetter(row pgx.Row) (*deadletter.Record, error) {
	var (
		rec      deadletter.Record
		priority int16
		job      []byte
	)
	err := row.Scan(&rec.ID, &rec.JobID, &rec.UserID, &rec.Type, &priority, &rec.Attempt,
		&rec.Reason, &job, &rec.FailedAt, &rec.ReplayedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(job, &rec.Job); err != nil {
		return nil, fmt.Errorf("decode dead letter %s: %w", rec.ID, err)
	}
	rec.Priority = queue.Priority(priority)
	rec.FailedAt = utc(rec.FailedAt)
	rec.ReplayedAt = utcPtr(rec.ReplayedAt)
	return &rec, nil
}
