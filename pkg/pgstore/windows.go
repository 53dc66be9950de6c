package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/notifykit/pkg/grouping"
	"github.com/dmitrymomot/notifykit/pkg/pg"
	"github.com/dmitrymomot/notifykit/pkg/queue"
)

const windowColumns = `id, group_key, user_id, type, window_start, window_end, state,
	digest_job_id, created_at, updated_at`

// WindowStore implements grouping.Store on the group_windows and
// group_window_members tables. A partial unique index keeps one open window
// per group key.
type WindowStore struct {
	db DB
}

var _ grouping.Store = (*WindowStore)(nil)

// NewWindowStore creates a window store backed by db.
func NewWindowStore(db DB) *WindowStore {
	return &WindowStore{db: db}
}

// Open implements grouping.Store
func (s *WindowStore) Open(ctx context.Context, w *grouping.Window) error {
	return pg.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO group_windows (`+windowColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			w.ID, w.GroupKey, w.UserID, w.Type, utc(w.WindowStart), utc(w.WindowEnd),
			string(w.State), w.DigestJobID, utc(w.CreatedAt), utc(w.UpdatedAt))
		if pg.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", grouping.ErrWindowExists, w.GroupKey)
		}
		if err != nil {
			return err
		}

		for i := range w.Members {
			if err := insertMember(ctx, tx, w.ID, &w.Members[i], i); err != nil {
				return err
			}
		}
		return nil
	})
}

// Append implements grouping.Store. The open window row is locked for the
// duration of the append.
func (s *WindowStore) Append(ctx context.Context, groupKey string, job *queue.Job, now time.Time) (*grouping.Window, error) {
	member, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode job %s: %w", job.ID, err)
	}

	var (
		out     *grouping.Window
		expired bool
	)
	err = pg.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		w, err := scanWindow(tx.QueryRow(ctx, `SELECT `+windowColumns+` FROM group_windows
			WHERE group_key = $1 AND state = 'open' FOR UPDATE`, groupKey))
		if pg.IsNotFoundError(err) {
			return fmt.Errorf("%w: %s", grouping.ErrWindowNotFound, groupKey)
		}
		if err != nil {
			return err
		}

		if w.Accepts(now) {
			tag, err := tx.Exec(ctx, `INSERT INTO group_window_members (window_id, job_id, position, job)
				SELECT $1, $2, coalesce(max(position), -1) + 1, $3
				FROM group_window_members WHERE window_id = $1
				ON CONFLICT (window_id, job_id) DO NOTHING`,
				w.ID, job.ID, member)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 1 {
				w.UpdatedAt = now.UTC()
				if _, err := tx.Exec(ctx, `UPDATE group_windows SET updated_at = $2 WHERE id = $1`, w.ID, w.UpdatedAt); err != nil {
					return err
				}
			}
		} else {
			expired = true
		}

		if err := loadMembers(ctx, tx, w); err != nil {
			return err
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return out, fmt.Errorf("%w: %s", grouping.ErrWindowExpired, out.ID)
	}
	return out, nil
}

// Transition implements grouping.Store
func (s *WindowStore) Transition(ctx context.Context, id string, from, to grouping.WindowState, digestJobID string, at time.Time) (*grouping.Window, error) {
	w, err := scanWindow(s.db.QueryRow(ctx, `UPDATE group_windows SET
			state = $3,
			updated_at = $4,
			digest_job_id = CASE WHEN $5::text = '' THEN digest_job_id ELSE $5::text END
		WHERE id = $1 AND state = $2
		RETURNING `+windowColumns,
		id, string(from), string(to), at.UTC(), digestJobID))
	switch {
	case pg.IsDuplicateKeyError(err):
		return nil, fmt.Errorf("%w: %s", grouping.ErrWindowExists, id)
	case pg.IsNotFoundError(err):
		found, err := exists(ctx, s.db, `SELECT EXISTS (SELECT 1 FROM group_windows WHERE id = $1)`, id)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", grouping.ErrWindowNotFound, id)
		}
		return nil, fmt.Errorf("%w: %s, expected %s", grouping.ErrStateConflict, id, from)
	case err != nil:
		return nil, err
	}

	if err := loadMembers(ctx, s.db, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Get implements grouping.Store
func (s *WindowStore) Get(ctx context.Context, id string) (*grouping.Window, error) {
	return s.one(ctx, `SELECT `+windowColumns+` FROM group_windows WHERE id = $1`, id)
}

// FindOpen implements grouping.Store
func (s *WindowStore) FindOpen(ctx context.Context, groupKey string) (*grouping.Window, error) {
	return s.one(ctx, `SELECT `+windowColumns+` FROM group_windows
		WHERE group_key = $1 AND state = 'open'`, groupKey)
}

// ByMember implements grouping.Store
func (s *WindowStore) ByMember(ctx context.Context, jobID string) (*grouping.Window, error) {
	return s.one(ctx, `SELECT `+prefixed("w", windowColumns)+`
		FROM group_windows AS w
		JOIN group_window_members AS m ON m.window_id = w.id
		WHERE m.job_id = $1
		ORDER BY w.created_at DESC, w.id DESC
		LIMIT 1`, jobID)
}

// Pending implements grouping.Store
func (s *WindowStore) Pending(ctx context.Context, now, staleBefore time.Time, limit int) ([]*grouping.Window, error) {
	rows, err := s.db.Query(ctx, `SELECT `+windowColumns+` FROM group_windows
		WHERE (state = 'open' AND window_end <= $1)
			OR (state = 'flushing' AND updated_at < $2)
		ORDER BY window_end, id
		LIMIT $3`, now.UTC(), staleBefore.UTC(), limitArg(limit))
	if err != nil {
		return nil, err
	}

	var windows []*grouping.Window
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		windows = append(windows, w)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, w := range windows {
		if err := loadMembers(ctx, s.db, w); err != nil {
			return nil, err
		}
	}
	return windows, nil
}

func (s *WindowStore) one(ctx context.Context, query string, arg string) (*grouping.Window, error) {
	w, err := scanWindow(s.db.QueryRow(ctx, query, arg))
	if pg.IsNotFoundError(err) {
		return nil, fmt.Errorf("%w: %s", grouping.ErrWindowNotFound, arg)
	}
	if err != nil {
		return nil, err
	}
	if err := loadMembers(ctx, s.db, w); err != nil {
		return nil, err
	}
	return w, nil
}

func insertMember(ctx context.Context, q querier, windowID string, job *queue.Job, position int) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	_, err = q.Exec(ctx, `INSERT INTO group_window_members (window_id, job_id, position, job)
		VALUES ($1, $2, $3, $4) ON CONFLICT (window_id, job_id) DO NOTHING`,
		windowID, job.ID, position, raw)
	return err
}

func loadMembers(ctx context.Context, q querier, w *grouping.Window) error {
	rows, err := q.Query(ctx, `SELECT job FROM group_window_members
		WHERE window_id = $1 ORDER BY position`, w.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	w.Members = w.Members[:0]
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return err
		}
		var job queue.Job
		if err := json.Unmarshal(raw, &job); err != nil {
			return fmt.Errorf("decode member of window %s: %w", w.ID, err)
		}
		w.Members = append(w.Members, job)
	}
	return rows.Err()
}

func scanWindow(row pgx.Row) (*grouping.Window, error) {
	var (
		w     grouping.Window
		state string
	)
	err := row.Scan(&w.ID, &w.GroupKey, &w.UserID, &w.Type, &w.WindowStart, &w.WindowEnd,
		&state, &w.DigestJobID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	w.State = grouping.WindowState(state)
	w.WindowStart = utc(w.WindowStart)
	w.WindowEnd = utc(w.WindowEnd)
	w.CreatedAt = utc(w.CreatedAt)
	w.UpdatedAt = utc(w.UpdatedAt)
	return &w, nil
}
