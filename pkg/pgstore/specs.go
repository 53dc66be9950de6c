package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/notifykit/pkg/pg"
	"github.com/dmitrymomot/notifykit/pkg/schedule"
)

const specColumns = `id, cron_expression, fire_at, timezone, skip_weekends, skip_holidays,
	holiday_region, max_occurrences, occurrences_so_far, next_fire_at, retired,
	template, version, created_at, updated_at`

// SpecRepository implements schedule.Repository on the schedule_specs table.
type SpecRepository struct {
	db DB
}

var _ schedule.Repository = (*SpecRepository)(nil)

// NewSpecRepository creates a spec repository backed by db.
func NewSpecRepository(db DB) *SpecRepository {
	return &SpecRepository{db: db}
}

// Create implements schedule.Repository
func (r *SpecRepository) Create(ctx context.Context, spec *schedule.Spec) error {
	tmpl, err := json.Marshal(spec.Template)
	if err != nil {
		return fmt.Errorf("encode template of spec %s: %w", spec.ID, err)
	}

	_, err = r.db.Exec(ctx, `INSERT INTO schedule_specs (`+specColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		spec.ID, spec.CronExpression, utcPtr(spec.FireAt), spec.Timezone, spec.SkipWeekends,
		spec.SkipHolidays, spec.HolidayRegion, spec.MaxOccurrences, spec.OccurrencesSoFar,
		utcPtr(spec.NextFireAt), spec.Retired, tmpl, spec.Version,
		utc(spec.CreatedAt), utc(spec.UpdatedAt))
	if pg.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", schedule.ErrDuplicateSpec, spec.ID)
	}
	return err
}

// Get implements schedule.Repository
func (r *SpecRepository) Get(ctx context.Context, id string) (*schedule.Spec, error) {
	spec, err := scanSpec(r.db.QueryRow(ctx, `SELECT `+specColumns+` FROM schedule_specs WHERE id = $1`, id))
	if pg.IsNotFoundError(err) {
		return nil, fmt.Errorf("%w: %s", schedule.ErrSpecNotFound, id)
	}
	return spec, err
}

// Due implements schedule.Repository
func (r *SpecRepository) Due(ctx context.Context, now time.Time, limit int) ([]*schedule.Spec, error) {
	rows, err := r.db.Query(ctx, `SELECT `+specColumns+` FROM schedule_specs
		WHERE NOT retired AND next_fire_at IS NOT NULL AND next_fire_at <= $1
		ORDER BY next_fire_at, id
		LIMIT $2`, now.UTC(), limitArg(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var specs []*schedule.Spec
	for rows.Next() {
		spec, err := scanSpec(rows)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, rows.Err()
}

// Update implements schedule.Repository
func (r *SpecRepository) Update(ctx context.Context, spec *schedule.Spec, expectedVersion int64) error {
	tmpl, err := json.Marshal(spec.Template)
	if err != nil {
		return fmt.Errorf("encode template of spec %s: %w", spec.ID, err)
	}

	tag, err := r.db.Exec(ctx, `UPDATE schedule_specs SET
			cron_expression = $2, fire_at = $3, timezone = $4, skip_weekends = $5,
			skip_holidays = $6, holiday_region = $7, max_occurrences = $8,
			occurrences_so_far = $9, next_fire_at = $10, retired = $11,
			template = $12, version = $13, updated_at = $14
		WHERE id = $1 AND version = $15`,
		spec.ID, spec.CronExpression, utcPtr(spec.FireAt), spec.Timezone, spec.SkipWeekends,
		spec.SkipHolidays, spec.HolidayRegion, spec.MaxOccurrences, spec.OccurrencesSoFar,
		utcPtr(spec.NextFireAt), spec.Retired, tmpl, spec.Version, utc(spec.UpdatedAt),
		expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	found, err := exists(ctx, r.db, `SELECT EXISTS (SELECT 1 FROM schedule_specs WHERE id = $1)`, spec.ID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", schedule.ErrSpecNotFound, spec.ID)
	}
	return fmt.Errorf("%w: %s, expected version %d", schedule.ErrStaleSpec, spec.ID, expectedVersion)
}

func scanSpec(row pgx.Row) (*schedule.Spec, error) {
	var (
		spec schedule.Spec
		tmpl []byte
	)
	err := row.Scan(&spec.ID, &spec.CronExpression, &spec.FireAt, &spec.Timezone,
		&spec.SkipWeekends, &spec.SkipHolidays, &spec.HolidayRegion, &spec.MaxOccurrences,
		&spec.OccurrencesSoFar, &spec.NextFireAt, &spec.Retired, &tmpl, &spec.Version,
		&spec.CreatedAt, &spec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(tmpl, &spec.Template); err != nil {
		return nil, fmt.Errorf("decode template of spec %s: %w", spec.ID, err)
	}

	spec.FireAt = utcPtr(spec.FireAt)
	spec.NextFireAt = utcPtr(spec.NextFireAt)
	spec.CreatedAt = utc(spec.CreatedAt)
	spec.UpdatedAt = utc(spec.UpdatedAt)
	return &spec, nil
}
