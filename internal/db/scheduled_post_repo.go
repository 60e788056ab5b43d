package db

import (
	"context"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"autopost/internal/types"
)

var scheduledPostColumns = []string{
	"id", "user_id", "schedule_type", "interval_value", "interval_unit",
	"time_of_day", "time_zone_id", "last_posted_at", "next_scheduled_at",
	"status", "lease_expires_at", "created_at", "updated_at",
}

// DueCursor is the keyset position after the last record of a due page.
type DueCursor struct {
	NextScheduledAt time.Time
	ID              string
}

// ScheduledPostRepository provides data access for scheduled_posts.
type ScheduledPostRepository struct {
	db DBTX
}

// NewScheduledPostRepository creates a ScheduledPostRepository.
func NewScheduledPostRepository(db DBTX) *ScheduledPostRepository {
	return &ScheduledPostRepository{db: db}
}

// FindDue returns up to limit active, unleased records with
// next_scheduled_at <= now, ordered by (next_scheduled_at, id) and starting
// after cursor when one is given.
func (r *ScheduledPostRepository) FindDue(ctx context.Context, now time.Time, cursor *DueCursor, limit int) ([]*types.ScheduledPost, error) {
	q := psql.Select(scheduledPostColumns...).
		From("scheduled_posts").
		Where(sq.Eq{"status": string(types.StatusActive)}).
		Where(sq.LtOrEq{"next_scheduled_at": now}).
		Where(sq.Or{sq.Eq{"lease_expires_at": nil}, sq.Lt{"lease_expires_at": now}}).
		OrderBy("next_scheduled_at", "id").
		Limit(uint64(limit))
	if cursor != nil {
		q = q.Where(sq.Expr("(next_scheduled_at, id) > (?, ?)", cursor.NextScheduledAt, cursor.ID))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build due query", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query due schedules", err)
	}
	defer rows.Close()

	var posts []*types.ScheduledPost
	for rows.Next() {
		p, err := scanScheduledPost(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan scheduled post", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating due schedules", err)
	}
	return posts, nil
}

// Claim leases a due record until leaseUntil. It returns false when the
// record is no longer active and due, or another worker holds a live lease.
func (r *ScheduledPostRepository) Claim(ctx context.Context, id string, now, leaseUntil time.Time) (bool, error) {
	query, args, err := psql.Update("scheduled_posts").
		Set("lease_expires_at", leaseUntil).
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "status": string(types.StatusActive)}).
		Where(sq.LtOrEq{"next_scheduled_at": now}).
		Where(sq.Or{sq.Eq{"lease_expires_at": nil}, sq.Lt{"lease_expires_at": now}}).
		ToSql()
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build claim query", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to claim scheduled post", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Save writes the mutable state of post and releases any lease.
func (r *ScheduledPostRepository) Save(ctx context.Context, post *types.ScheduledPost) error {
	post.LeaseExpiresAt = nil
	query, args, err := psql.Update("scheduled_posts").
		Set("status", string(post.Status)).
		Set("last_posted_at", post.LastPostedAt).
		Set("next_scheduled_at", post.NextScheduledAt).
		Set("lease_expires_at", nil).
		Set("updated_at", post.UpdatedAt).
		Where(sq.Eq{"id": post.ID}).
		ToSql()
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build save query", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save scheduled post", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundSchedule, "scheduled post not found", nil)
	}
	return nil
}

// SaveLeased is Save for a batch worker: the write only happens while the
// row still carries the lease the worker claimed. It returns false when the
// lease was lost, for example because the schedule was reconfigured or
// deleted mid-pass.
func (r *ScheduledPostRepository) SaveLeased(ctx context.Context, post *types.ScheduledPost, lease time.Time) (bool, error) {
	query, args, err := psql.Update("scheduled_posts").
		Set("status", string(post.Status)).
		Set("last_posted_at", post.LastPostedAt).
		Set("next_scheduled_at", post.NextScheduledAt).
		Set("lease_expires_at", nil).
		Set("updated_at", post.UpdatedAt).
		Where(sq.Eq{"id": post.ID, "lease_expires_at": lease}).
		ToSql()
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build save query", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to save scheduled post", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	post.LeaseExpiresAt = nil
	return true, nil
}

// Upsert creates the user's schedule or overwrites its configuration in
// place. The id and created_at of an existing row are kept.
func (r *ScheduledPostRepository) Upsert(ctx context.Context, post *types.ScheduledPost) (*types.ScheduledPost, error) {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	var unit *string
	if post.IntervalUnit != nil {
		s := string(*post.IntervalUnit)
		unit = &s
	}

	query, args, err := psql.Insert("scheduled_posts").
		Columns(scheduledPostColumns...).
		Values(
			post.ID, post.UserID, string(post.ScheduleType), post.IntervalValue, unit,
			post.TimeOfDay, post.TimeZoneID, post.LastPostedAt, post.NextScheduledAt,
			string(post.Status), nil, post.CreatedAt, post.UpdatedAt,
		).
		Suffix(`ON CONFLICT (user_id) DO UPDATE SET
			schedule_type = EXCLUDED.schedule_type,
			interval_value = EXCLUDED.interval_value,
			interval_unit = EXCLUDED.interval_unit,
			time_of_day = EXCLUDED.time_of_day,
			time_zone_id = EXCLUDED.time_zone_id,
			next_scheduled_at = EXCLUDED.next_scheduled_at,
			status = EXCLUDED.status,
			lease_expires_at = NULL,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + strings.Join(scheduledPostColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build upsert query", err)
	}

	saved, err := scanScheduledPost(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to upsert scheduled post", err)
	}
	return saved, nil
}

// GetByUser returns the schedule owned by userID.
func (r *ScheduledPostRepository) GetByUser(ctx context.Context, userID string) (*types.ScheduledPost, error) {
	return r.getOne(ctx, sq.Eq{"user_id": userID})
}

// GetByID returns the schedule with the given id.
func (r *ScheduledPostRepository) GetByID(ctx context.Context, id string) (*types.ScheduledPost, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

func (r *ScheduledPostRepository) getOne(ctx context.Context, pred sq.Eq) (*types.ScheduledPost, error) {
	query, args, err := psql.Select(scheduledPostColumns...).From("scheduled_posts").Where(pred).ToSql()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build schedule query", err)
	}

	p, err := scanScheduledPost(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundSchedule, "schedule not found", nil)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load schedule", err)
	}
	return p, nil
}

// DeleteByUser removes the user's schedule. Deleting a missing schedule is
// not an error.
func (r *ScheduledPostRepository) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM scheduled_posts WHERE user_id = $1`, userID); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete schedule", err)
	}
	return nil
}

func scanScheduledPost(row pgx.Row) (*types.ScheduledPost, error) {
	var (
		p            types.ScheduledPost
		scheduleType string
		status       string
		unit         *string
	)
	if err := row.Scan(
		&p.ID,
		&p.UserID,
		&scheduleType,
		&p.IntervalValue,
		&unit,
		&p.TimeOfDay,
		&p.TimeZoneID,
		&p.LastPostedAt,
		&p.NextScheduledAt,
		&status,
		&p.LeaseExpiresAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.ScheduleType = types.ScheduleType(scheduleType)
	p.Status = types.ScheduleStatus(status)
	if unit != nil {
		u := types.IntervalUnit(*unit)
		p.IntervalUnit = &u
	}
	return &p, nil
}
