package storage

import (
	"context"
	"time"

	"github.com/careerpath/careerdesk/libs/db"
	"github.com/careerpath/careerdesk/services/booking-service/internal/apperr"
	"github.com/careerpath/careerdesk/services/booking-service/internal/model"
	"github.com/jackc/pgx/v5"
)

type TimePolicyRepository struct {
	pool *db.Pool
}

func NewTimePolicyRepository(pool *db.Pool) *TimePolicyRepository {
	return &TimePolicyRepository{pool: pool}
}

const weeklySlotColumns = `id, day_of_week,
	(EXTRACT(EPOCH FROM start_time) / 60)::int,
	(EXTRACT(EPOCH FROM end_time) / 60)::int,
	is_active`

func scanWeeklySlot(row pgx.CollectableRow) (model.WeeklyTimeSlot, error) {
	var s model.WeeklyTimeSlot
	err := row.Scan(&s.ID, &s.DayOfWeek, &s.StartMinute, &s.EndMinute, &s.IsActive)
	return s, err
}

func weeklyTemplate(ctx context.Context, q querier) ([]model.WeeklyTimeSlot, error) {
	rows, err := q.Query(ctx, `
		SELECT `+weeklySlotColumns+`
		FROM weekly_time_slots
		WHERE is_active
		ORDER BY day_of_week, start_time
	`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanWeeklySlot)
}

func exceptionsBetween(ctx context.Context, q querier, from, to time.Time) ([]model.AvailabilityException, error) {
	rows, err := q.Query(ctx, `
		SELECT id::text, exception_type, start_datetime, end_datetime, description, created_at
		FROM availability_exceptions
		WHERE start_datetime < $2 AND end_datetime > $1
		ORDER BY start_datetime
	`, from, to)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.AvailabilityException, error) {
		var e model.AvailabilityException
		err := row.Scan(&e.ID, &e.Type, &e.Start, &e.End, &e.Description, &e.CreatedAt)
		return e, err
	})
}

func (r *TimePolicyRepository) WeeklyTemplate(ctx context.Context) ([]model.WeeklyTimeSlot, error) {
	return weeklyTemplate(ctx, r.pool)
}

func (r *TimePolicyRepository) Exceptions(ctx context.Context, from, to time.Time) ([]model.AvailabilityException, error) {
	return exceptionsBetween(ctx, r.pool, from, to)
}

func (r *TimePolicyRepository) ListWeeklySlots(ctx context.Context) ([]model.WeeklyTimeSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+weeklySlotColumns+`
		FROM weekly_time_slots
		ORDER BY day_of_week, start_time
	`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanWeeklySlot)
}

func (r *TimePolicyRepository) CreateWeeklySlot(ctx context.Context, slot *model.WeeklyTimeSlot) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO weekly_time_slots (day_of_week, start_time, end_time, is_active)
		VALUES ($1, make_time($2 / 60, $2 % 60, 0), make_time($3 / 60, $3 % 60, 0), $4)
		RETURNING id
	`, slot.DayOfWeek, slot.StartMinute, slot.EndMinute, slot.IsActive).Scan(&slot.ID)
	return translate(err)
}

func (r *TimePolicyRepository) UpdateWeeklySlot(ctx context.Context, slot model.WeeklyTimeSlot) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE weekly_time_slots
		SET day_of_week = $2,
			start_time = make_time($3 / 60, $3 % 60, 0),
			end_time = make_time($4 / 60, $4 % 60, 0),
			is_active = $5
		WHERE id = $1
	`, slot.ID, slot.DayOfWeek, slot.StartMinute, slot.EndMinute, slot.IsActive)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *TimePolicyRepository) CreateException(ctx context.Context, e model.AvailabilityException) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO availability_exceptions (id, exception_type, description, start_datetime, end_datetime, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, string(e.Type), e.Description, e.Start, e.End, e.CreatedAt)
	return translate(err)
}

func (r *TimePolicyRepository) DeleteException(ctx context.Context, id string) error {
	if _, ok := parseID(id); !ok {
		return apperr.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM availability_exceptions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
