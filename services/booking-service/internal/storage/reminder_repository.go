package storage

import (
	"context"
	"time"

	"github.com/careerpath/careerdesk/libs/db"
	"github.com/careerpath/careerdesk/services/booking-service/internal/apperr"
	"github.com/careerpath/careerdesk/services/booking-service/internal/model"
	"github.com/careerpath/careerdesk/services/booking-service/internal/outbox"
	"github.com/careerpath/careerdesk/services/booking-service/internal/reminders"
	"github.com/jackc/pgx/v5"
)

const reminderColumns = `id::text, appointment_id::text, reminder_type, recipient, scheduled_time, status,
	sent_at, failed_at, error_message, dispatched_at, created_at`

func scanReminder(row pgx.CollectableRow) (model.Reminder, error) {
	var rm model.Reminder
	err := row.Scan(&rm.ID, &rm.AppointmentID, &rm.Channel, &rm.Recipient, &rm.ScheduledTime, &rm.Status,
		&rm.SentAt, &rm.FailedAt, &rm.ErrorMessage, &rm.DispatchedAt, &rm.CreatedAt)
	return rm, err
}

type ReminderRepository struct {
	pool     *db.Pool
	outbox   *outbox.Repository
	bookings *BookingRepository
}

func NewReminderRepository(pool *db.Pool, outboxRepo *outbox.Repository, bookings *BookingRepository) *ReminderRepository {
	return &ReminderRepository{pool: pool, outbox: outboxRepo, bookings: bookings}
}

func (r *ReminderRepository) InSweepTx(ctx context.Context, fn func(reminders.SweepTx) error) error {
	return r.pool.InTx(ctx, func(tx pgx.Tx) error {
		return fn(&sweepTx{repo: r, tx: tx})
	})
}

type sweepTx struct {
	repo *ReminderRepository
	tx   pgx.Tx
}

func (t *sweepTx) ClaimDue(ctx context.Context, now time.Time, limit int) ([]reminders.Due, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT r.id::text, r.appointment_id::text, r.reminder_type, r.recipient, r.scheduled_time, r.status,
			r.sent_at, r.error_message, r.dispatched_at, r.created_at,
			COALESCE(p.name, s.name, '')
		FROM appointment_reminders r
		LEFT JOIN appointments a ON a.id = r.appointment_id
		LEFT JOIN services s ON s.id = a.service_id
		LEFT JOIN packages p ON p.id = a.package_id
		WHERE r.status = 'pending'
			AND r.dispatched_at IS NULL
			AND r.scheduled_time <= $1
		ORDER BY r.scheduled_time
		LIMIT $2
		FOR UPDATE OF r SKIP LOCKED
	`, now, limit)
	if err != nil {
		return nil, err
	}
	due, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (reminders.Due, error) {
		var d reminders.Due
		rm := &d.Reminder
		err := row.Scan(&rm.ID, &rm.AppointmentID, &rm.Channel, &rm.Recipient, &rm.ScheduledTime, &rm.Status,
			&rm.SentAt, &rm.ErrorMessage, &rm.DispatchedAt, &rm.CreatedAt, &d.OfferingName)
		return d, err
	})
	if err != nil {
		return nil, err
	}

	for i := range due {
		a, err := t.repo.bookings.scanAppointment(t.tx.QueryRow(ctx, `
			SELECT `+appointmentColumns+` FROM appointments WHERE id = $1
		`, due[i].Reminder.AppointmentID))
		if err != nil {
			return nil, translate(err)
		}
		due[i].Appointment = a
	}
	return due, nil
}

func (t *sweepTx) MarkDispatched(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := t.tx.Exec(ctx, `
		UPDATE appointment_reminders SET dispatched_at = $2 WHERE id = ANY($1::uuid[])
	`, ids, at)
	return err
}

func (t *sweepTx) MarkFailed(ctx context.Context, id, message string, at time.Time) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE appointment_reminders SET status = 'failed', error_message = $2, failed_at = $3
		WHERE id = $1 AND status = 'pending'
	`, id, message, at)
	return err
}

func (t *sweepTx) AppendEvent(ctx context.Context, evt outbox.Event) error {
	return t.repo.outbox.Insert(ctx, t.tx, evt)
}

// MarkSent moves a pending reminder to sent. Reminders already settled are left alone.
func (r *ReminderRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	return r.settle(ctx, id, `
		UPDATE appointment_reminders SET status = 'sent', sent_at = $2, error_message = ''
		WHERE id = $1 AND status = 'pending'
	`, at)
}

func (r *ReminderRepository) MarkFailed(ctx context.Context, id, message string, at time.Time) error {
	return r.settle(ctx, id, `
		UPDATE appointment_reminders SET status = 'failed', error_message = $2, failed_at = $3
		WHERE id = $1 AND status = 'pending'
	`, message, at)
}

func (r *ReminderRepository) settle(ctx context.Context, id, sql string, args ...any) error {
	if _, ok := parseID(id); !ok {
		return apperr.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, sql, append([]any{id}, args...)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointment_reminders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return apperr.ErrNotFound
	}
	return nil
}
