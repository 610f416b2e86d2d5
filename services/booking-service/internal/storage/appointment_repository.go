package storage

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/careerpath/careerdesk/libs/db"
	"github.com/careerpath/careerdesk/services/booking-service/internal/apperr"
	"github.com/careerpath/careerdesk/services/booking-service/internal/booking"
	"github.com/careerpath/careerdesk/services/booking-service/internal/model"
	"github.com/careerpath/careerdesk/services/booking-service/internal/outbox"
	"github.com/jackc/pgx/v5"
)

// BookingRepository is the Postgres implementation of booking.Store.
type BookingRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
	loc    *time.Location
}

func NewBookingRepository(pool *db.Pool, outboxRepo *outbox.Repository, loc *time.Location) *BookingRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &BookingRepository{pool: pool, outbox: outboxRepo, loc: loc}
}

const appointmentColumns = `id::text, COALESCE(account_id, ''), service_id, package_id, appointment_date,
	starts_at, ends_at, first_name, last_name, email, phone, notes, status, created_at, updated_at`

func (r *BookingRepository) scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	var date time.Time
	err := row.Scan(
		&a.ID,
		&a.Client.AccountID,
		&a.ServiceID,
		&a.PackageID,
		&date,
		&a.StartTime,
		&a.EndTime,
		&a.Client.FirstName,
		&a.Client.LastName,
		&a.Client.Email,
		&a.Client.Phone,
		&a.Notes,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	// date columns come back as UTC midnight; re-anchor in the business zone.
	a.Date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, r.loc)
	a.StartTime = a.StartTime.In(r.loc)
	a.EndTime = a.EndTime.In(r.loc)
	return a, nil
}

func (r *BookingRepository) collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Appointment, error) {
		return r.scanAppointment(row)
	})
}

func (r *BookingRepository) blocking(ctx context.Context, q querier, from, to time.Time) ([]model.Appointment, error) {
	rows, err := q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('pending', 'confirmed')
			AND starts_at < $2
			AND ends_at > $1
		ORDER BY starts_at
	`, from, to)
	if err != nil {
		return nil, err
	}
	return r.collectAppointments(rows)
}

func (r *BookingRepository) WeeklyTemplate(ctx context.Context) ([]model.WeeklyTimeSlot, error) {
	return weeklyTemplate(ctx, r.pool)
}

func (r *BookingRepository) Exceptions(ctx context.Context, from, to time.Time) ([]model.AvailabilityException, error) {
	return exceptionsBetween(ctx, r.pool, from, to)
}

func (r *BookingRepository) BlockingAppointments(ctx context.Context, from, to time.Time) ([]model.Appointment, error) {
	return r.blocking(ctx, r.pool, from, to)
}

func (r *BookingRepository) Appointment(ctx context.Context, id string) (model.Appointment, error) {
	if _, ok := parseID(id); !ok {
		return model.Appointment{}, apperr.ErrNotFound
	}
	a, err := r.scanAppointment(r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+` FROM appointments WHERE id = $1
	`, id))
	return a, translate(err)
}

func (r *BookingRepository) Reminders(ctx context.Context, appointmentID string) ([]model.Reminder, error) {
	if _, ok := parseID(appointmentID); !ok {
		return nil, apperr.ErrNotFound
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+reminderColumns+`
		FROM appointment_reminders
		WHERE appointment_id = $1
		ORDER BY scheduled_time, reminder_type
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanReminder)
}

func (r *BookingRepository) AppointmentsForAccount(ctx context.Context, accountID string) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE account_id = $1
		ORDER BY starts_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	return r.collectAppointments(rows)
}

// WithDayLocks takes pg_advisory_xact_lock per day in ascending order, so two
// transactions touching the same pair of days always queue instead of deadlocking.
func (r *BookingRepository) WithDayLocks(ctx context.Context, days []string, fn func(booking.Tx) error) error {
	keys := uniqueSorted(days)
	return r.pool.InTx(ctx, func(tx pgx.Tx) error {
		for _, day := range keys {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('booking-day:' || $1::text))`, day); err != nil {
				return err
			}
		}
		return fn(&bookingTx{repo: r, tx: tx})
	})
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

type bookingTx struct {
	repo *BookingRepository
	tx   pgx.Tx
}

func (t *bookingTx) WeeklyTemplate(ctx context.Context) ([]model.WeeklyTimeSlot, error) {
	return weeklyTemplate(ctx, t.tx)
}

func (t *bookingTx) Exceptions(ctx context.Context, from, to time.Time) ([]model.AvailabilityException, error) {
	return exceptionsBetween(ctx, t.tx, from, to)
}

func (t *bookingTx) BlockingAppointments(ctx context.Context, from, to time.Time) ([]model.Appointment, error) {
	return t.repo.blocking(ctx, t.tx, from, to)
}

func (t *bookingTx) AppointmentForUpdate(ctx context.Context, id string) (model.Appointment, error) {
	if _, ok := parseID(id); !ok {
		return model.Appointment{}, apperr.ErrNotFound
	}
	a, err := t.repo.scanAppointment(t.tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE
	`, id))
	return a, translate(err)
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (t *bookingTx) InsertAppointment(ctx context.Context, a model.Appointment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO appointments
			(id, account_id, service_id, package_id, appointment_date, starts_at, ends_at,
			 first_name, last_name, email, phone, notes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, a.ID, nullIfEmpty(a.Client.AccountID), a.ServiceID, a.PackageID, model.DayKey(a.Date), a.StartTime, a.EndTime,
		a.Client.FirstName, a.Client.LastName, a.Client.Email, a.Client.Phone, a.Notes, string(a.Status),
		a.CreatedAt, a.UpdatedAt)
	return translate(err)
}

func (t *bookingTx) UpdateAppointment(ctx context.Context, a model.Appointment) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE appointments
		SET appointment_date = $2::date,
			starts_at = $3,
			ends_at = $4,
			status = $5,
			updated_at = $6
		WHERE id = $1
	`, a.ID, model.DayKey(a.Date), a.StartTime, a.EndTime, string(a.Status), a.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (t *bookingTx) InsertReminders(ctx context.Context, rs []model.Reminder) error {
	if len(rs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, rm := range rs {
		batch.Queue(`
			INSERT INTO appointment_reminders
				(id, appointment_id, reminder_type, recipient, scheduled_time, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, rm.ID, rm.AppointmentID, string(rm.Channel), rm.Recipient, rm.ScheduledTime, string(rm.Status), rm.CreatedAt)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *bookingTx) DeletePendingReminders(ctx context.Context, appointmentID string) error {
	_, err := t.tx.Exec(ctx, `
		DELETE FROM appointment_reminders
		WHERE appointment_id = $1 AND status = 'pending' AND dispatched_at IS NULL
	`, appointmentID)
	return err
}

func (t *bookingTx) Preferences(ctx context.Context, accountID string) (*model.Preferences, error) {
	if _, ok := parseID(accountID); !ok {
		return nil, nil
	}
	p, err := preferences(ctx, t.tx, accountID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *bookingTx) AppendEvent(ctx context.Context, evt outbox.Event) error {
	return t.repo.outbox.Insert(ctx, t.tx, evt)
}

func (t *bookingTx) IdempotentBooking(ctx context.Context, key string) (booking.IdempotencyRecord, bool, error) {
	rec := booking.IdempotencyRecord{Key: key}
	err := t.tx.QueryRow(ctx, `
		SELECT fingerprint, appointment_id::text
		FROM booking_idempotency_keys
		WHERE idempotency_key = $1
		FOR UPDATE
	`, key).Scan(&rec.Fingerprint, &rec.AppointmentID)
	if IsNotFound(err) {
		return booking.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return booking.IdempotencyRecord{}, false, err
	}
	return rec, true, nil
}

func (t *bookingTx) SaveIdempotentBooking(ctx context.Context, rec booking.IdempotencyRecord) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (idempotency_key, fingerprint, appointment_id)
		VALUES ($1, $2, $3)
	`, rec.Key, rec.Fingerprint, rec.AppointmentID)
	return idempotencyInsertError(err)
}

// idempotencyInsertError reports a key claimed by a concurrent booking on
// another day as key reuse, not as a slot conflict.
func idempotencyInsertError(err error) error {
	if IsUnique(err) {
		return apperr.Invalid("idempotency_key", "was already used for a different request")
	}
	return translate(err)
}
