// Package booking is the authoritative appointment ledger. Every write that can
// change which intervals are occupied runs under the exclusive lock of the affected
// days and re-derives the slot list before committing.
package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/careerpath/careerdesk/services/booking-service/internal/apperr"
	"github.com/careerpath/careerdesk/services/booking-service/internal/catalog"
	"github.com/careerpath/careerdesk/services/booking-service/internal/model"
	"github.com/careerpath/careerdesk/services/booking-service/internal/outbox"
	"github.com/careerpath/careerdesk/services/booking-service/internal/timepolicy"
)

// Queries are the reads slot generation needs. They are safe to run with or without
// a day lock.
type Queries interface {
	timepolicy.Reader
	// BlockingAppointments returns pending and confirmed appointments overlapping [from, to).
	BlockingAppointments(ctx context.Context, from, to time.Time) ([]model.Appointment, error)
}

// IdempotencyRecord ties an Idempotency-Key to the appointment it created.
type IdempotencyRecord struct {
	Key           string
	Fingerprint   string
	AppointmentID string
}

// Tx is the unit of work handed out by Store.WithDayLocks.
type Tx interface {
	Queries
	AppointmentForUpdate(ctx context.Context, id string) (model.Appointment, error)
	// InsertAppointment and UpdateAppointment return apperr.ErrConflict when the
	// database rejects an overlapping active interval.
	InsertAppointment(ctx context.Context, a model.Appointment) error
	UpdateAppointment(ctx context.Context, a model.Appointment) error
	InsertReminders(ctx context.Context, rs []model.Reminder) error
	// DeletePendingReminders removes reminders not yet handed to the dispatcher.
	DeletePendingReminders(ctx context.Context, appointmentID string) error
	// Preferences returns nil when the account has none.
	Preferences(ctx context.Context, accountID string) (*model.Preferences, error)
	AppendEvent(ctx context.Context, evt outbox.Event) error
	IdempotentBooking(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	SaveIdempotentBooking(ctx context.Context, rec IdempotencyRecord) error
}

type Store interface {
	Queries
	Appointment(ctx context.Context, id string) (model.Appointment, error)
	Reminders(ctx context.Context, appointmentID string) ([]model.Reminder, error)
	AppointmentsForAccount(ctx context.Context, accountID string) ([]model.Appointment, error)
	// WithDayLocks runs fn in one transaction after taking an exclusive lock per
	// day key (YYYY-MM-DD) in ascending order. An error from fn rolls everything back.
	WithDayLocks(ctx context.Context, days []string, fn func(Tx) error) error
}

// Planner creates reminder rows for an appointment.
type Planner interface {
	Plan(appt model.Appointment, prefs *model.Preferences, now time.Time) []model.Reminder
}

type Config struct {
	Location *time.Location
	// SlotStep is the distance between offered starts; zero means the offering's duration.
	SlotStep time.Duration
	// ResetConfirmedOnReschedule moves a confirmed appointment back to pending when it is moved.
	ResetConfirmedOnReschedule bool
	MaxRangeDays               int
}

type Service struct {
	store   Store
	catalog catalog.Source
	planner Planner
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

func NewService(store Store, src catalog.Source, planner Planner, cfg Config, logger *slog.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = 31
	}
	return &Service{
		store:   store,
		catalog: src,
		planner: planner,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		newID:   newAppointmentID,
	}
}

func (s *Service) Location() *time.Location {
	return s.cfg.Location
}

// Actor identifies the caller. A zero Actor is an anonymous guest.
type Actor struct {
	AccountID string
	Staff     bool
}

// canSee hides appointments that belong to another account. Guest bookings are
// addressed by their unguessable id alone.
func (a Actor) canSee(appt model.Appointment) bool {
	if a.Staff || appt.Client.AccountID == "" {
		return true
	}
	return a.AccountID == appt.Client.AccountID
}

// errDayMoved is returned from inside a locked transaction when the appointment
// changed day between the unlocked read and the lock.
var errDayMoved = errors.New("appointment moved to another day")

const maxLockAttempts = 3

// withAppointmentDays locks the appointment's current day plus extra, re-reading it
// when a concurrent change moved it in between.
func (s *Service) withAppointmentDays(ctx context.Context, actor Actor, id string, extra []string, fn func(tx Tx, a model.Appointment) error) error {
	if !validID(id) {
		return apperr.ErrNotFound
	}
	for attempt := 0; attempt < maxLockAttempts; attempt++ {
		current, err := s.store.Appointment(ctx, id)
		if err != nil {
			return err
		}
		if !actor.canSee(current) {
			return apperr.ErrNotFound
		}
		day := model.DayKey(current.Date)
		err = s.store.WithDayLocks(ctx, append([]string{day}, extra...), func(tx Tx) error {
			a, err := tx.AppointmentForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if model.DayKey(a.Date) != day {
				return errDayMoved
			}
			return fn(tx, a)
		})
		if !errors.Is(err, errDayMoved) {
			return err
		}
	}
	return apperr.ErrConflict
}
