package booking

import (
	"context"
	"strings"

	"github.com/careerpath/careerdesk/libs/events"
	"github.com/careerpath/careerdesk/services/booking-service/internal/apperr"
	"github.com/careerpath/careerdesk/services/booking-service/internal/model"
)

type RescheduleRequest struct {
	ID        string
	Date      string
	StartTime string
}

// Reschedule moves an appointment, keeping its duration. Cancelled and completed
// appointments cannot be moved.
func (s *Service) Reschedule(ctx context.Context, actor Actor, req RescheduleRequest) (model.Appointment, error) {
	fields := apperr.Fields{}
	day, start := s.parseSlot(fields, "new_date", req.Date, "new_start_time", req.StartTime)
	if err := fields.Err(); err != nil {
		return model.Appointment{}, err
	}

	var out model.Appointment
	err := s.withAppointmentDays(ctx, actor, req.ID, []string{model.DayKey(day)}, func(tx Tx, a model.Appointment) error {
		if a.Status == model.StatusCancelled || a.Status == model.StatusCompleted {
			return apperr.ErrNotAllowed
		}
		now := s.now()
		if !start.After(now) {
			return apperr.Invalid("new_start_time", "must be in the future")
		}
		duration := a.Duration()
		if err := s.checkStart(ctx, tx, day, start, duration, a.ID); err != nil {
			return err
		}

		prev := previous{status: a.Status, start: a.StartTime}
		a.Date = day
		a.StartTime = start
		a.EndTime = start.Add(duration)
		a.UpdatedAt = now
		switch a.Status {
		case model.StatusNoShow:
			a.Status = model.StatusPending
		case model.StatusConfirmed:
			if s.cfg.ResetConfirmedOnReschedule {
				a.Status = model.StatusPending
			}
		}
		if err := tx.UpdateAppointment(ctx, a); err != nil {
			return err
		}
		if err := tx.DeletePendingReminders(ctx, a.ID); err != nil {
			return err
		}
		if _, err := s.planReminders(ctx, tx, a, now); err != nil {
			return err
		}
		if err := s.appendAppointmentEvent(ctx, tx, events.AppointmentRescheduled, a, &prev); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}
	s.logger.Info("appointment rescheduled", "appointment_id", out.ID, "start_time", out.StartTime, "status", out.Status)
	return out, nil
}

// Cancel is allowed from any status; cancelling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, actor Actor, id string) (model.Appointment, error) {
	var out model.Appointment
	err := s.withAppointmentDays(ctx, actor, id, nil, func(tx Tx, a model.Appointment) error {
		if a.Status == model.StatusCancelled {
			out = a
			return nil
		}
		prev := previous{status: a.Status}
		a.Status = model.StatusCancelled
		a.UpdatedAt = s.now()
		if err := tx.UpdateAppointment(ctx, a); err != nil {
			return err
		}
		if err := tx.DeletePendingReminders(ctx, a.ID); err != nil {
			return err
		}
		if err := s.appendAppointmentEvent(ctx, tx, events.AppointmentCancelled, a, &prev); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}
	s.logger.Info("appointment cancelled", "appointment_id", out.ID)
	return out, nil
}

// SetStatus is the staff override. Any status may follow any other, but bringing a
// freed appointment back to pending or confirmed fails with apperr.ErrConflict when
// its interval has since been taken.
func (s *Service) SetStatus(ctx context.Context, id string, status model.Status) (model.Appointment, error) {
	status = model.Status(strings.TrimSpace(string(status)))
	if !status.Valid() {
		return model.Appointment{}, apperr.Invalid("status", "must be one of pending, confirmed, cancelled, completed, no_show")
	}

	var out model.Appointment
	err := s.withAppointmentDays(ctx, Actor{Staff: true}, id, nil, func(tx Tx, a model.Appointment) error {
		if a.Status == status {
			out = a
			return nil
		}
		now := s.now()
		prev := previous{status: a.Status}
		wasBlocking := a.Status.Blocking()

		if !wasBlocking && status.Blocking() {
			others, err := tx.BlockingAppointments(ctx, a.StartTime, a.EndTime)
			if err != nil {
				return err
			}
			for _, o := range others {
				if o.ID != a.ID && o.Status.Blocking() {
					return apperr.ErrConflict
				}
			}
		}

		a.Status = status
		a.UpdatedAt = now
		if err := tx.UpdateAppointment(ctx, a); err != nil {
			return err
		}
		switch {
		case wasBlocking && !status.Blocking():
			if err := tx.DeletePendingReminders(ctx, a.ID); err != nil {
				return err
			}
		case !wasBlocking && status.Blocking():
			if err := tx.DeletePendingReminders(ctx, a.ID); err != nil {
				return err
			}
			if _, err := s.planReminders(ctx, tx, a, now); err != nil {
				return err
			}
		}
		if err := s.appendAppointmentEvent(ctx, tx, events.AppointmentStatusChanged, a, &prev); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}
	s.logger.Info("appointment status changed", "appointment_id", out.ID, "status", out.Status)
	return out, nil
}

type Details struct {
	Appointment model.Appointment
	Reminders   []model.Reminder
}

func (s *Service) Get(ctx context.Context, actor Actor, id string) (Details, error) {
	if !validID(id) {
		return Details{}, apperr.ErrNotFound
	}
	a, err := s.store.Appointment(ctx, id)
	if err != nil {
		return Details{}, err
	}
	if !actor.canSee(a) {
		return Details{}, apperr.ErrNotFound
	}
	rs, err := s.store.Reminders(ctx, id)
	if err != nil {
		return Details{}, err
	}
	return Details{Appointment: a, Reminders: rs}, nil
}

func (s *Service) ListForAccount(ctx context.Context, accountID string) ([]model.Appointment, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, apperr.ErrNotFound
	}
	return s.store.AppointmentsForAccount(ctx, accountID)
}
