package booking

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/careerpath/careerdesk/libs/events"
	"github.com/careerpath/careerdesk/services/booking-service/internal/apperr"
	"github.com/careerpath/careerdesk/services/booking-service/internal/catalog"
	"github.com/careerpath/careerdesk/services/booking-service/internal/model"
	"github.com/careerpath/careerdesk/services/booking-service/internal/outbox"
)

type BookRequest struct {
	Client    model.Client
	Selection catalog.Selection
	Date      string // YYYY-MM-DD
	StartTime string // HH:MM
	Notes     string
	// IdempotencyKey makes retries of the same request return the first result.
	IdempotencyKey string
}

type BookResult struct {
	Appointment model.Appointment
	Reminders   []model.Reminder
	// Replayed is true when the result was produced by an earlier request with the same key.
	Replayed bool
}

// Book creates a pending appointment. Validation, catalog lookup and slot parsing
// happen before any lock is taken; the slot itself is re-derived under the day lock.
func (s *Service) Book(ctx context.Context, actor Actor, req BookRequest) (BookResult, error) {
	fields := apperr.Fields{}
	client := req.Client
	client.AccountID = actor.AccountID
	validateClient(fields, &client)
	day, start := s.parseSlot(fields, "date", req.Date, "start_time", req.StartTime)
	notes := strings.TrimSpace(req.Notes)
	if utf8.RuneCountInString(notes) > maxNotesLen {
		fields.Add("notes", "is too long")
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if len(key) > 128 {
		fields.Add("idempotency_key", "must be at most 128 characters")
	}
	if err := fields.Err(); err != nil {
		return BookResult{}, err
	}

	offering, err := catalog.Resolve(ctx, s.catalog, req.Selection)
	if err != nil {
		return BookResult{}, err
	}
	duration := offering.Duration()
	fingerprint := bookingFingerprint(client, req, offering)

	var result BookResult
	err = s.store.WithDayLocks(ctx, []string{model.DayKey(day)}, func(tx Tx) error {
		if key != "" {
			rec, found, err := tx.IdempotentBooking(ctx, key)
			if err != nil {
				return err
			}
			if found {
				if rec.Fingerprint != fingerprint {
					return apperr.Invalid("idempotency_key", "was already used for a different request")
				}
				a, err := tx.AppointmentForUpdate(ctx, rec.AppointmentID)
				if err != nil {
					return err
				}
				result = BookResult{Appointment: a, Replayed: true}
				return nil
			}
		}

		now := s.now()
		if !start.After(now) {
			return apperr.Invalid("start_time", "must be in the future")
		}
		if err := s.checkStart(ctx, tx, day, start, duration, ""); err != nil {
			return err
		}

		appt := model.Appointment{
			ID:        s.newID(),
			Client:    client,
			ServiceID: req.Selection.ServiceID,
			PackageID: req.Selection.PackageID,
			Date:      day,
			StartTime: start,
			EndTime:   start.Add(duration),
			Status:    model.StatusPending,
			Notes:     notes,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.InsertAppointment(ctx, appt); err != nil {
			return err
		}
		reminders, err := s.planReminders(ctx, tx, appt, now)
		if err != nil {
			return err
		}
		if err := s.appendAppointmentEvent(ctx, tx, events.AppointmentBooked, appt, nil); err != nil {
			return err
		}
		if key != "" {
			if err := tx.SaveIdempotentBooking(ctx, IdempotencyRecord{Key: key, Fingerprint: fingerprint, AppointmentID: appt.ID}); err != nil {
				return err
			}
		}
		result = BookResult{Appointment: appt, Reminders: reminders}
		return nil
	})
	if err != nil {
		return BookResult{}, err
	}
	if !result.Replayed {
		s.logger.Info("appointment booked",
			"appointment_id", result.Appointment.ID,
			"date", model.DayKey(day),
			"start_time", result.Appointment.StartTime,
			"reminders", len(result.Reminders),
		)
	}
	return result, nil
}

func (s *Service) planReminders(ctx context.Context, tx Tx, appt model.Appointment, now time.Time) ([]model.Reminder, error) {
	if s.planner == nil {
		return nil, nil
	}
	var prefs *model.Preferences
	if appt.Client.AccountID != "" {
		p, err := tx.Preferences(ctx, appt.Client.AccountID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		prefs = p
	}
	reminders := s.planner.Plan(appt, prefs, now)
	if len(reminders) == 0 {
		return nil, nil
	}
	if err := tx.InsertReminders(ctx, reminders); err != nil {
		return nil, err
	}
	return reminders, nil
}

type previous struct {
	status model.Status
	start  time.Time
}

func (s *Service) appendAppointmentEvent(ctx context.Context, tx Tx, eventType string, a model.Appointment, prev *previous) error {
	payload := events.Appointment{
		AppointmentID: a.ID,
		AccountID:     a.Client.AccountID,
		ServiceID:     a.ServiceID,
		PackageID:     a.PackageID,
		Date:          model.DayKey(a.Date),
		StartTime:     a.StartTime.UTC(),
		EndTime:       a.EndTime.UTC(),
		Status:        string(a.Status),
		ClientEmail:   a.Client.Email,
	}
	if prev != nil {
		payload.PreviousStatus = string(prev.status)
		if !prev.start.IsZero() {
			payload.PreviousStart = prev.start.UTC()
		}
	}
	evt, err := outbox.NewEvent("appointment", a.ID, eventType, payload)
	if err != nil {
		return err
	}
	return tx.AppendEvent(ctx, evt)
}

func bookingFingerprint(c model.Client, req BookRequest, o model.Offering) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s|%d|%s|%s|%s",
		c.FirstName, c.LastName, strings.ToLower(c.Email), c.Phone, c.AccountID,
		o.Kind, o.ID, strings.TrimSpace(req.Date), strings.TrimSpace(req.StartTime), strings.TrimSpace(req.Notes))
	return hex.EncodeToString(h.Sum(nil))
}
