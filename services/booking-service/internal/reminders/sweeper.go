package reminders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/careerpath/careerdesk/libs/events"
	"github.com/careerpath/careerdesk/services/booking-service/internal/model"
	"github.com/careerpath/careerdesk/services/booking-service/internal/outbox"
	"github.com/robfig/cron/v3"
)

// Due is a claimed reminder together with what the dispatcher needs to render it.
type Due struct {
	Reminder     model.Reminder
	Appointment  model.Appointment
	OfferingName string
}

type SweepTx interface {
	// ClaimDue locks up to limit pending, undispatched reminders scheduled at or
	// before now. Rows locked by a concurrent sweep are skipped.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]Due, error)
	MarkDispatched(ctx context.Context, ids []string, at time.Time) error
	MarkFailed(ctx context.Context, id, message string, at time.Time) error
	AppendEvent(ctx context.Context, evt outbox.Event) error
}

type SweepStore interface {
	InSweepTx(ctx context.Context, fn func(SweepTx) error) error
}

type SweeperConfig struct {
	Schedule  string // cron spec, e.g. "@every 30s"
	BatchSize int
	Location  *time.Location
}

// Sweeper periodically moves due reminders onto the outbox as booking.reminder.due.v1.
type Sweeper struct {
	store  SweepStore
	logger *slog.Logger
	cfg    SweeperConfig
	now    func() time.Time
}

func NewSweeper(store SweepStore, logger *slog.Logger, cfg SweeperConfig) *Sweeper {
	if strings.TrimSpace(cfg.Schedule) == "" {
		cfg.Schedule = "@every 30s"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Sweeper{store: store, logger: logger, cfg: cfg, now: time.Now}
}

// Run schedules the sweep and blocks until ctx is done, then waits for a running sweep.
func (s *Sweeper) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.cfg.Schedule, func() {
		n, err := s.SweepOnce(ctx)
		if err != nil {
			s.logger.Error("reminder sweep failed", "err", err)
			return
		}
		if n > 0 {
			s.logger.Info("reminders dispatched", "count", n)
		}
	}); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", s.cfg.Schedule, err)
	}
	c.Start()
	s.logger.Info("reminder sweeper started", "schedule", s.cfg.Schedule)
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// SweepOnce processes a single batch and returns how many reminders were dispatched.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.now().UTC()
	dispatched := 0
	err := s.store.InSweepTx(ctx, func(tx SweepTx) error {
		due, err := tx.ClaimDue(ctx, now, s.cfg.BatchSize)
		if err != nil {
			return err
		}
		var ids []string
		for _, d := range due {
			if !d.Appointment.Status.Blocking() || !d.Appointment.StartTime.After(now) {
				if err := tx.MarkFailed(ctx, d.Reminder.ID, "appointment no longer upcoming", now); err != nil {
					return err
				}
				continue
			}
			evt, err := outbox.NewEvent("appointment", d.Appointment.ID, events.ReminderDue, s.payload(d))
			if err != nil {
				return err
			}
			if err := tx.AppendEvent(ctx, evt); err != nil {
				return err
			}
			ids = append(ids, d.Reminder.ID)
		}
		if err := tx.MarkDispatched(ctx, ids, now); err != nil {
			return err
		}
		dispatched = len(ids)
		return nil
	})
	return dispatched, err
}

func (s *Sweeper) payload(d Due) events.ReminderDueEvent {
	c := d.Appointment.Client
	return events.ReminderDueEvent{
		ReminderID:    d.Reminder.ID,
		AppointmentID: d.Appointment.ID,
		Channel:       string(d.Reminder.Channel),
		Recipient:     d.Reminder.Recipient,
		ClientName:    strings.TrimSpace(c.FirstName + " " + c.LastName),
		OfferingName:  d.OfferingName,
		StartTime:     d.Appointment.StartTime.UTC(),
		Timezone:      s.cfg.Location.String(),
		ScheduledTime: d.Reminder.ScheduledTime.UTC(),
	}
}
