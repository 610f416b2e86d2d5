// Package dispatch delivers due booking reminders and reports the outcome back
// to the booking service as notification.sent.v1 / notification.failed.v1.
// Reminders for appointments seen cancelled, or already started, are reported
// failed without being sent.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/careerpath/careerdesk/libs/events"
	"github.com/careerpath/careerdesk/libs/kafkax"
	"github.com/careerpath/careerdesk/services/notification-service/internal/email"
	"github.com/careerpath/careerdesk/services/notification-service/internal/sms"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Dispatcher struct {
	email      email.Sender
	sms        sms.Sender
	results    MessageWriter
	logger     *slog.Logger
	failSuffix string
	now        func() time.Time

	mu sync.Mutex
	// withdrawn maps appointments that left pending/confirmed to their start time.
	withdrawn map[string]time.Time
}

// New builds a dispatcher. Recipients ending in failSuffix are reported as
// failed without being contacted; an empty suffix disables that.
func New(emailSender email.Sender, smsSender sms.Sender, results MessageWriter, logger *slog.Logger, failSuffix string) *Dispatcher {
	return &Dispatcher{
		email:      emailSender,
		sms:        smsSender,
		results:    results,
		logger:     logger,
		failSuffix: failSuffix,
		now:        time.Now,
		withdrawn:  map[string]time.Time{},
	}
}

const notUpcoming = "appointment no longer upcoming"

var errInvalidReminder = errors.New("invalid reminder payload")

func decode(raw []byte) (events.ReminderDueEvent, error) {
	var evt events.ReminderDueEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return evt, fmt.Errorf("%w: %v", errInvalidReminder, err)
	}
	if evt.ReminderID == "" || evt.AppointmentID == "" || evt.Channel == "" || evt.Recipient == "" || evt.StartTime.IsZero() {
		return evt, fmt.Errorf("%w: missing fields", errInvalidReminder)
	}
	return evt, nil
}

// HandleMessage delivers booking.reminder.due.v1 events and tracks cancellations
// and status changes so reminders for withdrawn appointments are not sent. Only
// a failure to publish a result is returned; delivery failures become failed results.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg kafka.Message) error {
	switch eventType := kafkax.ExtractEventMeta(msg).EventType; eventType {
	case events.ReminderDue:
		return d.handleReminder(ctx, msg)
	case events.AppointmentCancelled, events.AppointmentStatusChanged:
		d.track(msg)
		return nil
	default:
		d.logger.Warn("ignoring unexpected event", "event_type", eventType, "offset", msg.Offset)
		return nil
	}
}

func (d *Dispatcher) track(msg kafka.Message) {
	var appt events.Appointment
	if err := json.Unmarshal(msg.Value, &appt); err != nil || appt.AppointmentID == "" {
		d.logger.Error("invalid appointment event", "err", err, "offset", msg.Offset)
		return
	}
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, start := range d.withdrawn {
		if start.Before(now) {
			delete(d.withdrawn, id)
		}
	}
	switch appt.Status {
	case "pending", "confirmed":
		delete(d.withdrawn, appt.AppointmentID)
	default:
		d.withdrawn[appt.AppointmentID] = appt.StartTime
	}
}

func (d *Dispatcher) isWithdrawn(appointmentID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.withdrawn[appointmentID]
	return ok
}

func (d *Dispatcher) handleReminder(ctx context.Context, msg kafka.Message) error {
	evt, err := decode(msg.Value)
	if err != nil {
		d.logger.Error("dropping reminder", "err", err, "offset", msg.Offset)
		return nil
	}

	result := events.NotificationResult{
		ReminderID:    evt.ReminderID,
		AppointmentID: evt.AppointmentID,
		Channel:       evt.Channel,
	}
	if providerID, err := d.deliver(ctx, evt); err != nil {
		result.Error = err.Error()
		d.logger.Warn("reminder delivery failed", "reminder_id", evt.ReminderID, "channel", evt.Channel, "err", err)
	} else {
		result.ProviderID = providerID
		result.SentAt = d.now().UTC()
	}
	return d.publish(ctx, result)
}

func (d *Dispatcher) deliver(ctx context.Context, evt events.ReminderDueEvent) (string, error) {
	if !evt.StartTime.After(d.now()) || d.isWithdrawn(evt.AppointmentID) {
		return "", errors.New(notUpcoming)
	}
	if d.failSuffix != "" && strings.HasSuffix(evt.Recipient, d.failSuffix) {
		return "", errors.New("simulated failure")
	}
	switch strings.ToLower(evt.Channel) {
	case "email":
		if err := d.email.Send(evt.Recipient, "Appointment reminder", reminderText(evt)); err != nil {
			return "", err
		}
		return "smtp", nil
	case "sms":
		if err := d.sms.Send(ctx, evt.Recipient, reminderText(evt)); err != nil {
			return "", err
		}
		return d.sms.ProviderID(), nil
	default:
		return "", fmt.Errorf("unsupported channel: %s", evt.Channel)
	}
}

func (d *Dispatcher) publish(ctx context.Context, result events.NotificationResult) error {
	eventType := events.NotificationSent
	if result.Error != "" {
		eventType = events.NotificationFailed
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	msg := kafkax.NewMessage(ctx, kafkax.EventMeta{EventID: uuid.NewString(), EventType: eventType}, result.ReminderID, payload)
	if err := d.results.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	d.logger.Info("reminder processed", "reminder_id", result.ReminderID, "channel", result.Channel, "event_type", eventType)
	return nil
}

func reminderText(evt events.ReminderDueEvent) string {
	loc, err := time.LoadLocation(evt.Timezone)
	if err != nil || evt.Timezone == "" {
		loc = time.UTC
	}
	when := evt.StartTime.In(loc).Format("Mon 2 Jan 2006 at 15:04 MST")
	what := "your career appointment"
	if evt.OfferingName != "" {
		what = "your " + evt.OfferingName + " appointment"
	}
	name := strings.TrimSpace(evt.ClientName)
	if name == "" {
		return fmt.Sprintf("Reminder: %s is on %s.", what, when)
	}
	return fmt.Sprintf("Hi %s, reminder: %s is on %s.", name, what, when)
}

// Run reads due reminders until ctx is cancelled. A message is committed once
// its result is published, or after the last retry fails.
func (d *Dispatcher) Run(ctx context.Context, reader MessageReader) {
	defer reader.Close()
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.Error("kafka read error", "err", err)
			sleep(ctx, time.Second)
			continue
		}
		msgCtx := kafkax.ExtractTraceContext(ctx, msg)
		for attempt := 1; attempt <= 3; attempt++ {
			if err = d.HandleMessage(msgCtx, msg); err == nil || ctx.Err() != nil {
				break
			}
			d.logger.Error("reminder handling failed", "err", err, "attempt", attempt)
			sleep(ctx, time.Duration(attempt)*time.Second)
		}
		if ctx.Err() != nil {
			return
		}
		if err := reader.CommitMessages(ctx, msg); err != nil {
			d.logger.Error("kafka commit failed", "err", err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
