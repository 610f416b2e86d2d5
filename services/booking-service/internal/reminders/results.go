package reminders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/careerpath/careerdesk/libs/events"
	"github.com/careerpath/careerdesk/libs/kafkax"
	"github.com/careerpath/careerdesk/services/booking-service/internal/apperr"
	"github.com/segmentio/kafka-go"
)

// StatusStore updates reminder delivery state. Only pending reminders change;
// repeated callbacks are no-ops. Unknown ids return apperr.ErrNotFound.
type StatusStore interface {
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id, message string, at time.Time) error
}

// Recorder applies dispatcher callbacks.
type Recorder struct {
	store  StatusStore
	logger *slog.Logger
	now    func() time.Time
}

func NewRecorder(store StatusStore, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger, now: time.Now}
}

func (r *Recorder) MarkSent(ctx context.Context, reminderID string, sentAt time.Time) error {
	if sentAt.IsZero() {
		sentAt = r.now()
	}
	return r.store.MarkSent(ctx, reminderID, sentAt.UTC())
}

func (r *Recorder) MarkFailed(ctx context.Context, reminderID, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		message = "delivery failed"
	}
	return r.store.MarkFailed(ctx, reminderID, message, r.now().UTC())
}

// HandleMessage consumes notification.sent.v1 / notification.failed.v1. Malformed
// payloads, unknown reminders and foreign event types are logged and dropped so
// they do not block the partition; only store failures are returned.
func (r *Recorder) HandleMessage(ctx context.Context, msg kafka.Message) error {
	meta := kafkax.ExtractEventMeta(msg)
	var res events.NotificationResult
	if err := json.Unmarshal(msg.Value, &res); err != nil || strings.TrimSpace(res.ReminderID) == "" {
		r.logger.Error("invalid notification result", "event_id", meta.EventID, "topic", msg.Topic, "err", err)
		return nil
	}

	var err error
	switch meta.EventType {
	case events.NotificationSent:
		err = r.MarkSent(ctx, res.ReminderID, res.SentAt)
	case events.NotificationFailed:
		err = r.MarkFailed(ctx, res.ReminderID, res.Error)
	default:
		r.logger.Error("unexpected notification event type", "event_id", meta.EventID, "event_type", meta.EventType)
		return nil
	}
	if errors.Is(err, apperr.ErrNotFound) {
		r.logger.Warn("notification result for unknown reminder", "event_id", meta.EventID, "reminder_id", res.ReminderID)
		return nil
	}
	return err
}
