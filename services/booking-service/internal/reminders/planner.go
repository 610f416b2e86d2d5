// Package reminders creates reminder rows for appointments, hands due ones to the
// dispatcher and records what the dispatcher reports back.
package reminders

import (
	"sort"
	"strings"
	"time"

	"github.com/careerpath/careerdesk/services/booking-service/internal/model"
	"github.com/google/uuid"
)

var DefaultOffsets = []time.Duration{24 * time.Hour, time.Hour}

// Planner derives the reminders for an appointment from fixed offsets before its start.
type Planner struct {
	offsets []time.Duration
	newID   func() string
}

func NewPlanner(offsets []time.Duration) *Planner {
	seen := map[time.Duration]bool{}
	var clean []time.Duration
	for _, o := range offsets {
		if o > 0 && !seen[o] {
			seen[o] = true
			clean = append(clean, o)
		}
	}
	if len(clean) == 0 {
		clean = append(clean, DefaultOffsets...)
	}
	sort.Slice(clean, func(i, j int) bool { return clean[i] > clean[j] })
	return &Planner{offsets: clean, newID: uuid.NewString}
}

func (p *Planner) Offsets() []time.Duration {
	return append([]time.Duration(nil), p.offsets...)
}

// Plan returns one pending reminder per (offset, channel). Email is used whenever an
// address is present, SMS only with a phone number. prefs, when the booking is linked
// to an account, can switch channels or reminders off. Times not after now are skipped.
func (p *Planner) Plan(appt model.Appointment, prefs *model.Preferences, now time.Time) []model.Reminder {
	if prefs != nil && !prefs.AppointmentReminders {
		return nil
	}

	type target struct {
		channel   model.Channel
		recipient string
	}
	var targets []target
	if email := strings.TrimSpace(appt.Client.Email); email != "" && (prefs == nil || prefs.EmailNotifications) {
		targets = append(targets, target{model.ChannelEmail, email})
	}
	if phone := strings.TrimSpace(appt.Client.Phone); phone != "" && (prefs == nil || prefs.SMSNotifications) {
		targets = append(targets, target{model.ChannelSMS, phone})
	}

	var out []model.Reminder
	for _, offset := range p.offsets {
		at := appt.StartTime.Add(-offset)
		if !at.After(now) {
			continue
		}
		for _, tg := range targets {
			out = append(out, model.Reminder{
				ID:            p.newID(),
				AppointmentID: appt.ID,
				Channel:       tg.channel,
				Recipient:     tg.recipient,
				ScheduledTime: at.UTC(),
				Status:        model.ReminderPending,
				CreatedAt:     now.UTC(),
			})
		}
	}
	return out
}
