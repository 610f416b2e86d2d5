package model

import "time"

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

type ReminderStatus string

const (
	ReminderPending ReminderStatus = "pending"
	ReminderSent    ReminderStatus = "sent"
	ReminderFailed  ReminderStatus = "failed"
)

type Reminder struct {
	ID            string
	AppointmentID string
	Channel       Channel
	Recipient     string
	ScheduledTime time.Time
	Status        ReminderStatus
	SentAt        *time.Time
	FailedAt      *time.Time
	ErrorMessage  string
	// DispatchedAt is set once the reminder has been handed to the dispatcher.
	DispatchedAt *time.Time
	CreatedAt    time.Time
}
