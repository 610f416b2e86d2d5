// Package events defines the topics and payloads exchanged between the booking
// service and its collaborators. The Kafka topic of a message equals its event type.
package events

import "time"

const (
	AppointmentBooked        = "booking.appointment.booked.v1"
	AppointmentRescheduled   = "booking.appointment.rescheduled.v1"
	AppointmentCancelled     = "booking.appointment.cancelled.v1"
	AppointmentStatusChanged = "booking.appointment.status_changed.v1"
	ReminderDue              = "booking.reminder.due.v1"
	NotificationSent         = "notification.sent.v1"
	NotificationFailed       = "notification.failed.v1"
)

type Appointment struct {
	AppointmentID  string    `json:"appointment_id"`
	AccountID      string    `json:"account_id,omitempty"`
	ServiceID      *int64    `json:"service_id,omitempty"`
	PackageID      *int64    `json:"package_id,omitempty"`
	Date           string    `json:"date"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	PreviousStart  time.Time `json:"previous_start_time,omitzero"`
	ClientEmail    string    `json:"client_email"`
}

// ReminderDueEvent asks the dispatcher to deliver one reminder.
type ReminderDueEvent struct {
	ReminderID    string    `json:"reminder_id"`
	AppointmentID string    `json:"appointment_id"`
	Channel       string    `json:"channel"`
	Recipient     string    `json:"recipient"`
	ClientName    string    `json:"client_name"`
	OfferingName  string    `json:"offering_name,omitempty"`
	StartTime     time.Time `json:"start_time"`
	Timezone      string    `json:"timezone"`
	ScheduledTime time.Time `json:"scheduled_time"`
}

// NotificationResult is published by the dispatcher on notification.sent.v1 and
// notification.failed.v1.
type NotificationResult struct {
	ReminderID    string    `json:"reminder_id"`
	AppointmentID string    `json:"appointment_id"`
	Channel       string    `json:"channel"`
	ProviderID    string    `json:"provider_id,omitempty"`
	SentAt        time.Time `json:"sent_at,omitzero"`
	Error         string    `json:"error,omitempty"`
}
