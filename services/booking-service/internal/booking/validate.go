package booking

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/careerpath/careerdesk/services/booking-service/internal/apperr"
	"github.com/careerpath/careerdesk/services/booking-service/internal/model"
	"github.com/google/uuid"
)

const (
	maxNameLen  = 100
	maxPhoneLen = 20
	maxNotesLen = 2000
)

func newAppointmentID() string {
	return uuid.NewString()
}

// validID rejects ids that cannot name an appointment so they read as not found.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *Service) parseDate(field, raw string) (time.Time, error) {
	day, err := model.ParseDay(strings.TrimSpace(raw), s.cfg.Location)
	if err != nil {
		return time.Time{}, apperr.Invalid(field, "must be a date in YYYY-MM-DD format")
	}
	return day, nil
}

// startOn places an HH:MM wall-clock time on day in the business zone.
func startOn(day time.Time, minutes int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, minutes, 0, 0, day.Location())
}

func (s *Service) parseSlot(fields apperr.Fields, dateField, date, timeField, clock string) (day, start time.Time) {
	day, err := s.parseDate(dateField, date)
	if err != nil {
		fields.Add(dateField, "must be a date in YYYY-MM-DD format")
	}
	minutes, err := model.ParseClock(clock)
	if err != nil || minutes >= model.MinutesPerDay {
		fields.Add(timeField, "must be a time in HH:MM format")
		return day, time.Time{}
	}
	if day.IsZero() {
		return day, time.Time{}
	}
	return day, startOn(day, minutes)
}

func validateClient(fields apperr.Fields, c *model.Client) {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)

	requireText(fields, "first_name", c.FirstName, maxNameLen)
	requireText(fields, "last_name", c.LastName, maxNameLen)
	if c.Email == "" {
		fields.Add("email", "is required")
	} else if addr, err := mail.ParseAddress(c.Email); err != nil || addr.Address != c.Email {
		fields.Add("email", "must be a valid email address")
	}
	if utf8.RuneCountInString(c.Phone) > maxPhoneLen {
		fields.Add("phone", "must be at most 20 characters")
	} else if c.Phone != "" && !validPhone(c.Phone) {
		fields.Add("phone", "may contain only digits, spaces and + - ( )")
	}
}

func requireText(fields apperr.Fields, field, v string, max int) {
	switch {
	case v == "":
		fields.Add(field, "is required")
	case utf8.RuneCountInString(v) > max:
		fields.Add(field, "is too long")
	}
}

func validPhone(p string) bool {
	digits := 0
	for _, r := range p {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == '-' || r == ' ' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= 5
}
