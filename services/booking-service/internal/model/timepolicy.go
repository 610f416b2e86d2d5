package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const MinutesPerDay = 24 * 60

// WeeklyTimeSlot is a recurring window. DayOfWeek counts from Monday (0) to Sunday (6);
// minutes are offsets from local midnight.
type WeeklyTimeSlot struct {
	ID          int64
	DayOfWeek   int
	StartMinute int
	EndMinute   int
	IsActive    bool
}

// MondayIndex converts a time.Weekday into the Monday-first index used by WeeklyTimeSlot.
func MondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

type ExceptionType string

const (
	ExceptionBlocked ExceptionType = "blocked"
	ExceptionOpened  ExceptionType = "opened"
)

func (t ExceptionType) Valid() bool {
	return t == ExceptionBlocked || t == ExceptionOpened
}

type AvailabilityException struct {
	ID          string
	Type        ExceptionType
	Start       time.Time
	End         time.Time
	Description string
	CreatedAt   time.Time
}

// ParseClock parses "HH:MM" into minutes after midnight. "24:00" is accepted as an end bound.
func ParseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err1 := strconv.Atoi(hh)
	m, err2 := strconv.Atoi(mm)
	if err1 != nil || err2 != nil || h < 0 || m < 0 || m > 59 || len(mm) != 2 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	total := h*60 + m
	if total > MinutesPerDay {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return total, nil
}

func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
