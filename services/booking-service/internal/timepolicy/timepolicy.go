// Package timepolicy maintains the weekly availability template and its one-off exceptions.
package timepolicy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/careerpath/careerdesk/services/booking-service/internal/apperr"
	"github.com/careerpath/careerdesk/services/booking-service/internal/model"
	"github.com/google/uuid"
)

// Reader is the read side used by slot generation.
type Reader interface {
	// WeeklyTemplate returns active slots ordered by day then start.
	WeeklyTemplate(ctx context.Context) ([]model.WeeklyTimeSlot, error)
	// Exceptions returns exceptions with start < to and end > from, ordered by start.
	Exceptions(ctx context.Context, from, to time.Time) ([]model.AvailabilityException, error)
}

type Store interface {
	Reader
	ListWeeklySlots(ctx context.Context) ([]model.WeeklyTimeSlot, error)
	// CreateWeeklySlot assigns the id. A duplicate (day, start, end) returns apperr.ErrConflict.
	CreateWeeklySlot(ctx context.Context, slot *model.WeeklyTimeSlot) error
	UpdateWeeklySlot(ctx context.Context, slot model.WeeklyTimeSlot) error
	CreateException(ctx context.Context, e model.AvailabilityException) error
	DeleteException(ctx context.Context, id string) error
}

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

type WeeklySlotInput struct {
	DayOfWeek int
	Start     string // HH:MM
	End       string // HH:MM
	IsActive  bool
}

func (in WeeklySlotInput) toSlot() (model.WeeklyTimeSlot, error) {
	fields := apperr.Fields{}
	if in.DayOfWeek < 0 || in.DayOfWeek > 6 {
		fields.Add("day_of_week", "must be between 0 (Monday) and 6 (Sunday)")
	}
	start, err := model.ParseClock(in.Start)
	if err != nil || start >= model.MinutesPerDay {
		fields.Add("start_time", "must be HH:MM before 24:00")
	}
	end, err := model.ParseClock(in.End)
	if err != nil {
		fields.Add("end_time", "must be HH:MM")
	}
	if len(fields) == 0 && start >= end {
		fields.Add("end_time", "must be after start_time")
	}
	if err := fields.Err(); err != nil {
		return model.WeeklyTimeSlot{}, err
	}
	return model.WeeklyTimeSlot{DayOfWeek: in.DayOfWeek, StartMinute: start, EndMinute: end, IsActive: in.IsActive}, nil
}

func (s *Service) WeeklySlots(ctx context.Context) ([]model.WeeklyTimeSlot, error) {
	return s.store.ListWeeklySlots(ctx)
}

func (s *Service) AddWeeklySlot(ctx context.Context, in WeeklySlotInput) (model.WeeklyTimeSlot, error) {
	slot, err := in.toSlot()
	if err != nil {
		return model.WeeklyTimeSlot{}, err
	}
	if err := s.store.CreateWeeklySlot(ctx, &slot); err != nil {
		return model.WeeklyTimeSlot{}, fmt.Errorf("create weekly slot: %w", err)
	}
	return slot, nil
}

func (s *Service) UpdateWeeklySlot(ctx context.Context, id int64, in WeeklySlotInput) (model.WeeklyTimeSlot, error) {
	slot, err := in.toSlot()
	if err != nil {
		return model.WeeklyTimeSlot{}, err
	}
	slot.ID = id
	if err := s.store.UpdateWeeklySlot(ctx, slot); err != nil {
		return model.WeeklyTimeSlot{}, fmt.Errorf("update weekly slot %d: %w", id, err)
	}
	return slot, nil
}

type ExceptionInput struct {
	Type        model.ExceptionType
	Start       time.Time
	End         time.Time
	Description string
}

func (s *Service) AddException(ctx context.Context, in ExceptionInput) (model.AvailabilityException, error) {
	fields := apperr.Fields{}
	if !in.Type.Valid() {
		fields.Add("type", "must be blocked or opened")
	}
	if in.Start.IsZero() {
		fields.Add("start_datetime", "is required")
	}
	if in.End.IsZero() {
		fields.Add("end_datetime", "is required")
	}
	if len(fields) == 0 && !in.End.After(in.Start) {
		fields.Add("end_datetime", "must be after start_datetime")
	}
	desc := strings.TrimSpace(in.Description)
	if len(desc) > 200 {
		fields.Add("description", "must be at most 200 characters")
	}
	if err := fields.Err(); err != nil {
		return model.AvailabilityException{}, err
	}

	e := model.AvailabilityException{
		ID:          uuid.NewString(),
		Type:        in.Type,
		Start:       in.Start,
		End:         in.End,
		Description: desc,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.CreateException(ctx, e); err != nil {
		return model.AvailabilityException{}, fmt.Errorf("create exception: %w", err)
	}
	return e, nil
}

func (s *Service) RemoveException(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.ErrNotFound
	}
	return s.store.DeleteException(ctx, id)
}

func (s *Service) Exceptions(ctx context.Context, from, to time.Time) ([]model.AvailabilityException, error) {
	if !to.After(from) {
		return nil, apperr.Invalid("to", "must be after from")
	}
	return s.store.Exceptions(ctx, from, to)
}
