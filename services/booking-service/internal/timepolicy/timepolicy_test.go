package timepolicy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/careerpath/careerdesk/services/booking-service/internal/apperr"
	"github.com/careerpath/careerdesk/services/booking-service/internal/model"
)

type memStore struct {
	slots      []model.WeeklyTimeSlot
	exceptions []model.AvailabilityException
	nextID     int64
}

func (m *memStore) WeeklyTemplate(context.Context) ([]model.WeeklyTimeSlot, error) {
	var out []model.WeeklyTimeSlot
	for _, s := range m.slots {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) Exceptions(_ context.Context, from, to time.Time) ([]model.AvailabilityException, error) {
	var out []model.AvailabilityException
	for _, e := range m.exceptions {
		if e.Start.Before(to) && e.End.After(from) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) ListWeeklySlots(context.Context) ([]model.WeeklyTimeSlot, error) {
	return m.slots, nil
}

func (m *memStore) CreateWeeklySlot(_ context.Context, slot *model.WeeklyTimeSlot) error {
	for _, s := range m.slots {
		if s.DayOfWeek == slot.DayOfWeek && s.StartMinute == slot.StartMinute && s.EndMinute == slot.EndMinute {
			return apperr.ErrConflict
		}
	}
	m.nextID++
	slot.ID = m.nextID
	m.slots = append(m.slots, *slot)
	return nil
}

func (m *memStore) UpdateWeeklySlot(_ context.Context, slot model.WeeklyTimeSlot) error {
	for i := range m.slots {
		if m.slots[i].ID == slot.ID {
			m.slots[i] = slot
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (m *memStore) CreateException(_ context.Context, e model.AvailabilityException) error {
	m.exceptions = append(m.exceptions, e)
	return nil
}

func (m *memStore) DeleteException(_ context.Context, id string) error {
	for i, e := range m.exceptions {
		if e.ID == id {
			m.exceptions = append(m.exceptions[:i], m.exceptions[i+1:]...)
			return nil
		}
	}
	return apperr.ErrNotFound
}

func TestAddWeeklySlotValidation(t *testing.T) {
	svc := NewService(&memStore{})
	ctx := context.Background()

	if _, err := svc.AddWeeklySlot(ctx, WeeklySlotInput{DayOfWeek: 7, Start: "09:00", End: "12:00"}); err == nil {
		t.Fatal("expected day_of_week error")
	}
	_, err := svc.AddWeeklySlot(ctx, WeeklySlotInput{DayOfWeek: 0, Start: "12:00", End: "09:00"})
	if ve, ok := apperr.IsValidation(err); !ok || ve.Fields["end_time"] == "" {
		t.Fatalf("expected end_time error, got %v", err)
	}

	slot, err := svc.AddWeeklySlot(ctx, WeeklySlotInput{DayOfWeek: 0, Start: "09:00", End: "12:00", IsActive: true})
	if err != nil {
		t.Fatalf("AddWeeklySlot failed: %v", err)
	}
	if slot.ID == 0 || slot.StartMinute != 540 || slot.EndMinute != 720 {
		t.Fatalf("unexpected slot %+v", slot)
	}
	if _, err := svc.AddWeeklySlot(ctx, WeeklySlotInput{DayOfWeek: 0, Start: "09:00", End: "12:00"}); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected duplicate to conflict, got %v", err)
	}
}

func TestUpdateWeeklySlotDeactivates(t *testing.T) {
	store := &memStore{}
	svc := NewService(store)
	ctx := context.Background()
	slot, _ := svc.AddWeeklySlot(ctx, WeeklySlotInput{DayOfWeek: 2, Start: "13:00", End: "17:00", IsActive: true})

	if _, err := svc.UpdateWeeklySlot(ctx, slot.ID, WeeklySlotInput{DayOfWeek: 2, Start: "13:00", End: "17:00"}); err != nil {
		t.Fatalf("UpdateWeeklySlot failed: %v", err)
	}
	tpl, _ := store.WeeklyTemplate(ctx)
	if len(tpl) != 0 {
		t.Fatalf("deactivated slot should leave the template, got %d", len(tpl))
	}
	if _, err := svc.UpdateWeeklySlot(ctx, 999, WeeklySlotInput{DayOfWeek: 2, Start: "13:00", End: "17:00"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAddException(t *testing.T) {
	store := &memStore{}
	svc := NewService(store)
	ctx := context.Background()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	if _, err := svc.AddException(ctx, ExceptionInput{Type: "holiday", Start: start, End: start.Add(time.Hour)}); err == nil {
		t.Fatal("expected type error")
	}
	if _, err := svc.AddException(ctx, ExceptionInput{Type: model.ExceptionBlocked, Start: start, End: start}); err == nil {
		t.Fatal("expected ordering error")
	}
	e, err := svc.AddException(ctx, ExceptionInput{Type: model.ExceptionBlocked, Start: start, End: start.Add(time.Hour), Description: " conference "})
	if err != nil {
		t.Fatalf("AddException failed: %v", err)
	}
	if e.Description != "conference" || e.ID == "" {
		t.Fatalf("unexpected exception %+v", e)
	}

	got, err := svc.Exceptions(ctx, start.Add(30*time.Minute), start.Add(2*time.Hour))
	if err != nil || len(got) != 1 {
		t.Fatalf("expected overlapping exception, got %v, %v", got, err)
	}
	if err := svc.RemoveException(ctx, e.ID); err != nil {
		t.Fatalf("RemoveException failed: %v", err)
	}
	if err := svc.RemoveException(ctx, "not-a-uuid"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
