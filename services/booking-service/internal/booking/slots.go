package booking

import (
	"context"
	"strconv"
	"time"

	"github.com/careerpath/careerdesk/services/booking-service/internal/apperr"
	"github.com/careerpath/careerdesk/services/booking-service/internal/availability"
	"github.com/careerpath/careerdesk/services/booking-service/internal/catalog"
	"github.com/careerpath/careerdesk/services/booking-service/internal/model"
)

// DaySlots is the answer for one calendar day.
type DaySlots struct {
	Date     time.Time
	Offering model.Offering
	Slots    []time.Time
}

func (s *Service) step(duration time.Duration) time.Duration {
	if s.cfg.SlotStep > 0 {
		return s.cfg.SlotStep
	}
	return duration
}

// daySlots computes the free starts for day. When exclude is set that appointment's
// own interval is not treated as busy. open is the same list ignoring all bookings,
// used to tell "taken" from "never offered".
func (s *Service) daySlots(ctx context.Context, q Queries, day time.Time, duration time.Duration, exclude string) (free, open []time.Time, err error) {
	bounds := availability.DayBounds(day)
	template, err := q.WeeklyTemplate(ctx)
	if err != nil {
		return nil, nil, err
	}
	exceptions, err := q.Exceptions(ctx, bounds.Start, bounds.End)
	if err != nil {
		return nil, nil, err
	}
	appts, err := q.BlockingAppointments(ctx, bounds.Start, bounds.End)
	if err != nil {
		return nil, nil, err
	}
	var busy []availability.Interval
	for _, a := range appts {
		if a.ID == exclude || !a.Status.Blocking() {
			continue
		}
		busy = append(busy, availability.Interval{Start: a.StartTime, End: a.EndTime})
	}

	req := availability.Request{
		Day:        day,
		Template:   template,
		Exceptions: exceptions,
		Busy:       busy,
		Duration:   duration,
		Step:       s.step(duration),
		Now:        s.now(),
	}
	free = availability.Slots(req)
	req.Busy = nil
	open = availability.Slots(req)
	return free, open, nil
}

// checkStart decides whether start can be taken on day.
func (s *Service) checkStart(ctx context.Context, q Queries, day, start time.Time, duration time.Duration, exclude string) error {
	free, open, err := s.daySlots(ctx, q, day, duration, exclude)
	if err != nil {
		return err
	}
	if availability.Offered(free, start) {
		return nil
	}
	if availability.Offered(open, start) {
		return apperr.ErrConflict
	}
	return apperr.Invalid("start_time", "is not an available slot")
}

// AvailableSlots lists bookable starts for one date (YYYY-MM-DD in the business zone).
func (s *Service) AvailableSlots(ctx context.Context, date string, sel catalog.Selection) (DaySlots, error) {
	day, err := s.parseDate("date", date)
	if err != nil {
		return DaySlots{}, err
	}
	offering, err := catalog.Resolve(ctx, s.catalog, sel)
	if err != nil {
		return DaySlots{}, err
	}
	free, _, err := s.daySlots(ctx, s.store, day, offering.Duration(), "")
	if err != nil {
		return DaySlots{}, err
	}
	return DaySlots{Date: day, Offering: offering, Slots: free}, nil
}

// AvailableSlotsRange lists days consecutive dates starting at from (today when empty).
// Days without any slot are included with an empty list.
func (s *Service) AvailableSlotsRange(ctx context.Context, from string, days int, sel catalog.Selection) ([]DaySlots, error) {
	if days < 1 || days > s.cfg.MaxRangeDays {
		return nil, apperr.Invalid("days", "must be between 1 and "+strconv.Itoa(s.cfg.MaxRangeDays))
	}
	first := model.StartOfDay(s.now(), s.cfg.Location)
	if from != "" {
		d, err := s.parseDate("date", from)
		if err != nil {
			return nil, err
		}
		first = d
	}
	offering, err := catalog.Resolve(ctx, s.catalog, sel)
	if err != nil {
		return nil, err
	}

	out := make([]DaySlots, 0, days)
	for i := 0; i < days; i++ {
		day := first.AddDate(0, 0, i)
		free, _, err := s.daySlots(ctx, s.store, day, offering.Duration(), "")
		if err != nil {
			return nil, err
		}
		out = append(out, DaySlots{Date: day, Offering: offering, Slots: free})
	}
	return out, nil
}
