package availability

import (
	"sort"
	"time"

	"github.com/careerpath/careerdesk/services/booking-service/internal/model"
)

// Interval is half-open: [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Empty() bool {
	return !i.End.After(i.Start)
}

func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

func (i Interval) Contains(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

// Subtract removes cut from w, leaving zero, one or two pieces.
func Subtract(w, cut Interval) []Interval {
	if w.Empty() {
		return nil
	}
	if cut.Empty() || !w.Overlaps(cut) {
		return []Interval{w}
	}
	var out []Interval
	if cut.Start.After(w.Start) {
		out = append(out, Interval{Start: w.Start, End: cut.Start})
	}
	if cut.End.Before(w.End) {
		out = append(out, Interval{Start: cut.End, End: w.End})
	}
	return out
}

func SubtractAll(windows, cuts []Interval) []Interval {
	out := windows
	for _, c := range cuts {
		var next []Interval
		for _, w := range out {
			next = append(next, Subtract(w, c)...)
		}
		out = next
	}
	return out
}

// Merge sorts intervals and coalesces overlapping or touching ones.
func Merge(in []Interval) []Interval {
	var valid []Interval
	for _, iv := range in {
		if !iv.Empty() {
			valid = append(valid, iv)
		}
	}
	sort.Slice(valid, func(a, b int) bool { return valid[a].Start.Before(valid[b].Start) })

	var out []Interval
	for _, iv := range valid {
		if n := len(out); n > 0 && !iv.Start.After(out[n-1].End) {
			if iv.End.After(out[n-1].End) {
				out[n-1].End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

func clip(iv, bounds Interval) Interval {
	if iv.Start.Before(bounds.Start) {
		iv.Start = bounds.Start
	}
	if iv.End.After(bounds.End) {
		iv.End = bounds.End
	}
	return iv
}

// DayBounds is the full calendar day starting at day (midnight in its location).
func DayBounds(day time.Time) Interval {
	return Interval{Start: day, End: day.AddDate(0, 0, 1)}
}

// DayWindows resolves the bookable windows of a day: the weekly template for its
// weekday, minus blocked exceptions, plus opened exceptions, merged and ordered.
func DayWindows(day time.Time, template []model.WeeklyTimeSlot, exceptions []model.AvailabilityException) []Interval {
	bounds := DayBounds(day)
	weekday := model.MondayIndex(day.Weekday())

	var windows []Interval
	for _, s := range template {
		if !s.IsActive || s.DayOfWeek != weekday {
			continue
		}
		windows = append(windows, Interval{
			Start: time.Date(day.Year(), day.Month(), day.Day(), 0, s.StartMinute, 0, 0, day.Location()),
			End:   time.Date(day.Year(), day.Month(), day.Day(), 0, s.EndMinute, 0, 0, day.Location()),
		})
	}
	windows = Merge(windows)

	var blocked, opened []Interval
	for _, e := range exceptions {
		iv := clip(Interval{Start: e.Start, End: e.End}, bounds)
		if iv.Empty() {
			continue
		}
		switch e.Type {
		case model.ExceptionBlocked:
			blocked = append(blocked, iv)
		case model.ExceptionOpened:
			opened = append(opened, iv)
		}
	}
	windows = SubtractAll(windows, blocked)
	return Merge(append(windows, opened...))
}

// Request describes one slot computation.
type Request struct {
	Day        time.Time // midnight in the business location
	Template   []model.WeeklyTimeSlot
	Exceptions []model.AvailabilityException
	Busy       []Interval // pending and confirmed appointments
	Duration   time.Duration
	Step       time.Duration // defaults to Duration
	Now        time.Time
}

// Slots returns the ordered bookable start times for the request's day.
func Slots(req Request) []time.Time {
	step := req.Step
	if step <= 0 {
		step = req.Duration
	}
	free := SubtractAll(DayWindows(req.Day, req.Template, req.Exceptions), req.Busy)

	var out []time.Time
	for _, w := range free {
		out = append(out, AvailableSlots(w.Start, w.End, req.Duration, step, req.Now)...)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Before(out[b]) })
	return out
}

// AvailableSlots walks [windowStart, windowEnd) by step and returns every start whose
// [start, start+duration) fits inside the window and does not begin before now.
func AvailableSlots(windowStart, windowEnd time.Time, duration, step time.Duration, now time.Time) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if windowStart.Add(duration).After(windowEnd) {
		return nil
	}

	var slots []time.Time
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		if t.Before(now) {
			continue
		}
		slots = append(slots, t)
	}
	return slots
}

// Offered reports whether start is one of slots.
func Offered(slots []time.Time, start time.Time) bool {
	i := sort.Search(len(slots), func(i int) bool { return !slots[i].Before(start) })
	return i < len(slots) && slots[i].Equal(start)
}
