package booking

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/careerpath/careerdesk/services/booking-service/internal/apperr"
	"github.com/careerpath/careerdesk/services/booking-service/internal/model"
	"github.com/careerpath/careerdesk/services/booking-service/internal/outbox"
)

// memStore serialises every locked transaction and restores a snapshot when fn fails.
type memStore struct {
	mu           sync.Mutex
	template     []model.WeeklyTimeSlot
	exceptions   []model.AvailabilityException
	appointments map[string]model.Appointment
	reminders    map[string][]model.Reminder
	prefs        map[string]model.Preferences
	events       []outbox.Event
	idem         map[string]IdempotencyRecord

	failReminders bool
}

func newMemStore() *memStore {
	return &memStore{
		appointments: map[string]model.Appointment{},
		reminders:    map[string][]model.Reminder{},
		prefs:        map[string]model.Preferences{},
		idem:         map[string]IdempotencyRecord{},
	}
}

type memState struct {
	appointments map[string]model.Appointment
	reminders    map[string][]model.Reminder
	events       []outbox.Event
	idem         map[string]IdempotencyRecord
}

func (m *memStore) snapshot() memState {
	st := memState{
		appointments: map[string]model.Appointment{},
		reminders:    map[string][]model.Reminder{},
		events:       append([]outbox.Event(nil), m.events...),
		idem:         map[string]IdempotencyRecord{},
	}
	for k, v := range m.appointments {
		st.appointments[k] = v
	}
	for k, v := range m.reminders {
		st.reminders[k] = append([]model.Reminder(nil), v...)
	}
	for k, v := range m.idem {
		st.idem[k] = v
	}
	return st
}

func (m *memStore) restore(st memState) {
	m.appointments = st.appointments
	m.reminders = st.reminders
	m.events = st.events
	m.idem = st.idem
}

func (m *memStore) WeeklyTemplate(context.Context) ([]model.WeeklyTimeSlot, error) {
	return append([]model.WeeklyTimeSlot(nil), m.template...), nil
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

func (m *memStore) blocking(from, to time.Time) []model.Appointment {
	var out []model.Appointment
	for _, a := range m.appointments {
		if a.Status.Blocking() && a.StartTime.Before(to) && a.EndTime.After(from) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

func (m *memStore) BlockingAppointments(_ context.Context, from, to time.Time) ([]model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blocking(from, to), nil
}

func (m *memStore) Appointment(_ context.Context, id string) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return model.Appointment{}, apperr.ErrNotFound
	}
	return a, nil
}

func (m *memStore) Reminders(_ context.Context, id string) ([]model.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Reminder(nil), m.reminders[id]...), nil
}

func (m *memStore) AppointmentsForAccount(_ context.Context, accountID string) ([]model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Appointment
	for _, a := range m.appointments {
		if a.Client.AccountID == accountID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *memStore) WithDayLocks(ctx context.Context, _ []string, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.snapshot()
	if err := fn(&memTx{m: m}); err != nil {
		m.restore(st)
		return err
	}
	return nil
}

func (m *memStore) activeAppointments() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.appointments {
		if a.Status.Blocking() {
			n++
		}
	}
	return n
}

// memTx runs with memStore.mu already held.
type memTx struct{ m *memStore }

func (t *memTx) WeeklyTemplate(ctx context.Context) ([]model.WeeklyTimeSlot, error) {
	return t.m.WeeklyTemplate(ctx)
}

func (t *memTx) Exceptions(ctx context.Context, from, to time.Time) ([]model.AvailabilityException, error) {
	return t.m.Exceptions(ctx, from, to)
}

func (t *memTx) BlockingAppointments(_ context.Context, from, to time.Time) ([]model.Appointment, error) {
	return t.m.blocking(from, to), nil
}

func (t *memTx) AppointmentForUpdate(_ context.Context, id string) (model.Appointment, error) {
	a, ok := t.m.appointments[id]
	if !ok {
		return model.Appointment{}, apperr.ErrNotFound
	}
	return a, nil
}

func (t *memTx) overlaps(a model.Appointment) bool {
	if !a.Status.Blocking() {
		return false
	}
	for _, o := range t.m.blocking(a.StartTime, a.EndTime) {
		if o.ID != a.ID {
			return true
		}
	}
	return false
}

func (t *memTx) InsertAppointment(_ context.Context, a model.Appointment) error {
	if t.overlaps(a) {
		return apperr.ErrConflict
	}
	t.m.appointments[a.ID] = a
	return nil
}

func (t *memTx) UpdateAppointment(_ context.Context, a model.Appointment) error {
	if _, ok := t.m.appointments[a.ID]; !ok {
		return apperr.ErrNotFound
	}
	if t.overlaps(a) {
		return apperr.ErrConflict
	}
	t.m.appointments[a.ID] = a
	return nil
}

func (t *memTx) InsertReminders(_ context.Context, rs []model.Reminder) error {
	if t.m.failReminders {
		return errors.New("reminder insert failed")
	}
	for _, r := range rs {
		t.m.reminders[r.AppointmentID] = append(t.m.reminders[r.AppointmentID], r)
	}
	return nil
}

func (t *memTx) DeletePendingReminders(_ context.Context, id string) error {
	var keep []model.Reminder
	for _, r := range t.m.reminders[id] {
		if r.Status != model.ReminderPending || r.DispatchedAt != nil {
			keep = append(keep, r)
		}
	}
	t.m.reminders[id] = keep
	return nil
}

func (t *memTx) Preferences(_ context.Context, accountID string) (*model.Preferences, error) {
	p, ok := t.m.prefs[accountID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *memTx) AppendEvent(_ context.Context, evt outbox.Event) error {
	t.m.events = append(t.m.events, evt)
	return nil
}

func (t *memTx) IdempotentBooking(_ context.Context, key string) (IdempotencyRecord, bool, error) {
	rec, ok := t.m.idem[key]
	return rec, ok, nil
}

func (t *memTx) SaveIdempotentBooking(_ context.Context, rec IdempotencyRecord) error {
	if _, ok := t.m.idem[rec.Key]; ok {
		return apperr.ErrConflict
	}
	t.m.idem[rec.Key] = rec
	return nil
}

type memCatalog map[int64]model.Offering

func (c memCatalog) Offering(_ context.Context, kind model.OfferingKind, id int64) (model.Offering, error) {
	o, ok := c[id]
	if !ok || o.Kind != kind {
		return model.Offering{}, apperr.ErrNotFound
	}
	return o, nil
}
