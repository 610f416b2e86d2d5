package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/careerpath/careerdesk/libs/kafkax"
	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
)

type fakeRunner struct{ calls int }

func (f *fakeRunner) InTx(_ context.Context, fn func(pgx.Tx) error) error {
	f.calls++
	return fn(nil)
}

type fakeStore struct {
	records   []Record
	published []int64
	retried   []int64
	nextTry   time.Time
	lastError string
}

func (f *fakeStore) FetchUnpublished(_ context.Context, _ pgx.Tx, limit int) ([]Record, error) {
	if len(f.records) > limit {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func (f *fakeStore) MarkPublished(_ context.Context, _ pgx.Tx, ids []int64) error {
	f.published = append(f.published, ids...)
	return nil
}

func (f *fakeStore) MarkRetry(_ context.Context, _ pgx.Tx, ids []int64, next time.Time, lastError string) error {
	f.retried = append(f.retried, ids...)
	f.nextTry = next
	f.lastError = lastError
	return nil
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

var testNow = time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)

func newTestPublisher(store Store, w MessageWriter) *Publisher {
	p := NewPublisher(&fakeRunner{}, store, w, slog.New(slog.NewTextHandler(io.Discard, nil)), PublisherConfig{Backoff: time.Minute})
	p.now = func() time.Time { return testNow }
	return p
}

func records() []Record {
	return []Record{
		{ID: 1, EventID: "e-1", AggregateID: "appt-1", EventType: "booking.appointment.booked.v1", Payload: []byte(`{"a":1}`)},
		{ID: 2, EventID: "e-2", AggregateID: "rem-1", EventType: "booking.reminder.due.v1", Payload: []byte(`{"b":2}`)},
	}
}

func TestPublishBatchWritesAndMarksPublished(t *testing.T) {
	store, w := &fakeStore{records: records()}, &fakeWriter{}
	n, err := newTestPublisher(store, w).publishBatch(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("publishBatch = %d, %v", n, err)
	}
	if len(store.published) != 2 || len(store.retried) != 0 {
		t.Fatalf("published=%v retried=%v", store.published, store.retried)
	}
	m := w.msgs[1]
	if m.Topic != "booking.reminder.due.v1" || string(m.Key) != "rem-1" || string(m.Value) != `{"b":2}` {
		t.Fatalf("unexpected message: %+v", m)
	}
	if got := kafkax.ExtractEventMeta(m).EventID; got != "e-2" {
		t.Fatalf("expected event id header, got %q", got)
	}
}

func TestPublishBatchReschedulesOnWriteFailure(t *testing.T) {
	store := &fakeStore{records: records()}
	n, err := newTestPublisher(store, &fakeWriter{err: errors.New("leader not available")}).publishBatch(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("publishBatch = %d, %v", n, err)
	}
	if len(store.published) != 0 || len(store.retried) != 2 {
		t.Fatalf("published=%v retried=%v", store.published, store.retried)
	}
	if !store.nextTry.Equal(testNow.Add(time.Minute)) || store.lastError != "leader not available" {
		t.Fatalf("unexpected retry: %v %q", store.nextTry, store.lastError)
	}
}

func TestPublishBatchEmpty(t *testing.T) {
	w := &fakeWriter{}
	n, err := newTestPublisher(&fakeStore{}, w).publishBatch(context.Background())
	if err != nil || n != 0 || len(w.msgs) != 0 {
		t.Fatalf("publishBatch = %d, %v, %d messages", n, err, len(w.msgs))
	}
}

func TestNewEvent(t *testing.T) {
	evt, err := NewEvent("appointment", "appt-1", "booking.appointment.cancelled.v1", map[string]string{"status": "cancelled"})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal(evt.Payload, &got); err != nil || got["status"] != "cancelled" {
		t.Fatalf("unexpected payload %s (%v)", evt.Payload, err)
	}
	if evt.AggregateID != "appt-1" || evt.EventType != "booking.appointment.cancelled.v1" {
		t.Fatalf("unexpected envelope: %+v", evt)
	}
	if _, err := NewEvent("appointment", "appt-1", "x", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
}
