package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/careerpath/careerdesk/services/booking-service/internal/apperr"
	"github.com/careerpath/careerdesk/services/booking-service/internal/model"
	"github.com/redis/go-redis/v9"
)

type staticSource struct {
	items map[model.OfferingKind]map[int64]model.Offering
	calls int
}

func (s *staticSource) Offering(_ context.Context, kind model.OfferingKind, id int64) (model.Offering, error) {
	s.calls++
	o, ok := s.items[kind][id]
	if !ok {
		return model.Offering{}, apperr.ErrNotFound
	}
	return o, nil
}

func newSource() *staticSource {
	return &staticSource{items: map[model.OfferingKind]map[int64]model.Offering{
		model.KindService: {
			1: {Kind: model.KindService, ID: 1, Name: "CV review", DurationMinutes: 60, IsActive: true},
			2: {Kind: model.KindService, ID: 2, Name: "Retired", DurationMinutes: 30, IsActive: false},
		},
		model.KindPackage: {
			7: {Kind: model.KindPackage, ID: 7, Name: "Career switch", DurationMinutes: 90, IsActive: true},
		},
	}}
}

func ptr(v int64) *int64 { return &v }

func TestResolve(t *testing.T) {
	src := newSource()
	ctx := context.Background()

	if _, err := Resolve(ctx, src, Selection{}); err == nil {
		t.Fatal("expected validation error when nothing selected")
	} else if ve, ok := apperr.IsValidation(err); !ok || ve.Fields["service_id"] == "" {
		t.Fatalf("expected field errors, got %v", err)
	}

	o, err := Resolve(ctx, src, Selection{ServiceID: ptr(1)})
	if err != nil || o.DurationMinutes != 60 {
		t.Fatalf("unexpected resolve result %+v, %v", o, err)
	}

	o, err = Resolve(ctx, src, Selection{ServiceID: ptr(1), PackageID: ptr(7)})
	if err != nil || o.Kind != model.KindPackage || o.DurationMinutes != 90 {
		t.Fatalf("package duration should win, got %+v, %v", o, err)
	}

	if _, err := Resolve(ctx, src, Selection{ServiceID: ptr(99)}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := Resolve(ctx, src, Selection{ServiceID: ptr(2)}); err == nil {
		t.Fatal("inactive service should be rejected")
	} else if _, ok := apperr.IsValidation(err); !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
}

type memKV struct {
	data map[string]string
	fail bool
}

func (m *memKV) Get(_ context.Context, key string) *redis.StringCmd {
	if m.fail {
		return redis.NewStringResult("", errors.New("connection refused"))
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memKV) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	if m.fail {
		return redis.NewStatusResult("", errors.New("connection refused"))
	}
	m.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func (m *memKV) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(m.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestCacheReadThrough(t *testing.T) {
	src := newSource()
	store := &memKV{data: map[string]string{}}
	cache := NewCache(store, src, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		o, err := cache.Offering(ctx, model.KindService, 1)
		if err != nil || o.Name != "CV review" {
			t.Fatalf("unexpected result %+v, %v", o, err)
		}
	}
	if src.calls != 1 {
		t.Fatalf("expected one source call, got %d", src.calls)
	}

	if err := cache.Invalidate(ctx, model.KindService, 1); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, err := cache.Offering(ctx, model.KindService, 1); err != nil {
		t.Fatalf("Offering failed: %v", err)
	}
	if src.calls != 2 {
		t.Fatalf("expected refetch after invalidate, got %d calls", src.calls)
	}

	if _, err := cache.Offering(ctx, model.KindService, 42); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found passthrough, got %v", err)
	}
}

func TestCacheDegradesWhenRedisFails(t *testing.T) {
	src := newSource()
	cache := NewCache(&memKV{data: map[string]string{}, fail: true}, src, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	o, err := cache.Offering(context.Background(), model.KindPackage, 7)
	if err != nil || o.DurationMinutes != 90 {
		t.Fatalf("expected fallback to source, got %+v, %v", o, err)
	}
}
