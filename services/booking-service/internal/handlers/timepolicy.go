package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/careerpath/careerdesk/libs/httpx"
	"github.com/careerpath/careerdesk/services/booking-service/internal/apperr"
	"github.com/careerpath/careerdesk/services/booking-service/internal/model"
	"github.com/careerpath/careerdesk/services/booking-service/internal/timepolicy"
)

type TimePolicy interface {
	WeeklySlots(ctx context.Context) ([]model.WeeklyTimeSlot, error)
	AddWeeklySlot(ctx context.Context, in timepolicy.WeeklySlotInput) (model.WeeklyTimeSlot, error)
	UpdateWeeklySlot(ctx context.Context, id int64, in timepolicy.WeeklySlotInput) (model.WeeklyTimeSlot, error)
	AddException(ctx context.Context, in timepolicy.ExceptionInput) (model.AvailabilityException, error)
	RemoveException(ctx context.Context, id string) error
	Exceptions(ctx context.Context, from, to time.Time) ([]model.AvailabilityException, error)
}

// TimePolicyHandler serves the staff endpoints that maintain availability.
type TimePolicyHandler struct {
	policy TimePolicy
	logger *slog.Logger
	now    func() time.Time
}

func NewTimePolicyHandler(policy TimePolicy, logger *slog.Logger) *TimePolicyHandler {
	return &TimePolicyHandler{policy: policy, logger: logger, now: time.Now}
}

type weeklySlotRequest struct {
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	IsActive  *bool  `json:"is_active"`
}

func (req weeklySlotRequest) input() timepolicy.WeeklySlotInput {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return timepolicy.WeeklySlotInput{DayOfWeek: req.DayOfWeek, Start: req.StartTime, End: req.EndTime, IsActive: active}
}

type weeklySlotItem struct {
	ID        int64  `json:"id"`
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	IsActive  bool   `json:"is_active"`
}

func toWeeklySlotItem(s model.WeeklyTimeSlot) weeklySlotItem {
	return weeklySlotItem{
		ID:        s.ID,
		DayOfWeek: s.DayOfWeek,
		StartTime: model.FormatClock(s.StartMinute),
		EndTime:   model.FormatClock(s.EndMinute),
		IsActive:  s.IsActive,
	}
}

type exceptionRequest struct {
	Type          string    `json:"exception_type"`
	StartDateTime time.Time `json:"start_datetime"`
	EndDateTime   time.Time `json:"end_datetime"`
	Description   string    `json:"description"`
}

type exceptionItem struct {
	ID            string    `json:"id"`
	Type          string    `json:"exception_type"`
	StartDateTime time.Time `json:"start_datetime"`
	EndDateTime   time.Time `json:"end_datetime"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
}

func toExceptionItem(e model.AvailabilityException) exceptionItem {
	return exceptionItem{
		ID:            e.ID,
		Type:          string(e.Type),
		StartDateTime: e.Start,
		EndDateTime:   e.End,
		Description:   e.Description,
		CreatedAt:     e.CreatedAt,
	}
}

func (h *TimePolicyHandler) ListWeeklySlots(w http.ResponseWriter, r *http.Request) {
	slots, err := h.policy.WeeklySlots(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	items := make([]weeklySlotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, toWeeklySlotItem(s))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"time_slots": items})
}

func (h *TimePolicyHandler) CreateWeeklySlot(w http.ResponseWriter, r *http.Request) {
	var req weeklySlotRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badBody(w)
		return
	}
	slot, err := h.policy.AddWeeklySlot(r.Context(), req.input())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toWeeklySlotItem(slot))
}

func (h *TimePolicyHandler) UpdateWeeklySlot(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	var req weeklySlotRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badBody(w)
		return
	}
	slot, err := h.policy.UpdateWeeklySlot(r.Context(), id, req.input())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toWeeklySlotItem(slot))
}

// ListExceptions defaults to the next 30 days when from/to are omitted.
func (h *TimePolicyHandler) ListExceptions(w http.ResponseWriter, r *http.Request) {
	from := h.now()
	to := from.AddDate(0, 0, 30)
	fields := apperr.Fields{}
	for name, dst := range map[string]*time.Time{"from": &from, "to": &to} {
		raw := strings.TrimSpace(r.URL.Query().Get(name))
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			fields.Add(name, "must be an RFC 3339 timestamp")
			continue
		}
		*dst = t
	}
	if err := fields.Err(); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	list, err := h.policy.Exceptions(r.Context(), from, to)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	items := make([]exceptionItem, 0, len(list))
	for _, e := range list {
		items = append(items, toExceptionItem(e))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"exceptions": items})
}

func (h *TimePolicyHandler) CreateException(w http.ResponseWriter, r *http.Request) {
	var req exceptionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badBody(w)
		return
	}
	e, err := h.policy.AddException(r.Context(), timepolicy.ExceptionInput{
		Type:        model.ExceptionType(strings.TrimSpace(req.Type)),
		Start:       req.StartDateTime,
		End:         req.EndDateTime,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toExceptionItem(e))
}

func (h *TimePolicyHandler) DeleteException(w http.ResponseWriter, r *http.Request) {
	if err := h.policy.RemoveException(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
