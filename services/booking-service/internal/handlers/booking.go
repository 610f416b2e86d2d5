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
	"github.com/careerpath/careerdesk/services/booking-service/internal/booking"
	"github.com/careerpath/careerdesk/services/booking-service/internal/catalog"
	"github.com/careerpath/careerdesk/services/booking-service/internal/model"
)

// Bookings is the ledger as the HTTP layer sees it.
type Bookings interface {
	AvailableSlots(ctx context.Context, date string, sel catalog.Selection) (booking.DaySlots, error)
	AvailableSlotsRange(ctx context.Context, from string, days int, sel catalog.Selection) ([]booking.DaySlots, error)
	Book(ctx context.Context, actor booking.Actor, req booking.BookRequest) (booking.BookResult, error)
	Reschedule(ctx context.Context, actor booking.Actor, req booking.RescheduleRequest) (model.Appointment, error)
	Cancel(ctx context.Context, actor booking.Actor, id string) (model.Appointment, error)
	SetStatus(ctx context.Context, id string, status model.Status) (model.Appointment, error)
	Get(ctx context.Context, actor booking.Actor, id string) (booking.Details, error)
	ListForAccount(ctx context.Context, accountID string) ([]model.Appointment, error)
}

type BookingHandler struct {
	bookings Bookings
	logger   *slog.Logger
}

func NewBookingHandler(bookings Bookings, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{bookings: bookings, logger: logger}
}

type bookRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	ServiceID *int64 `json:"service_id"`
	PackageID *int64 `json:"package_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	Notes     string `json:"notes"`
}

type rescheduleRequest struct {
	NewDate      string `json:"new_date"`
	NewStartTime string `json:"new_start_time"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type reminderItem struct {
	ID            string     `json:"id"`
	Channel       string     `json:"reminder_type"`
	ScheduledTime time.Time  `json:"scheduled_time"`
	Status        string     `json:"status"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	FailedAt      *time.Time `json:"failed_at,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
}

type appointmentResponse struct {
	AppointmentID string         `json:"appointment_id"`
	FirstName     string         `json:"first_name"`
	LastName      string         `json:"last_name"`
	Email         string         `json:"email"`
	Phone         string         `json:"phone,omitempty"`
	ServiceID     *int64         `json:"service_id,omitempty"`
	PackageID     *int64         `json:"package_id,omitempty"`
	Date          string         `json:"date"`
	StartTime     string         `json:"start_time"`
	EndTime       string         `json:"end_time"`
	StartsAt      time.Time      `json:"starts_at"`
	EndsAt        time.Time      `json:"ends_at"`
	Status        string         `json:"status"`
	Notes         string         `json:"notes,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Reminders     []reminderItem `json:"reminders,omitempty"`
}

func toAppointmentResponse(a model.Appointment, rs []model.Reminder) appointmentResponse {
	resp := appointmentResponse{
		AppointmentID: a.ID,
		FirstName:     a.Client.FirstName,
		LastName:      a.Client.LastName,
		Email:         a.Client.Email,
		Phone:         a.Client.Phone,
		ServiceID:     a.ServiceID,
		PackageID:     a.PackageID,
		Date:          model.DayKey(a.Date),
		StartTime:     a.StartTime.Format("15:04"),
		EndTime:       a.EndTime.Format("15:04"),
		StartsAt:      a.StartTime,
		EndsAt:        a.EndTime,
		Status:        string(a.Status),
		Notes:         a.Notes,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
	for _, r := range rs {
		resp.Reminders = append(resp.Reminders, reminderItem{
			ID:            r.ID,
			Channel:       string(r.Channel),
			ScheduledTime: r.ScheduledTime,
			Status:        string(r.Status),
			SentAt:        r.SentAt,
			FailedAt:      r.FailedAt,
			ErrorMessage:  r.ErrorMessage,
		})
	}
	return resp
}

type offeringItem struct {
	Kind            string `json:"kind"`
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
}

type daySlotsResponse struct {
	Date     string       `json:"date"`
	Offering offeringItem `json:"offering"`
	Slots    []string     `json:"slots"`
}

func toDaySlots(d booking.DaySlots) daySlotsResponse {
	slots := make([]string, 0, len(d.Slots))
	for _, s := range d.Slots {
		slots = append(slots, s.Format("15:04"))
	}
	return daySlotsResponse{
		Date: model.DayKey(d.Date),
		Offering: offeringItem{
			Kind:            string(d.Offering.Kind),
			ID:              d.Offering.ID,
			Name:            d.Offering.Name,
			DurationMinutes: d.Offering.DurationMinutes,
		},
		Slots: slots,
	}
}

func parseSelection(r *http.Request) (catalog.Selection, error) {
	fields := apperr.Fields{}
	var sel catalog.Selection
	for name, dst := range map[string]**int64{"service_id": &sel.ServiceID, "package_id": &sel.PackageID} {
		raw := strings.TrimSpace(r.URL.Query().Get(name))
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			fields.Add(name, "must be an integer")
			continue
		}
		*dst = &id
	}
	return sel, fields.Err()
}

// AvailableSlots serves a single date, or consecutive dates when days is given.
func (h *BookingHandler) AvailableSlots(w http.ResponseWriter, r *http.Request) {
	sel, err := parseSelection(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	q := r.URL.Query()
	date := strings.TrimSpace(q.Get("date"))

	if rawDays := strings.TrimSpace(q.Get("days")); rawDays != "" || date == "" {
		days := 7
		if rawDays != "" {
			days, err = strconv.Atoi(rawDays)
			if err != nil {
				writeError(w, r, h.logger, apperr.Invalid("days", "must be an integer"))
				return
			}
		}
		out, err := h.bookings.AvailableSlotsRange(r.Context(), date, days, sel)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		resp := make([]daySlotsResponse, 0, len(out))
		for _, d := range out {
			resp = append(resp, toDaySlots(d))
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"days": resp})
		return
	}

	out, err := h.bookings.AvailableSlots(r.Context(), date, sel)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toDaySlots(out))
}

func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badBody(w)
		return
	}
	res, err := h.bookings.Book(r.Context(), actorFrom(r), booking.BookRequest{
		Client: model.Client{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Phone:     req.Phone,
		},
		Selection:      catalog.Selection{ServiceID: req.ServiceID, PackageID: req.PackageID},
		Date:           req.Date,
		StartTime:      req.StartTime,
		Notes:          req.Notes,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
		status = http.StatusOK
	}
	httpx.WriteJSON(w, status, toAppointmentResponse(res.Appointment, res.Reminders))
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.bookings.Get(r.Context(), actorFrom(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointmentResponse(d.Appointment, d.Reminders))
}

func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badBody(w)
		return
	}
	a, err := h.bookings.Reschedule(r.Context(), actorFrom(r), booking.RescheduleRequest{
		ID:        r.PathValue("id"),
		Date:      req.NewDate,
		StartTime: req.NewStartTime,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointmentResponse(a, nil))
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	a, err := h.bookings.Cancel(r.Context(), actorFrom(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointmentResponse(a, nil))
}

func (h *BookingHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badBody(w)
		return
	}
	a, err := h.bookings.SetStatus(r.Context(), r.PathValue("id"), model.Status(req.Status))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointmentResponse(a, nil))
}

func (h *BookingHandler) Mine(w http.ResponseWriter, r *http.Request) {
	appts, err := h.bookings.ListForAccount(r.Context(), actorFrom(r).AccountID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	items := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		items = append(items, toAppointmentResponse(a, nil))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"appointments": items})
}
