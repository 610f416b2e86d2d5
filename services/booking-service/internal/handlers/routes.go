package handlers

import (
	"net/http"

	"github.com/careerpath/careerdesk/libs/auth"
)

type Routes struct {
	Bookings   *BookingHandler
	TimePolicy *TimePolicyHandler
	Accounts   *AccountHandler
	Auth       auth.Parser
}

// Register mounts the API on mux. Public routes accept an optional bearer token;
// /me routes need one; /staff routes need the staff role.
func (rt Routes) Register(mux *http.ServeMux) {
	optional := auth.Optional(rt.Auth)
	member := auth.Require(rt.Auth)
	staff := auth.Require(rt.Auth, auth.RoleStaff)
	h := func(mw func(http.Handler) http.Handler, fn http.HandlerFunc) http.Handler {
		return mw(fn)
	}

	b := rt.Bookings
	mux.Handle("GET /api/v1/appointments/available-slots", h(optional, b.AvailableSlots))
	mux.Handle("POST /api/v1/appointments", h(optional, b.Book))
	mux.Handle("GET /api/v1/appointments/{id}", h(optional, b.Get))
	mux.Handle("POST /api/v1/appointments/{id}/reschedule", h(optional, b.Reschedule))
	mux.Handle("POST /api/v1/appointments/{id}/cancel", h(optional, b.Cancel))
	mux.Handle("GET /api/v1/me/appointments", h(member, b.Mine))
	mux.Handle("PUT /api/v1/staff/appointments/{id}/status", h(staff, b.SetStatus))

	tp := rt.TimePolicy
	mux.Handle("GET /api/v1/staff/time-slots", h(staff, tp.ListWeeklySlots))
	mux.Handle("POST /api/v1/staff/time-slots", h(staff, tp.CreateWeeklySlot))
	mux.Handle("PUT /api/v1/staff/time-slots/{id}", h(staff, tp.UpdateWeeklySlot))
	mux.Handle("GET /api/v1/staff/exceptions", h(staff, tp.ListExceptions))
	mux.Handle("POST /api/v1/staff/exceptions", h(staff, tp.CreateException))
	mux.Handle("DELETE /api/v1/staff/exceptions/{id}", h(staff, tp.DeleteException))

	if rt.Accounts != nil {
		a := rt.Accounts
		mux.Handle("POST /api/v1/accounts", http.HandlerFunc(a.Register))
		mux.Handle("GET /api/v1/me/preferences", h(member, a.Preferences))
		mux.Handle("PATCH /api/v1/me/preferences", h(member, a.UpdatePreferences))
	}
}
