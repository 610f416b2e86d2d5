package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/careerpath/careerdesk/libs/auth"
	"github.com/careerpath/careerdesk/libs/httpx"
	"github.com/careerpath/careerdesk/services/booking-service/internal/apperr"
	"github.com/careerpath/careerdesk/services/booking-service/internal/booking"
)

// writeError maps domain errors onto status codes; anything unknown is logged and hidden.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if ve, ok := apperr.IsValidation(err); ok {
		httpx.WriteFieldErrors(w, ve.Fields)
		return
	}
	switch {
	case errors.Is(err, apperr.ErrConflict):
		httpx.WriteError(w, http.StatusConflict, "slot no longer available")
	case errors.Is(err, apperr.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not found")
	case errors.Is(err, apperr.ErrNotAllowed):
		httpx.WriteError(w, http.StatusUnprocessableEntity, "operation not allowed for the appointment's status")
	default:
		logger.Error("request failed",
			"request_id", httpx.RequestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"err", err,
		)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

func actorFrom(r *http.Request) booking.Actor {
	claims := auth.FromContext(r.Context())
	return booking.Actor{AccountID: claims.AccountID(), Staff: claims.IsStaff()}
}

func badBody(w http.ResponseWriter) {
	httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
}
