package httpapi

import (
	"errors"
	"net/http"

	"github.com/example/trip-booking/internal/booking"
	"github.com/example/trip-booking/internal/history"
	"github.com/example/trip-booking/internal/notify"
	"github.com/example/trip-booking/internal/payments"
)

// apiError is the JSON error body.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type badRequest string

func (b badRequest) Error() string { return string(b) }

func errBadRequest(msg string) error { return badRequest(msg) }

func writeError(w http.ResponseWriter, err error) {
	status, body := classify(err)
	writeJSON(w, status, body)
}

func classify(err error) (int, apiError) {
	var verr *booking.ValidationError
	if errors.As(err, &verr) {
		return http.StatusUnprocessableEntity, apiError{Code: "validation_failed", Message: err.Error(), Details: verr.Fields}
	}
	var perr *payments.PaymentError
	if errors.As(err, &perr) {
		return http.StatusPaymentRequired, apiError{Code: perr.Code, Message: perr.Message}
	}
	var bad badRequest
	if errors.As(err, &bad) {
		return http.StatusBadRequest, apiError{Code: "bad_request", Message: err.Error()}
	}

	for _, m := range []struct {
		target error
		status int
		code   string
	}{
		{booking.ErrBusy, http.StatusConflict, "busy"},
		{booking.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
		{booking.ErrAlreadyBooked, http.StatusConflict, "already_booked"},
		{booking.ErrTripNotFound, http.StatusNotFound, "trip_not_found"},
		{booking.ErrInvalidTickets, http.StatusUnprocessableEntity, "invalid_ticket_count"},
		{booking.ErrUnknownField, http.StatusBadRequest, "unknown_field"},
		{errSessionNotFound, http.StatusNotFound, "session_not_found"},
		{errNotConfirmed, http.StatusConflict, "not_confirmed"},
		{errNoRenderer, http.StatusServiceUnavailable, "renderer_unavailable"},
		{history.ErrNotFound, http.StatusNotFound, "booking_not_found"},
		{history.ErrEmptyFeedback, http.StatusUnprocessableEntity, "empty_feedback"},
		{history.ErrFeedbackExists, http.StatusConflict, "feedback_exists"},
		{notify.ErrAlreadySending, http.StatusConflict, "agency_sending"},
	} {
		if errors.Is(err, m.target) {
			return m.status, apiError{Code: m.code, Message: err.Error()}
		}
	}
	return http.StatusInternalServerError, apiError{Code: "internal", Message: "internal error"}
}
