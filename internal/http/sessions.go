package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/example/trip-booking/internal/boardingpass"
	"github.com/example/trip-booking/internal/booking"
	"github.com/example/trip-booking/internal/navigation"
	"github.com/example/trip-booking/internal/notify"
)

var (
	errSessionNotFound = errors.New("session not found")
	errNotConfirmed    = errors.New("booking not confirmed")
	errNoRenderer      = errors.New("boarding pass renderer not configured")
)

func (s *Server) session(r *http.Request) (*booking.Session, error) {
	ss, ok := s.sessions.Get(mux.Vars(r)["sid"])
	if !ok {
		return nil, errSessionNotFound
	}
	return ss, nil
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ss := s.sessions.Create()
	writeJSON(w, http.StatusCreated, map[string]any{"session_id": ss.ID, "view": ss.Controller.View()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ss, err := s.session(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ss.Controller.View())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sid := mux.Vars(r)["sid"]
	if !s.sessions.Close(sid) {
		writeError(w, errSessionNotFound)
		return
	}
	s.hub.CloseSession(sid)
	w.WriteHeader(http.StatusNoContent)
}

// sessionAction adapts a body-less controller call to a handler answering
// with the resulting view.
func (s *Server) sessionAction(fn func(*booking.Session) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ss, err := s.session(r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := fn(ss); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ss.Controller.View())
	}
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TripID int `json:"trip_id"`
	}
	s.withBody(w, r, &body, http.StatusOK, func(ss *booking.Session) error {
		return ss.Controller.Select(r.Context(), body.TripID)
	})
}

func (s *Server) handleProceed(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TicketCount int `json:"ticket_count"`
	}
	s.withBody(w, r, &body, http.StatusOK, func(ss *booking.Session) error {
		return ss.Controller.Proceed(body.TicketCount)
	})
}

func (s *Server) handleSetField(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Section string `json:"section"`
		Field   string `json:"field"`
		Value   string `json:"value"`
	}
	s.withBody(w, r, &body, http.StatusOK, func(ss *booking.Session) error {
		switch body.Section {
		case "passenger":
			return ss.Controller.SetPassengerField(body.Field, body.Value)
		case "payment":
			return ss.Controller.SetPaymentField(body.Field, body.Value)
		case "otp":
			return ss.Controller.SetOTP(body.Value)
		}
		return errBadRequest("section must be passenger, payment or otp")
	})
}

func (s *Server) handleSubmitPayment(w http.ResponseWriter, r *http.Request) {
	ss, err := s.session(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := ss.Controller.SubmitPayment(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ss.Controller.View())
}

func (s *Server) handleSubmitOTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	s.withBody(w, r, &body, http.StatusAccepted, func(ss *booking.Session) error {
		if err := ss.Controller.SetOTP(body.Code); err != nil {
			return err
		}
		return ss.Controller.SubmitOTP()
	})
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Route string `json:"route"`
	}
	s.withBody(w, r, &body, http.StatusOK, func(ss *booking.Session) error {
		ss.Navigate(navigation.Parse(body.Route))
		return nil
	})
}

func (s *Server) confirmed(r *http.Request) (*booking.Session, booking.View, error) {
	ss, err := s.session(r)
	if err != nil {
		return nil, booking.View{}, err
	}
	v := ss.Controller.View()
	if v.State != booking.StateConfirmed || v.Record == nil || v.Trip == nil {
		return ss, v, errNotConfirmed
	}
	return ss, v, nil
}

func (s *Server) handleAgencyStatus(w http.ResponseWriter, r *http.Request) {
	_, v, err := s.confirmed(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": s.agency.Status(v.Record.PaymentID)})
}

func (s *Server) handleNotifyAgency(w http.ResponseWriter, r *http.Request) {
	_, v, err := s.confirmed(r)
	if err != nil {
		writeError(w, err)
		return
	}
	st, err := s.agency.Send(notify.NewAgencyNotice(*v.Trip, *v.Record, v.Reference))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": st})
}

func (s *Server) handleBoardingPass(w http.ResponseWriter, r *http.Request) {
	_, v, err := s.confirmed(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if s.exporter == nil {
		writeError(w, errNoRenderer)
		return
	}
	img, err := s.exporter.Export(r.Context(), boardingpass.NewPass(v.Reference, *v.Trip, *v.Record))
	if err != nil {
		s.logger.Error("boarding pass export failed", "session_id", v.SessionID, "error", err)
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", `attachment; filename="`+boardingpass.Filename(v.Reference)+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(img)
}

// withBody decodes the JSON body into dst, runs fn against the path's
// session and answers with the session view.
func (s *Server) withBody(w http.ResponseWriter, r *http.Request, dst any, status int, fn func(*booking.Session) error) {
	ss, err := s.session(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, errBadRequest("invalid JSON body: "+err.Error()))
		return
	}
	if err := fn(ss); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, ss.Controller.View())
}
