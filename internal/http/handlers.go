package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/trip-booking/internal/boardingpass"
	"github.com/example/trip-booking/internal/booking"
	"github.com/example/trip-booking/internal/catalog"
	"github.com/example/trip-booking/internal/logging"
	"github.com/example/trip-booking/internal/notify"
	"github.com/example/trip-booking/internal/storage"
)

const sessionHeader = "X-Session-ID"

// Options wires the server's collaborators. Exporter may be nil, in which
// case boarding pass export answers 503.
type Options struct {
	Catalog  *catalog.Catalog
	Sessions *booking.Registry
	Agency   *notify.AgencyTracker
	Exporter boardingpass.Exporter
	Prefs    storage.KV
	Hub      *WSHub
	Logger   *slog.Logger
}

type Server struct {
	catalog  *catalog.Catalog
	sessions *booking.Registry
	agency   *notify.AgencyTracker
	exporter boardingpass.Exporter
	prefs    storage.KV
	hub      *WSHub
	logger   *slog.Logger
	mux      *mux.Router
}

func NewServer(o Options) *Server {
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
	if o.Hub == nil {
		o.Hub = NewWSHub(o.Logger)
	}
	if o.Prefs == nil {
		o.Prefs = storage.NewMemoryKV()
	}
	s := &Server{
		catalog:  o.Catalog,
		sessions: o.Sessions,
		agency:   o.Agency,
		exporter: o.Exporter,
		prefs:    o.Prefs,
		hub:      o.Hub,
		logger:   o.Logger,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/trips", s.handleListTrips).Methods("GET")
	api.HandleFunc("/trips/featured", s.handleFeatured).Methods("GET")
	api.HandleFunc("/trips/{id:[0-9]+}", s.handleGetTrip).Methods("GET")

	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions/{sid}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{sid}", s.handleDeleteSession).Methods("DELETE")
	api.HandleFunc("/sessions/{sid}/select", s.handleSelect).Methods("POST")
	api.HandleFunc("/sessions/{sid}/proceed", s.handleProceed).Methods("POST")
	api.HandleFunc("/sessions/{sid}/back", s.sessionAction(func(ss *booking.Session) error { return ss.Controller.Back() })).Methods("POST")
	api.HandleFunc("/sessions/{sid}/cancel", s.sessionAction(func(ss *booking.Session) error { return ss.Controller.Cancel() })).Methods("POST")
	api.HandleFunc("/sessions/{sid}/start-new", s.sessionAction(func(ss *booking.Session) error { return ss.StartNew() })).Methods("POST")
	api.HandleFunc("/sessions/{sid}/otp/back", s.sessionAction(func(ss *booking.Session) error { return ss.Controller.BackToPayment() })).Methods("POST")
	api.HandleFunc("/sessions/{sid}/fields", s.handleSetField).Methods("PATCH")
	api.HandleFunc("/sessions/{sid}/payment", s.handleSubmitPayment).Methods("POST")
	api.HandleFunc("/sessions/{sid}/otp", s.handleSubmitOTP).Methods("POST")
	api.HandleFunc("/sessions/{sid}/navigate", s.handleNavigate).Methods("POST")
	api.HandleFunc("/sessions/{sid}/agency", s.handleAgencyStatus).Methods("GET")
	api.HandleFunc("/sessions/{sid}/agency", s.handleNotifyAgency).Methods("POST")
	api.HandleFunc("/sessions/{sid}/boarding-pass.png", s.handleBoardingPass).Methods("GET")

	api.HandleFunc("/history", s.handleHistory).Methods("GET")
	api.HandleFunc("/history/past", s.handlePastTrips).Methods("GET")
	api.HandleFunc("/history/{trip_id:[0-9]+}/feedback", s.handleFeedback).Methods("POST")

	s.mux.HandleFunc("/ws/{sid}", s.handleWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// bookedFor is the set of trips the caller's session has booked. Callers
// without a known session see the whole catalog.
func (s *Server) bookedFor(r *http.Request) map[int]bool {
	ss, ok := s.sessions.Get(r.Header.Get(sessionHeader))
	if !ok {
		return nil
	}
	return ss.History.BookedTripIDs(r.Context())
}

// profile resolves the session named by the session header for the history
// routes.
func (s *Server) profile(r *http.Request) (*booking.Session, error) {
	sid := r.Header.Get(sessionHeader)
	if sid == "" {
		return nil, errBadRequest(sessionHeader + " header is required")
	}
	ss, ok := s.sessions.Get(sid)
	if !ok {
		return nil, errSessionNotFound
	}
	return ss, nil
}

// handleListTrips serves the browse views. With a session header, filters
// not given in the query come from the session's saved preferences and the
// result is saved back.
func (s *Server) handleListTrips(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	available := catalog.Available(s.catalog.All(), s.bookedFor(r))

	if q.Get("view") == "next-weekend" {
		writeJSON(w, http.StatusOK, catalog.Search(catalog.NextWeekend(available), criteriaFromQuery(catalog.DefaultCriteria(), q)))
		return
	}

	var prefs *catalog.PrefsStore
	c := catalog.DefaultCriteria()
	if sid := r.Header.Get(sessionHeader); sid != "" {
		prefs = catalog.NewPrefsStore(storage.Prefixed{KV: s.prefs, Prefix: booking.ProfilePrefix(sid)}, s.logger)
		c = prefs.Load(r.Context())
	}
	c = criteriaFromQuery(c, q)
	if prefs != nil {
		prefs.Save(r.Context(), c)
	}
	writeJSON(w, http.StatusOK, catalog.Search(available, c))
}

func criteriaFromQuery(c catalog.Criteria, q map[string][]string) catalog.Criteria {
	if v, ok := q["q"]; ok {
		c.Query = v[0]
	}
	if v, ok := q["difficulty"]; ok {
		c.Difficulty = v[0]
	}
	if v, ok := q["type"]; ok {
		c.Type = v[0]
	}
	if v, ok := q["category"]; ok {
		c.Category = v[0]
	}
	return c
}

func (s *Server) handleFeatured(w http.ResponseWriter, r *http.Request) {
	n := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			writeError(w, errBadRequest("limit must be a non-negative integer"))
			return
		}
		n = parsed
	}
	available := catalog.Available(s.catalog.All(), s.bookedFor(r))
	writeJSON(w, http.StatusOK, catalog.Featured(available, n))
}

func (s *Server) handleGetTrip(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	trip, ok := s.catalog.ByID(id)
	if !ok {
		writeError(w, booking.ErrTripNotFound)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ss, err := s.profile(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ss.History.Load(r.Context()))
}

func (s *Server) handlePastTrips(w http.ResponseWriter, r *http.Request) {
	ss, err := s.profile(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ss.History.Past(r.Context(), s.catalog.ByID))
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	ss, err := s.profile(r)
	if err != nil {
		writeError(w, err)
		return
	}
	tripID, _ := strconv.Atoi(mux.Vars(r)["trip_id"])
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errBadRequest(err.Error()))
		return
	}
	records, err := ss.History.AttachFeedback(r.Context(), tripID, body.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
