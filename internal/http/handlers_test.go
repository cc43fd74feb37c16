package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/trip-booking/internal/boardingpass"
	"github.com/example/trip-booking/internal/booking"
	"github.com/example/trip-booking/internal/catalog"
	"github.com/example/trip-booking/internal/history"
	"github.com/example/trip-booking/internal/logging"
	"github.com/example/trip-booking/internal/models"
	"github.com/example/trip-booking/internal/notify"
	"github.com/example/trip-booking/internal/payments"
	"github.com/example/trip-booking/internal/storage"
)

type fakeExporter struct {
	got boardingpass.Pass
}

func (f *fakeExporter) Export(_ context.Context, p boardingpass.Pass) ([]byte, error) {
	f.got = p
	return []byte("\x89PNG"), nil
}

type countingNotifier struct{ n int }

func (c *countingNotifier) NotifyAgency(context.Context, notify.AgencyNotice) error {
	c.n++
	return nil
}

type testEnv struct {
	srv      *Server
	exporter *fakeExporter
	agency   *countingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := logging.Discard()
	cat := catalog.Default()
	kv := storage.NewMemoryKV()
	hub := NewWSHub(logger)
	inline := func(fn func()) { fn() }
	reg := booking.NewRegistry(booking.Deps{
		Trips:     cat.ByID,
		Email:     &notify.LogEmailSender{Logger: logger},
		Run:       inline,
		Publisher: hub,
		Logger:    logger,
	}, func() payments.Gateway { return payments.NewSimulator(nil, 0, 0) }, kv, logger)

	env := &testEnv{exporter: &fakeExporter{}, agency: &countingNotifier{}}
	env.srv = NewServer(Options{
		Catalog:  cat,
		Sessions: reg,
		Agency:   notify.NewAgencyTracker(env.agency, logger, inline),
		Exporter: env.exporter,
		Prefs:    kv,
		Hub:      hub,
		Logger:   logger,
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	rec := e.do(t, "POST", "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	out := decode[map[string]any](t, rec)
	sid, _ := out["session_id"].(string)
	require.NotEmpty(t, sid)
	return sid
}

func (e *testEnv) setField(t *testing.T, sid, section, field, value string) {
	t.Helper()
	rec := e.do(t, "PATCH", "/api/v1/sessions/"+sid+"/fields", map[string]string{"section": section, "field": field, "value": value})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func (e *testEnv) bookToOTP(t *testing.T, sid, card string) *httptest.ResponseRecorder {
	t.Helper()
	require.Equal(t, http.StatusOK, e.do(t, "POST", "/api/v1/sessions/"+sid+"/select", map[string]int{"trip_id": 5}).Code)
	rec := e.do(t, "POST", "/api/v1/sessions/"+sid+"/proceed", map[string]int{"ticket_count": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[booking.View](t, rec)
	require.NotNil(t, v.Quote)
	assert.Equal(t, 1500.0, v.Quote.Deposit)

	e.setField(t, sid, "passenger", "fullName", "Amine Benali")
	e.setField(t, sid, "passenger", "photoId", "data:image/png;base64,AAA")
	e.setField(t, sid, "passenger", "phone", "+213555123456")
	e.setField(t, sid, "passenger", "email", "amine@example.dz")
	e.setField(t, sid, "payment", "cardName", "AMINE BENALI")
	e.setField(t, sid, "payment", "cardNumber", card)
	e.setField(t, sid, "payment", "expiryDate", "12/35")
	e.setField(t, sid, "payment", "cvv", "321")
	return e.do(t, "POST", "/api/v1/sessions/"+sid+"/payment", nil)
}

func TestBookingFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	sid := env.createSession(t)

	rec := env.bookToOTP(t, sid, "4000 0000 0000 4242")
	require.Equal(t, http.StatusAccepted, rec.Code)

	v := decode[booking.View](t, env.do(t, "GET", "/api/v1/sessions/"+sid, nil))
	assert.Equal(t, booking.StepOTP, v.Step)

	rec = env.do(t, "POST", "/api/v1/sessions/"+sid+"/otp", map[string]string{"code": "1234"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	v = decode[booking.View](t, rec)
	assert.Equal(t, booking.StateConfirmed, v.State)
	require.NotNil(t, v.Record)
	assert.Equal(t, 6000.0, v.Record.TotalPrice)
	assert.Equal(t, 4500.0, v.Record.RemainingBalance)

	// trip 5 is no longer offered
	res := decode[catalog.Result](t, env.do(t, "GET", "/api/v1/trips", nil, sessionHeader, sid))
	for _, trip := range res.Trips {
		assert.NotEqual(t, 5, trip.ID)
	}

	records := decode[[]models.BookingRecord](t, env.do(t, "GET", "/api/v1/history", nil, sessionHeader, sid))
	require.Len(t, records, 1)

	rec = env.do(t, "GET", "/api/v1/sessions/"+sid+"/boarding-pass.png", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Tahwisa213-Billet-"+v.Reference+".png")
	assert.Equal(t, v.Reference, env.exporter.got.Reference)

	rec = env.do(t, "POST", "/api/v1/sessions/"+sid+"/agency", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "sent", decode[map[string]string](t, rec)["status"])
	env.do(t, "POST", "/api/v1/sessions/"+sid+"/agency", nil)
	assert.Equal(t, 1, env.agency.n)

	rec = env.do(t, "POST", "/api/v1/history/5/feedback", map[string]string{"text": "  Super sortie  "}, sessionHeader, sid)
	require.Equal(t, http.StatusOK, rec.Code)
	records = decode[[]models.BookingRecord](t, rec)
	require.NotNil(t, records[0].Feedback)
	assert.Equal(t, "Super sortie", *records[0].Feedback)

	rec = env.do(t, "POST", "/api/v1/history/5/feedback", map[string]string{"text": "encore"}, sessionHeader, sid)
	assert.Equal(t, http.StatusConflict, rec.Code)

	past := decode[[]history.PastTrip](t, env.do(t, "GET", "/api/v1/history/past", nil, sessionHeader, sid))
	require.Len(t, past, 1)
	assert.Equal(t, "Lac de Tonga", past[0].Trip.Title)

	rec = env.do(t, "POST", "/api/v1/sessions/"+sid+"/select", map[string]int{"trip_id": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decode[apiError](t, rec).Code)

	rec = env.do(t, "POST", "/api/v1/sessions/"+sid+"/start-new", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, "POST", "/api/v1/sessions/"+sid+"/select", map[string]int{"trip_id": 5})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_booked", decode[apiError](t, rec).Code)
}

func TestPaymentDeclinedShowsBanner(t *testing.T) {
	env := newTestEnv(t)
	sid := env.createSession(t)
	rec := env.bookToOTP(t, sid, "4000000000001111")
	require.Equal(t, http.StatusAccepted, rec.Code)

	v := decode[booking.View](t, env.do(t, "GET", "/api/v1/sessions/"+sid, nil))
	assert.Equal(t, booking.StepPayment, v.Step)
	require.NotNil(t, v.PaymentError)
	assert.Equal(t, payments.CodeCardDeclined, v.PaymentError.Code)

	records := decode[[]models.BookingRecord](t, env.do(t, "GET", "/api/v1/history", nil, sessionHeader, sid))
	assert.Empty(t, records)
}

func TestHistoryIsScopedToSession(t *testing.T) {
	env := newTestEnv(t)
	a, b := env.createSession(t), env.createSession(t)
	require.Equal(t, http.StatusAccepted, env.bookToOTP(t, a, "4000 0000 0000 4242").Code)
	require.Equal(t, http.StatusAccepted, env.do(t, "POST", "/api/v1/sessions/"+a+"/otp", map[string]string{"code": "1234"}).Code)

	records := decode[[]models.BookingRecord](t, env.do(t, "GET", "/api/v1/history", nil, sessionHeader, b))
	assert.Empty(t, records)
	past := decode[[]history.PastTrip](t, env.do(t, "GET", "/api/v1/history/past", nil, sessionHeader, b))
	assert.Empty(t, past)
	rec := env.do(t, "POST", "/api/v1/history/5/feedback", map[string]string{"text": "pas à moi"}, sessionHeader, b)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	res := decode[catalog.Result](t, env.do(t, "GET", "/api/v1/trips", nil, sessionHeader, b))
	ids := map[int]bool{}
	for _, trip := range res.Trips {
		ids[trip.ID] = true
	}
	assert.True(t, ids[5])
	featured := decode[[]models.Trip](t, env.do(t, "GET", "/api/v1/trips/featured?limit=50", nil, sessionHeader, b))
	assert.Len(t, featured, len(catalog.Default().All()))

	rec = env.do(t, "POST", "/api/v1/sessions/"+b+"/select", map[string]int{"trip_id": 5})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "GET", "/api/v1/history", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(t, "GET", "/api/v1/history", nil, sessionHeader, "nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidationErrorsAre422(t *testing.T) {
	env := newTestEnv(t)
	sid := env.createSession(t)
	env.do(t, "POST", "/api/v1/sessions/"+sid+"/select", map[string]int{"trip_id": 5})
	env.do(t, "POST", "/api/v1/sessions/"+sid+"/proceed", map[string]int{"ticket_count": 1})

	rec := env.do(t, "POST", "/api/v1/sessions/"+sid+"/payment", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	}](t, rec)
	assert.Equal(t, "validation_failed", body.Code)
	assert.Contains(t, body.Details, "fullName")
	assert.Contains(t, body.Details, "email")
}

func TestOTPBeforeAuthorizeIsConflict(t *testing.T) {
	env := newTestEnv(t)
	sid := env.createSession(t)
	env.do(t, "POST", "/api/v1/sessions/"+sid+"/select", map[string]int{"trip_id": 5})
	env.do(t, "POST", "/api/v1/sessions/"+sid+"/proceed", map[string]int{"ticket_count": 1})

	rec := env.do(t, "POST", "/api/v1/sessions/"+sid+"/otp", map[string]string{"code": "1234"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestNavigateCancelsFlow(t *testing.T) {
	env := newTestEnv(t)
	sid := env.createSession(t)
	env.do(t, "POST", "/api/v1/sessions/"+sid+"/select", map[string]int{"trip_id": 5})

	rec := env.do(t, "POST", "/api/v1/sessions/"+sid+"/navigate", map[string]string{"route": "#/next-weekend"})
	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[booking.View](t, rec)
	assert.Equal(t, booking.StateSelecting, v.State)
	assert.Nil(t, v.Trip)
}

func TestTripFiltersPersistPerSession(t *testing.T) {
	env := newTestEnv(t)
	res := decode[catalog.Result](t, env.do(t, "GET", "/api/v1/trips?difficulty=Easy", nil, sessionHeader, "abc"))
	require.NotEmpty(t, res.Trips)
	for _, trip := range res.Trips {
		assert.Equal(t, models.DifficultyEasy, trip.Difficulty)
	}
	assert.True(t, res.FiltersActive)

	again := decode[catalog.Result](t, env.do(t, "GET", "/api/v1/trips", nil, sessionHeader, "abc"))
	assert.Equal(t, res.Trips, again.Trips)

	other := decode[catalog.Result](t, env.do(t, "GET", "/api/v1/trips", nil, sessionHeader, "xyz"))
	assert.False(t, other.FiltersActive)
	assert.Len(t, other.Trips, len(catalog.Default().All()))
}

func TestNextWeekendView(t *testing.T) {
	env := newTestEnv(t)
	res := decode[catalog.Result](t, env.do(t, "GET", "/api/v1/trips?view=next-weekend", nil))
	for _, trip := range res.Trips {
		assert.True(t, trip.IsNextWeekend)
	}
}

func TestTripLookupAndNotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "GET", "/api/v1/trips/5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, decode[models.Trip](t, rec).ID)

	rec = env.do(t, "GET", "/api/v1/trips/404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, "GET", "/api/v1/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "session_not_found", decode[apiError](t, rec).Code)

	featured := decode[[]models.Trip](t, env.do(t, "GET", "/api/v1/trips/featured?limit=2", nil))
	assert.Len(t, featured, 2)
}

func TestBoardingPassRequiresConfirmation(t *testing.T) {
	env := newTestEnv(t)
	sid := env.createSession(t)
	rec := env.do(t, "GET", "/api/v1/sessions/"+sid+"/boarding-pass.png", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHealthzAndRequestID(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "GET", "/healthz", nil, "X-Request-ID", "req-1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
}

func TestWebSocketPushesViews(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.srv)
	defer ts.Close()
	sid := env.createSession(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/" + sid
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var first booking.View
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, booking.StateSelecting, first.State)

	env.do(t, "POST", "/api/v1/sessions/"+sid+"/select", map[string]int{"trip_id": 5})
	var pushed booking.View
	require.NoError(t, conn.ReadJSON(&pushed))
	assert.Equal(t, booking.StateDetails, pushed.State)
	require.NotNil(t, pushed.Trip)
	assert.Equal(t, 5, pushed.Trip.ID)
}
