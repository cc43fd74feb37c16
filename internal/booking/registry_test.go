package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/trip-booking/internal/catalog"
	"github.com/example/trip-booking/internal/history"
	"github.com/example/trip-booking/internal/logging"
	"github.com/example/trip-booking/internal/navigation"
	"github.com/example/trip-booking/internal/payments"
	"github.com/example/trip-booking/internal/storage"
)

func newTestRegistry() *Registry {
	deps := Deps{
		Trips:  catalog.Default().ByID,
		Run:    inline,
		Logger: logging.Discard(),
	}
	gateways := func() payments.Gateway { return payments.NewSimulator(nil, 0, 0) }
	return NewRegistry(deps, gateways, storage.NewMemoryKV(), logging.Discard())
}

func confirmTrip5(t *testing.T, s *Session) {
	t.Helper()
	toOTPStep(t, s.Controller)
	require.NoError(t, s.Controller.SetOTP("1234"))
	require.NoError(t, s.Controller.SubmitOTP())
	require.Equal(t, StateConfirmed, s.Controller.View().State)
}

func TestRegistry_CreateGetClose(t *testing.T) {
	r := newTestRegistry()
	s := r.Create()
	require.NotEmpty(t, s.ID)

	got, ok := r.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, r.Len())

	assert.True(t, r.Close(s.ID))
	assert.False(t, r.Close(s.ID))
	_, ok = r.Get(s.ID)
	assert.False(t, ok)
}

func TestRegistry_NavigationCancelsFlow(t *testing.T) {
	r := newTestRegistry()
	s := r.Create()
	require.NoError(t, s.Controller.Select(context.Background(), 5))

	s.Navigate(navigation.RoutePastTrips)
	assert.Equal(t, StateSelecting, s.Controller.View().State)
	assert.Equal(t, navigation.RoutePastTrips, s.Nav.Current())
}

func TestRegistry_SessionsAreIndependent(t *testing.T) {
	r := newTestRegistry()
	a, b := r.Create(), r.Create()
	assert.NotEqual(t, a.ID, b.ID)

	require.NoError(t, a.Controller.Select(context.Background(), 5))
	b.Navigate(navigation.RouteNextWeekend)
	assert.Equal(t, StateDetails, a.Controller.View().State)
}

func TestSession_StartNewReturnsToRoot(t *testing.T) {
	r := newTestRegistry()
	s := r.Create()
	c := s.Controller
	s.Navigate(navigation.RouteNextWeekend)
	confirmTrip5(t, s)

	require.NoError(t, s.StartNew())
	v := c.View()
	assert.Equal(t, StateSelecting, v.State)
	assert.Nil(t, v.Record)
	assert.Equal(t, navigation.RouteRoot, s.Nav.Current())

	assert.ErrorIs(t, s.StartNew(), ErrInvalidTransition)
}

func TestRegistry_HistoryIsPerSession(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	deps := Deps{Trips: catalog.Default().ByID, Run: inline, Logger: logging.Discard()}
	r := NewRegistry(deps, func() payments.Gateway { return payments.NewSimulator(nil, 0, 0) }, kv, logging.Discard())
	a, b := r.Create(), r.Create()

	confirmTrip5(t, a)
	assert.True(t, a.History.BookedTripIDs(ctx)[5])
	require.NoError(t, a.StartNew())
	assert.ErrorIs(t, a.Controller.Select(ctx, 5), ErrAlreadyBooked)

	assert.Empty(t, b.History.Load(ctx))
	require.NoError(t, b.Controller.Select(ctx, 5))
	assert.Equal(t, StateDetails, b.Controller.View().State)

	// the record lives under a's profile prefix
	raw, ok, err := kv.Get(ctx, ProfilePrefix(a.ID)+history.Key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, `"tripId":5`)
	_, ok, err = kv.Get(ctx, ProfilePrefix(b.ID)+history.Key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistry_SweepClosesIdleSessions(t *testing.T) {
	r := newTestRegistry()
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	idle, active := r.Create(), r.Create()
	require.NoError(t, idle.Controller.Select(context.Background(), 5))

	now = now.Add(20 * time.Minute)
	_, ok := r.Get(active.ID)
	require.True(t, ok)
	now = now.Add(15 * time.Minute)

	assert.Equal(t, []string{idle.ID}, r.Sweep(30*time.Minute))
	assert.Equal(t, 1, r.Len())
	_, ok = r.Get(idle.ID)
	assert.False(t, ok)
	_, ok = r.Get(active.ID)
	assert.True(t, ok)
	assert.Equal(t, StateSelecting, idle.Controller.View().State)
}

func TestSession_SameRouteKeepsFlow(t *testing.T) {
	r := newTestRegistry()
	s := r.Create()
	s.Navigate(navigation.RouteNextWeekend)
	require.NoError(t, s.Controller.Select(context.Background(), 5))

	s.Navigate(navigation.RouteNextWeekend)
	assert.Equal(t, StateDetails, s.Controller.View().State)

	s.Navigate(navigation.RouteRoot)
	assert.Equal(t, StateSelecting, s.Controller.View().State)
}
