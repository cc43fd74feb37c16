package booking

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/trip-booking/internal/history"
	"github.com/example/trip-booking/internal/navigation"
	"github.com/example/trip-booking/internal/observability"
	"github.com/example/trip-booking/internal/payments"
	"github.com/example/trip-booking/internal/storage"
)

// ProfilePrefix namespaces a session's durable slots (booking history,
// saved filters) inside the shared store.
func ProfilePrefix(sessionID string) string {
	return "session:" + sessionID + ":"
}

// Session is one visitor: a booking controller, the navigation stream it
// listens to and the visitor's own booking history.
type Session struct {
	ID         string
	Controller *Controller
	Nav        *navigation.Bus
	History    *history.Store

	unsubscribe func()
	lastSeen    time.Time
}

// Navigate publishes a route change for the session.
func (s *Session) Navigate(r navigation.Route) {
	s.Nav.Publish(r)
}

// StartNew clears a finished flow and returns the session to the catalog.
func (s *Session) StartNew() error {
	if err := s.Controller.StartNew(); err != nil {
		return err
	}
	s.Nav.Publish(navigation.RouteRoot)
	return nil
}

// GatewayFactory returns the gateway for a new session. Gateways that hold
// state between phases must not be shared.
type GatewayFactory func() payments.Gateway

type Registry struct {
	deps     Deps
	gateways GatewayFactory
	profiles storage.KV
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry builds sessions from deps. Each session's Gateway comes from
// gateways and its History from its own prefix of profiles, overriding
// deps.Gateway and deps.History.
func NewRegistry(deps Deps, gateways GatewayFactory, profiles storage.KV, logger *slog.Logger) *Registry {
	if gateways == nil {
		g := deps.Gateway
		gateways = func() payments.Gateway { return g }
	}
	if profiles == nil {
		profiles = storage.NewMemoryKV()
	}
	return &Registry{
		deps:     deps,
		gateways: gateways,
		profiles: profiles,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

func (r *Registry) Create() *Session {
	id := uuid.NewString()
	deps := r.deps
	deps.Gateway = r.gateways()
	deps.History = history.NewStore(storage.Prefixed{KV: r.profiles, Prefix: ProfilePrefix(id)}, r.logger)
	deps.Rand = nil
	ctrl := NewController(id, deps)
	bus := navigation.NewBus()
	s := &Session{ID: id, Controller: ctrl, Nav: bus, History: deps.History}
	s.unsubscribe = bus.Subscribe(ctrl.OnNavigate)

	r.mu.Lock()
	s.lastSeen = r.now()
	r.sessions[id] = s
	r.mu.Unlock()
	observability.ActiveSessions.Inc()
	r.logger.Info("session created", "session_id", id)
	return s
}

// Get returns the session and marks it as seen.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if ok {
		s.lastSeen = r.now()
	}
	return s, ok
}

// Close drops a session, abandoning any open flow. Its durable history
// stays in the profile store.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return false
	}
	r.release(s)
	return true
}

// Sweep closes every session not seen for longer than idle and returns
// their ids.
func (r *Registry) Sweep(idle time.Duration) []string {
	cutoff := r.now().Add(-idle)
	var expired []*Session
	r.mu.Lock()
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()
	ids := make([]string, 0, len(expired))
	for _, s := range expired {
		r.release(s)
		r.logger.Info("session expired", "session_id", s.ID)
		ids = append(ids, s.ID)
	}
	return ids
}

// RunSweeper calls Sweep every interval until ctx is done, handing each
// expired id to onExpire when set.
func (r *Registry) RunSweeper(ctx context.Context, interval, idle time.Duration, onExpire func(id string)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for _, id := range r.Sweep(idle) {
				if onExpire != nil {
					onExpire(id)
				}
			}
		}
	}
}

func (r *Registry) release(s *Session) {
	_ = s.Controller.Cancel()
	s.unsubscribe()
	observability.ActiveSessions.Dec()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
