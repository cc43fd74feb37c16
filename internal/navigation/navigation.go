// Package navigation models the storefront's top-level routes and the event
// stream announcing route changes.
package navigation

import (
	"strings"
	"sync"
)

type Route string

const (
	RouteRoot        Route = "#/"
	RouteNextWeekend Route = "#/next-weekend"
	RoutePastTrips   Route = "#/past-trips"
)

var known = map[Route]bool{RouteRoot: true, RouteNextWeekend: true, RoutePastTrips: true}

// Parse reads a location hash. Unknown or empty values fall back to the
// catalog root.
func Parse(hash string) Route {
	h := strings.TrimSpace(hash)
	if h == "" {
		return RouteRoot
	}
	if !strings.HasPrefix(h, "#") {
		h = "#" + h
	}
	if !strings.HasPrefix(h, "#/") {
		h = "#/" + strings.TrimPrefix(h, "#")
	}
	if r := Route(h); known[r] {
		return r
	}
	return RouteRoot
}

// Bus fans route changes out to subscribers in subscription order.
type Bus struct {
	mu      sync.RWMutex
	next    int
	subs    map[int]func(Route)
	order   []int
	current Route
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Route)), current: RouteRoot}
}

// Subscribe registers fn and returns a function removing it.
func (b *Bus) Subscribe(fn func(Route)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.order = append(b.order, id)
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish records r as current and notifies every subscriber. Publishing the
// current route again is not a change and notifies no one. Handlers run
// outside the bus lock so they may publish or unsubscribe.
func (b *Bus) Publish(r Route) {
	b.mu.Lock()
	if r == b.current {
		b.mu.Unlock()
		return
	}
	b.current = r
	handlers := make([]func(Route), 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.subs[id])
	}
	b.mu.Unlock()
	for _, h := range handlers {
		h(r)
	}
}

func (b *Bus) Current() Route {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}
