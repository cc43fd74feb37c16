package httpapi

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/example/trip-booking/internal/booking"
)

// wsConn is one connected browser tab.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(v booking.View) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// WSHub pushes view snapshots to every connection of a session. It is the
// booking controllers' Publisher.
type WSHub struct {
	logger *slog.Logger

	mu    sync.RWMutex
	conns map[string]map[*wsConn]struct{}
}

func NewWSHub(logger *slog.Logger) *WSHub {
	return &WSHub{logger: logger, conns: make(map[string]map[*wsConn]struct{})}
}

func (h *WSHub) add(sessionID string, c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[sessionID] == nil {
		h.conns[sessionID] = make(map[*wsConn]struct{})
	}
	h.conns[sessionID][c] = struct{}{}
}

func (h *WSHub) remove(sessionID string, c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns[sessionID], c)
	if len(h.conns[sessionID]) == 0 {
		delete(h.conns, sessionID)
	}
}

func (h *WSHub) Publish(sessionID string, v booking.View) {
	h.mu.RLock()
	targets := make([]*wsConn, 0, len(h.conns[sessionID]))
	for c := range h.conns[sessionID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	for _, c := range targets {
		if err := c.send(v); err != nil {
			h.logger.Warn("ws send failed", "session_id", sessionID, "error", err)
			h.remove(sessionID, c)
			c.conn.Close()
		}
	}
}

// CloseSession drops every connection of a closed session.
func (h *WSHub) CloseSession(sessionID string) {
	h.mu.Lock()
	conns := h.conns[sessionID]
	delete(h.conns, sessionID)
	h.mu.Unlock()
	for c := range conns {
		c.conn.Close()
	}
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sid := mux.Vars(r)["sid"]
	ss, ok := s.sessions.Get(sid)
	if !ok {
		writeError(w, errSessionNotFound)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "session_id", sid, "error", err)
		return
	}
	c := &wsConn{conn: conn}
	s.hub.add(sid, c)
	if err := c.send(ss.Controller.View()); err != nil {
		s.hub.remove(sid, c)
		conn.Close()
		return
	}
	// drain until the client goes away; pushes happen from Publish
	for {
		if _, _, err := conn.NextReader(); err != nil {
			s.hub.remove(sid, c)
			conn.Close()
			return
		}
	}
}
