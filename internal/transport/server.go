// Package transport implements the WebSocket fan-out: one subscription per
// client, lifecycle broadcasts to every connected client, and per-client
// backpressure that drops stale frames rather than blocking the rest of
// the fleet. The client registry is a set of *Client (map[*Client]struct{})
// guarded by a RWMutex, with register/unregister on connect/disconnect and broadcasts
// fanning out under RLock.
package transport

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/fleetobserver/fleetobserver/pkg/protocol"
)

// Server tracks every connected WebSocket client and the sessionId →
// client-set subscription mapping.
type Server struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu            sync.RWMutex
	clients       map[*Client]struct{}
	subscriptions map[string]map[*Client]struct{}
	shuttingDown  bool

	// OnSubscriberCountChanged is invoked (outside the server's lock) with
	// the new count every time a session's subscriber count changes
	// (subscribe, unsubscribe, resubscribe elsewhere, or disconnect), so the
	// owner can spin up or tear down that session's tailer.
	OnSubscriberCountChanged func(sessionID string, count int)
}

// NewServer creates a transport Server. allowedOrigins is a checkOrigin
// allowlist; an empty slice allows any origin (non-browser clients, e.g.
// the agent CLI itself, never send an Origin header at all).
func NewServer(logger *slog.Logger, allowedOrigins []string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		logger:        logger,
		clients:       make(map[*Client]struct{}),
		subscriptions: make(map[string]map[*Client]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return checkOrigin(r, allowedOrigins) },
	}
	return s
}

func checkOrigin(r *http.Request, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

// HandleWebSocket upgrades the request and runs the client's read/write
// pumps until disconnect.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("transport: upgrade failed", "error", err)
		return
	}

	client := newClient(conn, s)
	s.registerClient(client)
	defer s.unregisterClient(client)

	client.run(r.Context())
}

func (s *Server) registerClient(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}
	s.logger.Info("transport: client connected", "id", c.id)
}

func (s *Server) unregisterClient(c *Client) {
	s.mu.Lock()
	delete(s.clients, c)
	sessionID, count := s.unsubscribeLocked(c)
	s.mu.Unlock()
	c.close()
	if sessionID != "" && s.OnSubscriberCountChanged != nil {
		s.OnSubscriberCountChanged(sessionID, count)
	}
	s.logger.Info("transport: client disconnected", "id", c.id)
}

// subscribe replaces c's prior subscription (if any) with sessionID.
func (s *Server) subscribe(c *Client, sessionID string) {
	s.mu.Lock()
	prev, prevCount := s.unsubscribeLocked(c)
	set, ok := s.subscriptions[sessionID]
	if !ok {
		set = make(map[*Client]struct{})
		s.subscriptions[sessionID] = set
	}
	set[c] = struct{}{}
	c.sessionID = sessionID
	count := len(set)
	s.mu.Unlock()

	if s.OnSubscriberCountChanged != nil {
		if prev != "" && prev != sessionID {
			s.OnSubscriberCountChanged(prev, prevCount)
		}
		s.OnSubscriberCountChanged(sessionID, count)
	}
}

// unsubscribe drops c's current subscription, if any.
func (s *Server) unsubscribe(c *Client) {
	s.mu.Lock()
	sessionID, count := s.unsubscribeLocked(c)
	s.mu.Unlock()

	if sessionID != "" && s.OnSubscriberCountChanged != nil {
		s.OnSubscriberCountChanged(sessionID, count)
	}
}

// unsubscribeLocked must be called with s.mu held. It returns the
// sessionID the client was subscribed to (empty if none) and the
// resulting subscriber count for that session.
func (s *Server) unsubscribeLocked(c *Client) (sessionID string, remaining int) {
	sessionID = c.sessionID
	if sessionID == "" {
		return "", 0
	}
	c.sessionID = ""
	set, ok := s.subscriptions[sessionID]
	if !ok {
		return sessionID, 0
	}
	delete(set, c)
	remaining = len(set)
	if remaining == 0 {
		delete(s.subscriptions, sessionID)
	}
	return sessionID, remaining
}

// SubscriberCount reports how many clients are currently subscribed to a
// session.
func (s *Server) SubscriberCount(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscriptions[sessionID])
}

// Publish delivers a "messages" frame to every client subscribed to
// frame.SessionID, in strict byte-range order (the caller is responsible
// for calling Publish in order; the transport never reorders).
func (s *Server) Publish(frame protocol.ServerFrame) {
	s.mu.RLock()
	set := s.subscriptions[frame.SessionID]
	targets := make([]*Client, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	s.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(frame)
	}
}

// Broadcast sends a lifecycle frame to every connected client, subscribed
// or not.
func (s *Server) Broadcast(frame protocol.ServerFrame) {
	s.mu.RLock()
	targets := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		targets = append(targets, c)
	}
	s.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(frame)
	}
}

// Shutdown closes every connection cleanly. It sends nothing further.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.shuttingDown = true
	targets := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	for _, c := range targets {
		c.close()
	}
}
