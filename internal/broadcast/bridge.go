// Package broadcast relays pnr.fetched events to WebSocket clients at
// /ws/pnr. The protocol is server-push only: the server never expects
// inbound frames, so readPump exists solely to notice the client going
// away.
package broadcast

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pnragg/service/internal/eventbus"
	"github.com/pnragg/service/internal/pnragg"
)

const (
	sessionSendBuffer = 32
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingInterval      = (pongWait * 9) / 10
)

// Bridge upgrades HTTP requests at /ws/pnr to WebSocket sessions and relays
// every event published on TopicPNRFetched to every connected session.
type Bridge struct {
	bus      *eventbus.Bus
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[*session]struct{}
}

type session struct {
	conn *websocket.Conn
	send chan pnragg.Event
}

// New creates a Bridge fed by bus. CheckOrigin always allows, matching the
// rest of this service's same-origin-agnostic API surface (no browser
// cookie auth to protect).
func New(bus *eventbus.Bus) *Bridge {
	return &Bridge{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sessions: make(map[*session]struct{}),
	}
}

// Run subscribes to pnr.fetched events and relays each to every connected
// session until done is closed. It is meant to run as a single long-lived
// goroutine for the Bridge's lifetime.
func (b *Bridge) Run(done <-chan struct{}) {
	sub := b.bus.Subscribe(pnragg.TopicPNRFetched)
	defer sub.Close()

	for {
		select {
		case evt := <-sub.Events:
			b.relay(evt)
		case <-done:
			return
		}
	}
}

func (b *Bridge) relay(evt pnragg.Event) {
	b.mu.Lock()
	sessions := make([]*session, 0, len(b.sessions))
	for s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.Unlock()

	for _, s := range sessions {
		select {
		case s.send <- evt:
		default:
			slog.Warn("websocket session send buffer full, dropping event")
		}
	}
}

// ServeHTTP upgrades the connection and registers it as a broadcast
// session. It blocks until the client disconnects.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	s := &session{conn: conn, send: make(chan pnragg.Event, sessionSendBuffer)}

	b.mu.Lock()
	b.sessions[s] = struct{}{}
	b.mu.Unlock()

	done := make(chan struct{})
	go s.writePump(done)
	s.readPump()
	close(done)

	b.mu.Lock()
	delete(b.sessions, s)
	b.mu.Unlock()
}

// SessionCount reports the number of currently connected sessions, used by
// the /health endpoint.
func (b *Bridge) SessionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

func (s *session) writePump(done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case evt := <-s.send:
			// Only the event's body goes on the wire: each frame is
			// {pnr, status, timestamp}, not the bus envelope.
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(evt.Body); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// readPump only watches for the client going away; this service never
// expects inbound frames on /ws/pnr.
func (s *session) readPump() {
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := s.conn.NextReader(); err != nil {
			return
		}
	}
}
