package ws

import (
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var errConnClosed = errors.New("connection closed")

// AnonymousUserID is the handshake value some clients send when they have
// no authenticated user; it is treated the same as an absent user id.
const AnonymousUserID = "undefined"

// Gateway owns every live websocket connection and the presence registry
// entries for the identified ones. It is the single fanout surface: the
// chat service pushes mutation events through EmitToUser, and the gateway
// broadcasts the online-user set on every presence change.
type Gateway struct {
	registry Registry
	upgrader websocket.Upgrader

	// keepalive intervals for new connections; overridable in tests.
	pongWait   time.Duration
	pingPeriod time.Duration

	mu    sync.RWMutex
	conns map[*Conn]struct{}
}

// NewGateway returns a gateway using the given presence registry.
func NewGateway(registry Registry) *Gateway {
	return &Gateway{
		registry:   registry,
		pongWait:   pongWait,
		pingPeriod: pingPeriod,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin is enforced by the CORS layer in front of the API;
			// the handshake accepts any origin here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*Conn]struct{}),
	}
}

// HandleWS upgrades an HTTP request to a websocket connection. The user id
// arrives as a handshake query parameter; an absent or "undefined" value
// yields an anonymous connection that receives broadcasts but holds no
// presence entry.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == AnonymousUserID {
		userID = ""
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed for user %q: %v", userID, err)
		return
	}

	c := &Conn{
		gateway:    g,
		conn:       conn,
		id:         uuid.NewString(),
		userID:     userID,
		pongWait:   g.pongWait,
		pingPeriod: g.pingPeriod,
		send:       make(chan []byte, sendBufferSize),
	}

	g.mu.Lock()
	g.conns[c] = struct{}{}
	g.mu.Unlock()

	if c.userID != "" {
		// Last connection wins: displace and close any previous
		// connection registered for this user.
		if prev := g.registry.Register(c.userID, c); prev != nil {
			if old, ok := prev.(*Conn); ok {
				go g.disconnect(old)
			}
		}
		log.Printf("[ws] user %s connected (conn %s)", c.userID, c.id)
	} else {
		log.Printf("[ws] anonymous connection %s established", c.id)
	}

	go c.writePump()
	go c.readPump()

	// Everyone, including the new connection, learns the updated
	// online-user set.
	g.BroadcastOnlineUsers()
}

// disconnect removes a connection from the gateway and, if it is still the
// registered one for its user, from the presence registry. Safe to call
// multiple times for the same connection.
func (g *Gateway) disconnect(c *Conn) {
	g.mu.Lock()
	_, present := g.conns[c]
	delete(g.conns, c)
	g.mu.Unlock()

	if !present {
		return
	}

	removed := false
	if c.userID != "" {
		// Handle-guarded: if the user already reconnected, this stale
		// disconnect leaves the newer registry entry alone.
		removed = g.registry.Unregister(c.userID, c)
	}

	c.markClosed()
	log.Printf("[ws] connection %s closed (user %q)", c.id, c.userID)

	if removed {
		g.BroadcastOnlineUsers()
	}
}

// EmitToUser pushes one event to the user's live connection, if any.
// Absence is not an error — an offline user simply misses the event and
// reconciles from persisted state later. Send failures are logged and
// swallowed; fanout is fire-and-forget.
func (g *Gateway) EmitToUser(userID string, ev Event) bool {
	s, ok := g.registry.Lookup(userID)
	if !ok {
		return false
	}
	if err := s.SendEvent(ev); err != nil {
		log.Printf("[ws] delivery of %s to %s failed: %v", ev.Type, userID, err)
		return false
	}
	return true
}

// BroadcastOnlineUsers sends the current online-user set to every live
// connection, identified or anonymous.
func (g *Gateway) BroadcastOnlineUsers() {
	ev, err := NewEvent(EventOnlineUsers, g.registry.ActiveUserIDs())
	if err != nil {
		log.Printf("[ws] failed to build online-users event: %v", err)
		return
	}

	g.mu.RLock()
	conns := make([]*Conn, 0, len(g.conns))
	for c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.RUnlock()

	for _, c := range conns {
		_ = c.SendEvent(ev)
	}
}

// Shutdown closes every live connection. Used on graceful server stop.
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	conns := make([]*Conn, 0, len(g.conns))
	for c := range g.conns {
		conns = append(conns, c)
	}
	g.conns = make(map[*Conn]struct{})
	g.mu.Unlock()

	for _, c := range conns {
		if c.userID != "" {
			g.registry.Unregister(c.userID, c)
		}
		c.markClosed()
	}
	log.Printf("[ws] gateway shut down, %d connection(s) closed", len(conns))
}
