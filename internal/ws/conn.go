package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single websocket write; a connection that cannot
	// accept a frame within this window is treated as broken.
	writeWait = 10 * time.Second

	// pongWait tolerates two to three missed keepalive rounds before the
	// read loop gives up on the connection.
	pongWait = 90 * time.Second

	// pingPeriod spaces the server's keepalive pings. Must be under
	// pongWait so a healthy client always answers before the deadline.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize caps inbound frames; chat events are small, bulk
	// data travels over HTTP.
	maxMessageSize = 4096

	// sendBufferSize is the per-connection outbound buffer. A full buffer
	// means the client is not draining; the connection gets dropped.
	sendBufferSize = 256
)

// Conn is one live websocket connection. Identified connections (those that
// presented a user id at handshake) are also the user's presence entry in
// the registry; anonymous connections only receive broadcasts.
//
// Two goroutines serve each connection: readPump consumes client events and
// writePump drains the send buffer, so reads and writes never block each
// other (gorilla/websocket allows one concurrent reader and one writer).
type Conn struct {
	gateway *Gateway
	conn    *websocket.Conn

	// id disambiguates connections from the same user in logs.
	id     string
	userID string

	// keepalive intervals, taken from the gateway so tests can shorten them.
	pongWait   time.Duration
	pingPeriod time.Duration

	send chan []byte

	mu     sync.Mutex
	closed bool
}

// SendEvent queues one event for delivery. If the buffer is full the client
// is considered stuck and the connection is torn down; delivery is
// best-effort either way.
func (c *Conn) SendEvent(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}

	select {
	case c.send <- data:
		return nil
	default:
		log.Printf("[ws] send buffer full for conn %s (user %q), dropping connection", c.id, c.userID)
		go c.gateway.disconnect(c)
		return errConnClosed
	}
}

// markClosed closes the send buffer exactly once. Called by the gateway
// while it owns the connection's lifecycle.
func (c *Conn) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump consumes events from the client until the connection dies, then
// tears the connection down through the gateway.
func (c *Conn) readPump() {
	defer c.gateway.disconnect(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})
	// Client-initiated pings count as liveness too. WriteControl is safe
	// to call while writePump holds the data writer.
	c.conn.SetPingHandler(func(message string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		return c.conn.WriteControl(websocket.PongMessage, []byte(message), time.Now().Add(writeWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] unexpected close for user %q: %v", c.userID, err)
			}
			return
		}

		// Any inbound frame proves the client is alive.
		_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))

		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			log.Printf("[ws] invalid event from user %q: %v", c.userID, err)
			continue
		}

		c.handleEvent(ev)
	}
}

// handleEvent dispatches one client-originated event. Unknown types are
// logged and dropped; they never fail the connection.
func (c *Conn) handleEvent(ev Event) {
	switch ev.Type {
	case EventTyping, EventStopTyping:
		c.relayTyping(ev)
	case EventSendMessage:
		c.relayMessage(ev)
	default:
		log.Printf("[ws] unknown event type %q from user %q", ev.Type, c.userID)
	}
}

// relayTyping routes a typing/stopTyping event to the receiver's live
// connection only; the sender gets no echo of its own typing state. The
// sender id in the payload is replaced with the connection's identity.
func (c *Conn) relayTyping(ev Event) {
	if c.userID == "" {
		// anonymous connections have no typing identity
		return
	}

	var payload TypingPayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil || payload.ReceiverID == "" {
		return
	}
	payload.SenderID = c.userID

	out, err := NewEvent(ev.Type, payload)
	if err != nil {
		return
	}
	c.gateway.EmitToUser(payload.ReceiverID, out)
}

// relayMessage handles the redundant sendMessage notify path: the message
// was already persisted via the HTTP API, so the payload is forwarded
// verbatim to the receiver as a newMessage event and echoed to the sender
// for an instant local update.
func (c *Conn) relayMessage(ev Event) {
	if c.userID == "" {
		return
	}

	var payload struct {
		ReceiverID string `json:"receiverId"`
	}
	if err := json.Unmarshal(ev.Data, &payload); err != nil || payload.ReceiverID == "" {
		return
	}

	out := Event{Type: EventNewMessage, Data: ev.Data}
	c.gateway.EmitToUser(payload.ReceiverID, out)
	_ = c.SendEvent(out)
}

// writePump drains the send buffer into the websocket until the buffer is
// closed by the gateway, pinging the client on a ticker so an otherwise
// silent connection keeps its read deadline alive on both ends.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// buffer closed: gateway removed this connection
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
