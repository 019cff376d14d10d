package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/upsdash-core/internal/auth"
	"github.com/nerrad567/upsdash-core/internal/infrastructure/config"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	wsSendBufferSize = 256
)

// WSMessage is the envelope for every frame in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload selects channels and, optionally, narrows delivery to
// named UPS devices. An empty device list means every device.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
	UPS      []string `json:"ups,omitempty"`
}

// WSClient is one upgraded connection.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu            sync.RWMutex
	closed        bool
	subscriptions map[string]struct{}
	devices       map[string]struct{}

	// From the ticket; empty when tokens are disabled.
	subject string
	role    auth.Role
}

// wsTimings are the connection deadlines derived from config.
type wsTimings struct {
	readLimit int64
	pingEvery time.Duration
	pongWait  time.Duration
}

func timingsFrom(cfg config.WebSocketConfig) wsTimings {
	return wsTimings{
		readLimit: int64(cfg.MaxMessageSize),
		pingEvery: time.Duration(cfg.PingInterval) * time.Second,
		pongWait:  time.Duration(cfg.PongTimeout) * time.Second,
	}
}

// readDeadline is how long the peer may stay silent, pings included.
func (t wsTimings) readDeadline() time.Time {
	return time.Now().Add(t.pingEvery + t.pongWait)
}

func (t wsTimings) writeDeadline() time.Time {
	return time.Now().Add(t.pongWait)
}

// handleWebSocket upgrades the connection. When bearer tokens are enabled a
// single-use ticket from POST /ws/ticket is required.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	var entry ticketEntry
	if s.secCfg.JWT.Secret != "" {
		ticket := r.URL.Query().Get("ticket")
		if ticket == "" {
			writeUnauthorized(w, "Query parameter 'ticket' is required.")
			return
		}
		var ok bool
		if entry, ok = s.tickets.consume(ticket); !ok {
			writeUnauthorized(w, "Invalid or expired ticket.")
			return
		}
	}

	up := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.sameOriginOrAllowed,
	}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	c := &WSClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
		subject:       entry.subject,
		role:          entry.role,
	}
	s.hub.Register(c)

	t := timingsFrom(s.wsCfg)
	go c.writeLoop(t)
	go c.readLoop(t)
}

// sameOriginOrAllowed admits non-browser clients (no Origin header) and
// origins on the CORS allow list.
func (s *Server) sameOriginOrAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || s.isAllowedOrigin(origin)
}

func (c *WSClient) readLoop(t wsTimings) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(t.readLimit)
	c.conn.SetReadDeadline(t.readDeadline()) //nolint:errcheck // a failed read reports it
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(t.readDeadline())
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err, "subject", c.subject)
			}
			return
		}
		c.conn.SetReadDeadline(t.readDeadline()) //nolint:errcheck // a failed read reports it
		c.handleMessage(data)
	}
}

func (c *WSClient) writeLoop(t wsTimings) {
	ping := time.NewTicker(t.pingEvery)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(t.writeDeadline()) //nolint:errcheck // the write reports it
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply("", WSTypeError, errorBody("invalid JSON message"))
		return
	}

	switch msg.Type {
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	case WSTypeSubscribe, WSTypeUnsubscribe:
		sub, err := decodeSubscribe(msg.Payload)
		if err != nil {
			c.reply(msg.ID, WSTypeError, errorBody(fmt.Sprintf("invalid %s payload: %v", msg.Type, err)))
			return
		}
		if msg.Type == WSTypeSubscribe {
			c.subscribe(sub)
			c.reply(msg.ID, WSTypeResponse, map[string]any{"subscribed": sub.Channels})
		} else {
			c.unsubscribe(sub)
			c.reply(msg.ID, WSTypeResponse, map[string]any{"unsubscribed": sub.Channels})
		}
	default:
		c.reply(msg.ID, WSTypeError, errorBody("unknown message type: "+msg.Type))
	}
}

// decodeSubscribe re-decodes the generic payload and rejects unknown
// channel names so typos surface instead of silently receiving nothing.
func decodeSubscribe(raw any) (WSSubscribePayload, error) {
	var sub WSSubscribePayload
	b, err := json.Marshal(raw)
	if err != nil {
		return sub, err
	}
	if err := json.Unmarshal(b, &sub); err != nil {
		return sub, err
	}
	for _, ch := range sub.Channels {
		if _, ok := knownChannels[ch]; !ok {
			return sub, fmt.Errorf("unknown channel %q", ch)
		}
	}
	return sub, nil
}

func (c *WSClient) subscribe(sub WSSubscribePayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range sub.Channels {
		c.subscriptions[ch] = struct{}{}
	}
	if len(sub.UPS) > 0 && c.devices == nil {
		c.devices = make(map[string]struct{}, len(sub.UPS))
	}
	for _, name := range sub.UPS {
		c.devices[name] = struct{}{}
	}
}

func (c *WSClient) unsubscribe(sub WSSubscribePayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range sub.Channels {
		delete(c.subscriptions, ch)
	}
	for _, name := range sub.UPS {
		delete(c.devices, name)
	}
	if len(c.devices) == 0 {
		c.devices = nil
	}
}

// wants reports whether an event on channel for upsName should reach c.
func (c *WSClient) wants(channel, upsName string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.subscriptions[channel]; !ok {
		return false
	}
	if c.devices == nil {
		return true
	}
	_, ok := c.devices[upsName]
	return ok
}

// trySend queues data without blocking. It reports false when the client
// is closed or its buffer is full.
func (c *WSClient) trySend(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// close shuts the outbound queue once; writeLoop then sends a close frame.
func (c *WSClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		c.hub.logger.Error("failed to marshal websocket reply", "type", msgType, "error", err)
		return
	}
	c.trySend(data)
}

func errorBody(message string) map[string]string {
	return map[string]string{"message": message}
}
