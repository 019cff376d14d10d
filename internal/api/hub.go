package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/upsdash-core/internal/infrastructure/config"
	"github.com/nerrad567/upsdash-core/internal/infrastructure/logging"
	"github.com/nerrad567/upsdash-core/internal/nut"
	"github.com/nerrad567/upsdash-core/internal/ups"
)

// Event channels broadcast by the hub.
const (
	ChannelDeviceUpdated = "device.updated"
	ChannelDeviceRemoved = "device.removed"
	ChannelDeviceAction  = "device.action"
)

var knownChannels = map[string]struct{}{
	ChannelDeviceUpdated: {},
	ChannelDeviceRemoved: {},
	ChannelDeviceAction:  {},
}

// DeviceEvent is the payload of device.updated and device.removed.
type DeviceEvent struct {
	UPS           string               `json:"ups"`
	Description   string               `json:"description,omitempty"`
	Variables     map[string]nut.Value `json:"variables,omitempty"`
	PowerW        *float64             `json:"power_w,omitempty"`
	PowerIsApprox bool                 `json:"power_is_approx,omitempty"`
}

// ActionEvent is the payload of device.action.
type ActionEvent struct {
	UPS     string `json:"ups"`
	Action  string `json:"action"`
	Target  string `json:"target,omitempty"`
	Value   string `json:"value,omitempty"`
	Outcome string `json:"outcome"`
	Status  int    `json:"status,omitempty"`
	Title   string `json:"title,omitempty"`
	Subject string `json:"subject,omitempty"`
}

// Hub fans device and action events out to WebSocket clients. It
// implements ups.DeviceObserver and ups.ActionObserver, so the poller and
// the dispatcher feed it directly.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// NewHub creates a hub with no clients.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

// Register adds a client.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("websocket client connected", "clients", n, "subject", c.subject)
}

// Unregister removes a client and closes its outbound queue. Calling it
// more than once is safe.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.close()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues an event for every client subscribed to channel whose
// device filter admits upsName. Slow clients lose messages rather than
// stalling the poller.
func (h *Hub) Broadcast(channel, upsName string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if c.wants(channel, upsName) && c.trySend(data) {
			sent++
		}
	}
	if sent > 0 {
		h.logger.Debug("broadcast sent", "channel", channel, "ups", upsName, "recipients", sent)
	}
}

// DeviceUpdated implements ups.DeviceObserver.
func (h *Hub) DeviceUpdated(dev ups.DeviceEntry) {
	ev := DeviceEvent{
		UPS:         dev.Name,
		Description: dev.Description,
		Variables:   dev.Variables,
	}
	if watts, approx, ok := ups.EstimatePower(dev.Variables); ok {
		ev.PowerW = &watts
		ev.PowerIsApprox = approx
	}
	h.Broadcast(ChannelDeviceUpdated, dev.Name, ev)
}

// DeviceRemoved implements ups.DeviceObserver.
func (h *Hub) DeviceRemoved(name string) {
	h.Broadcast(ChannelDeviceRemoved, name, DeviceEvent{UPS: name})
}

// ActionPerformed implements ups.ActionObserver.
func (h *Hub) ActionPerformed(ev ups.ActionEvent) {
	out := ActionEvent{
		UPS:     ev.UPS,
		Action:  string(ev.Action),
		Target:  ev.Target,
		Value:   ev.Value,
		Outcome: "accepted",
		Subject: ev.Subject,
	}
	if ev.Problem != nil {
		out.Outcome = "rejected"
		out.Status = ev.Problem.Status
		out.Title = ev.Problem.Title
	}
	h.Broadcast(ChannelDeviceAction, ev.UPS, out)
}
