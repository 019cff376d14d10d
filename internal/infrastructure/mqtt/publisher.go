package mqtt

import (
	"time"

	"github.com/nerrad567/upsdash-core/internal/nut"
	"github.com/nerrad567/upsdash-core/internal/ups"
)

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// MessagePublisher is the part of Client the Publisher needs.
type MessagePublisher interface {
	PublishJSON(topic string, v any, retained bool) error
	ClearRetained(topic string) error
}

// StatePayload is the retained body of upsdash/ups/{name}/state.
type StatePayload struct {
	UPS           string               `json:"ups"`
	Description   string               `json:"description,omitempty"`
	Variables     map[string]nut.Value `json:"variables"`
	PowerW        *float64             `json:"power_w,omitempty"`
	PowerIsApprox bool                 `json:"power_is_approx,omitempty"`
	Timestamp     string               `json:"timestamp"`
}

// EventPayload is the body of upsdash/ups/{name}/event.
type EventPayload struct {
	UPS       string `json:"ups"`
	Action    string `json:"action"`
	Target    string `json:"target,omitempty"`
	Value     string `json:"value,omitempty"`
	Outcome   string `json:"outcome"`
	Status    int    `json:"status,omitempty"`
	Title     string `json:"title,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Publisher mirrors poller results and dispatcher actions to MQTT. It
// implements ups.DeviceObserver and ups.ActionObserver. Publish failures
// are logged and never reach the caller.
type Publisher struct {
	client MessagePublisher
	logger Logger
	now    func() time.Time
}

// NewPublisher creates a publisher over client.
func NewPublisher(client MessagePublisher) *Publisher {
	return &Publisher{
		client: client,
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for publish failures.
func (p *Publisher) SetLogger(logger Logger) {
	p.logger = logger
}

// DeviceUpdated publishes the device's variables as retained state.
func (p *Publisher) DeviceUpdated(dev ups.DeviceEntry) {
	payload := StatePayload{
		UPS:         dev.Name,
		Description: dev.Description,
		Variables:   dev.Variables,
		Timestamp:   p.now().UTC().Format(time.RFC3339),
	}
	if payload.Variables == nil {
		payload.Variables = map[string]nut.Value{}
	}
	if w, approx, ok := ups.EstimatePower(dev.Variables); ok {
		payload.PowerW = &w
		payload.PowerIsApprox = approx
	}

	topic := Topics{}.UPSState(dev.Name)
	if err := p.client.PublishJSON(topic, payload, true); err != nil {
		p.logger.Warn("mqtt state publish failed", "topic", topic, "error", err)
	}
}

// DeviceRemoved clears the retained state so subscribers stop seeing it.
func (p *Publisher) DeviceRemoved(name string) {
	topic := Topics{}.UPSState(name)
	if err := p.client.ClearRetained(topic); err != nil {
		p.logger.Warn("mqtt state clear failed", "topic", topic, "error", err)
	}
}

// ActionPerformed publishes a non-retained event.
func (p *Publisher) ActionPerformed(ev ups.ActionEvent) {
	at := ev.At
	if at.IsZero() {
		at = p.now()
	}
	payload := EventPayload{
		UPS:       ev.UPS,
		Action:    string(ev.Action),
		Target:    ev.Target,
		Value:     ev.Value,
		Outcome:   "accepted",
		Subject:   ev.Subject,
		Timestamp: at.UTC().Format(time.RFC3339),
	}
	if ev.Problem != nil {
		payload.Outcome = "rejected"
		payload.Status = ev.Problem.Status
		payload.Title = ev.Problem.Title
	}

	topic := Topics{}.UPSEvent(ev.UPS)
	if err := p.client.PublishJSON(topic, payload, false); err != nil {
		p.logger.Warn("mqtt event publish failed", "topic", topic, "error", err)
		return
	}
	p.logger.Debug("mqtt event published", "topic", topic, "action", payload.Action)
}
