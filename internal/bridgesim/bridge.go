package bridgesim

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/saaga0h/jeeves-roomrelease/pkg/mqtt"
)

type request struct {
	ID     string                 `json:"id"`
	Method string                 `json:"method"`
	Params map[string]interface{} `json:"params"`
}

type response struct {
	ID     string      `json:"id"`
	OK     bool        `json:"ok"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Bridge answers room release requests the way a room device bridge does
type Bridge struct {
	mqtt   mqtt.Client
	logger *slog.Logger

	mu       sync.Mutex
	scenario *Scenario
	status   map[string]string
	declined []string
	commands []string
}

// NewBridge creates a simulated device bridge for scenario
func NewBridge(mqttClient mqtt.Client, scenario *Scenario, logger *slog.Logger) *Bridge {
	status := make(map[string]string, len(scenario.Status))
	for k, v := range scenario.Status {
		status[k] = v
	}

	return &Bridge{
		mqtt:     mqttClient,
		logger:   logger,
		scenario: scenario,
		status:   status,
	}
}

// Subscribe starts answering requests for the scenario room
func (b *Bridge) Subscribe() error {
	return b.mqtt.Subscribe(mqtt.RequestTopic(b.scenario.Room), 1, b.HandleRequest)
}

// SetStatus updates a status value and publishes the change
func (b *Bridge) SetStatus(metric, value string) error {
	b.mu.Lock()
	b.status[metric] = value
	b.mu.Unlock()

	payload, err := json.Marshal(map[string]string{"value": value})
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	return b.mqtt.Publish(mqtt.StatusTopic(b.scenario.Room, metric), 0, false, payload)
}

// Declined returns the meeting ids the agent declined
func (b *Bridge) Declined() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.declined...)
}

// Commands returns the UI and audio commands received, in order
func (b *Bridge) Commands() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.commands...)
}

// HandleRequest answers one request from the agent
func (b *Bridge) HandleRequest(msg mqtt.Message) {
	var req request
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		b.logger.Warn("Failed to parse request", "topic", msg.Topic(), "error", err)
		return
	}

	resp := b.answer(req)
	resp.ID = req.ID

	data, err := json.Marshal(resp)
	if err != nil {
		b.logger.Error("Failed to marshal response", "method", req.Method, "error", err)
		return
	}

	if err := b.mqtt.Publish(mqtt.ResponseTopic(b.scenario.Room), 1, false, data); err != nil {
		b.logger.Error("Failed to publish response", "method", req.Method, "error", err)
	}
}

func (b *Bridge) answer(req request) response {
	b.mu.Lock()
	defer b.mu.Unlock()

	booking := b.scenario.Booking

	switch req.Method {
	case "status.get":
		metric, _ := req.Params["metric"].(string)
		return response{OK: true, Result: map[string]string{"value": b.status[metric]}}

	case "bookings.current":
		id := ""
		if booking.InProgress {
			id = booking.ID
		}
		return response{OK: true, Result: map[string]string{"id": id}}

	case "bookings.availability":
		return response{OK: true, Result: map[string]string{"value": booking.Availability}}

	case "bookings.get":
		return response{OK: true, Result: map[string]interface{}{
			"meeting_id":          booking.MeetingID,
			"seconds_until_end":   booking.SecondsUntilEnd,
			"seconds_since_start": booking.SecondsSinceStart,
		}}

	case "bookings.respond":
		meetingID, _ := req.Params["meeting_id"].(string)
		b.declined = append(b.declined, meetingID)
		b.logger.Warn("Booking declined", "room", b.scenario.Room, "meeting_id", meetingID)
		return response{OK: true}

	case "ui.prompt.display", "ui.prompt.clear", "ui.textline.display", "ui.textline.clear",
		"audio.sound.play", "audio.sound.stop":
		b.commands = append(b.commands, req.Method)
		b.logger.Debug("UI command", "method", req.Method, "params", req.Params)
		return response{OK: true}
	}

	return response{OK: false, Error: fmt.Sprintf("unknown method %s", req.Method)}
}
