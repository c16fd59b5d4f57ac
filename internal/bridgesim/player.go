package bridgesim

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/saaga0h/jeeves-roomrelease/pkg/mqtt"
)

// Player publishes the scenario timeline. Speed > 1 runs it faster than real time.
type Player struct {
	bridge *Bridge
	speed  float64
	logger *slog.Logger
}

// NewPlayer creates a timeline player
func NewPlayer(bridge *Bridge, speed float64, logger *slog.Logger) *Player {
	if speed <= 0 {
		speed = 1
	}
	return &Player{bridge: bridge, speed: speed, logger: logger}
}

// Run plays every step at its scheduled time and returns when done or ctx is cancelled
func (p *Player) Run(ctx context.Context) error {
	start := time.Now()

	for i, step := range p.bridge.scenario.Steps {
		at := start.Add(time.Duration(float64(step.Time) * float64(time.Second) / p.speed))
		if err := sleepUntil(ctx, at); err != nil {
			return err
		}

		if err := p.play(step); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		p.logger.Info("Played step", "time", step.Time, "description", step.Description)
	}

	return nil
}

func (p *Player) play(step Step) error {
	if step.Status != "" {
		return p.bridge.SetStatus(step.Status, step.Value)
	}

	data := step.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	topic := mqtt.EventTopic(p.bridge.scenario.Room, step.Event)
	return p.bridge.mqtt.Publish(topic, 1, false, payload)
}

func sleepUntil(ctx context.Context, at time.Time) error {
	d := time.Until(at)
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
