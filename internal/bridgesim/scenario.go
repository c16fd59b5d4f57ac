package bridgesim

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario describes a simulated room device: its booking, its initial
// status values and a timeline of things that happen in the room.
type Scenario struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Room        string            `yaml:"room"`
	Booking     BookingConfig     `yaml:"booking"`
	Status      map[string]string `yaml:"status"`
	Steps       []Step            `yaml:"steps"`
}

// BookingConfig is the booking the simulated device reports
type BookingConfig struct {
	ID                string `yaml:"id"`
	MeetingID         string `yaml:"meeting_id"`
	Availability      string `yaml:"availability"`
	SecondsUntilEnd   int    `yaml:"seconds_until_end"`
	SecondsSinceStart int    `yaml:"seconds_since_start"`
	InProgress        bool   `yaml:"in_progress"`
}

// Step is one timeline entry. Exactly one of Status or Event is set.
type Step struct {
	Time        int                    `yaml:"time"` // Seconds from start
	Status      string                 `yaml:"status,omitempty"`
	Value       string                 `yaml:"value,omitempty"`
	Event       string                 `yaml:"event,omitempty"`
	Data        map[string]interface{} `yaml:"data,omitempty"`
	Description string                 `yaml:"description"`
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return LoadScenarioFromBytes(data)
}

// LoadScenarioFromBytes loads a scenario from byte data
func LoadScenarioFromBytes(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario YAML: %w", err)
	}

	if err := ValidateScenario(&s); err != nil {
		return nil, fmt.Errorf("scenario validation failed: %w", err)
	}

	if s.Status == nil {
		s.Status = make(map[string]string)
	}
	if s.Booking.Availability == "" {
		s.Booking.Availability = "BookedUntil"
	}
	sort.SliceStable(s.Steps, func(i, j int) bool { return s.Steps[i].Time < s.Steps[j].Time })

	return &s, nil
}

// ValidateScenario performs validation checks on a loaded scenario
func ValidateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if s.Room == "" {
		return fmt.Errorf("room is required")
	}
	if s.Booking.ID == "" {
		return fmt.Errorf("booking.id is required")
	}

	for i, step := range s.Steps {
		if step.Time < 0 {
			return fmt.Errorf("step %d: time cannot be negative", i)
		}
		if (step.Status == "") == (step.Event == "") {
			return fmt.Errorf("step %d: exactly one of status or event is required", i)
		}
	}

	return nil
}
