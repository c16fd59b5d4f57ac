package roomrelease

import (
	"context"
	"time"
)

// EventType classifies lifecycle events written to the release log
type EventType string

const (
	EventBookingTracked   EventType = "booking_tracked"
	EventBookingUntracked EventType = "booking_untracked"
	EventBookingExempt    EventType = "booking_exempt"
	EventBookingEnded     EventType = "booking_ended"
	EventChecksStopped    EventType = "checks_stopped"
	EventCountdownStarted EventType = "countdown_started"
	EventCountdownAborted EventType = "countdown_aborted"
	EventDeclineSucceeded EventType = "decline_succeeded"
	EventDeclineFailed    EventType = "decline_failed"
	EventPhaseChanged     EventType = "phase_changed"
)

// Event is one entry of a room's release lifecycle log
type Event struct {
	ID        string    `json:"id"`
	Room      string    `json:"room"`
	Type      EventType `json:"type"`
	Phase     Phase     `json:"phase"`
	BookingID string    `json:"booking_id,omitempty"`
	MeetingID string    `json:"meeting_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Recorder receives lifecycle events. Implementations must not fail the caller.
type Recorder interface {
	Record(ctx context.Context, ev Event)
}

type nopRecorder struct{}

func (nopRecorder) Record(ctx context.Context, ev Event) {}
